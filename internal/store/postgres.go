package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"filedesk/internal/files"
)

const uniqueViolation = "23505"

const fileColumns = `id, fileno, subject, department, date, filename, filepath,
	original_filename, size_bytes, program, memo_id, created_by, uploaded_at`

// Postgres is the PostgreSQL-backed MetadataStore and account.Store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(s rowScanner) (*files.FileRecord, error) {
	var (
		rec  files.FileRecord
		memo sql.NullString
	)
	err := s.Scan(
		&rec.ID, &rec.FileNumber, &rec.Subject, &rec.Department, &rec.Date,
		&rec.StoredFilename, &rec.StoragePath, &rec.OriginalFilename, &rec.SizeBytes,
		&rec.Program, &memo, &rec.CreatedBy, &rec.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.MemoID = memo.String
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Insert stores rec and fills its ID and UploadedAt.
func (p *Postgres) Insert(ctx context.Context, rec *files.FileRecord) (int64, error) {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO files (fileno, subject, department, date, filename, filepath,
			original_filename, size_bytes, program, memo_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, uploaded_at`,
		rec.FileNumber, rec.Subject, rec.Department, rec.Date,
		rec.StoredFilename, rec.StoragePath, rec.OriginalFilename, rec.SizeBytes,
		rec.Program, nullString(rec.MemoID), rec.CreatedBy,
	).Scan(&rec.ID, &rec.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("file %s: %w", rec.StoredFilename, ErrConflict)
		}
		return 0, fmt.Errorf("insert file: %w", err)
	}
	return rec.ID, nil
}

// GetByID returns files.ErrRecordNotFound for unknown ids.
func (p *Postgres) GetByID(ctx context.Context, id int64) (*files.FileRecord, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	rec, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, files.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get file %d: %w", id, err)
	}
	return rec, nil
}

// listQuery builds the SELECT for f. Conditions are only added for the
// filter fields that are set.
func listQuery(f files.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if f.Program != "" {
		add("program = $%d", f.Program)
	}
	if f.MemoID != "" {
		add("memo_id = $%d", f.MemoID)
	}
	if f.RestrictToOwner {
		add("created_by = $%d", f.Owner)
	}

	q := `SELECT ` + fileColumns + ` FROM files`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY uploaded_at DESC, id DESC`
	return q, args
}

// List returns matching records, newest first.
func (p *Postgres) List(ctx context.Context, f files.ListFilter) ([]files.FileRecord, error) {
	q, args := listQuery(f)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := []files.FileRecord{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return out, nil
}

// DeleteByID reports whether a row was removed.
func (p *Postgres) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete file %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete file %d: %w", id, err)
	}
	return n > 0, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
