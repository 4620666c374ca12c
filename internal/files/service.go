package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// MetadataStore persists FileRecords.
type MetadataStore interface {
	// Insert stores rec and returns the assigned id. Implementations also
	// fill rec.ID and rec.UploadedAt.
	Insert(ctx context.Context, rec *FileRecord) (int64, error)
	// GetByID returns ErrRecordNotFound for unknown ids.
	GetByID(ctx context.Context, id int64) (*FileRecord, error)
	// List returns matching records, newest first.
	List(ctx context.Context, f ListFilter) ([]FileRecord, error)
	// DeleteByID reports whether a row was removed.
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

// BlobStore holds uploaded bytes addressed by a storage path.
type BlobStore interface {
	// Put writes r under name and returns the storage path and byte count.
	// A failed Put leaves nothing behind.
	Put(ctx context.Context, name string, r io.Reader) (string, int64, error)
	// Open returns ErrBlobNotFound when nothing is stored at path.
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
	// Remove deletes the blob at path. A missing blob is not an error.
	Remove(ctx context.Context, path string) error
	Ping(ctx context.Context) error
}

// UploadRequest carries the metadata fields of an upload.
type UploadRequest struct {
	FileNumber string `form:"fileNo" validate:"required"`
	Subject    string `form:"subject" validate:"required"`
	Department string `form:"department" validate:"required"`
	Date       string `form:"date" validate:"required"`
	Program    string `form:"program"`
	MemoID     string `form:"memo_id"`
	CreatedBy  string `form:"createdBy"`
}

// StagedBlob is a blob written by StageBlob and not yet bound to a record.
type StagedBlob struct {
	StoredFilename   string
	OriginalFilename string
	StoragePath      string
	SizeBytes        int64
}

// UploadResult describes a committed upload.
type UploadResult struct {
	ID             int64
	StoredFilename string
	SizeBytes      int64
}

// Service runs the upload, serve, delete and list operations.
type Service struct {
	meta     MetadataStore
	blobs    BlobStore
	policy   UploadPolicy
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the upload type policy. The default is PolicyAny.
func WithPolicy(p UploadPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the logger used for compensating actions.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for stored names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service over the given stores.
func NewService(meta MetadataStore, blobs BlobStore, opts ...Option) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	s := &Service{
		meta:     meta,
		blobs:    blobs,
		policy:   PolicyAny,
		log:      zap.NewNop(),
		validate: v,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BlobStore exposes the underlying blob store for health probes.
func (s *Service) BlobStore() BlobStore { return s.blobs }

// StageBlob writes an uploaded file to the blob store under a fresh unique
// name. The policy is checked before any byte is written.
func (s *Service) StageBlob(ctx context.Context, originalName, contentType string, r io.Reader) (*StagedBlob, error) {
	original := SanitizeFilename(originalName)
	if !s.policy.Allows(original, contentType) {
		return nil, &ValidationError{Message: "Only PDF and Word documents are allowed"}
	}
	stored := StoredName(original, s.now())
	path, n, err := s.blobs.Put(ctx, stored, r)
	if err != nil {
		return nil, &PersistenceError{Op: "store blob", Err: err}
	}
	return &StagedBlob{
		StoredFilename:   stored,
		OriginalFilename: original,
		StoragePath:      path,
		SizeBytes:        n,
	}, nil
}

// Discard removes a staged blob. Failures are logged.
func (s *Service) Discard(ctx context.Context, b *StagedBlob) {
	if b == nil {
		return
	}
	if err := s.blobs.Remove(context.WithoutCancel(ctx), b.StoragePath); err != nil {
		s.log.Warn("discard staged blob failed",
			zap.String("storage_path", b.StoragePath), zap.Error(err))
	}
}

// Commit validates req and binds the staged blob to a new metadata row. On
// any failure the staged blob is removed, so no orphan survives a rejected
// upload.
func (s *Service) Commit(ctx context.Context, b *StagedBlob, req UploadRequest) (*UploadResult, error) {
	if b == nil {
		return nil, &ValidationError{Fields: []string{"file"}, Message: "No file uploaded"}
	}
	if err := s.validateRequest(req); err != nil {
		s.Discard(ctx, b)
		return nil, err
	}

	rec := &FileRecord{
		FileNumber:       strings.TrimSpace(req.FileNumber),
		Subject:          strings.TrimSpace(req.Subject),
		Department:       strings.TrimSpace(req.Department),
		Date:             strings.TrimSpace(req.Date),
		Program:          strings.TrimSpace(req.Program),
		MemoID:           strings.TrimSpace(req.MemoID),
		StoredFilename:   b.StoredFilename,
		StoragePath:      b.StoragePath,
		OriginalFilename: b.OriginalFilename,
		SizeBytes:        b.SizeBytes,
		CreatedBy:        req.CreatedBy,
	}
	if rec.Program == "" {
		rec.Program = DefaultProgram
	}
	if rec.CreatedBy == "" {
		rec.CreatedBy = DefaultCreatedBy
	}

	id, err := s.meta.Insert(ctx, rec)
	if err != nil {
		s.Discard(ctx, b)
		return nil, &PersistenceError{Op: "insert file record", Err: err}
	}
	return &UploadResult{ID: id, StoredFilename: b.StoredFilename, SizeBytes: b.SizeBytes}, nil
}

// Upload stages content and commits it in one call.
func (s *Service) Upload(ctx context.Context, originalName, contentType string, content io.Reader, req UploadRequest) (*UploadResult, error) {
	if content == nil {
		return nil, &ValidationError{Fields: []string{"file"}, Message: "No file uploaded"}
	}
	b, err := s.StageBlob(ctx, originalName, contentType, content)
	if err != nil {
		return nil, err
	}
	return s.Commit(ctx, b, req)
}

func (s *Service) validateRequest(req UploadRequest) error {
	trimmed := UploadRequest{
		FileNumber: strings.TrimSpace(req.FileNumber),
		Subject:    strings.TrimSpace(req.Subject),
		Department: strings.TrimSpace(req.Department),
		Date:       strings.TrimSpace(req.Date),
	}
	err := s.validate.Struct(trimmed)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate upload: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{
		Fields:  fields,
		Message: "File No, subject, department, and date are required",
	}
}

// Download is an open, integrity-checked blob ready to be streamed. Reads
// fail once the context it was opened with is done.
type Download struct {
	Record      *FileRecord
	ContentType string
	Disposition string
	Size        int64

	ctx  context.Context
	body io.ReadCloser
}

func (d *Download) Read(p []byte) (int, error) {
	if err := d.ctx.Err(); err != nil {
		return 0, err
	}
	return d.body.Read(p)
}

func (d *Download) Close() error { return d.body.Close() }

// Open resolves id to a streamable Download. With forceAttachment the
// content type is application/octet-stream and the disposition is always
// attachment.
func (s *Service) Open(ctx context.Context, id int64, forceAttachment bool) (*Download, error) {
	rec, err := s.meta.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, &NotFoundError{What: "record", ID: id}
		}
		return nil, &PersistenceError{Op: "get file record", Err: err}
	}

	body, size, err := s.blobs.Open(ctx, rec.StoragePath)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			s.log.Warn("file record without blob",
				zap.Int64("file_id", id), zap.String("storage_path", rec.StoragePath))
			return nil, &NotFoundError{What: "blob", ID: id}
		}
		return nil, &PersistenceError{Op: "open blob", Err: err}
	}

	if size < CorruptionThreshold {
		content, rerr := io.ReadAll(io.LimitReader(body, CorruptionThreshold))
		_ = body.Close()
		if rerr != nil {
			return nil, &PersistenceError{Op: "read blob", Err: rerr}
		}
		if looksCorrupted(content) {
			s.log.Warn("corrupted blob refused", zap.Int64("file_id", id))
			return nil, &CorruptedFileError{ID: id}
		}
		body = io.NopCloser(bytes.NewReader(content))
		size = int64(len(content))
	}

	name := rec.OriginalFilename
	if name == "" {
		name = rec.StoredFilename
	}
	d := &Download{Record: rec, Size: size, ctx: ctx, body: body}
	if forceAttachment {
		d.ContentType = octetStream
		d.Disposition = ContentDisposition(name, false)
	} else {
		d.ContentType = ContentTypeFor(name)
		d.Disposition = ContentDisposition(name, InlineViewable(name))
	}
	return d, nil
}

// Delete removes a record and its blob after the ownership gate allows it.
// A blob that cannot be removed is logged and does not fail the call.
func (s *Service) Delete(ctx context.Context, id int64, caller Caller) error {
	rec, err := s.meta.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return &NotFoundError{What: "record", ID: id}
		}
		return &PersistenceError{Op: "get file record", Err: err}
	}
	if !CanDelete(rec, caller) {
		return &ForbiddenError{ID: id, Identity: caller.Identity}
	}

	deleted, err := s.meta.DeleteByID(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "delete file record", Err: err}
	}
	if !deleted {
		return &NotFoundError{What: "record", ID: id}
	}

	if err := s.blobs.Remove(context.WithoutCancel(ctx), rec.StoragePath); err != nil {
		s.log.Warn("blob removal failed after record delete",
			zap.Int64("file_id", id), zap.String("storage_path", rec.StoragePath), zap.Error(err))
	}
	return nil
}

// List returns the records visible to caller, optionally narrowed to a
// program and memo, newest first.
func (s *Service) List(ctx context.Context, caller Caller, program, memoID string) ([]FileRecord, error) {
	recs, err := s.meta.List(ctx, FilterFor(caller, program, memoID))
	if err != nil {
		return nil, &PersistenceError{Op: "list file records", Err: err}
	}
	out := make([]FileRecord, 0, len(recs))
	for i := range recs {
		if VisibleTo(&recs[i], caller) {
			out = append(out, recs[i])
		}
	}
	return out, nil
}
