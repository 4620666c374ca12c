package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filedesk/internal/files"
)

// Disk stores each blob as one file in a flat directory. Storage paths are
// bare file names relative to that directory.
type Disk struct {
	dir string
}

// NewDisk creates dir if needed and returns a Disk rooted there.
func NewDisk(dir string) (*Disk, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob: empty upload directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the upload directory.
func (d *Disk) Dir() string { return d.dir }

func (d *Disk) resolve(path string) (string, error) {
	if path == "" || path != filepath.Base(path) || path == "." || path == ".." {
		return "", fmt.Errorf("blob: invalid storage path %q", path)
	}
	return filepath.Join(d.dir, path), nil
}

// Put streams r into a temp file, fsyncs it and renames it into place. On
// any error the temp file is removed.
func (d *Disk) Put(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	full, err := d.resolve(name)
	if err != nil {
		return "", 0, err
	}
	if _, err := os.Stat(full); err == nil {
		return "", 0, fmt.Errorf("blob: %s already exists", name)
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("fsync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("rename blob: %w", err)
	}
	return name, n, nil
}

// Open returns the file at path and its size.
func (d *Disk) Open(_ context.Context, path string) (io.ReadCloser, int64, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%s: %w", path, files.ErrBlobNotFound)
		}
		return nil, 0, fmt.Errorf("open blob %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat blob %s: %w", path, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s: %w", path, files.ErrBlobNotFound)
	}
	return f, st.Size(), nil
}

// Remove deletes the file at path. A missing file is not an error.
func (d *Disk) Remove(_ context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob %s: %w", path, err)
	}
	return nil
}

// Ping checks that the upload directory is still present.
func (d *Disk) Ping(_ context.Context) error {
	st, err := os.Stat(d.dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", d.dir)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
