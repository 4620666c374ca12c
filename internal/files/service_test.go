package files_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedesk/internal/blob"
	"filedesk/internal/files"
	"filedesk/internal/store"
)

type fixture struct {
	svc  *files.Service
	meta *store.Memory
	disk *blob.Disk
	dir  string
}

func newFixture(t *testing.T, opts ...files.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	disk, err := blob.NewDisk(dir)
	require.NoError(t, err)
	meta := store.NewMemory()
	return &fixture{svc: files.NewService(meta, disk, opts...), meta: meta, disk: disk, dir: dir}
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	return len(entries)
}

func validRequest(owner string) files.UploadRequest {
	return files.UploadRequest{
		FileNumber: "F1",
		Subject:    "S",
		Department: "D",
		Date:       "2024-01-01",
		CreatedBy:  owner,
	}
}

func readAll(t *testing.T, d *files.Download) string {
	t.Helper()
	b, err := io.ReadAll(d)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	return string(b)
}

func TestUploadServeDeleteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "hello.txt", "text/plain", strings.NewReader("hello"), validRequest("alice"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.SizeBytes)

	d, err := f.svc.Open(ctx, res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", d.ContentType)
	assert.Equal(t, "inline; filename=hello.txt", d.Disposition)
	assert.EqualValues(t, 5, d.Size)
	assert.Equal(t, "hello", readAll(t, d))

	err = f.svc.Delete(ctx, res.ID, files.Caller{Identity: "bob"})
	var forbidden *files.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, 1, f.blobCount(t), "denied delete must not touch the blob")

	require.NoError(t, f.svc.Delete(ctx, res.ID, files.Caller{Identity: "alice"}))
	assert.Equal(t, 0, f.blobCount(t))

	_, err = f.svc.Open(ctx, res.ID, false)
	var nf *files.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "record", nf.What)
}

func TestUploadAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest("")
	res, err := f.svc.Upload(ctx, "a.pdf", "", strings.NewReader("%PDF"), req)
	require.NoError(t, err)

	rec, err := f.meta.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, files.DefaultProgram, rec.Program)
	assert.Equal(t, files.DefaultCreatedBy, rec.CreatedBy)
	assert.Equal(t, "a.pdf", rec.OriginalFilename)
	assert.Equal(t, res.StoredFilename, rec.StoredFilename)
	assert.True(t, strings.HasSuffix(rec.StoredFilename, ".pdf"))
}

func TestUploadMissingFieldsLeavesNoBlob(t *testing.T) {
	fields := []struct {
		name  string
		clear func(*files.UploadRequest)
	}{
		{"fileNo", func(r *files.UploadRequest) { r.FileNumber = "" }},
		{"subject", func(r *files.UploadRequest) { r.Subject = "  " }},
		{"department", func(r *files.UploadRequest) { r.Department = "" }},
		{"date", func(r *files.UploadRequest) { r.Date = "" }},
	}
	for _, tt := range fields {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest("alice")
			tt.clear(&req)

			_, err := f.svc.Upload(context.Background(), "x.txt", "", strings.NewReader("data"), req)
			var ve *files.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, []string{tt.name}, ve.Fields)
			assert.Equal(t, "File No, subject, department, and date are required", ve.Error())
			assert.Equal(t, 0, f.blobCount(t))
		})
	}
}

func TestCommitWithoutFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Commit(context.Background(), nil, validRequest("alice"))
	var ve *files.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "No file uploaded", ve.Error())
}

type failingMeta struct {
	files.MetadataStore
	insertErr error
	deleteErr error
	getErr    error
}

func (m failingMeta) Insert(ctx context.Context, rec *files.FileRecord) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	return m.MetadataStore.Insert(ctx, rec)
}

func (m failingMeta) GetByID(ctx context.Context, id int64) (*files.FileRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.MetadataStore.GetByID(ctx, id)
}

func (m failingMeta) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	return m.MetadataStore.DeleteByID(ctx, id)
}

func TestUploadInsertFailureRemovesBlob(t *testing.T) {
	dir := t.TempDir()
	disk, err := blob.NewDisk(dir)
	require.NoError(t, err)
	down := errors.New("db down")
	svc := files.NewService(failingMeta{MetadataStore: store.NewMemory(), insertErr: down}, disk)

	_, err = svc.Upload(context.Background(), "x.txt", "", strings.NewReader("data"), validRequest("alice"))
	var pe *files.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, down)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadPolicyDocuments(t *testing.T) {
	f := newFixture(t, files.WithPolicy(files.PolicyDocuments))
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, "photo.png", "image/png", strings.NewReader("png"), validRequest("alice"))
	var ve *files.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, f.blobCount(t))

	_, err = f.svc.Upload(ctx, "memo.pdf", "application/pdf", strings.NewReader("%PDF-1.7"), validRequest("alice"))
	require.NoError(t, err)
}

func TestConcurrentUploadsOfSameNameDoNotCollide(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	f := newFixture(t, files.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := f.svc.Upload(ctx, "same.txt", "", strings.NewReader("x"), validRequest("alice"))
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, n, f.blobCount(t))
}

func TestOpenMissingBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, "a.txt", "", strings.NewReader("hello"), validRequest("alice"))
	require.NoError(t, err)

	rec, err := f.meta.GetByID(ctx, res.ID)
	require.NoError(t, err)
	require.NoError(t, f.disk.Remove(ctx, rec.StoragePath))

	_, err = f.svc.Open(ctx, res.ID, false)
	var nf *files.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "blob", nf.What)
	assert.Equal(t, "File not found on server", nf.Error())
}

func TestOpenCorruptedBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, "a.pdf", "", strings.NewReader(`{"error":"upload failed"}`), validRequest("alice"))
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, res.ID, false)
	var ce *files.CorruptedFileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "File is corrupted and cannot be served", ce.Error())
}

func TestOpenLargeJSONIsNotCorrupted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := `{"error":"` + strings.Repeat("x", files.CorruptionThreshold) + `"}`
	res, err := f.svc.Upload(ctx, "big.json", "", strings.NewReader(body), validRequest("alice"))
	require.NoError(t, err)

	d, err := f.svc.Open(ctx, res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, body, readAll(t, d))
}

func TestOpenForcedAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, "memo.pdf", "", strings.NewReader("%PDF-1.7 content"), validRequest("alice"))
	require.NoError(t, err)

	d, err := f.svc.Open(ctx, res.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", d.ContentType)
	assert.Equal(t, "attachment; filename=memo.pdf", d.Disposition)
	assert.Equal(t, "%PDF-1.7 content", readAll(t, d))

	d, err = f.svc.Open(ctx, res.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.Equal(t, "inline; filename=memo.pdf", d.Disposition)
	require.NoError(t, d.Close())
}

func TestDownloadStopsAfterCancel(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Upload(context.Background(), "big.bin", "", strings.NewReader(strings.Repeat("a", 4096)), validRequest("alice"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d, err := f.svc.Open(ctx, res.ID, false)
	require.NoError(t, err)
	defer d.Close()

	buf := make([]byte, 16)
	_, err = d.Read(buf)
	require.NoError(t, err)

	cancel()
	_, err = d.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeleteMissingAndStoreErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Delete(ctx, 42, files.Caller{Identity: "alice"})
	var nf *files.NotFoundError
	require.ErrorAs(t, err, &nf)

	res, err := f.svc.Upload(ctx, "a.txt", "", strings.NewReader("hello"), validRequest("alice"))
	require.NoError(t, err)

	down := errors.New("db down")
	svc := files.NewService(failingMeta{MetadataStore: f.meta, deleteErr: down}, f.disk)
	err = svc.Delete(ctx, res.ID, files.Caller{Identity: "alice"})
	var pe *files.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, f.blobCount(t), "blob kept when the row could not be deleted")

	svc = files.NewService(failingMeta{MetadataStore: f.meta, getErr: down}, f.disk)
	_, err = svc.Open(ctx, res.ID, false)
	require.ErrorAs(t, err, &pe)
}

func TestDeleteToleratesMissingBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, "a.txt", "", strings.NewReader("hello"), validRequest("alice"))
	require.NoError(t, err)
	rec, err := f.meta.GetByID(ctx, res.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, rec.StoragePath)))

	require.NoError(t, f.svc.Delete(ctx, res.ID, files.Caller{Identity: "alice"}))
	_, err = f.meta.GetByID(ctx, res.ID)
	assert.ErrorIs(t, err, files.ErrRecordNotFound)
}

func TestAdminCannotDeleteOthersFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, "a.txt", "", strings.NewReader("hello"), validRequest("alice"))
	require.NoError(t, err)

	err = f.svc.Delete(ctx, res.ID, files.Caller{Identity: "root", Role: files.RoleAdmin})
	var forbidden *files.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestListVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upload := func(owner, program, memo string) {
		req := validRequest(owner)
		req.Program = program
		req.MemoID = memo
		_, err := f.svc.Upload(ctx, "a.txt", "", strings.NewReader("x"), req)
		require.NoError(t, err)
	}
	upload("alice", "montha", "m1")
	upload("bob", "montha", "m1")
	upload("alice", "other", "")
	upload("bob", "montha", "m2")

	mine, err := f.svc.List(ctx, files.Caller{Identity: "alice"}, "", "")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, r := range mine {
		assert.Equal(t, "alice", r.CreatedBy)
	}

	all, err := f.svc.List(ctx, files.Caller{Identity: "root", Role: files.RoleAdmin}, "montha", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	memo, err := f.svc.List(ctx, files.Caller{Identity: "root", Role: files.RoleAdmin}, "montha", "m1")
	require.NoError(t, err)
	assert.Len(t, memo, 2)

	none, err := f.svc.List(ctx, files.Caller{Identity: "carol"}, "", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
