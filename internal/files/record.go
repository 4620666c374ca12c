package files

import "time"

const (
	// DefaultProgram is recorded when an upload names no program.
	DefaultProgram = "montha"
	// DefaultCreatedBy is recorded when an upload carries no uploader identity.
	DefaultCreatedBy = "Unknown"
)

// FileRecord is the metadata row describing one uploaded document.
// StoragePath is the key of the blob inside the configured BlobStore and is
// never exposed to clients.
type FileRecord struct {
	ID               int64     `json:"id"`
	FileNumber       string    `json:"fileNo"`
	Subject          string    `json:"subject"`
	Department       string    `json:"department"`
	Date             string    `json:"date"`
	Program          string    `json:"program"`
	MemoID           string    `json:"memo_id,omitempty"`
	StoredFilename   string    `json:"filename"`
	StoragePath      string    `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	CreatedBy        string    `json:"created_by"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// ListFilter narrows a listing. Empty Program or MemoID match everything.
// When RestrictToOwner is set only rows whose CreatedBy equals Owner are
// returned, including the case where Owner is empty.
type ListFilter struct {
	Program         string
	MemoID          string
	RestrictToOwner bool
	Owner           string
}
