package files

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRecordNotFound is returned by MetadataStore.GetByID for unknown ids.
	ErrRecordNotFound = errors.New("files: record not found")
	// ErrBlobNotFound is returned by BlobStore.Open for missing blobs.
	ErrBlobNotFound = errors.New("files: blob not found")
)

// ValidationError reports bad client input. Fields names every required
// field that was missing; Message overrides the generated text.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// NotFoundError reports a missing record ("record") or a record whose blob
// is gone ("blob").
type NotFoundError struct {
	What string
	ID   int64
}

func (e *NotFoundError) Error() string {
	if e.What == "blob" {
		return "File not found on server"
	}
	return "File not found"
}

// CorruptedFileError marks a stored blob that holds an error payload instead
// of the uploaded document.
type CorruptedFileError struct {
	ID int64
}

func (e *CorruptedFileError) Error() string {
	return "File is corrupted and cannot be served"
}

// ForbiddenError is returned when the ownership gate denies a delete.
type ForbiddenError struct {
	ID       int64
	Identity string
}

func (e *ForbiddenError) Error() string {
	return "You can only delete files uploaded by you"
}

// PersistenceError wraps a failure of the metadata or blob store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
