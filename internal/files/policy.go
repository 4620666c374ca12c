package files

import (
	"fmt"
	"mime"
	"strings"
)

// UploadPolicy decides which uploads are accepted.
type UploadPolicy string

const (
	// PolicyAny accepts every file type.
	PolicyAny UploadPolicy = "any"
	// PolicyDocuments accepts PDF and Word documents only.
	PolicyDocuments UploadPolicy = "documents"
)

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

// ParsePolicy parses a configured policy name. The empty string is PolicyAny.
func ParsePolicy(raw string) (UploadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(PolicyAny):
		return PolicyAny, nil
	case string(PolicyDocuments):
		return PolicyDocuments, nil
	}
	return "", fmt.Errorf("unknown upload policy %q", raw)
}

// Allows reports whether a file with the given name and client content type
// may be uploaded. Under PolicyDocuments either the extension or the content
// type must identify a PDF or Word document.
func (p UploadPolicy) Allows(filename, contentType string) bool {
	if p != PolicyDocuments {
		return true
	}
	if documentExts[extOf(filename)] {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return documentTypes[mt]
}
