// Package blob provides the BlobStore backends used by the file pipeline:
// a flat directory on local disk and an S3-compatible bucket via MinIO.
package blob
