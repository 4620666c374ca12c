// Package files implements the document pipeline of filedesk: upload with
// blob rollback, retrieval with integrity and content-type resolution, the
// ownership gate for deletes and role-aware listing.
//
// The package owns no storage. Metadata and blob persistence are reached
// through the MetadataStore and BlobStore interfaces, which are implemented
// in internal/store and internal/blob and injected by main.
package files
