// Package remote defines the capability surface the sync engine needs from a
// remote hierarchical object store, and provides a Google Drive
// implementation of it.
package remote

import "context"

// MimeFolder is the folder mime type used by the remote store.
const MimeFolder = "application/vnd.google-apps.folder"

// Query is a conjunction of predicates for List. Zero-valued fields are
// omitted from the query. Trashed entries are always excluded.
type Query struct {
	Name     string // exact name match
	ParentID string // entry is contained in this folder
	MimeType string // exact mime type match
}

// Entry is one listed remote file or folder. ModifiedTime is best-effort and
// may be empty; when present it is an RFC 3339 timestamp.
type Entry struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
}

// Store is the five-operation contract the sync engine requires. No
// transactional guarantee holds across calls; every call can fail
// independently.
type Store interface {
	// List returns the entries matching every predicate in q
	List(ctx context.Context, q Query) ([]Entry, error)

	// CreateFolder creates a folder under parentID ("" for the store root)
	CreateFolder(ctx context.Context, name, parentID string) (Entry, error)

	// Upload writes data as a file named name under parentID. If existingID
	// is non-empty the file is overwritten in place, else created.
	Upload(ctx context.Context, name string, data []byte, parentID, mimeType, existingID string) (Entry, error)

	// Download returns the full content of the file with the given id
	Download(ctx context.Context, id string) ([]byte, error)

	// Delete removes the file or folder with the given id
	Delete(ctx context.Context, id string) error
}
