package file

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Entry is the metadata record for one stored object. The ID doubles as the
// remote object key. BucketName is a denormalized back-reference kept for
// name-based queries; BucketID is authoritative.
type Entry struct {
	ID           string    `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	BucketID     string    `json:"bucket_id"`
	BucketName   string    `json:"bucket_name"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	IsPublic     bool      `json:"is_public"`
	PublicURL    string    `json:"public_url"`
	NumDownloads int64     `json:"num_downloads"`
	Gzipped      bool      `json:"gzipped"`
	CreatedAt    time.Time `json:"created_at"`
}

// UploadPart is the inbound multipart payload handed to the upload pipeline.
// Size is the declared byte count; the count actually read from Content is
// authoritative for accounting.
type UploadPart struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Query scopes metadata reads. Zero-valued fields are not applied.
type Query struct {
	OwnerID    uuid.UUID
	BucketID   string
	BucketName string
}
