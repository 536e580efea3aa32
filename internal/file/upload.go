package file

import (
	"context"
	"fmt"
	"io"

	"github.com/nbatyrov/boxstore/internal/bucket"
	"github.com/nbatyrov/boxstore/internal/storage"
	"github.com/nbatyrov/boxstore/internal/stream"
)

// Upload runs the full pipeline for one inbound part: quota gate, stream to
// the remote store (gzipping compressible payloads), counter commits,
// metadata registration, then the optional publish step. Remote mutation
// deliberately precedes local bookkeeping so partial failure trends toward
// orphaned remote bytes rather than phantom quota debt.
func (s *Service) Upload(ctx context.Context, b bucket.Entry, part UploadPart, makePublic bool) (Entry, error) {
	if _, err := s.usage.CheckUploadAllowed(ctx, b.OwnerID, part.Size); err != nil {
		return Entry{}, err
	}

	objectID := storage.NewRemoteID()
	counter := stream.NewCountingReader(part.Content)

	gzipped := stream.IsCompressible(part.ContentType)
	var body io.Reader = counter
	size := part.Size
	contentEncoding := ""
	if gzipped {
		compressed := stream.Gzip()(counter)
		// Closing releases the compression worker when the remote put
		// aborts before draining the stream.
		defer compressed.Close()
		body = compressed
		size = -1 // compressed length is unknown up front
		contentEncoding = "gzip"
	}

	if err := s.remote.PutObject(ctx, b.ID, objectID, body, size, part.ContentType, contentEncoding); err != nil {
		cleanupErr := s.remote.DeleteObject(ctx, b.ID, objectID)
		return Entry{}, &UploadError{Object: objectID, Err: err, CleanupErr: cleanupErr}
	}

	// The counter saw the source bytes, so accounting reflects the logical
	// file size regardless of at-rest encoding.
	transferred := counter.Count()
	if err := s.buckets.AdjustMemory(ctx, b.ID, transferred); err != nil {
		return Entry{}, err
	}
	if err := s.usage.AdjustMemory(ctx, b.OwnerID, transferred); err != nil {
		return Entry{}, err
	}
	if err := s.usage.IncrementAPICalls(ctx, b.OwnerID); err != nil {
		return Entry{}, err
	}

	entry, err := s.Register(ctx, b, objectID, part, transferred, makePublic, gzipped)
	if err != nil {
		return Entry{}, err
	}

	if makePublic {
		if err := s.remote.SetPublic(ctx, b.ID, objectID, true); err != nil {
			// Registration stands; the object simply stays private.
			return entry, fmt.Errorf("publish %s: %w", objectID, err)
		}
	}

	return entry, nil
}
