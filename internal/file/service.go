package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nbatyrov/boxstore/internal/batch"
	"github.com/nbatyrov/boxstore/internal/bucket"
	"github.com/nbatyrov/boxstore/internal/quota"
)

type metadataStore interface {
	Insert(ctx context.Context, entry Entry) (Entry, error)
	Get(ctx context.Context, id string, ownerID *uuid.UUID) (Entry, error)
	List(ctx context.Context, q Query, offset, limit int) ([]Entry, error)
	Count(ctx context.Context, q Query) (int64, error)
	ListByBucket(ctx context.Context, bucketID string) ([]Entry, error)
	FindByRefs(ctx context.Context, ownerID uuid.UUID, bucketID string, refs []string) ([]Entry, error)
	UpdateName(ctx context.Context, id, name string) error
	SetPublic(ctx context.Context, id string, public bool) error
	IncrementDownloads(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type bucketStore interface {
	GetByID(ctx context.Context, id string) (bucket.Entry, error)
	GetByName(ctx context.Context, ownerID uuid.UUID, name string) (bucket.Entry, error)
	AdjustMemory(ctx context.Context, id string, delta int64) error
}

type usageStore interface {
	CheckUploadAllowed(ctx context.Context, ownerID uuid.UUID, incomingBytes int64) (quota.Stats, error)
	WithinAPILimit(ctx context.Context, ownerID uuid.UUID) (bool, error)
	AdjustMemory(ctx context.Context, ownerID uuid.UUID, delta int64) error
	IncrementAPICalls(ctx context.Context, ownerID uuid.UUID) error
}

type objectStore interface {
	PutObject(ctx context.Context, containerID, objectID string, r io.Reader, size int64, contentType, contentEncoding string) error
	GetObject(ctx context.Context, containerID, objectID string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, containerID, objectID string) error
	SetPublic(ctx context.Context, containerID, objectID string, public bool) error
	PublicURL(containerID, objectID string) string
	PresignedGetURL(ctx context.Context, containerID, objectID string, ttl time.Duration) (string, error)
}

// Service manages file metadata and the upload/download pipelines.
type Service struct {
	repo    metadataStore
	buckets bucketStore
	remote  objectStore
	usage   usageStore
}

// NewService constructs a file service.
func NewService(repo metadataStore, buckets bucketStore, remote objectStore, usage usageStore) *Service {
	return &Service{
		repo:    repo,
		buckets: buckets,
		remote:  remote,
		usage:   usage,
	}
}

// LookupBucket resolves a bucket for handler-level owner scoping.
func (s *Service) LookupBucket(ctx context.Context, id string) (bucket.Entry, error) {
	return s.buckets.GetByID(ctx, id)
}

// Get fetches a file's metadata, enforcing ownership when ownerID is given.
func (s *Service) Get(ctx context.Context, id string, ownerID *uuid.UUID) (Entry, error) {
	return s.repo.Get(ctx, id, ownerID)
}

// List returns metadata matching the query.
func (s *Service) List(ctx context.Context, q Query, offset, limit int) ([]Entry, error) {
	return s.repo.List(ctx, q, offset, limit)
}

// Count returns the number of files matching the query.
func (s *Service) Count(ctx context.Context, q Query) (int64, error) {
	return s.repo.Count(ctx, q)
}

// Rename charges an API call, then updates the file's name. The two steps
// are not atomic: the charge can land even when the rename fails.
func (s *Service) Rename(ctx context.Context, entry Entry, newName string) error {
	if err := s.usage.IncrementAPICalls(ctx, entry.OwnerID); err != nil {
		return err
	}
	if err := s.repo.UpdateName(ctx, entry.ID, newName); err != nil {
		return fmt.Errorf("rename %s: %w", entry.ID, err)
	}
	return nil
}

// Delete removes a file: remote object first, then the bucket and stats
// bookkeeping. A failure aborts the remaining steps without undoing the
// completed ones; remote deletion is never re-attempted on this path.
func (s *Service) Delete(ctx context.Context, entry Entry) error {
	if _, err := s.buckets.GetByID(ctx, entry.BucketID); err != nil {
		if errors.Is(err, bucket.ErrBucketNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if err := s.remote.DeleteObject(ctx, entry.BucketID, entry.ID); err != nil {
		return err
	}
	if err := s.buckets.AdjustMemory(ctx, entry.BucketID, -entry.Size); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, entry.ID); err != nil {
		return err
	}
	if err := s.usage.AdjustMemory(ctx, entry.OwnerID, -entry.Size); err != nil {
		return err
	}
	return s.usage.IncrementAPICalls(ctx, entry.OwnerID)
}

// DeleteAllInBucket removes every file in the bucket, failing on the first
// error so bucket deletion stops before touching the container.
func (s *Service) DeleteAllInBucket(ctx context.Context, b bucket.Entry) error {
	entries, err := s.repo.ListByBucket(ctx, b.ID)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			return s.Delete(ctx, entry)
		})
	}
	return g.Wait()
}

// RemoveFilesByBucket deletes the files of the owner's named bucket. The
// name must be non-blank; resolution failure is a NotFound on the bucket.
func (s *Service) RemoveFilesByBucket(ctx context.Context, ownerID uuid.UUID, bucketName string, policy batch.Policy) ([]string, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, ErrEmptyBucketName
	}

	b, err := s.buckets.GetByName(ctx, ownerID, bucketName)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListByBucket(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	return s.deleteEntries(ctx, entries, policy)
}

// DeleteMany deletes the owner's files matching refs (object ids or names),
// optionally scoped to one bucket. An empty refs list is an immediate empty
// success with no store calls.
func (s *Service) DeleteMany(ctx context.Context, ownerID uuid.UUID, bucketID string, refs []string, policy batch.Policy) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	entries, err := s.repo.FindByRefs(ctx, ownerID, bucketID, refs)
	if err != nil {
		return nil, err
	}

	return s.deleteEntries(ctx, entries, policy)
}

func (s *Service) deleteEntries(ctx context.Context, entries []Entry, policy batch.Policy) ([]string, error) {
	return batch.Run(ctx, len(entries), policy, func(ctx context.Context, i int) (string, error) {
		if err := s.Delete(ctx, entries[i]); err != nil {
			return "", err
		}
		return entries[i].ID, nil
	})
}

// Register persists the metadata record for an object whose remote bytes
// already exist. A store failure leaves the remote object orphaned; that
// risk is accepted.
func (s *Service) Register(ctx context.Context, b bucket.Entry, objectID string, part UploadPart, size int64, isPublic, gzipped bool) (Entry, error) {
	entry := Entry{
		ID:         objectID,
		OwnerID:    b.OwnerID,
		BucketID:   b.ID,
		BucketName: b.Name,
		Name:       sanitizeFilename(part.Filename),
		Size:       size,
		MimeType:   part.ContentType,
		IsPublic:   isPublic,
		PublicURL:  s.remote.PublicURL(b.ID, objectID),
		Gzipped:    gzipped,
	}

	stored, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("register file %s: %w", objectID, err)
	}
	return stored, nil
}

// SetVisibility publishes or unpublishes a file. The API-limit gate guards
// this metadata mutation; registration is never rolled back on failure.
func (s *Service) SetVisibility(ctx context.Context, entry Entry, public bool) error {
	ok, err := s.usage.WithinAPILimit(ctx, entry.OwnerID)
	if err != nil {
		return err
	}
	if !ok {
		return quota.ErrAPIQuotaExceeded
	}

	if err := s.remote.SetPublic(ctx, entry.BucketID, entry.ID, public); err != nil {
		return err
	}
	if err := s.repo.SetPublic(ctx, entry.ID, public); err != nil {
		return err
	}
	return s.usage.IncrementAPICalls(ctx, entry.OwnerID)
}

// ShareLink mints a time-limited read URL for a file without changing its
// stored visibility. Issuing a link is charged as an API call.
func (s *Service) ShareLink(ctx context.Context, entry Entry, ttl time.Duration) (string, error) {
	ok, err := s.usage.WithinAPILimit(ctx, entry.OwnerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", quota.ErrAPIQuotaExceeded
	}

	link, err := s.remote.PresignedGetURL(ctx, entry.BucketID, entry.ID, ttl)
	if err != nil {
		return "", err
	}
	if err := s.usage.IncrementAPICalls(ctx, entry.OwnerID); err != nil {
		return "", err
	}
	return link, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	return name
}
