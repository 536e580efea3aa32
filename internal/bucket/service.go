package bucket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nbatyrov/boxstore/internal/batch"
	"github.com/nbatyrov/boxstore/internal/storage"
)

type repository interface {
	Insert(ctx context.Context, entry Entry) (Entry, error)
	GetByID(ctx context.Context, id string) (Entry, error)
	GetByName(ctx context.Context, ownerID uuid.UUID, name string) (Entry, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Entry, error)
	FindByRefs(ctx context.Context, ownerID uuid.UUID, refs []string) ([]Entry, error)
	Delete(ctx context.Context, id string) error
}

// FileRemover empties a bucket before its container and record go away.
// Each file removal reverses that file's accounting contributions.
type FileRemover interface {
	DeleteAllInBucket(ctx context.Context, b Entry) error
}

type remoteStore interface {
	CreateContainer(ctx context.Context, containerID string) error
	DeleteContainer(ctx context.Context, containerID string) error
}

type usageCounter interface {
	IncrementAPICalls(ctx context.Context, ownerID uuid.UUID) error
}

// Service orchestrates bucket lifecycle operations.
type Service struct {
	repo   repository
	files  FileRemover
	remote remoteStore
	usage  usageCounter
}

// NewService constructs a bucket service.
func NewService(repo repository, files FileRemover, remote remoteStore, usage usageCounter) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		remote: remote,
		usage:  usage,
	}
}

// Create provisions a new bucket: remote container first, then the local
// record, then the API-call charge. A failure after remote creation leaks
// the container; that risk is accepted rather than compensated.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, name string) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, ErrBucketNameRequired
	}

	if _, err := s.repo.GetByName(ctx, ownerID, name); err == nil {
		return Entry{}, ErrBucketNameExists
	} else if !errors.Is(err, ErrBucketNotFound) {
		return Entry{}, err
	}

	containerID := storage.NewContainerID()
	if err := s.remote.CreateContainer(ctx, containerID); err != nil {
		return Entry{}, err
	}

	entry, err := s.repo.Insert(ctx, Entry{ID: containerID, OwnerID: ownerID, Name: name})
	if err != nil {
		return Entry{}, err
	}

	if err := s.usage.IncrementAPICalls(ctx, ownerID); err != nil {
		return Entry{}, fmt.Errorf("charge api call: %w", err)
	}
	return entry, nil
}

// Lookup fetches a bucket by its container identifier.
func (s *Service) Lookup(ctx context.Context, id string) (Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// LookupByName fetches a bucket by owner and display name.
func (s *Service) LookupByName(ctx context.Context, ownerID uuid.UUID, name string) (Entry, error) {
	return s.repo.GetByName(ctx, ownerID, name)
}

// List returns the owner's buckets.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]Entry, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete tears a bucket down children-first: files, then the remote
// container, then the local record, then the API-call charge. Completed
// steps are not rolled back on a later failure; every step tolerates a
// missing counterpart so the whole deletion can be retried.
func (s *Service) Delete(ctx context.Context, b Entry) error {
	if err := s.files.DeleteAllInBucket(ctx, b); err != nil {
		return fmt.Errorf("empty bucket %s: %w", b.ID, err)
	}
	if err := s.remote.DeleteContainer(ctx, b.ID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, b.ID); err != nil {
		return err
	}
	return s.usage.IncrementAPICalls(ctx, b.OwnerID)
}

// DeleteMany deletes the owner's buckets matching refs (container ids or
// names), each independently and concurrently. An empty refs list is an
// immediate empty success with no store calls. The result holds the
// container ids that were fully deleted.
func (s *Service) DeleteMany(ctx context.Context, ownerID uuid.UUID, refs []string, policy batch.Policy) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	entries, err := s.repo.FindByRefs(ctx, ownerID, refs)
	if err != nil {
		return nil, err
	}

	return batch.Run(ctx, len(entries), policy, func(ctx context.Context, i int) (string, error) {
		if err := s.Delete(ctx, entries[i]); err != nil {
			return "", err
		}
		return entries[i].ID, nil
	})
}

// DeleteByOwner removes every bucket the owner has, used when the owning
// account goes away.
func (s *Service) DeleteByOwner(ctx context.Context, ownerID uuid.UUID, policy batch.Policy) ([]string, error) {
	entries, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return batch.Run(ctx, len(entries), policy, func(ctx context.Context, i int) (string, error) {
		if err := s.Delete(ctx, entries[i]); err != nil {
			return "", err
		}
		return entries[i].ID, nil
	})
}
