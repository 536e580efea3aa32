package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type repository interface {
	Get(ctx context.Context, ownerID uuid.UUID) (Stats, error)
	Create(ctx context.Context, ownerID uuid.UUID, memoryAllocated, apiCallsAllocated int64) error
	Delete(ctx context.Context, ownerID uuid.UUID) error
	AdjustMemory(ctx context.Context, ownerID uuid.UUID, delta int64) error
	IncrementAPICalls(ctx context.Context, ownerID uuid.UUID) error
}

// Service enforces per-owner byte and API-call quotas.
type Service struct {
	repo              repository
	memoryAllocated   int64
	apiCallsAllocated int64
}

// NewService constructs a quota service. The allocations are granted to
// stats records created through CreateStats.
func NewService(repo repository, memoryAllocated, apiCallsAllocated int64) *Service {
	return &Service{
		repo:              repo,
		memoryAllocated:   memoryAllocated,
		apiCallsAllocated: apiCallsAllocated,
	}
}

// CheckUploadAllowed verifies that an upload of incomingBytes fits both
// quotas and returns the current snapshot. The check is read-only: it does
// not reserve capacity, so concurrent uploads racing past it can transiently
// exceed the allocation.
func (s *Service) CheckUploadAllowed(ctx context.Context, ownerID uuid.UUID, incomingBytes int64) (Stats, error) {
	stats, err := s.ensure(ctx, ownerID)
	if err != nil {
		return Stats{}, err
	}
	if stats.MemoryUsed+incomingBytes >= stats.MemoryAllocated {
		return Stats{}, ErrMemoryQuotaExceeded
	}
	if stats.APICallsUsed+1 >= stats.APICallsAllocated {
		return Stats{}, ErrAPIQuotaExceeded
	}
	return stats, nil
}

// WithinAPILimit reports whether the owner may spend one more API call,
// keeping a one-call margin below the allocation. A missing stats record
// surfaces as ErrStatsNotFound.
func (s *Service) WithinAPILimit(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	stats, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return stats.APICallsUsed+1 < stats.APICallsAllocated, nil
}

// GetStats returns the owner's usage snapshot.
func (s *Service) GetStats(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	return s.ensure(ctx, ownerID)
}

// ensure reads the owner's stats, provisioning the record with the default
// allocations on first contact. Owner identities are minted outside this
// service, so the first read is the earliest provisioning point. Only the
// read paths (CheckUploadAllowed, GetStats) provision; counter mutations and
// the API-limit gate surface ErrStatsNotFound instead.
func (s *Service) ensure(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	stats, err := s.repo.Get(ctx, ownerID)
	if !errors.Is(err, ErrStatsNotFound) {
		return stats, err
	}
	if err := s.repo.Create(ctx, ownerID, s.memoryAllocated, s.apiCallsAllocated); err != nil {
		return Stats{}, err
	}
	return s.repo.Get(ctx, ownerID)
}

// AdjustMemory applies a byte delta to the owner's usage. A missing stats
// record surfaces as ErrStatsNotFound; the counters are never provisioned
// from a mutation path.
func (s *Service) AdjustMemory(ctx context.Context, ownerID uuid.UUID, delta int64) error {
	return s.repo.AdjustMemory(ctx, ownerID, delta)
}

// IncrementAPICalls charges one API call to the owner. A missing stats
// record surfaces as ErrStatsNotFound.
func (s *Service) IncrementAPICalls(ctx context.Context, ownerID uuid.UUID) error {
	return s.repo.IncrementAPICalls(ctx, ownerID)
}

// CreateStats provisions the owner's stats record. Invoked by the account
// lifecycle when an owner is created.
func (s *Service) CreateStats(ctx context.Context, ownerID uuid.UUID) error {
	return s.repo.Create(ctx, ownerID, s.memoryAllocated, s.apiCallsAllocated)
}

// DeleteStats removes the owner's stats record.
func (s *Service) DeleteStats(ctx context.Context, ownerID uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID)
}
