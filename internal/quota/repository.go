package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository provides access to per-owner storage stats.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a stats repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the owner's stats record.
func (r *Repository) Get(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT owner_id, memory_used, memory_allocated, api_calls_used, api_calls_allocated, updated_at
FROM storage_stats
WHERE owner_id = $1;`

	var stats Stats
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(
		&stats.OwnerID,
		&stats.MemoryUsed,
		&stats.MemoryAllocated,
		&stats.APICallsUsed,
		&stats.APICallsAllocated,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stats{}, ErrStatsNotFound
		}
		return Stats{}, fmt.Errorf("get storage stats: %w", err)
	}
	return stats, nil
}

// Create inserts the owner's stats record with the given allocations. The
// insert is idempotent so the account-lifecycle hook can be replayed.
func (r *Repository) Create(ctx context.Context, ownerID uuid.UUID, memoryAllocated, apiCallsAllocated int64) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO storage_stats (owner_id, memory_used, memory_allocated, api_calls_used, api_calls_allocated)
VALUES ($1, 0, $2, 0, $3)
ON CONFLICT (owner_id) DO NOTHING;`

	if _, err := r.pool.Exec(ctx, query, ownerID, memoryAllocated, apiCallsAllocated); err != nil {
		return fmt.Errorf("create storage stats: %w", err)
	}
	return nil
}

// Delete removes the owner's stats record.
func (r *Repository) Delete(ctx context.Context, ownerID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM storage_stats WHERE owner_id = $1;`, ownerID); err != nil {
		return fmt.Errorf("delete storage stats: %w", err)
	}
	return nil
}

// AdjustMemory applies a byte delta as one atomic increment.
func (r *Repository) AdjustMemory(ctx context.Context, ownerID uuid.UUID, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
UPDATE storage_stats
SET memory_used = GREATEST(memory_used + $2, 0), updated_at = NOW()
WHERE owner_id = $1;`

	tag, err := r.pool.Exec(ctx, query, ownerID, delta)
	if err != nil {
		return fmt.Errorf("adjust memory used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatsNotFound
	}
	return nil
}

// IncrementAPICalls bumps the owner's API-call counter by one.
func (r *Repository) IncrementAPICalls(ctx context.Context, ownerID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
UPDATE storage_stats
SET api_calls_used = api_calls_used + 1, updated_at = NOW()
WHERE owner_id = $1;`

	tag, err := r.pool.Exec(ctx, query, ownerID)
	if err != nil {
		return fmt.Errorf("increment api calls: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatsNotFound
	}
	return nil
}
