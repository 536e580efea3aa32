package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository allows access to bucket persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a bucket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new bucket record.
func (r *Repository) Insert(ctx context.Context, entry Entry) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO buckets (id, owner_id, name, memory_used)
VALUES ($1, $2, $3, 0)
RETURNING id, owner_id, name, memory_used, created_at;`

	row := r.pool.QueryRow(ctx, query, entry.ID, entry.OwnerID, entry.Name)

	var stored Entry
	if err := row.Scan(&stored.ID, &stored.OwnerID, &stored.Name, &stored.MemoryUsed, &stored.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Entry{}, ErrBucketNameExists
		}
		return Entry{}, fmt.Errorf("insert bucket: %w", err)
	}
	return stored, nil
}

// GetByID fetches a bucket by its remote container identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, name, memory_used, created_at
FROM buckets
WHERE id = $1;`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByName fetches a bucket by owner and display name.
func (r *Repository) GetByName(ctx context.Context, ownerID uuid.UUID, name string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, name, memory_used, created_at
FROM buckets
WHERE owner_id = $1 AND name = $2;`

	return r.scanOne(r.pool.QueryRow(ctx, query, ownerID, name))
}

// ListByOwner returns all buckets owned by the user.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, name, memory_used, created_at
FROM buckets
WHERE owner_id = $1
ORDER BY created_at DESC;`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// FindByRefs matches the owner's buckets whose id or name appears in refs.
func (r *Repository) FindByRefs(ctx context.Context, ownerID uuid.UUID, refs []string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, name, memory_used, created_at
FROM buckets
WHERE owner_id = $1 AND (id = ANY($2) OR name = ANY($2));`

	rows, err := r.pool.Query(ctx, query, ownerID, refs)
	if err != nil {
		return nil, fmt.Errorf("find buckets: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// Delete removes a bucket record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM buckets WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}

// AdjustMemory applies a byte delta to the bucket's usage as one atomic increment.
func (r *Repository) AdjustMemory(ctx context.Context, id string, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
UPDATE buckets
SET memory_used = GREATEST(memory_used + $2, 0)
WHERE id = $1;`

	commandTag, err := r.pool.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("adjust bucket memory: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (Entry, error) {
	var entry Entry
	err := row.Scan(&entry.ID, &entry.OwnerID, &entry.Name, &entry.MemoryUsed, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrBucketNotFound
		}
		return Entry{}, fmt.Errorf("get bucket: %w", err)
	}
	return entry, nil
}

func (r *Repository) scanAll(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.OwnerID, &entry.Name, &entry.MemoryUsed, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
