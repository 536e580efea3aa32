package file

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const entryColumns = "id, owner_id, bucket_id, bucket_name, name, size, mime_type, is_public, public_url, num_downloads, gzipped, created_at"

// Repository provides access to file metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists metadata for a new file.
func (r *Repository) Insert(ctx context.Context, entry Entry) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (id, owner_id, bucket_id, bucket_name, name, size, mime_type, is_public, public_url, gzipped)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + entryColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.BucketID,
		entry.BucketName,
		entry.Name,
		entry.Size,
		entry.MimeType,
		entry.IsPublic,
		entry.PublicURL,
		entry.Gzipped,
	)

	stored, err := scanEntry(row)
	if err != nil {
		return Entry{}, fmt.Errorf("insert file metadata: %w", err)
	}
	return stored, nil
}

// Get fetches metadata for a single file, optionally enforcing ownership.
func (r *Repository) Get(ctx context.Context, id string, ownerID *uuid.UUID) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + entryColumns + ` FROM files WHERE id = $1`
	args := []any{id}
	if ownerID != nil {
		query += ` AND owner_id = $2`
		args = append(args, *ownerID)
	}

	entry, err := scanEntry(r.pool.QueryRow(ctx, query+";", args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrFileNotFound
		}
		return Entry{}, fmt.Errorf("get file metadata: %w", err)
	}
	return entry, nil
}

// List returns metadata matching the query, newest first.
func (r *Repository) List(ctx context.Context, q Query, offset, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	where, args := buildWhere(q)
	query := `SELECT ` + entryColumns + ` FROM files` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the number of records matching the query.
func (r *Repository) Count(ctx context.Context, q Query) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	where, args := buildWhere(q)

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM files`+where+`;`, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return count, nil
}

// ListByBucket returns every file in the bucket.
func (r *Repository) ListByBucket(ctx context.Context, bucketID string) ([]Entry, error) {
	return r.List(ctx, Query{BucketID: bucketID}, 0, 0)
}

// FindByRefs matches files whose id or name appears in refs, scoped to the
// owner and optionally to one bucket.
func (r *Repository) FindByRefs(ctx context.Context, ownerID uuid.UUID, bucketID string, refs []string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + entryColumns + ` FROM files WHERE owner_id = $1 AND (id = ANY($2) OR name = ANY($2))`
	args := []any{ownerID, refs}
	if bucketID != "" {
		args = append(args, bucketID)
		query += fmt.Sprintf(" AND bucket_id = $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// UpdateName sets the file's user-facing name.
func (r *Repository) UpdateName(ctx context.Context, id, name string) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE files SET name = $2 WHERE id = $1;`, id, name)
	if err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SetPublic records the file's visibility.
func (r *Repository) SetPublic(ctx context.Context, id string, public bool) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE files SET is_public = $2 WHERE id = $1;`, id, public)
	if err != nil {
		return fmt.Errorf("set file visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// IncrementDownloads bumps the download counter by one.
func (r *Repository) IncrementDownloads(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `UPDATE files SET num_downloads = num_downloads + 1 WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("increment downloads: %w", err)
	}
	return nil
}

// Delete removes a metadata record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

func buildWhere(q Query) (string, []any) {
	var clauses []string
	var args []any
	if q.OwnerID != uuid.Nil {
		args = append(args, q.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if q.BucketID != "" {
		args = append(args, q.BucketID)
		clauses = append(clauses, fmt.Sprintf("bucket_id = $%d", len(args)))
	}
	if q.BucketName != "" {
		args = append(args, q.BucketName)
		clauses = append(clauses, fmt.Sprintf("bucket_name = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.BucketID,
		&e.BucketName,
		&e.Name,
		&e.Size,
		&e.MimeType,
		&e.IsPublic,
		&e.PublicURL,
		&e.NumDownloads,
		&e.Gzipped,
		&e.CreatedAt,
	)
	return e, err
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return entries, nil
}
