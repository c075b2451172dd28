package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-enroll/internal/database"
)

// KVRepository provides PostgreSQL-backed credential key storage
type KVRepository struct {
	pool *Pool
}

// NewKVRepository creates a new PostgreSQL KV repository
func NewKVRepository(pool *Pool) *KVRepository {
	return &KVRepository{pool: pool}
}

// Get returns the value stored under key or database.ErrNotFound
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.db.QueryRowContext(ctx, "SELECT value FROM credential_kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts key in a single statement
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO credential_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key; a missing key is not an error
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM credential_kv WHERE key = $1", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying pool
func (r *KVRepository) Close() error {
	return r.pool.Close()
}

var _ database.KV = (*KVRepository)(nil)
