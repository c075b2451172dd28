package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-enroll/internal/database"
)

// KVRepository provides MariaDB-backed credential key storage
type KVRepository struct {
	pool *Pool
}

// NewKVRepository creates a new MariaDB KV repository
func NewKVRepository(pool *Pool) *KVRepository {
	return &KVRepository{pool: pool}
}

func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.db.QueryRowContext(ctx, "SELECT v FROM credential_kv WHERE k = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO credential_kv (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`
	if _, err := r.pool.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM credential_kv WHERE k = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Close() error {
	return r.pool.Close()
}

var _ database.KV = (*KVRepository)(nil)
