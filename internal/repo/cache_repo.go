package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Treeflow/internal/services"
)

// CacheRepo — хранилище сервиса cache в Postgres.
// Значения хранятся как JSONB, просроченные записи не возвращаются.
type CacheRepo struct {
	pool *pgxpool.Pool
}

// NewCacheRepo создаёт CacheRepo.
func NewCacheRepo(pool *pgxpool.Pool) *CacheRepo {
	return &CacheRepo{pool: pool}
}

// Get реализует services.CacheStore.
func (r *CacheRepo) Get(ctx context.Context, key string) (any, error) {
	query := `
		SELECT value FROM cache_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`
	var data []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", services.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return value, nil
}

// Set реализует services.CacheStore.
func (r *CacheRepo) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	query := `
		INSERT INTO cache_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, key, data, expiresAt); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Delete реализует services.CacheStore.
func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Purge удаляет просроченные записи и возвращает их количество.
func (r *CacheRepo) Purge(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
