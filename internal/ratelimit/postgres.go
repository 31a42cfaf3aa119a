package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB interface for database operations
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGLimiter is a fixed-window counter backed by a Postgres row per key.
// The insert-or-reset-or-increment runs as one statement, so concurrent
// requests from multiple instances never lose updates.
type PGLimiter struct {
	db  DB
	now func() time.Time
}

func NewPGLimiter(db DB) *PGLimiter {
	return &PGLimiter{db: db, now: time.Now}
}

func (l *PGLimiter) Check(ctx context.Context, cfg Config) (Result, error) {
	if err := validateConfig(cfg); err != nil {
		return Result{}, err
	}

	now := l.now()

	query := `
		INSERT INTO rate_limit_windows (key, count, reset_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (key)
		DO UPDATE SET
			count = CASE
				WHEN rate_limit_windows.reset_at <= $3 THEN 1
				ELSE rate_limit_windows.count + 1
			END,
			reset_at = CASE
				WHEN rate_limit_windows.reset_at <= $3 THEN $2
				ELSE rate_limit_windows.reset_at
			END
		RETURNING count, reset_at
	`

	var count int
	var resetAt time.Time
	err := l.db.QueryRow(ctx, query, cfg.key(), now.Add(cfg.Window), now).Scan(&count, &resetAt)
	if err != nil {
		return Result{}, fmt.Errorf("check rate limit: %w", err)
	}

	return limitResult(count, cfg.Limit, resetAt, now), nil
}

// CleanupExpired removes windows that reset more than an hour ago.
func (l *PGLimiter) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM rate_limit_windows WHERE reset_at < NOW() - INTERVAL '1 hour'`
	result, err := l.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// SourceLimiter throttles inbound lead ingestion per (workspace, source)
// over calendar-minute buckets.
type SourceLimiter struct {
	db  DB
	now func() time.Time
	// cleanupChance is 1-in-N odds of sweeping expired buckets on a check.
	cleanupChance int
}

func NewSourceLimiter(db DB) *SourceLimiter {
	return &SourceLimiter{db: db, now: time.Now, cleanupChance: 100}
}

// Check increments the current minute bucket for the workspace/source pair
// and reports whether the limit is exceeded.
func (l *SourceLimiter) Check(ctx context.Context, workspaceID uuid.UUID, source string, limit int) (Result, error) {
	if limit < 1 {
		return Result{}, nil // no limit configured
	}
	if source == "" {
		source = "default"
	}

	now := l.now()
	bucket := now.Truncate(time.Minute)

	query := `
		INSERT INTO source_rate_limit_buckets (workspace_id, source, bucket_start, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (workspace_id, source, bucket_start)
		DO UPDATE SET count = source_rate_limit_buckets.count + 1
		RETURNING count
	`

	var count int
	err := l.db.QueryRow(ctx, query, workspaceID, source, bucket).Scan(&count)
	if err != nil {
		return Result{}, fmt.Errorf("check source rate limit: %w", err)
	}

	if l.cleanupChance > 0 && rand.Intn(l.cleanupChance) == 0 {
		// Opportunistic sweep; the limit decision never depends on it.
		_, _ = l.db.Exec(ctx,
			`DELETE FROM source_rate_limit_buckets WHERE bucket_start < NOW() - INTERVAL '1 hour'`)
	}

	return limitResult(count, limit, bucket.Add(time.Minute), now), nil
}
