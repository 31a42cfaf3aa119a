// Package ratelimit implements fixed-window request counting. Two stores
// share one contract: an in-memory map for single-process deployments and a
// Postgres-backed store whose atomic upsert stays correct across multiple
// server instances.
package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Config identifies one counter and its budget.
type Config struct {
	Namespace  string
	Identifier string
	Limit      int
	Window     time.Duration
}

func (c Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace cannot be empty")
	}
	if c.Identifier == "" {
		return errors.New("identifier cannot be empty")
	}
	if c.Limit < 1 {
		return errors.New("limit must be >= 1")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	return nil
}

func (c Config) key() string {
	return c.Namespace + ":" + c.Identifier
}

// Result reports whether a request is over budget. RetryAfterSeconds is the
// time until the window resets, never below 1 when Limited.
type Result struct {
	Limited           bool `json:"limited"`
	RetryAfterSeconds int  `json:"retry_after_seconds,omitempty"`
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

func limitResult(count, limit int, resetAt, now time.Time) Result {
	if count <= limit {
		return Result{}
	}
	return Result{Limited: true, RetryAfterSeconds: retryAfter(resetAt, now)}
}

func validateConfig(c Config) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("rate limit config: %w", err)
	}
	return nil
}
