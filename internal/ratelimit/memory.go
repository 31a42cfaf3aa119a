package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a single-process fixed-window counter. Suitable for
// local development; production deployments with more than one instance
// must use the Postgres store.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	done    chan struct{}
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*memoryWindow),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go l.cleanup()

	return l
}

// Stop shuts down the cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	close(l.done)
}

func (l *MemoryLimiter) Check(_ context.Context, cfg Config) (Result, error) {
	if err := validateConfig(cfg); err != nil {
		return Result{}, err
	}

	now := l.now()
	key := cfg.key()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &memoryWindow{count: 1, resetAt: now.Add(cfg.Window)}
		return Result{}, nil
	}

	w.count++
	return limitResult(w.count, cfg.Limit, w.resetAt, now), nil
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			now := l.now()
			l.mu.Lock()
			for key, w := range l.windows {
				if now.After(w.resetAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
