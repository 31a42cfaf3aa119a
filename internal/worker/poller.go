package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/leadops-io/leadops/internal/dispatch"
)

// Config is the polling worker's environment contract. The worker is a
// standalone process that ticks the API's cron endpoint, so it carries its
// own prefix instead of sharing the server config.
type Config struct {
	TargetURL        string `envconfig:"DELIVERY_WORKER_TARGET_URL"`
	IntervalMS       int    `envconfig:"DELIVERY_WORKER_INTERVAL_MS" default:"5000"`
	RequestTimeoutMS int    `envconfig:"DELIVERY_WORKER_REQUEST_TIMEOUT_MS" default:"15000"`
	MaxBackoffMS     int    `envconfig:"DELIVERY_WORKER_MAX_BACKOFF_MS" default:"60000"`
	Limit            int    `envconfig:"DELIVERY_WORKER_LIMIT" default:"100"`
	CronSecret       string `envconfig:"CRON_SECRET"`
	Port             string `envconfig:"PORT" default:"8080"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process worker env config: %w", err)
	}
	if cfg.CronSecret == "" {
		return nil, errors.New("CRON_SECRET is required")
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = "http://127.0.0.1:" + cfg.Port
	}
	return &cfg, nil
}

func (c *Config) Interval() time.Duration       { return time.Duration(c.IntervalMS) * time.Millisecond }
func (c *Config) RequestTimeout() time.Duration { return time.Duration(c.RequestTimeoutMS) * time.Millisecond }
func (c *Config) MaxBackoff() time.Duration     { return time.Duration(c.MaxBackoffMS) * time.Millisecond }

// ErrFatalResponse signals a response the worker cannot recover from by
// retrying, such as a bad secret or a missing endpoint.
var ErrFatalResponse = errors.New("cron endpoint returned a non-retryable status")

// maxFailureShift caps the backoff exponent at 2^6.
const maxFailureShift = 6

// Poller periodically POSTs the cron endpoint to drain due deliveries. It
// exists so deployments without an external cron service still get a
// scheduler tick.
type Poller struct {
	cfg     *Config
	client  *http.Client
	backoff dispatch.BackoffPolicy
	logger  *slog.Logger

	failures int
}

func NewPoller(cfg *Config, logger *slog.Logger) *Poller {
	return &Poller{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout()},
		backoff: dispatch.BackoffPolicy{Base: cfg.Interval(), Max: cfg.MaxBackoff()},
		logger:  logger,
	}
}

// Run polls until the context is canceled. A canceled context is a normal
// shutdown and returns nil; only fatal responses return an error.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("delivery worker started",
		"target", p.cfg.TargetURL,
		"interval", p.cfg.Interval(),
		"limit", p.cfg.Limit)

	for {
		started := time.Now()
		err := p.tick(ctx)
		elapsed := time.Since(started)

		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrFatalResponse):
			return err
		case err != nil:
			p.failures++
			delay := p.nextBackoff()
			p.logger.Warn("cron tick failed",
				"error", err,
				"consecutive_failures", p.failures,
				"retry_in", delay)
			if !p.sleep(ctx, delay) {
				return nil
			}
		default:
			p.failures = 0
			delay := p.cfg.Interval() - elapsed
			if delay < 0 {
				delay = 0
			}
			if !p.sleep(ctx, delay) {
				return nil
			}
		}
	}
}

// nextBackoff grows the retry delay as min(max, interval*2^min(failures, 6))
// plus jitter.
func (p *Poller) nextBackoff() time.Duration {
	shift := p.failures
	if shift > maxFailureShift {
		shift = maxFailureShift
	}
	return p.backoff.Next(shift)
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type cronStats struct {
	Processed  int `json:"processed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	DeadLetter int `json:"dead_letter"`
}

func (p *Poller) tick(ctx context.Context) error {
	url := p.cfg.TargetURL + "/internal/cron/deliveries?limit=" + strconv.Itoa(p.cfg.Limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create cron request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.CronSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call cron endpoint: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// Retrying cannot fix a bad secret or a missing route. Die loudly
		// so the operator sees it.
		return fmt.Errorf("%w: HTTP %d from %s", ErrFatalResponse, resp.StatusCode, url)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cron endpoint returned HTTP %d", resp.StatusCode)
	}

	var stats cronStats
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&stats); err == nil && stats.Processed > 0 {
		p.logger.Info("cron tick drained deliveries",
			"processed", stats.Processed,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"dead_letter", stats.DeadLetter)
	}
	return nil
}
