package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
)

// Stats summarizes one scheduler run.
type Stats struct {
	Processed  int `json:"processed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	DeadLetter int `json:"dead_letter"`
}

// Runner drains due deliveries. Each run claims a batch under a lease and
// dispatches the rows one by one, so concurrent runs split the queue
// instead of duplicating work.
type Runner struct {
	deliveries repository.DeliveryRepositoryInterface
	dispatcher *dispatch.Dispatcher
	lease      time.Duration
	logger     *slog.Logger
}

func NewRunner(deliveries repository.DeliveryRepositoryInterface, dispatcher *dispatch.Dispatcher, lease time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		deliveries: deliveries,
		dispatcher: dispatcher,
		lease:      lease,
		logger:     logger,
	}
}

// Run claims up to limit due deliveries and dispatches them. It stops early
// when the context is canceled; claimed-but-unprocessed rows simply come
// due again when the lease expires.
func (r *Runner) Run(ctx context.Context, limit int) (Stats, error) {
	var stats Stats

	claimed, err := r.deliveries.ClaimDue(ctx, limit, r.lease)
	if err != nil {
		return stats, err
	}
	if len(claimed) == 0 {
		return stats, nil
	}

	r.logger.Info("scheduler run started", "claimed", len(claimed))

	for i := range claimed {
		if ctx.Err() != nil {
			r.logger.Warn("scheduler run interrupted",
				"processed", stats.Processed,
				"remaining", len(claimed)-i)
			return stats, ctx.Err()
		}

		delivery := &claimed[i]
		result, err := r.dispatcher.DispatchClaimed(ctx, delivery)
		if err != nil {
			// A single broken row must not wedge the queue.
			r.logger.Error("dispatch error",
				"delivery_id", delivery.ID,
				"workspace_id", delivery.WorkspaceID,
				"error", err)
			stats.Processed++
			stats.Failed++
			continue
		}

		stats.Processed++
		switch result.Status {
		case domain.DeliverySuccess:
			stats.Succeeded++
		case domain.DeliveryDeadLetter:
			stats.DeadLetter++
		default:
			stats.Failed++
		}
	}

	r.logger.Info("scheduler run finished",
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"dead_letter", stats.DeadLetter)
	return stats, nil
}
