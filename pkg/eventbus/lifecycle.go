package eventbus

import (
	"context"
	"log/slog"

	"github.com/ecospheres/isomorphe/pkg/events"
)

// SubscribeLifecycleLogging registers handlers turning job lifecycle events
// into log lines and starts consuming. Every process that publishes lifecycle
// events also runs this, so queue activity leaves an audit trail even in a
// single-process deployment.
func SubscribeLifecycleLogging(ctx context.Context, bus EventBus, logger *slog.Logger) error {
	bus.Handle(events.JobQueuedEvent, func(ctx context.Context, event any) error {
		e := event.(*events.JobQueued)
		logger.InfoContext(ctx, "Job queued", "job_id", e.JobID, "job_kind", e.JobKind)

		return nil
	})

	bus.Handle(events.JobStartedEvent, func(ctx context.Context, event any) error {
		e := event.(*events.JobStarted)
		logger.InfoContext(ctx, "Job started",
			"job_id", e.JobID, "job_kind", e.JobKind, "worker_id", e.WorkerID)

		return nil
	})

	bus.Handle(events.JobFinishedEvent, func(ctx context.Context, event any) error {
		e := event.(*events.JobFinished)
		logger.InfoContext(ctx, "Job finished",
			"job_id", e.JobID, "job_kind", e.JobKind, "worker_id", e.WorkerID,
			"duration", e.Duration, "summary", e.Summary)

		return nil
	})

	bus.Handle(events.JobFailedEvent, func(ctx context.Context, event any) error {
		e := event.(*events.JobFailed)
		logger.ErrorContext(ctx, "Job failed",
			"job_id", e.JobID, "job_kind", e.JobKind, "worker_id", e.WorkerID,
			"error", e.Error)

		return nil
	})

	return bus.Subscribe(ctx)
}
