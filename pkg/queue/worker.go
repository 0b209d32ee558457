package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecospheres/isomorphe/pkg/batch"
	"github.com/ecospheres/isomorphe/pkg/eventbus"
	"github.com/ecospheres/isomorphe/pkg/events"
	"github.com/ecospheres/isomorphe/pkg/migrator"
	"github.com/ecospheres/isomorphe/pkg/transformation"
)

const dequeueTimeout = 5 * time.Second

// Worker consumes jobs sequentially and runs them through the migration
// engine. One worker processes one job at a time; batch-internal processing
// is itself sequential, so job duration scales with selection size.
type Worker struct {
	id                  string
	queue               *Queue
	bus                 eventbus.EventPublisher
	transformer         transformation.Transformer
	transformationsPath string
	logger              *slog.Logger
}

func NewWorker(id string, q *Queue, bus eventbus.EventPublisher, transformer transformation.Transformer, transformationsPath string, logger *slog.Logger) *Worker {
	return &Worker{
		id:                  id,
		queue:               q,
		bus:                 bus,
		transformer:         transformer,
		transformationsPath: transformationsPath,
		logger:              logger.With("worker_id", id),
	}
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Worker stopping")

			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			w.logger.ErrorContext(ctx, "Dequeue failed", "error", err)

			continue
		}

		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	logger := w.logger.With("job_id", job.ID, "job_kind", job.Kind)
	logger.InfoContext(ctx, "Processing job")

	started := time.Now()

	w.publish(ctx, events.JobStarted{BaseEvent: w.baseEvent(job, events.JobStartedEvent)})

	if err := w.queue.SetStatus(ctx, job.ID, JobStatusStarted, ""); err != nil {
		logger.ErrorContext(ctx, "Failed to mark job started", "error", err)
	}

	summary, err := w.run(ctx, job)
	if err != nil {
		logger.ErrorContext(ctx, "Job failed", "error", err)

		if serr := w.queue.SetStatus(ctx, job.ID, JobStatusFailed, err.Error()); serr != nil {
			logger.ErrorContext(ctx, "Failed to mark job failed", "error", serr)
		}

		event := events.JobFailed{BaseEvent: w.baseEvent(job, events.JobFailedEvent)}
		event.Error = err.Error()
		w.publish(ctx, event)

		return
	}

	if err := w.queue.SetStatus(ctx, job.ID, JobStatusFinished, ""); err != nil {
		logger.ErrorContext(ctx, "Failed to mark job finished", "error", err)
	}

	event := events.JobFinished{BaseEvent: w.baseEvent(job, events.JobFinishedEvent)}
	event.Duration = time.Since(started)
	event.Summary = summary
	w.publish(ctx, event)

	logger.InfoContext(ctx, "Job done", "duration", time.Since(started), "summary", summary)
}

// run executes the job and returns a one-line result summary. Per-record
// failures live inside the stored batch; an error here means the job itself
// could not run (bad payload, catalog connection loss, missing input batch).
func (w *Worker) run(ctx context.Context, job *Job) (string, error) {
	switch job.Kind {
	case JobTransform:
		return w.runTransform(ctx, job)
	case JobMigrate:
		return w.runMigrate(ctx, job)
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (w *Worker) runTransform(ctx context.Context, job *Job) (string, error) {
	var payload TransformPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid transform payload: %w", err)
	}

	t, err := transformation.Get(payload.Transformation, w.transformationsPath)
	if err != nil {
		return "", err
	}

	m, err := migrator.Connect(ctx, payload.CatalogURL, payload.Username, payload.Password, w.transformer, w.logger)
	if err != nil {
		return "", err
	}

	selection, err := m.Select(ctx, payload.Filters)
	if err != nil {
		return "", err
	}

	result, err := m.Transform(ctx, t, selection, payload.Params)
	if err != nil {
		return "", err
	}

	if err := w.queue.SetResult(ctx, job.ID, result); err != nil {
		return "", fmt.Errorf("failed to store transform result: %w", err)
	}

	return result.String(), nil
}

func (w *Worker) runMigrate(ctx context.Context, job *Job) (string, error) {
	var payload MigratePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid migrate payload: %w", err)
	}

	var input batch.TransformBatch
	if err := w.queue.Result(ctx, payload.TransformJobID, &input); err != nil {
		return "", fmt.Errorf("failed to load batch of transform job %s: %w", payload.TransformJobID, err)
	}

	m, err := migrator.Connect(ctx, payload.CatalogURL, payload.Username, payload.Password, w.transformer, w.logger)
	if err != nil {
		return "", err
	}

	result, err := m.Migrate(ctx, &input, migrator.MigrateOptions{
		Statuses:        payload.Statuses,
		Overwrite:       payload.Overwrite,
		Group:           payload.Group,
		UpdateDateStamp: payload.UpdateDateStamp,
		TransformJobID:  payload.TransformJobID,
	})
	if err != nil {
		return "", err
	}

	if err := w.queue.SetResult(ctx, job.ID, result); err != nil {
		return "", fmt.Errorf("failed to store migrate result: %w", err)
	}

	return result.String(), nil
}

func (w *Worker) baseEvent(job *Job, eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        job.ID + "-" + string(eventType),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JobID:     job.ID,
		JobKind:   string(job.Kind),
		WorkerID:  w.id,
	}
}

func (w *Worker) publish(ctx context.Context, event eventbus.Event) {
	if w.bus == nil {
		return
	}

	if err := w.bus.Publish(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish event", "event", event.GetType(), "error", err)
	}
}
