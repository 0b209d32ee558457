package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ecospheres/isomorphe/pkg/eventbus"
	"github.com/ecospheres/isomorphe/pkg/events"
)

const (
	jobsKey      = "isomorphe:jobs"
	jobKeyPrefix = "isomorphe:job:"

	// Batch results stay inspectable for a while after the run; the TTL
	// mirrors the original deployment's two-month result retention.
	defaultResultTTL = 2 * 30 * 24 * time.Hour
)

// ErrJobNotFound is returned when a job ID has no stored state (never queued
// or expired).
var ErrJobNotFound = errors.New("job not found")

// Queue enqueues jobs onto a Redis list and tracks per-job status and result
// blobs. Batch results are stored as opaque JSON, preserving the tagged
// variant structure across process boundaries.
type Queue struct {
	rdb       *redis.Client
	bus       eventbus.EventPublisher
	logger    *slog.Logger
	resultTTL time.Duration
}

func New(rdb *redis.Client, bus eventbus.EventPublisher, logger *slog.Logger) *Queue {
	return &Queue{rdb: rdb, bus: bus, logger: logger, resultTTL: defaultResultTTL}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func resultKey(id string) string {
	return jobKeyPrefix + id + ":result"
}

func (q *Queue) enqueue(ctx context.Context, kind JobKind, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	job := Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	if err := q.rdb.HSet(ctx, jobKey(job.ID),
		"kind", string(kind),
		"status", string(JobStatusQueued),
		"enqueued_at", job.EnqueuedAt.Format(time.RFC3339),
	).Err(); err != nil {
		return "", fmt.Errorf("failed to store job state: %w", err)
	}

	if err := q.rdb.Expire(ctx, jobKey(job.ID), q.resultTTL).Err(); err != nil {
		return "", err
	}

	if err := q.rdb.LPush(ctx, jobsKey, data).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.announce(ctx, job)

	return job.ID, nil
}

// announce publishes the queued lifecycle event. Best effort: the job is
// already durably queued, so a publish failure is logged, not returned.
func (q *Queue) announce(ctx context.Context, job Job) {
	if q.bus == nil {
		return
	}

	event := events.JobQueued{BaseEvent: events.BaseEvent{
		ID:        job.ID + "-" + string(events.JobQueuedEvent),
		Type:      events.JobQueuedEvent,
		Timestamp: job.EnqueuedAt,
		JobID:     job.ID,
		JobKind:   string(job.Kind),
	}}

	if err := q.bus.Publish(ctx, event); err != nil && q.logger != nil {
		q.logger.ErrorContext(ctx, "Failed to publish event", "event", event.GetType(), "error", err)
	}
}

// EnqueueTransform queues a transform job and returns its ID.
func (q *Queue) EnqueueTransform(ctx context.Context, payload TransformPayload) (string, error) {
	return q.enqueue(ctx, JobTransform, payload)
}

// EnqueueMigrate queues a migrate job and returns its ID.
func (q *Queue) EnqueueMigrate(ctx context.Context, payload MigratePayload) (string, error) {
	return q.enqueue(ctx, JobMigrate, payload)
}

// Dequeue blocks until a job is available or the timeout elapses. A nil job
// with nil error means the timeout hit.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, jobsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}

	return &job, nil
}

// SetStatus records a job's lifecycle status, with an error message for
// failed jobs.
func (q *Queue) SetStatus(ctx context.Context, id string, status JobStatus, jobErr string) error {
	fields := []any{"status", string(status)}
	if jobErr != "" {
		fields = append(fields, "error", jobErr)
	}

	return q.rdb.HSet(ctx, jobKey(id), fields...).Err()
}

// JobState is a job's queue-side state, as reported to pollers.
type JobState struct {
	ID     string    `json:"id"`
	Kind   JobKind   `json:"kind"`
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// State returns a job's current lifecycle state.
func (q *Queue) State(ctx context.Context, id string) (*JobState, error) {
	fields, err := q.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	return &JobState{
		ID:     id,
		Kind:   JobKind(fields["kind"]),
		Status: JobStatus(fields["status"]),
		Error:  fields["error"],
	}, nil
}

// SetResult persists a job's result blob with the retention TTL.
func (q *Queue) SetResult(ctx context.Context, id string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return q.rdb.Set(ctx, resultKey(id), data, q.resultTTL).Err()
}

// Result loads a job's result blob into out.
func (q *Queue) Result(ctx context.Context, id string, out any) error {
	data, err := q.rdb.Get(ctx, resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrJobNotFound
	}

	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}
