// Package events defines the job lifecycle events published by the queue
// worker.
package events

import "time"

type EventType string

const Topic = "isomorphe.jobs"

const EventTypeMetadataKey = "event_type"

const (
	JobQueuedEvent   EventType = "job.queued"
	JobStartedEvent  EventType = "job.started"
	JobFinishedEvent EventType = "job.finished"
	JobFailedEvent   EventType = "job.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
	JobKind   string    `json:"job_kind"`
	WorkerID  string    `json:"worker_id,omitempty"`
}

type JobQueued struct {
	BaseEvent
}

func (e JobQueued) GetType() EventType {
	return JobQueuedEvent
}

type JobStarted struct {
	BaseEvent
}

func (e JobStarted) GetType() EventType {
	return JobStartedEvent
}

type JobFinished struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
	// Summary is the batch's one-line description, e.g. record counts per
	// outcome.
	Summary string `json:"summary,omitempty"`
}

func (e JobFinished) GetType() EventType {
	return JobFinishedEvent
}

type JobFailed struct {
	BaseEvent

	Error string `json:"error"`
}

func (e JobFailed) GetType() EventType {
	return JobFailedEvent
}
