// Package queue implements the Redis-backed background job queue running
// transform and migrate jobs, and persisting their batch results.
package queue

import (
	"encoding/json"
	"time"

	"github.com/ecospheres/isomorphe/pkg/batch"
)

type JobKind string

const (
	JobTransform JobKind = "transform"
	JobMigrate   JobKind = "migrate"
)

type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusStarted  JobStatus = "started"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

// Job is one queued unit of work. Payload is the kind-specific payload,
// kept opaque until the worker dispatches on Kind.
type Job struct {
	ID         string          `json:"id"`
	Kind       JobKind         `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Session identifies the catalog and credentials a job runs against. Jobs run
// out of process, so the caller's session travels with the payload.
type Session struct {
	CatalogURL string `json:"catalog_url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// TransformPayload parameterizes a transform job: selection filters plus the
// transformation and its parameters.
type TransformPayload struct {
	Session

	Transformation string            `json:"transformation"`
	Filters        map[string]string `json:"filters,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
}

// MigratePayload parameterizes a migrate job consuming a prior transform
// job's batch.
type MigratePayload struct {
	Session

	TransformJobID  string             `json:"transform_job_id"`
	Statuses        []batch.StatusCode `json:"statuses,omitempty"`
	Overwrite       bool               `json:"overwrite"`
	Group           *int               `json:"group,omitempty"`
	UpdateDateStamp bool               `json:"update_date_stamp"`
}
