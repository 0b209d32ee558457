// Package web provides the JSON API over the migration engine: selection
// preview, job submission and job polling. It is a thin request/response
// layer; all real logic lives in the engine and the queue.
package web

import (
	"github.com/ecospheres/isomorphe/pkg/batch"
	"github.com/ecospheres/isomorphe/pkg/queue"
	"github.com/ecospheres/isomorphe/pkg/transformation"
)

// CatalogSession identifies the catalog a request targets. Credentials are
// optional: anonymous sessions can preview selections but writes will be
// rejected by the catalog.
type CatalogSession struct {
	URL      string `json:"url"      validate:"required,url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SelectRequest previews the records a set of filters matches.
type SelectRequest struct {
	CatalogSession

	Filters map[string]string `json:"filters,omitempty"`
}

// GroupsRequest lists the catalog's groups, the create-mode target choices.
type GroupsRequest struct {
	CatalogSession
}

// MefRequest downloads a finished transform job's results as a MEF archive.
type MefRequest struct {
	CatalogSession
}

// TransformRequest queues a transform job.
type TransformRequest struct {
	CatalogSession

	Transformation string            `json:"transformation" validate:"required"`
	Filters        map[string]string `json:"filters,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
}

// MigrateRequest queues a migrate job consuming a prior transform job.
type MigrateRequest struct {
	CatalogSession

	Statuses        []batch.StatusCode `json:"statuses,omitempty"`
	Overwrite       bool               `json:"overwrite"`
	Group           *int               `json:"group,omitempty"`
	UpdateDateStamp *bool              `json:"update_date_stamp,omitempty"`
}

// JobResponse is returned on job submission.
type JobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse reports a job's lifecycle state and, once finished, its
// batch result as stored by the worker.
type JobStatusResponse struct {
	*queue.JobState

	Result any `json:"result,omitempty"`
}

// TransformationResponse describes one available transformation.
type TransformationResponse struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name"`
	AlwaysApply bool                   `json:"always_apply"`
	Params      []transformation.Param `json:"params"`
}
