// Package geonetwork implements the GeoNetwork catalog client used by the
// migration engine, covering catalog versions 3 and 4.
package geonetwork

import "fmt"

// MetadataType is the catalog's record kind, stored with its wire value
// (the `isTemplate` flag in catalog responses).
type MetadataType string

const (
	Metadata              MetadataType = "n"
	Template              MetadataType = "y"
	SubTemplate           MetadataType = "s"
	TemplateOfSubTemplate MetadataType = "t"
)

// Name returns the symbolic name for the type, as used by the records API.
func (t MetadataType) Name() string {
	switch t {
	case Metadata:
		return "METADATA"
	case Template:
		return "TEMPLATE"
	case SubTemplate:
		return "SUB_TEMPLATE"
	case TemplateOfSubTemplate:
		return "TEMPLATE_OF_SUB_TEMPLATE"
	default:
		return string(t)
	}
}

// Editable reports whether records of this type can safely be edited through
// the migration pathway. Sub-templates are not.
func (t MetadataType) Editable() bool {
	return t == Metadata || t == Template
}

// WorkflowStatus is the record's workflow status as reported by the catalog.
type WorkflowStatus int

const (
	StatusUnknown   WorkflowStatus = 0
	StatusDraft     WorkflowStatus = 1
	StatusApproved  WorkflowStatus = 2
	StatusRetired   WorkflowStatus = 3
	StatusSubmitted WorkflowStatus = 4
	StatusRejected  WorkflowStatus = 5
)

func (s WorkflowStatus) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusDraft:
		return "DRAFT"
	case StatusApproved:
		return "APPROVED"
	case StatusRetired:
		return "RETIRED"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("WorkflowStatus(%d)", int(s))
	}
}

// WorkflowStage positions a record in the catalog's workflow.
type WorkflowStage string

const (
	StageNeverApproved WorkflowStage = "never_approved"
	StageApproved      WorkflowStage = "approved"
	StageWorkingCopy   WorkflowStage = "working_copy"
)

// WorkflowState combines stage and status.
//
//	[Stage]  NEVER_APPROVED ------> APPROVED <-> WORKING_COPY (WC)
//	[Status] DRAFT -> SUBMITTED? -> APPROVED  -> DRAFT -> SUBMITTED? ...
//
// Each stage requires a different update treatment:
//   - NEVER_APPROVED: status is reported in `mdStatus`; updating the record
//     updates it directly.
//   - APPROVED: updating the record creates a working copy containing the
//     update.
//   - WORKING_COPY: the working copy status lives behind a separate
//     `/records/{uuid}/status` call, so Status is always StatusUnknown here;
//     updates must target the working copy, which this client does not support.
type WorkflowState struct {
	Stage  WorkflowStage  `json:"stage"`
	Status WorkflowStatus `json:"status"`
}

func (s WorkflowState) String() string {
	return fmt.Sprintf("%s/%s", s.Stage, s.Status)
}

// Record is one catalog search hit. State is nil when the catalog has the
// workflow feature disabled.
type Record struct {
	UUID  string         `json:"uuid"`
	Title string         `json:"title"`
	Type  MetadataType   `json:"type"`
	State *WorkflowState `json:"state,omitempty"`
}

// Group is a catalog group, the unit records are created into.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
