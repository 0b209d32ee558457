package batch

import (
	"fmt"

	"github.com/ecospheres/isomorphe/pkg/geonetwork"
)

// MigrateMode tells whether a migration overwrote source records or created
// new ones.
type MigrateMode string

const (
	ModeCreate    MigrateMode = "create"
	ModeOverwrite MigrateMode = "overwrite"
)

// MigrateRecordBase carries the fields shared by both migrate outcome
// variants.
type MigrateRecordBase struct {
	SourceUUID string                  `json:"source_uuid"`
	Type       geonetwork.MetadataType `json:"type"`
	Source     string                  `json:"source_content"`
	Target     string                  `json:"target_content"`
	CatalogURL string                  `json:"catalog_url"`
}

// MigrateRecord is one record's migrate outcome.
type MigrateRecord struct {
	Kind RecordKind `json:"kind"`

	MigrateRecordBase

	// KindFailure
	Error string `json:"error,omitempty"`

	// KindSuccess: UUID of the written record. Equal to SourceUUID when
	// overwriting, a fresh UUID when creating.
	TargetUUID string `json:"target_uuid,omitempty"`
}

func NewFailureMigrateRecord(base MigrateRecordBase, err error) MigrateRecord {
	return MigrateRecord{Kind: KindFailure, MigrateRecordBase: base, Error: err.Error()}
}

func NewSuccessMigrateRecord(base MigrateRecordBase, targetUUID string) MigrateRecord {
	return MigrateRecord{Kind: KindSuccess, MigrateRecordBase: base, TargetUUID: targetUUID}
}

// Status returns the record's status code. Migrations have no review
// flagging, so only the failure and plain success codes occur.
func (r MigrateRecord) Status() StatusCode {
	return Status(r.Kind, false)
}

// MigrateBatch is the ordered outcome of one migrate run. TransformJobID
// back-references the transform job the input batch came from; it is
// traceability, not an ownership link.
type MigrateBatch struct {
	Mode           MigrateMode     `json:"mode"`
	TransformJobID string          `json:"transform_job_id,omitempty"`
	Records        []MigrateRecord `json:"records"`
}

func NewMigrateBatch(mode MigrateMode, transformJobID string) *MigrateBatch {
	return &MigrateBatch{Mode: mode, TransformJobID: transformJobID}
}

func (b *MigrateBatch) Add(r MigrateRecord) {
	b.Records = append(b.Records, r)
}

func (b *MigrateBatch) Successes() []MigrateRecord {
	return b.byKind(KindSuccess)
}

func (b *MigrateBatch) Failures() []MigrateRecord {
	return b.byKind(KindFailure)
}

func (b *MigrateBatch) byKind(kind RecordKind) []MigrateRecord {
	var out []MigrateRecord

	for _, r := range b.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}

	return out
}

func (b *MigrateBatch) String() string {
	return fmt.Sprintf("MigrateBatch(%d records, %d failures, %d successes)",
		len(b.Records), len(b.Failures()), len(b.Successes()))
}
