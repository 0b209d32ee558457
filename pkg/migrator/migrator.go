// Package migrator implements the batch transform and migrate engines on top
// of the catalog client and transformer capabilities.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ecospheres/isomorphe/pkg/batch"
	"github.com/ecospheres/isomorphe/pkg/geonetwork"
	"github.com/ecospheres/isomorphe/pkg/transformation"
	"github.com/ecospheres/isomorphe/pkg/xmlutil"
)

// ErrGroupRequired is returned by Migrate when creating records without a
// target group: there would be nowhere to create them.
var ErrGroupRequired = errors.New("a target group is required when not overwriting")

// MissingParamError is a caller error: a required transformation parameter
// was not supplied.
type MissingParamError struct {
	Transformation string
	Param          string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("transformation %s requires parameter %q", e.Transformation, e.Param)
}

// Migrator runs transform and migrate batches against one catalog. Each
// instance owns its client session and transformer; invocations are
// sequential, single-goroutine passes. The catalog API gives no
// concurrent-write guarantee per record, so two simultaneous migrate runs
// touching the same UUID are an explicit non-guarantee.
type Migrator struct {
	gn          geonetwork.Client
	transformer transformation.Transformer
	logger      *slog.Logger
}

func New(gn geonetwork.Client, transformer transformation.Transformer, logger *slog.Logger) *Migrator {
	return &Migrator{
		gn:          gn,
		transformer: transformer,
		logger:      logger.With("catalog", gn.URL()),
	}
}

// Connect builds a Migrator over a fresh catalog session.
func Connect(ctx context.Context, url, username, password string, transformer transformation.Transformer, logger *slog.Logger) (*Migrator, error) {
	gn, err := geonetwork.Connect(ctx, url, username, password)
	if err != nil {
		return nil, err
	}

	return New(gn, transformer, logger), nil
}

// Client exposes the underlying catalog session for supporting lookups
// (sources, groups, uuid filters).
func (m *Migrator) Client() geonetwork.Client {
	return m.gn
}

// Select returns the candidate records matching filters. Harvested records
// are excluded unless the caller's filters explicitly say otherwise: editing
// them would be undone by the next harvest.
func (m *Migrator) Select(ctx context.Context, filters map[string]string) ([]geonetwork.Record, error) {
	m.logger.InfoContext(ctx, "Selecting records", "filters", filters)

	query := map[string]string{"harvested": "false"}
	for k, v := range filters {
		query[k] = v
	}

	selection, err := m.gn.GetRecords(ctx, query)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Selection done", "records", len(selection))

	return selection, nil
}

// resolveParams merges caller-provided values with declared defaults and
// fails on a missing required parameter. Checked before any record is
// processed: a missing required parameter is a caller error, not a per-record
// failure.
func resolveParams(t transformation.Transformation, provided map[string]string) (map[string]string, error) {
	declared, err := t.Params()
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]string, len(declared))

	for _, p := range declared {
		if v, ok := provided[p.Name]; ok {
			resolved[p.Name] = v

			continue
		}

		if p.Required {
			return nil, &MissingParamError{Transformation: t.Name(), Param: p.Name}
		}

		if p.DefaultValue != "" {
			resolved[p.Name] = p.DefaultValue
		}
	}

	return resolved, nil
}

// Transform applies a transformation to every record of the selection and
// returns one typed outcome per record. A record's failure never aborts the
// batch.
func (m *Migrator) Transform(ctx context.Context, t transformation.Transformation, selection []geonetwork.Record, params map[string]string) (*batch.TransformBatch, error) {
	m.logger.InfoContext(ctx, "Transforming selection",
		"transformation", t.Name(), "records", len(selection))

	resolved, err := resolveParams(t, params)
	if err != nil {
		return nil, err
	}

	result := batch.NewTransformBatch(t.Name())

	for _, r := range selection {
		m.logger.DebugContext(ctx, "Processing record",
			"uuid", r.UUID, "type", r.Type.Name(), "state", r.State)

		result.Add(m.transformRecord(ctx, t, r, resolved))
	}

	m.logger.InfoContext(ctx, "Transformation done", "batch", result.String())

	return result, nil
}

// transformRecord classifies one record and produces its outcome. The rule
// order is the classification policy: fetch, type check, working-copy check,
// apply, diff. First matching rule wins.
func (m *Migrator) transformRecord(ctx context.Context, t transformation.Transformation, r geonetwork.Record, params map[string]string) batch.TransformRecord {
	base := batch.RecordBase{
		UUID:       r.UUID,
		Type:       r.Type,
		State:      r.State,
		CatalogURL: m.gn.URL(),
	}

	original, err := m.gn.GetRecord(ctx, r.UUID)
	if err != nil {
		return batch.NewFailureRecord(base, err)
	}

	base.Original = original

	if !r.Type.Editable() {
		return batch.NewSkippedRecord(base, batch.SkipUnsupportedMetadataType, nil)
	}

	if r.State != nil && r.State.Stage == geonetwork.StageWorkingCopy {
		// Migrating a record with a pending working copy would silently
		// diverge from the copy.
		return batch.NewSkippedRecord(base, batch.SkipHasWorkingCopy, nil)
	}

	result, messages, err := m.transformer.Apply(ctx, original, t, params)
	if err != nil {
		return batch.NewFailureRecord(base, err)
	}

	changed, err := m.contentChanged(original, result)
	if err != nil {
		return batch.NewFailureRecord(base, err)
	}

	if changed || t.AlwaysApply() {
		return batch.NewSuccessRecord(base, result, messages)
	}

	return batch.NewSkippedRecord(base, batch.SkipNoChanges, messages)
}

// contentChanged compares original and result after canonicalizing both
// sides, so incidental formatting differences don't count as a change.
func (m *Migrator) contentChanged(original, result string) (bool, error) {
	canonOriginal, err := xmlutil.Canonicalize(original)
	if err != nil {
		return false, fmt.Errorf("failed to canonicalize original: %w", err)
	}

	canonResult, err := xmlutil.Canonicalize(result)
	if err != nil {
		return false, fmt.Errorf("failed to canonicalize result: %w", err)
	}

	return canonOriginal != canonResult, nil
}

// Mef packages a transform batch's successful results as a MEF archive for
// offline inspection or bulk import. Record info blocks are rebuilt from the
// embedded geonet:info data and the catalog's sources.
func (m *Migrator) Mef(ctx context.Context, tb *batch.TransformBatch) ([]byte, error) {
	sources, err := m.gn.GetSources(ctx)
	if err != nil {
		return nil, err
	}

	mef := geonetwork.NewMefArchive()

	for _, r := range tb.Successes() {
		doc, err := xmlutil.Parse(r.Result)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.UUID, err)
		}

		info, err := geonetwork.ExtractRecordInfo(doc, sources)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.UUID, err)
		}

		body, err := xmlutil.CanonicalizeDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.UUID, err)
		}

		if err := mef.Add(r.UUID, body, info); err != nil {
			return nil, err
		}
	}

	return mef.Finalize()
}

// MigrateOptions configures a migrate run.
type MigrateOptions struct {
	// Statuses filters the batch's success records by status code. Empty
	// means the whole success family. Non-success codes are ignored: failed
	// or skipped records are never migrated.
	Statuses []batch.StatusCode

	// Overwrite updates source records in place; otherwise new records are
	// created in Group.
	Overwrite bool

	Group *int

	// UpdateDateStamp controls whether overwriting bumps the record's
	// modification timestamp. False keeps cosmetic migrations invisible to
	// catalog consumers.
	UpdateDateStamp bool

	// TransformJobID tags the output batch with the job that produced the
	// input batch.
	TransformJobID string
}

// DefaultMigrateOptions returns the option defaults: whole success family,
// create mode, date stamp updated.
func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		Statuses:        batch.SuccessStatuses(),
		UpdateDateStamp: true,
	}
}

// Migrate replays a transform batch's successful results against the catalog.
// One record per write, fully isolated: a failed write is recorded and the
// batch moves on.
func (m *Migrator) Migrate(ctx context.Context, tb *batch.TransformBatch, opts MigrateOptions) (*batch.MigrateBatch, error) {
	m.logger.InfoContext(ctx, "Migrating batch",
		"batch", tb.String(), "overwrite", opts.Overwrite)

	if !opts.Overwrite && opts.Group == nil {
		return nil, ErrGroupRequired
	}

	mode := batch.ModeCreate
	if opts.Overwrite {
		mode = batch.ModeOverwrite
	}

	result := batch.NewMigrateBatch(mode, opts.TransformJobID)

	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = batch.SuccessStatuses()
	}

	for _, r := range tb.Select(statuses) {
		if r.Kind != batch.KindSuccess {
			continue
		}

		result.Add(m.migrateRecord(ctx, r, opts))
	}

	m.logger.InfoContext(ctx, "Migration done", "batch", result.String())

	return result, nil
}

func (m *Migrator) migrateRecord(ctx context.Context, r batch.TransformRecord, opts MigrateOptions) batch.MigrateRecord {
	base := batch.MigrateRecordBase{
		SourceUUID: r.UUID,
		Type:       r.Type,
		Source:     r.Original,
		Target:     r.Result,
		CatalogURL: m.gn.URL(),
	}

	if opts.Overwrite {
		err := m.gn.UpdateRecord(ctx, r.UUID, r.Result, r.Type, opts.UpdateDateStamp, r.State)
		if err != nil {
			return batch.NewFailureMigrateRecord(base, err)
		}

		return batch.NewSuccessMigrateRecord(base, r.UUID)
	}

	newUUID, err := m.gn.PutRecord(ctx, r.UUID, r.Result, r.Type, opts.Group, "GENERATEUUID")
	if err != nil {
		return batch.NewFailureMigrateRecord(base, err)
	}

	return batch.NewSuccessMigrateRecord(base, newUUID)
}
