package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecospheres/isomorphe/pkg/batch"
	"github.com/ecospheres/isomorphe/pkg/geonetwork"
	"github.com/ecospheres/isomorphe/pkg/transformation"
)

// fakeClient implements geonetwork.Client against in-memory records.
type fakeClient struct {
	records map[string]string

	getErr    map[string]error
	updateErr error
	putErr    error

	updates []updateCall
	puts    []putCall

	searchResult []geonetwork.Record
	searchQuery  map[string]string
}

type updateCall struct {
	uuid            string
	content         string
	updateDateStamp bool
	state           *geonetwork.WorkflowState
}

type putCall struct {
	uuid    string
	group   *int
	newUUID string
}

func (f *fakeClient) URL() string  { return "https://catalog.example.org" }
func (f *fakeClient) Version() int { return 4 }

func (f *fakeClient) GetRecords(_ context.Context, query map[string]string) ([]geonetwork.Record, error) {
	f.searchQuery = query

	return f.searchResult, nil
}

func (f *fakeClient) GetRecord(_ context.Context, uuid string) (string, error) {
	if err := f.getErr[uuid]; err != nil {
		return "", err
	}

	content, ok := f.records[uuid]
	if !ok {
		return "", fmt.Errorf("no such record %s", uuid)
	}

	return content, nil
}

func (f *fakeClient) PutRecord(_ context.Context, uuid, content string, _ geonetwork.MetadataType, group *int, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}

	newUUID := "new-" + uuid
	f.puts = append(f.puts, putCall{uuid: uuid, group: group, newUUID: newUUID})

	return newUUID, nil
}

func (f *fakeClient) UpdateRecord(_ context.Context, uuid, content string, _ geonetwork.MetadataType, updateDateStamp bool, state *geonetwork.WorkflowState) error {
	if f.updateErr != nil {
		return f.updateErr
	}

	f.updates = append(f.updates, updateCall{
		uuid:            uuid,
		content:         content,
		updateDateStamp: updateDateStamp,
		state:           state,
	})

	return nil
}

func (f *fakeClient) DeleteRecord(context.Context, string) error { return nil }

func (f *fakeClient) GetSources(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func (f *fakeClient) GetGroups(context.Context) ([]geonetwork.Group, error) {
	return nil, nil
}

func (f *fakeClient) UUIDFilter(uuids []string) map[string]string {
	return map[string]string{"uuid": strings.Join(uuids, ",")}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// writeStylesheet creates a stylesheet file so Transformation metadata
// (name, params) can be parsed; the actual transform logic is faked.
func writeStylesheet(t *testing.T, name, content string) transformation.Transformation {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name+".xsl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return transformation.Transformation{Path: path}
}

const emptyStylesheet = `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0"/>`

func noopTransformer() transformation.Transformer {
	return transformation.Func(func(_ context.Context, xml string, _ transformation.Transformation, _ map[string]string) (string, []string, error) {
		return xml, nil, nil
	})
}

func rewriteTransformer(result string, messages ...string) transformation.Transformer {
	return transformation.Func(func(context.Context, string, transformation.Transformation, map[string]string) (string, []string, error) {
		return result, messages, nil
	})
}

func errorTransformer(msg string) transformation.Transformer {
	return transformation.Func(func(context.Context, string, transformation.Transformation, map[string]string) (string, []string, error) {
		return "", nil, errors.New(msg)
	})
}

func metadataRecord(uuid string) geonetwork.Record {
	return geonetwork.Record{UUID: uuid, Type: geonetwork.Metadata}
}

func TestSelectExcludesHarvestedByDefault(t *testing.T) {
	gn := &fakeClient{searchResult: []geonetwork.Record{metadataRecord("1")}}
	m := New(gn, noopTransformer(), testLogger())

	selection, err := m.Select(context.Background(), map[string]string{"group": "42"})

	require.NoError(t, err)
	assert.Len(t, selection, 1)
	assert.Equal(t, "false", gn.searchQuery["harvested"])
	assert.Equal(t, "42", gn.searchQuery["group"])
}

func TestSelectCallerOverridesHarvestedDefault(t *testing.T) {
	gn := &fakeClient{}
	m := New(gn, noopTransformer(), testLogger())

	_, err := m.Select(context.Background(), map[string]string{"harvested": "true"})

	require.NoError(t, err)
	assert.Equal(t, "true", gn.searchQuery["harvested"])
}

func TestTransformUnsupportedTypeSkippedBeforeAnythingElse(t *testing.T) {
	// Even a record a transformation would change is skipped when its type
	// is not editable, working copy or not.
	gn := &fakeClient{records: map[string]string{"1": "<a/>"}}
	m := New(gn, rewriteTransformer("<b/>"), testLogger())

	selection := []geonetwork.Record{{
		UUID:  "1",
		Type:  geonetwork.SubTemplate,
		State: &geonetwork.WorkflowState{Stage: geonetwork.StageWorkingCopy},
	}}

	result, err := m.Transform(context.Background(), writeStylesheet(t, "noop", emptyStylesheet), selection, nil)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, batch.KindSkipped, result.Records[0].Kind)
	assert.Equal(t, batch.SkipUnsupportedMetadataType, result.Records[0].Reason)
}

func TestTransformWorkingCopySkipped(t *testing.T) {
	gn := &fakeClient{records: map[string]string{"1": "<a/>"}}
	m := New(gn, rewriteTransformer("<b/>"), testLogger())

	selection := []geonetwork.Record{{
		UUID:  "1",
		Type:  geonetwork.Metadata,
		State: &geonetwork.WorkflowState{Stage: geonetwork.StageWorkingCopy},
	}}

	result, err := m.Transform(context.Background(), writeStylesheet(t, "noop", emptyStylesheet), selection, nil)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, batch.KindSkipped, result.Records[0].Kind)
	assert.Equal(t, batch.SkipHasWorkingCopy, result.Records[0].Reason)
}

func TestTransformNoopSkipsAllRecords(t *testing.T) {
	gn := &fakeClient{records: map[string]string{"1": "<a/>", "2": "<a/>"}}
	m := New(gn, noopTransformer(), testLogger())

	selection := []geonetwork.Record{metadataRecord("1"), metadataRecord("2")}

	result, err := m.Transform(context.Background(), writeStylesheet(t, "noop", emptyStylesheet), selection, nil)

	require.NoError(t, err)
	assert.Len(t, result.Skipped(), 2)
	assert.Empty(t, result.Successes())
	assert.Empty(t, result.Failures())

	for _, r := range result.Skipped() {
		assert.Equal(t, batch.SkipNoChanges, r.Reason)
	}
}

func TestTransformErrorFailsAllRecords(t *testing.T) {
	gn := &fakeClient{records: map[string]string{"1": "<a/>", "2": "<a/>"}}
	m := New(gn, errorTransformer("stylesheet exploded"), testLogger())

	selection := []geonetwork.Record{metadataRecord("1"), metadataRecord("2")}

	result, err := m.Transform(context.Background(), writeStylesheet(t, "error", emptyStylesheet), selection, nil)

	require.NoError(t, err)
	assert.Empty(t, result.Skipped())
	assert.Empty(t, result.Successes())
	require.Len(t, result.Failures(), 2)
	assert.Contains(t, result.Failures()[0].Error, "stylesheet exploded")
}

func TestTransformDiffIgnoresFormatting(t *testing.T) {
	gn := &fakeClient{records: map[string]string{"1": "<a><b>x</b></a>"}}
	// Same document, different incidental formatting.
	m := New(gn, rewriteTransformer("<a>\n  <b>x</b>\n</a>"), testLogger())

	result, err := m.Transform(context.Background(), writeStylesheet(t, "noop", emptyStylesheet),
		[]geonetwork.Record{metadataRecord("1")}, nil)

	require.NoError(t, err)
	require.Len(t, result.Skipped(), 1)
	assert.Equal(t, batch.SkipNoChanges, result.Skipped()[0].Reason)
}

func TestTransformAlwaysApplySucceedsWithoutDiff(t *testing.T) {
	gn := &fakeClient{records: map[string]string{"1": "<a/>"}}
	m := New(gn, noopTransformer(), testLogger())

	result, err := m.Transform(context.Background(), writeStylesheet(t, "touch~always", emptyStylesheet),
		[]geonetwork.Record{metadataRecord("1")}, nil)

	require.NoError(t, err)
	require.Len(t, result.Successes(), 1)
	assert.Empty(t, result.Skipped())
}

func TestTransformFetchFailureIsPerRecord(t *testing.T) {
	gn := &fakeClient{
		records: map[string]string{"2": "<a/>"},
		getErr:  map[string]error{"1": errors.New("connection reset")},
	}
	m := New(gn, rewriteTransformer("<b/>"), testLogger())

	result, err := m.Transform(context.Background(), writeStylesheet(t, "noop", emptyStylesheet),
		[]geonetwork.Record{metadataRecord("1"), metadataRecord("2")}, nil)

	require.NoError(t, err)
	assert.Len(t, result.Failures(), 1)
	assert.Len(t, result.Successes(), 1)
}

func TestTransformNeedsCheckFromTransformerMessages(t *testing.T) {
	gn := &fakeClient{records: map[string]string{"1": "<a/>"}}
	m := New(gn, rewriteTransformer("<b/>", "[check] verify the bounding box"), testLogger())

	result, err := m.Transform(context.Background(), writeStylesheet(t, "bbox", emptyStylesheet),
		[]geonetwork.Record{metadataRecord("1")}, nil)

	require.NoError(t, err)
	require.Len(t, result.Successes(), 1)

	r := result.Successes()[0]
	assert.True(t, r.NeedsCheck)
	assert.Equal(t, batch.StatusSuccessNeedsCheck, r.Status())
	assert.Equal(t, []string{"verify the bounding box"}, r.Log)
}

func TestTransformMissingRequiredParamIsCallerError(t *testing.T) {
	stylesheet := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:param name="prefix" required="yes"/>
</xsl:stylesheet>`

	gn := &fakeClient{records: map[string]string{"1": "<a/>"}}
	m := New(gn, noopTransformer(), testLogger())

	_, err := m.Transform(context.Background(), writeStylesheet(t, "prefix", stylesheet),
		[]geonetwork.Record{metadataRecord("1")}, nil)

	var missing *MissingParamError

	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "prefix", missing.Param)
}

func TestTransformParamDefaultsApplied(t *testing.T) {
	stylesheet := `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">
  <xsl:param name="lang" select="'fre'"/>
</xsl:stylesheet>`

	var seen map[string]string

	transformer := transformation.Func(func(_ context.Context, xml string, _ transformation.Transformation, params map[string]string) (string, []string, error) {
		seen = params

		return xml, nil, nil
	})

	gn := &fakeClient{records: map[string]string{"1": "<a/>"}}
	m := New(gn, transformer, testLogger())

	_, err := m.Transform(context.Background(), writeStylesheet(t, "lang", stylesheet),
		[]geonetwork.Record{metadataRecord("1")}, nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lang": "fre"}, seen)
}

func successBatch(uuids ...string) *batch.TransformBatch {
	b := batch.NewTransformBatch("noop")

	for _, uuid := range uuids {
		b.Add(batch.NewSuccessRecord(batch.RecordBase{
			UUID:       uuid,
			Type:       geonetwork.Metadata,
			Original:   "<a/>",
			CatalogURL: "https://catalog.example.org",
		}, "<b/>", nil))
	}

	return b
}

func TestMigrateOverwritePreservesIdentity(t *testing.T) {
	gn := &fakeClient{}
	m := New(gn, nil, testLogger())

	opts := DefaultMigrateOptions()
	opts.Overwrite = true

	result, err := m.Migrate(context.Background(), successBatch("1", "2"), opts)

	require.NoError(t, err)
	assert.Equal(t, batch.ModeOverwrite, result.Mode)
	require.Len(t, result.Successes(), 2)

	for _, r := range result.Successes() {
		assert.Equal(t, r.SourceUUID, r.TargetUUID)
	}
}

func TestMigrateCreateProducesNewIdentity(t *testing.T) {
	gn := &fakeClient{}
	m := New(gn, nil, testLogger())

	group := 7
	opts := DefaultMigrateOptions()
	opts.Group = &group

	result, err := m.Migrate(context.Background(), successBatch("1", "2"), opts)

	require.NoError(t, err)
	assert.Equal(t, batch.ModeCreate, result.Mode)
	require.Len(t, result.Successes(), 2)

	for _, r := range result.Successes() {
		assert.NotEqual(t, r.SourceUUID, r.TargetUUID)
	}

	require.Len(t, gn.puts, 2)
	assert.Equal(t, &group, gn.puts[0].group)
}

func TestMigrateCreateWithoutGroupIsCallerError(t *testing.T) {
	m := New(&fakeClient{}, nil, testLogger())

	_, err := m.Migrate(context.Background(), successBatch("1"), DefaultMigrateOptions())

	require.ErrorIs(t, err, ErrGroupRequired)
}

func TestMigrateNeverTouchesNonSuccessRecords(t *testing.T) {
	b := batch.NewTransformBatch("noop")
	b.Add(batch.NewFailureRecord(batch.RecordBase{UUID: "1", Type: geonetwork.Metadata}, errors.New("boom")))
	b.Add(batch.NewSkippedRecord(batch.RecordBase{UUID: "2", Type: geonetwork.Metadata}, batch.SkipNoChanges, nil))
	b.Add(batch.NewSuccessRecord(batch.RecordBase{UUID: "3", Type: geonetwork.Metadata}, "<b/>", nil))

	gn := &fakeClient{}
	m := New(gn, nil, testLogger())

	opts := DefaultMigrateOptions()
	opts.Overwrite = true
	// Even asking for every status code must not migrate failures or skips.
	opts.Statuses = []batch.StatusCode{
		batch.StatusFailure, batch.StatusSuccessNeedsCheck, batch.StatusSkippedNeedsCheck,
		batch.StatusSuccess, batch.StatusSkipped,
	}

	result, err := m.Migrate(context.Background(), b, opts)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "3", result.Records[0].SourceUUID)
}

func TestMigrateStatusFilter(t *testing.T) {
	b := batch.NewTransformBatch("noop")
	b.Add(batch.NewSuccessRecord(batch.RecordBase{UUID: "plain", Type: geonetwork.Metadata}, "<b/>", nil))
	b.Add(batch.NewSuccessRecord(batch.RecordBase{UUID: "flagged", Type: geonetwork.Metadata}, "<b/>", []string{"[check] hm"}))

	gn := &fakeClient{}
	m := New(gn, nil, testLogger())

	opts := DefaultMigrateOptions()
	opts.Overwrite = true
	opts.Statuses = []batch.StatusCode{batch.StatusSuccess}

	result, err := m.Migrate(context.Background(), b, opts)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "plain", result.Records[0].SourceUUID)
}

func TestMigrateWriteFailureIsIsolated(t *testing.T) {
	gn := &fakeClient{putErr: errors.New("disk full")}
	m := New(gn, nil, testLogger())

	group := 7
	opts := DefaultMigrateOptions()
	opts.Group = &group

	result, err := m.Migrate(context.Background(), successBatch("1", "2"), opts)

	require.NoError(t, err)
	require.Len(t, result.Failures(), 2)

	for _, r := range result.Failures() {
		assert.Equal(t, "disk full", r.Error)
	}
}

func TestMigrateForwardsWorkflowStateAndDateStamp(t *testing.T) {
	state := &geonetwork.WorkflowState{
		Stage:  geonetwork.StageApproved,
		Status: geonetwork.StatusApproved,
	}

	b := batch.NewTransformBatch("noop")
	b.Add(batch.NewSuccessRecord(batch.RecordBase{
		UUID:  "1",
		Type:  geonetwork.Metadata,
		State: state,
	}, "<b/>", nil))

	gn := &fakeClient{}
	m := New(gn, nil, testLogger())

	opts := DefaultMigrateOptions()
	opts.Overwrite = true
	opts.UpdateDateStamp = false

	_, err := m.Migrate(context.Background(), b, opts)

	require.NoError(t, err)
	require.Len(t, gn.updates, 1)
	assert.False(t, gn.updates[0].updateDateStamp)
	assert.Equal(t, state, gn.updates[0].state)
}

func TestMigrateTagsTransformJobID(t *testing.T) {
	gn := &fakeClient{}
	m := New(gn, nil, testLogger())

	opts := DefaultMigrateOptions()
	opts.Overwrite = true
	opts.TransformJobID = "job-7"

	result, err := m.Migrate(context.Background(), successBatch("1"), opts)

	require.NoError(t, err)
	assert.Equal(t, "job-7", result.TransformJobID)
}
