package batch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecospheres/isomorphe/pkg/geonetwork"
)

func testBase(uuid string) RecordBase {
	return RecordBase{
		UUID:       uuid,
		Type:       geonetwork.Metadata,
		Original:   "<a/>",
		CatalogURL: "https://catalog.example.org",
	}
}

func TestStatusCodesAreStable(t *testing.T) {
	// These codes are persisted across job boundaries and must never be
	// renumbered.
	assert.Equal(t, StatusCode(1), StatusFailure)
	assert.Equal(t, StatusCode(2), StatusSuccessNeedsCheck)
	assert.Equal(t, StatusCode(3), StatusSkippedNeedsCheck)
	assert.Equal(t, StatusCode(4), StatusSuccess)
	assert.Equal(t, StatusCode(5), StatusSkipped)
}

func TestStatusLabelsAreFrench(t *testing.T) {
	// Labels sit next to the French skip reason messages in reports, so the
	// whole set stays in one language.
	assert.Equal(t, "échec", StatusFailure.Label())
	assert.Equal(t, "succès (à vérifier)", StatusSuccessNeedsCheck.Label())
	assert.Equal(t, "ignoré (à vérifier)", StatusSkippedNeedsCheck.Label())
	assert.Equal(t, "succès", StatusSuccess.Label())
	assert.Equal(t, "ignoré", StatusSkipped.Label())
	assert.Equal(t, "inconnu", StatusCode(42).Label())
}

func TestStatusOrdering(t *testing.T) {
	// Failures first, then applied changes flagged for review, then the rest.
	failure := NewFailureRecord(testBase("1"), errors.New("boom"))
	successCheck := NewSuccessRecord(testBase("2"), "<b/>", []string{"[check] verify"})
	skippedCheck := NewSkippedRecord(testBase("3"), SkipNoChanges, []string{"[check] verify"})
	success := NewSuccessRecord(testBase("4"), "<b/>", nil)
	skipped := NewSkippedRecord(testBase("5"), SkipNoChanges, nil)

	assert.Less(t, failure.Status(), successCheck.Status())
	assert.Less(t, successCheck.Status(), skippedCheck.Status())
	assert.Less(t, skippedCheck.Status(), success.Status())
	assert.Less(t, success.Status(), skipped.Status())
}

func TestCleanLog(t *testing.T) {
	cleaned, needsCheck := CleanLog([]string{
		"[check] please review the keywords",
		"renamed contact block",
	})

	assert.True(t, needsCheck)
	assert.Equal(t, []string{"please review the keywords", "renamed contact block"}, cleaned)

	cleaned, needsCheck = CleanLog([]string{"nothing to see"})
	assert.False(t, needsCheck)
	assert.Equal(t, []string{"nothing to see"}, cleaned)
}

func TestCleanLogStripsMarkerAnywhere(t *testing.T) {
	cleaned, needsCheck := CleanLog([]string{"converted 3 dates [check] manually verify timezones"})

	assert.True(t, needsCheck)
	assert.Equal(t, []string{"converted 3 dates manually verify timezones"}, cleaned)
}

func TestSuccessRecordNeedsCheckFromLog(t *testing.T) {
	r := NewSuccessRecord(testBase("1"), "<b/>", []string{"[check] look at me"})

	assert.True(t, r.NeedsCheck)
	assert.Equal(t, StatusSuccessNeedsCheck, r.Status())
	assert.NotContains(t, r.Log[0], "[check]")
}

func TestSkippedRecordMessages(t *testing.T) {
	unsupported := NewSkippedRecord(testBase("1"), SkipUnsupportedMetadataType, nil)
	assert.Equal(t, []string{SkipUnsupportedMetadataType.Message()}, unsupported.Messages())

	// The implicit no-changes reason surfaces the transformer's log instead
	// of a canned message.
	noChanges := NewSkippedRecord(testBase("2"), SkipNoChanges, []string{"already conformant"})
	assert.Equal(t, []string{"already conformant"}, noChanges.Messages())
}

func TestTransformBatchFilters(t *testing.T) {
	b := NewTransformBatch("noop")
	b.Add(NewFailureRecord(testBase("1"), errors.New("boom")))
	b.Add(NewSuccessRecord(testBase("2"), "<b/>", nil))
	b.Add(NewSkippedRecord(testBase("3"), SkipHasWorkingCopy, nil))
	b.Add(NewSuccessRecord(testBase("4"), "<b/>", []string{"[check] hm"}))

	assert.Len(t, b.Failures(), 1)
	assert.Len(t, b.Successes(), 2)
	assert.Len(t, b.Skipped(), 1)
	assert.Equal(t, "TransformBatch(4 records, 1 failures, 2 successes, 1 skipped)", b.String())
}

func TestTransformBatchSelectPreservesOrder(t *testing.T) {
	b := NewTransformBatch("noop")
	b.Add(NewSuccessRecord(testBase("1"), "<b/>", nil))
	b.Add(NewFailureRecord(testBase("2"), errors.New("boom")))
	b.Add(NewSuccessRecord(testBase("3"), "<b/>", []string{"[check] hm"}))
	b.Add(NewSuccessRecord(testBase("4"), "<b/>", nil))

	selected := b.Select(SuccessStatuses())

	require.Len(t, selected, 3)
	assert.Equal(t, "1", selected[0].UUID)
	assert.Equal(t, "3", selected[1].UUID)
	assert.Equal(t, "4", selected[2].UUID)

	onlyChecked := b.Select([]StatusCode{StatusSuccessNeedsCheck})
	require.Len(t, onlyChecked, 1)
	assert.Equal(t, "3", onlyChecked[0].UUID)
}

func TestTransformBatchRoundTripsThroughJSON(t *testing.T) {
	// Batches cross process boundaries as opaque blobs; the variant tagging
	// must survive.
	b := NewTransformBatch("noop")
	b.Add(NewFailureRecord(testBase("1"), errors.New("boom")))
	b.Add(NewSuccessRecord(testBase("2"), "<b/>", []string{"[check] hm"}))
	b.Add(NewSkippedRecord(testBase("3"), SkipUnsupportedMetadataType, nil))

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded TransformBatch

	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Records, 3)
	assert.Equal(t, KindFailure, decoded.Records[0].Kind)
	assert.Equal(t, "boom", decoded.Records[0].Error)
	assert.Equal(t, StatusSuccessNeedsCheck, decoded.Records[1].Status())
	assert.Equal(t, SkipUnsupportedMetadataType, decoded.Records[2].Reason)
}

func TestMigrateBatch(t *testing.T) {
	base := MigrateRecordBase{
		SourceUUID: "1",
		Type:       geonetwork.Metadata,
		Source:     "<a/>",
		Target:     "<b/>",
		CatalogURL: "https://catalog.example.org",
	}

	b := NewMigrateBatch(ModeOverwrite, "job-42")
	b.Add(NewSuccessMigrateRecord(base, "1"))
	b.Add(NewFailureMigrateRecord(base, errors.New("write refused")))

	assert.Len(t, b.Successes(), 1)
	assert.Len(t, b.Failures(), 1)
	assert.Equal(t, "job-42", b.TransformJobID)
	assert.Equal(t, "MigrateBatch(2 records, 1 failures, 1 successes)", b.String())
	assert.Equal(t, StatusFailure, b.Failures()[0].Status())
}
