package batch

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ecospheres/isomorphe/pkg/geonetwork"
)

// RecordKind discriminates the outcome variants of a transform record.
type RecordKind string

const (
	KindFailure RecordKind = "failure"
	KindSuccess RecordKind = "success"
	KindSkipped RecordKind = "skipped"
)

// SkipReason explains why a record was skipped. SkipNoChanges is the implicit
// reason: a no-diff outcome carries the transformer's log instead of a canned
// explanation.
type SkipReason int

const (
	SkipNoChanges               SkipReason = 1
	SkipUnsupportedMetadataType SkipReason = 2
	SkipHasWorkingCopy          SkipReason = 3
)

// Skip reason messages live outside the enum values on purpose: batches are
// persisted between jobs and the wording may change in between.
var skipReasonMessages = map[SkipReason]string{
	SkipNoChanges:               "Pas de modification lors de la transformation.",
	SkipUnsupportedMetadataType: "Type d'enregistrement non supporté.",
	SkipHasWorkingCopy:          "L'enregistrement a une copie de travail (working copy).",
}

func (r SkipReason) Message() string {
	return skipReasonMessages[r]
}

// checkMarker is the reviewer-attention tag transformations embed in their
// diagnostic messages. Its presence sets NeedsCheck; the tag itself is
// stripped from the stored message text.
var checkMarker = regexp.MustCompile(`\[check\]\s*`)

// CleanLog strips attention markers from raw transformer messages and reports
// whether any message carried one.
func CleanLog(messages []string) (cleaned []string, needsCheck bool) {
	cleaned = make([]string, 0, len(messages))

	for _, msg := range messages {
		if checkMarker.MatchString(msg) {
			needsCheck = true
			msg = checkMarker.ReplaceAllString(msg, "")
		}

		cleaned = append(cleaned, strings.TrimSpace(msg))
	}

	return cleaned, needsCheck
}

// RecordBase carries the fields shared by every transform outcome variant.
type RecordBase struct {
	UUID       string                    `json:"uuid"`
	Type       geonetwork.MetadataType   `json:"type"`
	State      *geonetwork.WorkflowState `json:"state,omitempty"`
	Original   string                    `json:"original"`
	CatalogURL string                    `json:"catalog_url"`
}

// TransformRecord is one record's transform outcome. Kind discriminates the
// variant; only that variant's fields are meaningful. Records are immutable
// once built: construct them with the New*Record builders.
type TransformRecord struct {
	Kind RecordKind `json:"kind"`

	RecordBase

	// KindFailure
	Error string `json:"error,omitempty"`

	// KindSuccess
	Result string `json:"result,omitempty"`

	// KindSkipped; zero for the other variants
	Reason SkipReason `json:"reason,omitempty"`

	// KindSuccess and KindSkipped
	Log        []string `json:"log,omitempty"`
	NeedsCheck bool     `json:"needs_check,omitempty"`
}

// NewFailureRecord builds the outcome for a failed fetch or transformation.
func NewFailureRecord(base RecordBase, err error) TransformRecord {
	return TransformRecord{Kind: KindFailure, RecordBase: base, Error: err.Error()}
}

// NewSuccessRecord builds the outcome for an applied transformation. Raw
// transformer messages are cleaned here, setting NeedsCheck when a message
// carries the attention marker.
func NewSuccessRecord(base RecordBase, result string, rawLog []string) TransformRecord {
	log, needsCheck := CleanLog(rawLog)

	return TransformRecord{
		Kind:       KindSuccess,
		RecordBase: base,
		Result:     result,
		Log:        log,
		NeedsCheck: needsCheck,
	}
}

// NewSkippedRecord builds the outcome for a record the transformation was not
// applied to. For SkipNoChanges the transformer ran, so its cleaned log is
// kept and may flag the record for review.
func NewSkippedRecord(base RecordBase, reason SkipReason, rawLog []string) TransformRecord {
	log, needsCheck := CleanLog(rawLog)

	return TransformRecord{
		Kind:       KindSkipped,
		RecordBase: base,
		Reason:     reason,
		Log:        log,
		NeedsCheck: needsCheck,
	}
}

// Status returns the record's status code.
func (r TransformRecord) Status() StatusCode {
	return Status(r.Kind, r.NeedsCheck)
}

// Messages returns the record's user-facing messages: the failure error, the
// canned reason for explicit skips, and the transformer's log otherwise.
// SkipNoChanges deliberately surfaces the log so any diagnostics emitted by a
// no-diff run remain visible.
func (r TransformRecord) Messages() []string {
	switch {
	case r.Kind == KindFailure:
		return []string{r.Error}
	case r.Kind == KindSkipped && r.Reason != SkipNoChanges:
		return []string{r.Reason.Message()}
	default:
		return r.Log
	}
}

// TransformBatch is the ordered outcome of one transform run.
type TransformBatch struct {
	Transformation string            `json:"transformation"`
	Records        []TransformRecord `json:"records"`
}

func NewTransformBatch(transformation string) *TransformBatch {
	return &TransformBatch{Transformation: transformation}
}

func (b *TransformBatch) Add(r TransformRecord) {
	b.Records = append(b.Records, r)
}

func (b *TransformBatch) Successes() []TransformRecord {
	return b.byKind(KindSuccess)
}

func (b *TransformBatch) Failures() []TransformRecord {
	return b.byKind(KindFailure)
}

func (b *TransformBatch) Skipped() []TransformRecord {
	return b.byKind(KindSkipped)
}

func (b *TransformBatch) byKind(kind RecordKind) []TransformRecord {
	var out []TransformRecord

	for _, r := range b.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}

	return out
}

// Select returns the records whose status code is in statuses, preserving
// insertion order.
func (b *TransformBatch) Select(statuses []StatusCode) []TransformRecord {
	var out []TransformRecord

	for _, r := range b.Records {
		if slices.Contains(statuses, r.Status()) {
			out = append(out, r)
		}
	}

	return out
}

func (b *TransformBatch) String() string {
	return fmt.Sprintf("TransformBatch(%d records, %d failures, %d successes, %d skipped)",
		len(b.Records), len(b.Failures()), len(b.Successes()), len(b.Skipped()))
}
