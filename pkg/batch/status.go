// Package batch defines the per-record outcome model shared by the transform
// and migrate engines: tagged outcome records, batches, and the status code
// taxonomy used for filtering and reporting.
package batch

// StatusCode identifies a record's outcome kind plus its review flags.
//
// Codes are persisted with job results and compared across process
// boundaries, so they must never be renumbered. Lower code = higher review
// priority: failures first, then applied changes flagged for review, then
// silently applied changes, with skips ranking below successes at the same
// check level.
type StatusCode int

const (
	StatusFailure           StatusCode = 1
	StatusSuccessNeedsCheck StatusCode = 2
	StatusSkippedNeedsCheck StatusCode = 3
	StatusSuccess           StatusCode = 4
	StatusSkipped           StatusCode = 5
)

// statusTable is the single source of truth mapping outcome kind and the
// needs-check flag to a status code.
var statusTable = map[RecordKind]map[bool]StatusCode{
	KindFailure: {false: StatusFailure, true: StatusFailure},
	KindSuccess: {false: StatusSuccess, true: StatusSuccessNeedsCheck},
	KindSkipped: {false: StatusSkipped, true: StatusSkippedNeedsCheck},
}

// Status computes the status code for an outcome kind and check flag.
func Status(kind RecordKind, needsCheck bool) StatusCode {
	return statusTable[kind][needsCheck]
}

// SuccessStatuses returns the status codes of the success family, the default
// migration input filter.
func SuccessStatuses() []StatusCode {
	return []StatusCode{StatusSuccessNeedsCheck, StatusSuccess}
}

// Label returns a short display label for a status code. Labels are French,
// like the skip reason messages shown alongside them.
func (s StatusCode) Label() string {
	switch s {
	case StatusFailure:
		return "échec"
	case StatusSuccessNeedsCheck:
		return "succès (à vérifier)"
	case StatusSkippedNeedsCheck:
		return "ignoré (à vérifier)"
	case StatusSuccess:
		return "succès"
	case StatusSkipped:
		return "ignoré"
	default:
		return "inconnu"
	}
}
