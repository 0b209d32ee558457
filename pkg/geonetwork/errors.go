package geonetwork

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkingCopyUpdate is returned when an update targets a record in the
	// working-copy stage. The engine classifies those records as skipped before
	// writing, so reaching this error means a classification was bypassed.
	ErrWorkingCopyUpdate = errors.New("updating a record with a working copy is not supported")

	// ErrMissingVersion indicates the catalog did not report its version.
	ErrMissingVersion = errors.New("catalog version missing from site info")
)

// ConnectionError reports a failure to establish a usable catalog session.
type ConnectionError struct {
	URL     string
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geonetwork connection to %s failed: %s: %v", e.URL, e.Message, e.Err)
	}

	return fmt.Sprintf("geonetwork connection to %s failed: %s", e.URL, e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// UnsupportedVersionError reports a catalog major version this client cannot
// talk to.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported geonetwork version: %d", e.Version)
}

// APIError wraps a non-2xx response from the catalog API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("geonetwork %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
