package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"showmerge/core/plan"
)

// Kind classifies why a run failed.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindFetch      Kind = "fetch"
	KindProbe      Kind = "probe"
	KindPlan       Kind = "plan"
	KindEncode     Kind = "encode"
	KindPublish    Kind = "publish"
	KindCanceled   Kind = "canceled"
	KindInternal   Kind = "internal"
)

// ErrNoSegments is returned when discovery finds nothing to merge.
var ErrNoSegments = errors.New("no audio segments found")

// ValidationError rejects a request before any work is done.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RunError is the failure of one pipeline run. It keeps the originating
// error, which stays reachable through errors.Is and errors.As.
type RunError struct {
	RunID string
	Kind  Kind
	Stage Stage // Stage in which the failure happened
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("merge %s failed during %s (%s): %v", e.RunID, e.Stage, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the failure to a response status: client mistakes are
// 400, an empty discovery is 404 and everything downstream is 500.
func (e *RunError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPlan:
		if errors.Is(e.Err, plan.ErrEmptyInput) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// AsRunError extracts a *RunError from err.
func AsRunError(err error) (*RunError, bool) {
	var runErr *RunError
	ok := errors.As(err, &runErr)
	return runErr, ok
}

var (
	errUnsupportedScheme = errors.New("only http and https sources are supported")
	errMissingHost       = errors.New("missing host")
	errRelativeFolder    = errors.New("relative path elements are not allowed")
)
