// Package errs defines the error taxonomy shared across layers: validation,
// not-found, conflict, upstream-service and infrastructure failures.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound indicates a missing application, interview or question.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates an operation against an interview in a state that
// forbids it, e.g. answering a COMPLETED interview.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrValidation indicates malformed input at the boundary.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUpstream indicates a failure or malformed response from an external
// collaborator (AI generation, resume download).
type ErrUpstream struct {
	Service string
	Err     error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream service %s failed: %v", e.Service, e.Err)
}

func (e *ErrUpstream) Unwrap() error { return e.Err }

// ErrInfra indicates a store or cache failure.
type ErrInfra struct {
	Op  string
	Err error
}

func (e *ErrInfra) Error() string {
	return fmt.Sprintf("infrastructure error during %s: %v", e.Op, e.Err)
}

func (e *ErrInfra) Unwrap() error { return e.Err }

// HTTPStatus maps an error to the status code the thin HTTP surface returns.
func HTTPStatus(err error) int {
	var (
		notFound   *ErrNotFound
		conflict   *ErrConflict
		validation *ErrValidation
		upstream   *ErrUpstream
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
