package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals invalid caller input, detected before any upstream call.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream signals a failed call to an external service.
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError describes a failed call to an external service.
// Status 0 means the service was unreachable (network-level failure);
// a non-zero Status means the service answered but rejected the request
// or returned a malformed response.
type UpstreamError struct {
	Service string
	Op      string
	Status  int
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s %s: service unreachable: %v", e.Service, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: status %d: %v", e.Service, e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s %s: status %d", e.Service, e.Op, e.Status)
	}
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Unreachable creates an UpstreamError for a network-level failure.
func Unreachable(service, op string, err error) error {
	return &UpstreamError{Service: service, Op: op, Err: err}
}

// Rejected creates an UpstreamError for a non-success upstream status
// or a structurally invalid upstream response.
func Rejected(service, op string, status int, err error) error {
	return &UpstreamError{Service: service, Op: op, Status: status, Err: err}
}
