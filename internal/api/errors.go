package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrValidation indicates input rejected locally, before any network call.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ErrNetwork indicates the backend could not be reached.
type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error { return e.Err }

// ErrTimeout indicates the request did not complete in time. The hosted
// backend sleeps when idle, so the first request after a pause is slow.
type ErrTimeout struct {
	Op  string
	Err error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// ErrAuth indicates the backend rejected the bearer token (401). The stored
// token has already been cleared when this is returned.
type ErrAuth struct {
	Op     string
	Detail string
}

func (e *ErrAuth) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: unauthorized: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: unauthorized", e.Op)
}

// ErrAPI is a non-2xx backend response or a payload that does not match
// the expected shape.
type ErrAPI struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *ErrAPI) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
}

func (e *ErrAPI) Unwrap() error { return e.Err }

// ErrVerificationRejected is returned when the backend processed a proof
// upload but did not accept it.
type ErrVerificationRejected struct {
	Result Verification
}

func (e *ErrVerificationRejected) Error() string {
	return "proof rejected: " + e.Result.Reason()
}

// Reason returns the backend-supplied rejection reason.
func (e *ErrVerificationRejected) Reason() string { return e.Result.Reason() }

// Suggestions returns the backend-supplied hints for a new attempt.
func (e *ErrVerificationRejected) Suggestions() []string { return e.Result.Suggestions }

// IsRetryable reports whether repeating the same request may succeed.
func IsRetryable(err error) bool {
	var netErr *ErrNetwork
	var timeout *ErrTimeout
	var apiErr *ErrAPI
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &netErr), errors.As(err, &timeout):
		return true
	case errors.As(err, &apiErr):
		return apiErr.Status >= 500
	default:
		return false
	}
}

// IsAuth reports whether err forces a logout.
func IsAuth(err error) bool {
	var authErr *ErrAuth
	return errors.As(err, &authErr)
}

// UserMessage converts any client error into a single line for the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		validation *ErrValidation
		timeout    *ErrTimeout
		netErr     *ErrNetwork
		authErr    *ErrAuth
		rejected   *ErrVerificationRejected
		apiErr     *ErrAPI
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &timeout):
		return "The server is taking too long to respond. It may be cold-starting, please try again in a moment."
	case errors.As(err, &netErr):
		return "Network error. Check your connection and that the EcoLoop server is running."
	case errors.As(err, &authErr):
		return "Your session has expired. Please log in again."
	case errors.As(err, &rejected):
		msg := "Proof not accepted: " + rejected.Reason()
		if s := rejected.Suggestions(); len(s) > 0 {
			msg += " (" + strings.Join(s, "; ") + ")"
		}
		return msg
	case errors.As(err, &apiErr):
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Status >= 500 {
			return "The server ran into a problem. Please try again."
		}
		return "Request failed: " + http.StatusText(apiErr.Status)
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return err.Error()
	}
}
