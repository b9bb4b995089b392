package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Generator is a reasoning model that turns a prompt into free text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

var (
	// ErrUpstreamTimeout is returned when every attempt ran into the per-attempt deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamRejected is returned for non-transient upstream failures and
	// for transient ones that outlived the retry budget.
	ErrUpstreamRejected = errors.New("upstream rejected the request")
	// ErrMisconfigured marks failures caused by credentials or provider setup.
	ErrMisconfigured = errors.New("upstream misconfigured")
	// ErrOverloaded is returned when the invocation queue is full.
	ErrOverloaded = errors.New("overloaded")
	// ErrRequestCancelled is returned when the caller went away or its deadline elapsed.
	ErrRequestCancelled = errors.New("request cancelled")
	// ErrEmptyResponse is returned by providers when the model produced no text.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrInvalidPrompt is returned by providers for prompts they refuse to send.
	ErrInvalidPrompt = errors.New("invalid prompt")
)

// StatusError reports an upstream failure with an HTTP-like status code so
// the Invoker can classify it without knowing the provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	// RetryAfter is the provider's retry hint, zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Temporary reports whether the failure is worth retrying.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// Unauthorized reports whether the failure comes from credentials.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
