package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the three-way failure classification the router acts on.
// Adapters map provider-specific error shapes (status codes, response
// bodies) onto these kinds; nothing downstream parses provider text.
type ErrorKind int

const (
	// KindTransient covers generic provider failures worth retrying on
	// the same model: 5xx, network errors, malformed responses.
	KindTransient ErrorKind = iota
	// KindRateLimited means quota or rate-limit rejection (HTTP 429).
	KindRateLimited
	// KindNotFound means the model is unknown or unsupported (HTTP 404).
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Error is a classified generation failure raised by a backend adapter.
type Error struct {
	Kind       ErrorKind
	Provider   string
	Model      string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error on model %q (status %d): %s",
		e.Provider, e.Kind, e.Model, e.StatusCode, e.Message)
}

// KindOf classifies any error returned by a Backend. Errors that are not
// a *Error (network failures, decode errors) count as transient.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// Backend performs one generation call against one model. Implementations
// must be safe for concurrent use and must honor ctx cancellation.
type Backend interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	Name() string
}
