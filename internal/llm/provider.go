// Package llm defines the completion provider contract used by the agents
// and the provider implementations and decorators behind it.
package llm

import (
	"context"
	"fmt"
)

// Roles identify which agent issued a request.
const (
	RolePlanner     = "planner"
	RoleGenerator   = "generator"
	RoleCritic      = "critic"
	RoleSynthesizer = "synthesizer"
)

// Request is a single text completion request.
type Request struct {
	// Role is the issuing agent. Providers may use it for routing and logs.
	Role   string
	Model  string
	System string
	Prompt string
	// JSON asks the provider to constrain the reply to a JSON object.
	JSON bool
}

// Provider turns a prompt into a text completion. Implementations must be
// safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindAuthFailed  ErrorKind = "auth_failed"
	KindTimeout     ErrorKind = "timeout"
	KindMalformed   ErrorKind = "malformed"
	KindUnavailable ErrorKind = "unavailable"
)

// ProviderError is returned by providers for any failed completion.
type ProviderError struct {
	Kind ErrorKind
	// Status is the HTTP status code when one was received.
	Status int
	Model  string
	Err    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s", e.Kind)
	if e.Status > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Model != "" {
		msg += fmt.Sprintf(" for model %s", e.Model)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request may succeed.
func (e *ProviderError) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindUnavailable:
		return true
	}
	return false
}
