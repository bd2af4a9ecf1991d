package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrParse marks a provider reply that could not be turned into the
	// expected structure.
	ErrParse = errors.New("unparseable provider reply")
	// ErrRetryExhausted marks a step that used up its attempt budget.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)

// AbortReason classifies why a run stopped without a final answer.
type AbortReason string

const (
	AbortParseError     AbortReason = "ParseError"
	AbortProviderError  AbortReason = "ProviderError"
	AbortRetryExhausted AbortReason = "RetryExhausted"
	AbortCanceled       AbortReason = "Canceled"
)

// AbortError is returned by a run that terminated early. Completed holds the
// step results accepted before the abort and History every attempt made on
// the step that was in progress.
type AbortError struct {
	RunID  string      `json:"run_id"`
	Reason AbortReason `json:"reason"`
	// StepIndex is the plan index being worked on, or -1 outside the step loop.
	StepIndex int          `json:"step_index"`
	Attempts  int          `json:"attempts"`
	History   []Attempt    `json:"history,omitempty"`
	Completed []StepResult `json:"completed,omitempty"`
	Err       error        `json:"-"`
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("run aborted: %s", e.Reason)
	if e.StepIndex >= 0 {
		msg += fmt.Sprintf(" at step index %d", e.StepIndex)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// MarshalJSON adds the rendered message, since Err itself does not encode.
func (e *AbortError) MarshalJSON() ([]byte, error) {
	type plain AbortError
	return json.Marshal(struct {
		*plain
		Message string `json:"message"`
	}{plain: (*plain)(e), Message: e.Error()})
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Is matches the reason sentinels so callers can test with errors.Is.
func (e *AbortError) Is(target error) bool {
	switch target {
	case ErrParse:
		return e.Reason == AbortParseError
	case ErrRetryExhausted:
		return e.Reason == AbortRetryExhausted
	}
	return false
}

// ReasonFor maps an abort cause to its reason. Context errors become
// Canceled; parse failures are recognised through ErrParse; anything else is
// treated as a provider failure.
func ReasonFor(err error) AbortReason {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return AbortCanceled
	case errors.Is(err, ErrParse):
		return AbortParseError
	case errors.Is(err, ErrRetryExhausted):
		return AbortRetryExhausted
	}
	return AbortProviderError
}

// ReasonForRun maps an abort cause to its reason given the run context's own
// error. Only an ended run context yields Canceled; a deadline raised inside
// a provider call, such as an HTTP client timeout, is a provider failure.
func ReasonForRun(runErr, cause error) AbortReason {
	switch {
	case runErr != nil:
		return AbortCanceled
	case errors.Is(cause, ErrParse):
		return AbortParseError
	case errors.Is(cause, ErrRetryExhausted):
		return AbortRetryExhausted
	}
	return AbortProviderError
}

// ParseErrorf returns an error wrapping ErrParse.
func ParseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
