package orchestrator

import (
	"errors"

	"solver/internal/domain"
)

// Report statuses.
const (
	StatusDone    = "done"
	StatusAborted = "aborted"
)

// Report is the serialisable outcome of one run, used by the HTTP server and
// the batch runner.
type Report struct {
	RunID  string              `json:"run_id"`
	Query  domain.Query        `json:"query"`
	Status string              `json:"status"`
	Answer *domain.FinalAnswer `json:"answer,omitempty"`
	Abort  *domain.AbortError  `json:"abort,omitempty"`
}

// NewReport folds the return values of Run into a Report. Errors that are not
// an AbortError are wrapped in one.
func NewReport(query domain.Query, answer *domain.FinalAnswer, err error) Report {
	if err == nil && answer != nil {
		return Report{RunID: answer.RunID, Query: query, Status: StatusDone, Answer: answer}
	}
	var abort *domain.AbortError
	if !errors.As(err, &abort) {
		abort = &domain.AbortError{Reason: domain.ReasonFor(err), StepIndex: -1, Err: err}
	}
	return Report{RunID: abort.RunID, Query: query, Status: StatusAborted, Abort: abort}
}
