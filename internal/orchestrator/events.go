package orchestrator

import "solver/internal/domain"

// EventKind names a run event. The values double as SSE event names.
type EventKind string

const (
	EventPlanReady       EventKind = "plan"
	EventAttemptFinished EventKind = "attempt"
	EventStepAccepted    EventKind = "step"
	EventRunFinished     EventKind = "final_answer"
	EventRunAborted      EventKind = "error"
)

// Event reports progress of a run. Only the field matching Kind is set.
type Event struct {
	Kind      EventKind           `json:"kind"`
	RunID     string              `json:"run_id"`
	StepIndex int                 `json:"step_index"`
	Plan      *domain.Plan        `json:"plan,omitempty"`
	Attempt   *domain.Attempt     `json:"attempt,omitempty"`
	Result    *domain.StepResult  `json:"result,omitempty"`
	Answer    *domain.FinalAnswer `json:"answer,omitempty"`
	Abort     *domain.AbortError  `json:"abort,omitempty"`
}

// Observer receives run events synchronously, in order, on the run's
// goroutine. Implementations must not block for long.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

type observers []Observer

func (o observers) OnEvent(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(e)
		}
	}
}
