// Package orchestrator drives one solve run: plan the query, then for each
// step generate, evaluate and critique candidate programs until one is
// accepted or the attempt budget runs out, then synthesize the answer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"solver/internal/agents"
	"solver/internal/diff"
	"solver/internal/domain"
	"solver/internal/logging"
	"solver/internal/observability"
	"solver/internal/sandbox"
)

// Planner turns a query into a plan.
type Planner interface {
	Plan(ctx context.Context, query domain.Query) (domain.Plan, error)
}

// CodeGenerator writes a candidate program for a step.
type CodeGenerator interface {
	Generate(ctx context.Context, in agents.GenerateInput) (string, error)
}

// Critic judges a successful attempt.
type Critic interface {
	Critique(ctx context.Context, in agents.CritiqueInput) (domain.Verdict, error)
}

// Synthesizer writes the final answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query domain.Query, results []domain.StepResult) (string, error)
}

// Evaluator runs candidate programs.
type Evaluator interface {
	Evaluate(code string, bindings sandbox.Scope) sandbox.Outcome
}

// Config bounds a run.
type Config struct {
	// MaxRetries is the number of attempts allowed per step.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1"`
}

// DefaultConfig returns the default run bounds.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

// Dependencies wires the orchestrator. Agents and Sandbox are required; the
// rest default to no-ops or shared instances.
type Dependencies struct {
	Planner     Planner
	Generator   CodeGenerator
	Critic      Critic
	Synthesizer Synthesizer
	Sandbox     Evaluator
	Metrics     *Metrics
	Tracer      *observability.TracerProvider
	Logger      logging.Logger
	Observer    Observer
	Clock       func() time.Time
}

// WithTeam fills the agent fields from team.
func (d Dependencies) WithTeam(team *agents.Team) Dependencies {
	d.Planner = team.Planner
	d.Generator = team.Generator
	d.Critic = team.Critic
	d.Synthesizer = team.Synthesizer
	return d
}

// Orchestrator runs queries. It holds no per-run state and is safe for
// concurrent use when its dependencies are.
type Orchestrator struct {
	config Config
	deps   Dependencies
	diffs  *diff.Generator
	logger logging.Logger
}

// New validates config and dependencies.
func New(config Config, deps Dependencies) (*Orchestrator, error) {
	if config.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be at least 1, got %d", config.MaxRetries)
	}
	if deps.Planner == nil || deps.Generator == nil || deps.Critic == nil || deps.Synthesizer == nil {
		return nil, errors.New("orchestrator requires planner, generator, critic and synthesizer")
	}
	if deps.Sandbox == nil {
		deps.Sandbox = sandbox.NewEvaluator(sandbox.DefaultLimits())
	}
	if deps.Metrics == nil {
		deps.Metrics = DefaultMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.NoopTracerProvider()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("orchestrator")
	}
	return &Orchestrator{config: config, deps: deps, diffs: diff.NewGenerator(false), logger: logger}, nil
}

// MaxCompletions is the most completion calls a run over steps executable
// steps can make: one plan, a generation and a critique per attempt, and one
// synthesis.
func (o *Orchestrator) MaxCompletions(steps int) int {
	return 1 + steps*o.config.MaxRetries*2 + 1
}

// RunOption customises a single run.
type RunOption func(*run)

// WithObserver adds an observer for this run only.
func WithObserver(obs Observer) RunOption {
	return func(r *run) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) RunOption {
	return func(r *run) {
		if id != "" {
			r.id = id
		}
	}
}

// Run solves query. On failure the error is a *domain.AbortError carrying the
// results accepted so far.
func (o *Orchestrator) Run(ctx context.Context, query domain.Query, opts ...RunOption) (*domain.FinalAnswer, error) {
	r := &run{
		o:         o,
		id:        ulid.Make().String(),
		query:     query,
		stepIndex: -1,
	}
	if o.deps.Observer != nil {
		r.observers = append(r.observers, o.deps.Observer)
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx = observability.ContextWithRunID(ctx, r.id)
	r.logger = logging.FromContext(ctx, o.logger)
	ctx, span := o.deps.Tracer.StartSpan(ctx, observability.SpanRun)
	defer span.End()
	r.runCtx = ctx

	o.deps.Metrics.IncActiveRuns()
	defer o.deps.Metrics.DecActiveRuns()

	r.machine = newMachine(o.deps.Clock, r.leave)
	r.enter(StatePlanning)
	defer r.endState()

	r.logger.Info("run started query_chars=%d max_retries=%d", len(query), o.config.MaxRetries)
	answer, err := r.execute()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("run aborted: %v", err)
		return nil, err
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, "done"))
	r.logger.Info("run finished steps=%d completions=%d", len(answer.Steps), r.completions)
	return answer, nil
}

// run is the state of one Run call.
type run struct {
	o         *Orchestrator
	id        string
	query     domain.Query
	logger    logging.Logger
	observers observers
	machine   *machine

	runCtx    context.Context
	stateCtx  context.Context
	stateSpan trace.Span

	plan        domain.Plan
	results     []domain.StepResult
	stepIndex   int
	history     []domain.Attempt
	completions int
}

func (r *run) execute() (*domain.FinalAnswer, error) {
	if r.query.Blank() {
		return nil, r.abort(domain.ParseErrorf("query is empty"))
	}

	// Planning
	if err := r.checkpoint(); err != nil {
		return nil, r.abort(err)
	}
	r.completions++
	plan, err := r.o.deps.Planner.Plan(r.stateCtx, r.query)
	if err != nil {
		return nil, r.abort(err)
	}
	if plan.Empty() {
		return nil, r.abort(domain.ParseErrorf("plan has no executable steps"))
	}
	r.plan = plan
	r.emit(Event{Kind: EventPlanReady, Plan: &r.plan})
	r.logger.Info("plan ready steps=%d executable=%d", len(plan.Steps), len(plan.Executable()))

	for _, step := range plan.Executable() {
		if err := r.solveStep(step); err != nil {
			return nil, err
		}
	}

	r.stepIndex = -1
	r.history = nil
	r.transition(StateSynthesizing)
	if err := r.checkpoint(); err != nil {
		return nil, r.abort(err)
	}
	r.completions++
	text, err := r.o.deps.Synthesizer.Synthesize(r.stateCtx, r.query, r.results)
	if err != nil {
		return nil, r.abort(err)
	}
	r.transition(StateDone)

	answer := &domain.FinalAnswer{
		RunID: r.id,
		Query: r.query,
		Text:  text,
		Plan:  r.plan,
		Steps: append([]domain.StepResult(nil), r.results...),
	}
	r.emit(Event{Kind: EventRunFinished, Answer: answer})
	return answer, nil
}

// solveStep loops generate, evaluate and critique for one step.
func (r *run) solveStep(step domain.Step) error {
	r.stepIndex = step.Index
	r.history = nil

	var (
		feedback string
		expected *float64
		previous string
	)
	attempt := 0
	r.transition(StateGenerating)
	for {
		started := r.o.deps.Clock()
		if err := r.checkpoint(); err != nil {
			return r.abort(err)
		}
		accepted := append([]domain.StepResult(nil), r.results...)
		r.completions++
		code, err := r.o.deps.Generator.Generate(r.stateCtx, agents.GenerateInput{
			Query:    r.query,
			Step:     step,
			Accepted: accepted,
			Feedback: feedback,
			Expected: expected,
		})
		if err != nil {
			return r.abort(err)
		}

		r.transition(StateEvaluating)
		if err := r.checkpoint(); err != nil {
			return r.abort(err)
		}
		current := domain.Attempt{
			Number:  attempt + 1,
			Code:    code,
			Outcome: r.o.deps.Sandbox.Evaluate(code, domain.Bindings(accepted)),
			Digest:  codeDigest(code),
		}
		if attempt > 0 {
			current.Diff = r.o.diffs.Lines(previous, code).Text
		}
		previous = code

		if !current.Outcome.OK() {
			current.Verdict = domain.Verdict{Decision: domain.Revise, Feedback: current.Outcome.Diagnostic()}
		} else {
			r.transition(StateCritiquing)
			if err := r.checkpoint(); err != nil {
				return r.abort(err)
			}
			r.completions++
			verdict, err := r.o.deps.Critic.Critique(r.stateCtx, agents.CritiqueInput{
				Query:    r.query,
				Step:     step,
				Code:     code,
				Value:    current.Outcome.Value,
				Accepted: accepted,
			})
			if err != nil {
				current.Duration = r.o.deps.Clock().Sub(started)
				r.history = append(r.history, current)
				return r.abort(err)
			}
			current.Verdict = verdict
		}
		current.Duration = r.o.deps.Clock().Sub(started)
		r.history = append(r.history, current)
		attempt++
		r.emit(Event{Kind: EventAttemptFinished, Attempt: &current})

		if current.Verdict.Accepted() {
			r.transition(StateAccepted)
			result := domain.StepResult{
				Step:     step,
				Value:    current.Outcome.Value,
				Binding:  step.Binding(),
				Code:     code,
				Attempts: r.history,
			}
			r.results = append(r.results, result)
			r.emit(Event{Kind: EventStepAccepted, Result: &result})
			r.logger.Info("step %d accepted value=%v attempts=%d", step.Number, result.Value, attempt)
			return nil
		}

		r.o.deps.Metrics.IncStageRetry(string(r.machine.state))
		r.transition(StateRetrying)
		r.logger.Debug("step %d attempt %d revised: %s", step.Number, attempt, current.Verdict.Feedback)
		feedback = current.Verdict.Feedback
		expected = current.Verdict.Expected

		if attempt >= r.o.config.MaxRetries {
			r.transition(StateExhausted)
			return r.abort(fmt.Errorf("%w: step %d made %d attempts", domain.ErrRetryExhausted, step.Number, attempt))
		}
		r.transition(StateGenerating)
	}
}

// checkpoint is a cancellation point before each completion or sandbox call.
func (r *run) checkpoint() error {
	return r.runCtx.Err()
}

// abort moves to Aborted and builds the error returned to the caller.
func (r *run) abort(cause error) error {
	reason := domain.ReasonForRun(r.runCtx.Err(), cause)
	r.o.deps.Metrics.IncStageFailure(string(r.machine.state), string(reason))
	if r.stateSpan != nil {
		r.stateSpan.RecordError(cause)
		r.stateSpan.SetStatus(codes.Error, cause.Error())
	}
	r.transition(StateAborted)

	abortErr := &domain.AbortError{
		RunID:     r.id,
		Reason:    reason,
		StepIndex: r.stepIndex,
		Attempts:  len(r.history),
		History:   append([]domain.Attempt(nil), r.history...),
		Completed: append([]domain.StepResult(nil), r.results...),
		Err:       cause,
	}
	r.emit(Event{Kind: EventRunAborted, Abort: abortErr})
	return abortErr
}

func (r *run) transition(to State) {
	r.machine.transition(to)
	r.endState()
	r.enter(to)
}

// enter opens the span covering a state.
func (r *run) enter(state State) {
	attrs := []attribute.KeyValue{attribute.String(observability.AttrState, string(state))}
	if r.stepIndex >= 0 {
		attrs = append(attrs, attribute.Int(observability.AttrStepIndex, r.stepIndex))
	}
	r.stateCtx, r.stateSpan = r.o.deps.Tracer.StartSpan(r.runCtx, observability.SpanState, attrs...)
}

func (r *run) endState() {
	if r.stateSpan != nil {
		r.stateSpan.End()
		r.stateSpan = nil
	}
}

// leave records how long the state that is being left lasted.
func (r *run) leave(from, to State, elapsed time.Duration) {
	status := "ok"
	switch to {
	case StateRetrying:
		status = "retry"
	case StateAborted:
		status = "failed"
	}
	r.o.deps.Metrics.ObserveStageDuration(string(from), status, elapsed)
}

func (r *run) emit(e Event) {
	e.RunID = r.id
	e.StepIndex = r.stepIndex
	r.observers.OnEvent(e)
}
