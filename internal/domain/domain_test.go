package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanExecutableSkipsSynthesisSteps(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Index: 0, Number: 1, Kind: StepCalculation, Description: "a"},
		{Index: 1, Number: 2, Kind: StepDataLookup, Description: "b"},
		{Index: 2, Number: 3, Kind: StepFinalSynthesis, Description: "c"},
	}}
	steps := plan.Executable()
	require.Len(t, steps, 2)
	assert.Equal(t, "step_2_result", steps[1].Binding())
	assert.False(t, plan.Empty())

	onlySynthesis := Plan{Steps: []Step{{Number: 1, Kind: StepFinalSynthesis, Description: "c"}}}
	assert.True(t, onlySynthesis.Empty())
	assert.True(t, Plan{}.Empty())
}

func TestBindings(t *testing.T) {
	scope := Bindings([]StepResult{
		{Binding: "step_1_result", Value: 8},
		{Binding: "step_2_result", Value: 21},
	})
	assert.Len(t, scope, 2)
	assert.Equal(t, 21.0, scope["step_2_result"])
}

func TestAbortErrorMatchesSentinels(t *testing.T) {
	err := fmt.Errorf("solve: %w", &AbortError{Reason: AbortRetryExhausted, StepIndex: 1, Attempts: 3})
	assert.True(t, errors.Is(err, ErrRetryExhausted))
	assert.False(t, errors.Is(err, ErrParse))

	var abort *AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, 3, abort.Attempts)
	assert.Equal(t, "run aborted: RetryExhausted at step index 1 after 3 attempts", abort.Error())
}

func TestAbortErrorUnwrapsCause(t *testing.T) {
	cause := ParseErrorf("no plan in reply")
	err := &AbortError{Reason: AbortParseError, StepIndex: -1, Err: cause}
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "no plan in reply")
	assert.NotContains(t, err.Error(), "step index")
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, AbortCanceled, ReasonFor(fmt.Errorf("wrap: %w", context.Canceled)))
	assert.Equal(t, AbortCanceled, ReasonFor(context.DeadlineExceeded))
	assert.Equal(t, AbortParseError, ReasonFor(ParseErrorf("bad")))
	assert.Equal(t, AbortProviderError, ReasonFor(errors.New("upstream 503")))
}

func TestReasonForRun(t *testing.T) {
	clientTimeout := fmt.Errorf("planner completion: %w", context.DeadlineExceeded)
	assert.Equal(t, AbortProviderError, ReasonForRun(nil, clientTimeout))
	assert.Equal(t, AbortCanceled, ReasonForRun(context.DeadlineExceeded, clientTimeout))
	assert.Equal(t, AbortCanceled, ReasonForRun(context.Canceled, ParseErrorf("bad")))
	assert.Equal(t, AbortParseError, ReasonForRun(nil, ParseErrorf("bad")))
	assert.Equal(t, AbortRetryExhausted, ReasonForRun(nil, fmt.Errorf("%w: step 1", ErrRetryExhausted)))
	assert.Equal(t, AbortProviderError, ReasonForRun(nil, errors.New("upstream 503")))
}

func TestQueryBlank(t *testing.T) {
	assert.True(t, Query("  \n").Blank())
	assert.False(t, Query("2+2").Blank())
}

func TestAbortErrorJSONCarriesMessage(t *testing.T) {
	abort := &AbortError{RunID: "r1", Reason: AbortRetryExhausted, StepIndex: 0, Attempts: 3, Err: ErrRetryExhausted}
	raw, err := json.Marshal(abort)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "RetryExhausted", decoded["reason"])
	assert.Equal(t, "r1", decoded["run_id"])
	assert.Equal(t, abort.Error(), decoded["message"])
	assert.NotContains(t, decoded, "Err")
}
