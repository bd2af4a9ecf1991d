package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"solver/internal/agents"
	"solver/internal/domain"
	"solver/internal/llm"
	"solver/internal/logging"
	"solver/internal/orchestrator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestCollectReadsTextAndJSONL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "# warmup\nWhat is 2 + 2?\n\n  What is 10 // 3?  \n")
	writeFile(t, filepath.Join(dir, "nested", "b.jsonl"), `{"query":"What is 7 * 6?"}`+"\n\n"+`{"query":"  Half of 42?"}`+"\n")
	writeFile(t, filepath.Join(dir, "ignored.md"), "not a query file\n")

	jobs, err := Collect(filepath.Join(dir, "**", "*.{txt,jsonl}"))
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	assert.Equal(t, Job{Source: filepath.Join(dir, "a.txt"), Line: 2, Query: "What is 2 + 2?"}, jobs[0])
	assert.Equal(t, Job{Source: filepath.Join(dir, "a.txt"), Line: 4, Query: "What is 10 // 3?"}, jobs[1])
	assert.Equal(t, domain.Query("What is 7 * 6?"), jobs[2].Query)
	assert.Equal(t, 1, jobs[2].Line)
	assert.Equal(t, domain.Query("Half of 42?"), jobs[3].Query)
	assert.Equal(t, 3, jobs[3].Line)
}

func TestCollectErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Collect(filepath.Join(dir, "*.txt"))
	assert.ErrorContains(t, err, "no queries found")

	writeFile(t, filepath.Join(dir, "bad.jsonl"), "{not json}\n")
	_, err = Collect(filepath.Join(dir, "*.jsonl"))
	assert.ErrorContains(t, err, "bad.jsonl:1")

	writeFile(t, filepath.Join(dir, "empty.jsonl"), `{"query":" "}`+"\n")
	_, err = Collect(filepath.Join(dir, "empty.jsonl"))
	assert.ErrorContains(t, err, "missing query")

	_, err = Collect("[")
	assert.Error(t, err)
}

// fakeSolver answers queries containing "ok" and aborts the rest, tracking
// how many runs overlap.
type fakeSolver struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeSolver) Run(ctx context.Context, query domain.Query, _ ...orchestrator.RunOption) (*domain.FinalAnswer, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return nil, &domain.AbortError{Reason: domain.AbortCanceled, StepIndex: -1, Err: ctx.Err()}
	}
	if strings.Contains(string(query), "ok") {
		return &domain.FinalAnswer{RunID: "run-" + string(query), Query: query, Text: "done"}, nil
	}
	return nil, &domain.AbortError{RunID: "run-" + string(query), Reason: domain.AbortRetryExhausted, StepIndex: 0, Err: domain.ErrRetryExhausted}
}

func jobsFor(queries ...string) []Job {
	jobs := make([]Job, len(queries))
	for i, q := range queries {
		jobs[i] = Job{Source: "mem", Line: i + 1, Query: domain.Query(q)}
	}
	return jobs
}

func TestRunnerKeepsOrderAndBoundsConcurrency(t *testing.T) {
	solver := &fakeSolver{}
	runner := NewRunner(solver, 2, logging.Nop())
	var progress []int
	runner.OnResult = func(done, total int, _ Result) {
		assert.Equal(t, 6, total)
		progress = append(progress, done)
	}

	results, summary, err := runner.Run(context.Background(), jobsFor("ok-1", "bad-2", "ok-3", "ok-4", "bad-5", "ok-6"))
	require.NoError(t, err)
	require.Len(t, results, 6)

	for i, res := range results {
		assert.Equal(t, i+1, res.Line)
	}
	assert.Equal(t, orchestrator.StatusDone, results[0].Status)
	assert.Equal(t, "run-ok-1", results[0].RunID)
	assert.Equal(t, orchestrator.StatusAborted, results[1].Status)
	assert.Equal(t, domain.AbortRetryExhausted, results[1].Abort.Reason)

	assert.Equal(t, Summary{Total: 6, Solved: 4, Aborted: 2, ByReason: map[domain.AbortReason]int{domain.AbortRetryExhausted: 2}}, summary)
	assert.LessOrEqual(t, solver.peak.Load(), int32(2))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, progress)
}

func TestRunnerReportsCancellation(t *testing.T) {
	solver := &fakeSolver{}
	runner := NewRunner(solver, 1, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, summary, err := runner.Run(ctx, jobsFor("ok-1", "ok-2"))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	assert.Equal(t, 2, summary.ByReason[domain.AbortCanceled])
}

func TestRunnerWithMockProvider(t *testing.T) {
	team := agents.NewTeam(llm.NewMock(), agents.DefaultModels("mock"), 0, agents.WithLogger(logging.Nop()))
	orch, err := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Dependencies{
		Metrics: orchestrator.MustNewMetrics(prometheus.NewRegistry()),
		Logger:  logging.Nop(),
	}.WithTeam(team))
	require.NoError(t, err)

	results, summary, err := NewRunner(orch, 2, logging.Nop()).Run(context.Background(), jobsFor("What is (12 + 30) / 2?"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Solved)
	require.NotNil(t, results[0].Answer)
	assert.Contains(t, results[0].Answer.Text, "21")
}

func TestWriteJSONL(t *testing.T) {
	results := []Result{
		{Source: "a.txt", Line: 1, Report: orchestrator.NewReport("q1", &domain.FinalAnswer{RunID: "r1", Text: "4"}, nil)},
		{Source: "a.txt", Line: 2, Report: orchestrator.NewReport("q2", nil, &domain.AbortError{RunID: "r2", Reason: domain.AbortParseError, StepIndex: -1, Err: domain.ErrParse})},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, results))

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "done", lines[0]["status"])
	assert.Equal(t, "r1", lines[0]["run_id"])
	assert.Equal(t, "a.txt", lines[1]["source"])
	abort, ok := lines[1]["abort"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ParseError", abort["reason"])
}
