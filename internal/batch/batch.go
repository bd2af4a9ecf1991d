// Package batch solves many queries read from files, a bounded number at a
// time, and writes one JSON report per query.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"solver/internal/domain"
	"solver/internal/logging"
	"solver/internal/orchestrator"
)

// Solver runs a single query. *orchestrator.Orchestrator implements it.
type Solver interface {
	Run(ctx context.Context, query domain.Query, opts ...orchestrator.RunOption) (*domain.FinalAnswer, error)
}

// Job is one query and where it came from.
type Job struct {
	Source string       `json:"source"`
	Line   int          `json:"line"`
	Query  domain.Query `json:"query"`
}

// Result is the report of one job.
type Result struct {
	Source   string        `json:"source"`
	Line     int           `json:"line"`
	Duration time.Duration `json:"duration"`
	orchestrator.Report
}

// Summary counts outcomes.
type Summary struct {
	Total    int                        `json:"total"`
	Solved   int                        `json:"solved"`
	Aborted  int                        `json:"aborted"`
	ByReason map[domain.AbortReason]int `json:"by_reason,omitempty"`
}

// Collect expands pattern (doublestar syntax, e.g. "queries/**/*.txt") and
// reads every matching file. Files ending in .jsonl hold one {"query": ...}
// object per line; other files hold one query per line, with blank lines and
// lines starting with # skipped. Jobs are ordered by path, then line.
func Collect(pattern string) ([]Job, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var jobs []Job
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		fileJobs, err := readFile(path)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, fileJobs...)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no queries found for %q", pattern)
	}
	return jobs, nil
}

func readFile(path string) ([]Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f, path, strings.EqualFold(filepath.Ext(path), ".jsonl"))
}

func parse(r io.Reader, source string, jsonLines bool) ([]Job, error) {
	var jobs []Job
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || (!jsonLines && strings.HasPrefix(text, "#")) {
			continue
		}
		query := domain.Query(text)
		if jsonLines {
			var entry struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(text), &entry); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", source, line, err)
			}
			query = domain.Query(strings.TrimSpace(entry.Query))
			if query.Blank() {
				return nil, fmt.Errorf("%s:%d: missing query", source, line)
			}
		}
		jobs = append(jobs, Job{Source: source, Line: line, Query: query})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return jobs, nil
}

// Runner solves jobs concurrently.
type Runner struct {
	solver      Solver
	concurrency int
	logger      logging.Logger
	now         func() time.Time
	// OnResult, when set, is called as each job finishes, serialised.
	OnResult func(done, total int, result Result)
}

// NewRunner returns a runner that keeps at most concurrency runs in flight.
func NewRunner(solver Solver, concurrency int, logger logging.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("batch")
	}
	return &Runner{solver: solver, concurrency: concurrency, logger: logger, now: time.Now}
}

// Run solves every job and returns the results in job order. A run that
// aborts is a result, not an error; the error is only ctx's once it is done.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, Summary, error) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	results := make([]Result, len(jobs))
	completed := 0
	var mu sync.Mutex

	r.logger.Info("starting %d queries with %d workers", len(jobs), r.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			start := r.now()
			answer, err := r.solver.Run(ctx, job.Query)
			result := Result{
				Source:   job.Source,
				Line:     job.Line,
				Duration: r.now().Sub(start),
				Report:   orchestrator.NewReport(job.Query, answer, err),
			}

			mu.Lock()
			defer mu.Unlock()
			results[i] = result
			completed++
			if result.Status == orchestrator.StatusAborted {
				r.logger.Warn("%s:%d aborted: %s", job.Source, job.Line, result.Abort.Reason)
			}
			if r.OnResult != nil {
				r.OnResult(completed, len(jobs), result)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	r.logger.Info("finished %d queries: %d solved, %d aborted", summary.Total, summary.Solved, summary.Aborted)
	return results, summary, ctx.Err()
}

// Summarize counts solved and aborted results.
func Summarize(results []Result) Summary {
	summary := Summary{Total: len(results), ByReason: make(map[domain.AbortReason]int)}
	for _, res := range results {
		if res.Status == orchestrator.StatusDone {
			summary.Solved++
			continue
		}
		summary.Aborted++
		if res.Abort != nil {
			summary.ByReason[res.Abort.Reason]++
		}
	}
	return summary
}

// WriteJSONL writes one result per line.
func WriteJSONL(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result %s:%d: %w", res.Source, res.Line, err)
		}
	}
	return nil
}
