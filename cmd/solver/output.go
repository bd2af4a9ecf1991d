package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"

	"solver/internal/domain"
	"solver/internal/orchestrator"
	"solver/internal/prompts"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// renderMarkdown renders text for a terminal, falling back to the raw text
// when the renderer cannot be built.
func renderMarkdown(text string) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w-4, 120)
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// progressPrinter writes one line per run event.
type progressPrinter struct {
	w     io.Writer
	steps int
}

func (p *progressPrinter) OnEvent(e orchestrator.Event) {
	switch e.Kind {
	case orchestrator.EventPlanReady:
		p.steps = len(e.Plan.Executable())
		fmt.Fprintf(p.w, "%s %d step(s)\n", cyan("plan"), p.steps)
		for _, step := range e.Plan.Executable() {
			fmt.Fprintf(p.w, "  %s %s\n", gray(fmt.Sprintf("%d.", step.Number)), step.Description)
		}
	case orchestrator.EventAttemptFinished:
		a := e.Attempt
		label := fmt.Sprintf("step %d attempt %d", e.StepIndex+1, a.Number)
		switch {
		case !a.Outcome.OK():
			fmt.Fprintf(p.w, "  %s %s\n", yellow(label), a.Outcome.Diagnostic())
		case a.Verdict.Accepted():
			fmt.Fprintf(p.w, "  %s = %s %s\n", label, prompts.FormatValue(a.Outcome.Value), green("accepted"))
		default:
			fmt.Fprintf(p.w, "  %s = %s %s %s\n", yellow(label), prompts.FormatValue(a.Outcome.Value), yellow("revise:"), firstLine(a.Verdict.Feedback))
		}
	case orchestrator.EventStepAccepted:
		fmt.Fprintf(p.w, "%s %s = %s\n", green("step"), e.Result.Binding, prompts.FormatValue(e.Result.Value))
	case orchestrator.EventRunAborted:
		fmt.Fprintf(p.w, "%s %s\n", red("aborted"), e.Abort.Error())
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// printAbort summarises what a failed run got done.
func printAbort(w io.Writer, abort *domain.AbortError) {
	fmt.Fprintf(w, "%s %s\n", red("run aborted:"), abort.Reason)
	for _, res := range abort.Completed {
		fmt.Fprintf(w, "  %s %s = %s\n", green("done"), res.Binding, prompts.FormatValue(res.Value))
	}
	if n := len(abort.History); n > 0 {
		last := abort.History[n-1]
		fmt.Fprintf(w, "  %s step %d, %d attempt(s), last code:\n", yellow("stopped at"), abort.StepIndex+1, n)
		for _, line := range strings.Split(last.Code, "\n") {
			fmt.Fprintf(w, "    %s\n", gray(line))
		}
	}
}

var (
	versionOnce   sync.Once
	cachedVersion string
)

// appVersion returns SOLVER_VERSION when set, then the module version from the
// build info, then "dev".
func appVersion() string {
	versionOnce.Do(func() {
		cachedVersion = detectVersion()
	})
	return cachedVersion
}

func detectVersion() string {
	if v := strings.TrimSpace(os.Getenv("SOLVER_VERSION")); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}
