// Package diff renders line diffs between consecutive code attempts.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Generator produces line diffs, optionally coloured for terminals.
type Generator struct {
	colorEnabled bool
}

// NewGenerator creates a new diff generator
func NewGenerator(colorEnabled bool) *Generator {
	return &Generator{colorEnabled: colorEnabled}
}

// Result contains the rendered diff and statistics
type Result struct {
	Text         string
	AddedLines   int
	DeletedLines int
}

// Empty reports whether the two inputs were identical.
func (r Result) Empty() bool {
	return r.AddedLines == 0 && r.DeletedLines == 0
}

// Lines diffs oldContent against newContent line by line. Unchanged lines
// are prefixed with a space, removed lines with '-', added lines with '+'.
func (g *Generator) Lines(oldContent, newContent string) Result {
	if oldContent == newContent {
		return Result{}
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	var (
		out     strings.Builder
		added   int
		deleted int
	)
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				out.WriteString(g.colorize("+"+line+"\n", color.FgGreen))
				added++
			case diffmatchpatch.DiffDelete:
				out.WriteString(g.colorize("-"+line+"\n", color.FgRed))
				deleted++
			default:
				out.WriteString(" " + line + "\n")
			}
		}
	}
	return Result{Text: out.String(), AddedLines: added, DeletedLines: deleted}
}

// FormatSummary returns a human-readable summary of changes
func (r Result) FormatSummary() string {
	if r.Empty() {
		return "No changes"
	}
	parts := []string{}
	if r.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d lines", r.AddedLines))
	}
	if r.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d lines", r.DeletedLines))
	}
	return strings.Join(parts, ", ")
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}

// colorize applies color to text if color is enabled
func (g *Generator) colorize(text string, colorAttr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(colorAttr).Sprint(text)
}
