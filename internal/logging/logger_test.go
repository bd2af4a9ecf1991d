package logging

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"solver/internal/observability"
)

type nilLogger struct{}

func (*nilLogger) Debug(string, ...any) {}
func (*nilLogger) Info(string, ...any)  {}
func (*nilLogger) Warn(string, ...any)  {}
func (*nilLogger) Error(string, ...any) {}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add(format, args...) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add(format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add(format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add(format, args...) }

func (r *recordingLogger) add(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typed *nilLogger
	var logger Logger = typed
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "test")
	logger.Info("hello %s", "world")

	if want := "hello world"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if want := "component=test"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
}

func TestConfigureReplacesBase(t *testing.T) {
	previous := Base()
	t.Cleanup(func() {
		defaultMu.Lock()
		defaultBase = previous
		defaultMu.Unlock()
	})

	buf := &bytes.Buffer{}
	Configure(observability.LogConfig{Level: "debug", Format: "json", Output: buf})
	NewComponentLogger("orchestrator").Debug("step %d", 2)

	if !bytes.Contains(buf.Bytes(), []byte(`"component":"orchestrator"`)) {
		t.Fatalf("expected component field, got %q", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"step 2"`)) {
		t.Fatalf("expected formatted message, got %q", buf.String())
	}
}

func TestFromContextPrefixesRunID(t *testing.T) {
	rec := &recordingLogger{}
	ctx := observability.ContextWithRunID(context.Background(), "01ABC")
	FromContext(ctx, rec).Warn("retrying %s", "step")

	if len(rec.lines) != 1 || rec.lines[0] != "run=01ABC retrying step" {
		t.Fatalf("unexpected lines: %v", rec.lines)
	}

	// Re-tagging replaces the id instead of stacking prefixes.
	WithRunID(WithRunID(rec, "a"), "b").Info("x")
	if got := rec.lines[1]; got != "run=b x" {
		t.Fatalf("unexpected line %q", got)
	}

	if FromContext(context.Background(), rec) != Logger(rec) {
		t.Fatalf("expected untagged logger when context has no run id")
	}
}
