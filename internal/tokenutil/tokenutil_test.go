package tokenutil

import (
	"strings"
	"testing"
)

func TestCountTokens_Empty(t *testing.T) {
	if got := CountTokens(""); got != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", got)
	}
}

func TestCountTokens_Simple(t *testing.T) {
	got := CountTokens("hello world")
	if got <= 0 {
		t.Errorf("CountTokens(\"hello world\") = %d, want > 0", got)
	}
	if loadEncoding() != nil && got != 2 {
		t.Errorf("CountTokens(\"hello world\") = %d, want 2 (tiktoken)", got)
	}
}

func TestEstimateFast(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \n\t  ", 0},
		{"a b c d", 4},
		{"x", 1},
		{strings.Repeat("abcd", 10), 10},
	}
	for _, tt := range tests {
		if got := EstimateFast(tt.in); got != tt.want {
			t.Errorf("EstimateFast(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTruncateToTokens_NoTruncation(t *testing.T) {
	for _, budget := range []int{0, -1, 100} {
		if got := TruncateToTokens("short", budget); got != "short" {
			t.Errorf("TruncateToTokens(short, %d) = %q", budget, got)
		}
	}
}

func TestTruncateToTokens_ActualTruncation(t *testing.T) {
	text := strings.Repeat("hello world ", 100)
	got := TruncateToTokens(text, 5)
	if got == text {
		t.Fatal("TruncateToTokens should have truncated long text")
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("truncated result should end with %q, got %q", truncationMarker, got)
	}
	if !strings.HasPrefix(text, strings.TrimSuffix(got, truncationMarker)) {
		t.Errorf("truncation must keep the head of the text, got %q", got)
	}
}
