package diff

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestGenerator_Lines_IdenticalContent(t *testing.T) {
	gen := NewGenerator(false)
	result := gen.Lines("x = 1\ny = 2\n", "x = 1\ny = 2\n")
	assert.True(t, result.Empty())
	assert.Empty(t, result.Text)
	assert.Equal(t, "No changes", result.FormatSummary())
}

func TestGenerator_Lines_Modification(t *testing.T) {
	gen := NewGenerator(false)
	oldCode := "apples = 15\nresult = apples - 7\n"
	newCode := "apples = 15\nresult = apples - 7 + 13\n"

	result := gen.Lines(oldCode, newCode)
	assert.Equal(t, 1, result.AddedLines)
	assert.Equal(t, 1, result.DeletedLines)
	assert.Equal(t, " apples = 15\n-result = apples - 7\n+result = apples - 7 + 13\n", result.Text)
	assert.Equal(t, "+1 lines, -1 lines", result.FormatSummary())
}

func TestGenerator_Lines_AdditionOnly(t *testing.T) {
	gen := NewGenerator(false)
	result := gen.Lines("a = 1", "a = 1\nb = a * 2")
	assert.Equal(t, 0, result.DeletedLines)
	assert.Greater(t, result.AddedLines, 0)
	assert.Contains(t, result.Text, "+b = a * 2")
}

func TestGenerator_Lines_Colorized(t *testing.T) {
	previous := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = previous })

	gen := NewGenerator(true)
	result := gen.Lines("a = 1\n", "a = 2\n")
	assert.True(t, strings.Contains(result.Text, "\x1b["), "expected ANSI escapes in %q", result.Text)
}
