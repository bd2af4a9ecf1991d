package agents

import (
	"strings"
)

// stripFences returns the body of the first fenced block in text, or text
// itself when it has no fence. Leading indentation is preserved.
func stripFences(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return strings.Trim(text, "\r\n")
	}
	body := text[start+3:]
	// Drop the info string (```python, ```json).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.Trim(body, "\r\n")
}

// extractJSONObject returns the outermost {...} span of text.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		// Truncated object; let the repair pass close it.
		return text[start:]
	}
	return text[start : end+1]
}

// dedent removes the whitespace prefix shared by every non-blank line.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return text
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
