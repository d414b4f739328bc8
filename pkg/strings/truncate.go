package strings

import (
	"strings"
)

// LogBodyMaxLen is the maximum length of an upstream response body excerpt in log output.
const LogBodyMaxLen = 500

// ExcerptMaxLen is the maximum length of a search hit excerpt shown to tool callers.
const ExcerptMaxLen = 200

// MinTruncateLen is the minimum maxLen value for SingleLine.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs (including newlines) into single
// spaces and truncates the result to maxLen runes, ending in "..." when cut.
//
// maxLen is clamped to MinTruncateLen.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Prefix returns at most maxLen runes of s without touching whitespace and
// without an ellipsis. Useful for excerpts of document text.
func Prefix(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
