package utils

import (
	"fmt"
	"strings"
)

// TruncateOutput bounds text to maxChars characters and maxLines lines,
// character limit applied first. When anything was dropped, a trailing
// marker records the original size so readers know information was lost.
func TruncateOutput(text string, maxLines, maxChars int) (string, bool) {
	if text == "" {
		return "", false
	}

	truncated := false
	result := text

	if maxChars > 0 && len(result) > maxChars {
		result = result[:maxChars]
		truncated = true
	}

	if maxLines > 0 {
		lines := strings.Split(result, "\n")
		if len(lines) > maxLines {
			result = strings.Join(lines[:maxLines], "\n")
			truncated = true
		}
	}

	if truncated {
		totalLines := strings.Count(text, "\n") + 1
		result += fmt.Sprintf("\n\n... [OUTPUT TRUNCATED - %d chars, %d lines total]", len(text), totalLines)
	}

	return result, truncated
}

// TruncateString bounds a string to max characters with no marker.
// Used for history summaries where the cut is intentional information loss.
func TruncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
