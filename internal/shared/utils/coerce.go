package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CoerceString extracts a string from the loosely typed values callers send.
// Maps are probed for well-known field names before falling back to JSON;
// slices are joined line-wise. The core packages only ever see the resulting
// plain string.
func CoerceString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		for _, key := range []string{"code", "command", "text", "input", "script", "content", "source"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}

var (
	fencedBlockRe = regexp.MustCompile("(?is)```[a-z0-9_-]*\\s*\n(.*?)```")
	inlineCodeRe  = regexp.MustCompile("`([^`]+)`")
)

// ExtractCodeBlock pulls code out of markdown fencing. A block tagged with
// lang wins over a generic fenced block, which wins over inline code.
// Text without fencing is returned as-is.
func ExtractCodeBlock(text, lang string) string {
	text = strings.TrimSpace(text)
	if text == "" || !strings.Contains(text, "```") {
		return text
	}

	if lang != "" {
		re := regexp.MustCompile("(?is)```" + regexp.QuoteMeta(lang) + "\\s*\n(.*?)```")
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	if m := inlineCodeRe.FindStringSubmatch(text); m != nil && !strings.Contains(m[1], "\n") {
		return strings.TrimSpace(m[1])
	}

	return text
}
