package utils

import (
	"path/filepath"
	"strings"
)

const maxFilenameLen = 255

// SanitizeFilename strips any directory component from name, replaces
// filesystem-hostile characters with underscores, and caps the length.
// An empty result falls back to "unnamed". The returned name never
// contains a path separator, so joining it under a workspace directory
// cannot escape that directory.
func SanitizeFilename(name string) string {
	// Basename only; also neutralizes backslash-separated paths.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20, r == '<', r == '>', r == ':', r == '"', r == '/', r == '|', r == '?', r == '*':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name = b.String()

	// "." and ".." are directory references, not filenames.
	if name == "." || name == ".." {
		name = ""
	}

	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	if name == "" {
		return "unnamed"
	}
	return name
}
