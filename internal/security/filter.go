// Package security provides the pre-execution static filter.
//
// Both checks are pure functions over the submitted text: no state, no I/O,
// and no error returns. Absence of a match is the only pass signal. The
// filter guards against careless destructive input, not a determined
// adversary — execution still happens under a timeout in a private
// workspace.
package security

import (
	"regexp"
	"strings"
)

// CheckImports scans Python source for import statements whose top-level
// module appears in the blocked list. Returned names are deduplicated and
// in first-seen order.
//
// The scanner is deliberately tolerant: code it cannot recognize is ignored
// rather than rejected, so syntactically broken input is never blocked
// here — the interpreter reports those errors far more precisely at
// execution time.
func CheckImports(code string, blocked []string) []string {
	if len(blocked) == 0 || code == "" {
		return nil
	}

	blockedSet := make(map[string]struct{}, len(blocked))
	for _, name := range blocked {
		blockedSet[name] = struct{}{}
	}

	var found []string
	for _, module := range DeclaredImports(code) {
		if _, bad := blockedSet[module]; bad {
			found = append(found, module)
		}
	}
	return found
}

// DeclaredImports returns the top-level module of every import statement
// found in code, deduplicated and in first-seen order. Same tolerant
// scanning as CheckImports.
func DeclaredImports(code string) []string {
	var found []string
	seen := make(map[string]struct{})
	report := func(module string) {
		top := topLevelModule(module)
		if top == "" {
			return
		}
		if _, dup := seen[top]; dup {
			return
		}
		seen[top] = struct{}{}
		found = append(found, top)
	}

	for _, stmt := range logicalLines(code) {
		switch {
		case strings.HasPrefix(stmt, "import "):
			for _, clause := range strings.Split(stmt[len("import "):], ",") {
				report(importTarget(clause))
			}
		case strings.HasPrefix(stmt, "from "):
			rest := stmt[len("from "):]
			idx := strings.Index(rest, " import")
			if idx < 0 {
				continue
			}
			report(strings.TrimSpace(rest[:idx]))
		}
	}

	return found
}

// CheckShellPatterns tests command text against an ordered list of
// case-insensitive regular expressions and returns the first that matches.
// Patterns that fail to compile are skipped.
func CheckShellPatterns(command string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			continue
		}
		if re.MatchString(command) {
			return pattern, true
		}
	}
	return "", false
}

// topLevelModule reduces a dotted module path to its first segment.
// Relative imports ("from . import x") have no top-level name.
func topLevelModule(module string) string {
	module = strings.TrimSpace(module)
	module = strings.TrimLeft(module, ".")
	if module == "" {
		return ""
	}
	if idx := strings.Index(module, "."); idx >= 0 {
		module = module[:idx]
	}
	return strings.TrimSpace(module)
}

// importTarget strips an "as alias" clause from one import item.
func importTarget(clause string) string {
	clause = strings.TrimSpace(clause)
	if idx := strings.Index(clause, " as "); idx >= 0 {
		clause = clause[:idx]
	}
	return clause
}

// logicalLines splits source into trimmed statements, joining explicit
// backslash continuations and dropping comment tails. Statements after a
// semicolon are split so "x = 1; import os" is still seen. String literals
// spanning lines can yield junk statements; those simply match nothing.
func logicalLines(code string) []string {
	var stmts []string
	var pending strings.Builder

	for _, raw := range strings.Split(code, "\n") {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteString(" ")
			continue
		}

		pending.WriteString(line)
		full := pending.String()
		pending.Reset()

		for _, part := range strings.Split(full, ";") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				stmts = append(stmts, trimmed)
			}
		}
	}

	if rest := strings.TrimSpace(pending.String()); rest != "" {
		stmts = append(stmts, rest)
	}

	return stmts
}

// stripComment removes a trailing # comment, ignoring # inside quotes.
func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote && (i == 0 || line[i-1] != '\\') {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}
