// Package format renders execution outcomes as markdown for LLM display.
// Only the boundary layer uses it; core packages never produce markup.
package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/executor"
	"github.com/codeforge/execd/internal/shared/utils"
)

// Formatter renders results consistently.
type Formatter struct {
	cfg config.ExecutionConfig
}

// New creates a formatter bound to the configured output caps.
func New(cfg config.ExecutionConfig) *Formatter {
	return &Formatter{cfg: cfg}
}

// Result renders an execution outcome: status, timing, optional extra
// fields, and both streams truncated to the configured caps (stderr gets
// half the caps).
func (f *Formatter) Result(out executor.Outcome, extra map[string]string) string {
	var parts []string

	switch {
	case out.ExitCode == 0:
		parts = append(parts, "**Status:** Success")
	case out.ExitCode == executor.SentinelExitCode:
		parts = append(parts, "**Status:** Error/Timeout")
	default:
		parts = append(parts, fmt.Sprintf("**Status:** Failed (exit code %d)", out.ExitCode))
	}

	parts = append(parts, fmt.Sprintf("**Duration:** %.2fs", out.Duration.Seconds()))

	for _, key := range sortedKeys(extra) {
		parts = append(parts, fmt.Sprintf("**%s:** %s", key, extra[key]))
	}

	if out.Stdout != "" {
		truncated, _ := utils.TruncateOutput(out.Stdout, f.cfg.MaxOutputLines, f.cfg.MaxOutputChars)
		parts = append(parts, fmt.Sprintf("**stdout:**\n```\n%s\n```", truncated))
	}
	if out.Stderr != "" {
		truncated, _ := utils.TruncateOutput(out.Stderr, f.cfg.MaxOutputLines/2, f.cfg.MaxOutputChars/2)
		parts = append(parts, fmt.Sprintf("**stderr:**\n```\n%s\n```", truncated))
	}

	return strings.Join(parts, "\n\n")
}

// Error renders an error with an optional suggestion line.
func (f *Formatter) Error(kind, message, suggestion string) string {
	parts := []string{fmt.Sprintf("**%s:** %s", kind, message)}
	if suggestion != "" {
		parts = append(parts, fmt.Sprintf("**Suggestion:** %s", suggestion))
	}
	return strings.Join(parts, "\n\n")
}

// Info renders a titled key/value listing. List values become sub-items.
func (f *Formatter) Info(title string, items map[string]interface{}) string {
	parts := []string{fmt.Sprintf("**%s**\n", title)}
	for _, key := range sortedInfoKeys(items) {
		switch v := items[key].(type) {
		case []string:
			parts = append(parts, fmt.Sprintf("- **%s:**", key))
			for _, item := range v {
				parts = append(parts, fmt.Sprintf("  - %s", item))
			}
		case time.Duration:
			parts = append(parts, fmt.Sprintf("- **%s:** %.1f minutes", key, v.Minutes()))
		default:
			parts = append(parts, fmt.Sprintf("- **%s:** %v", key, v))
		}
	}
	return strings.Join(parts, "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInfoKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
