// Package shell provides shell command execution gated by a pattern
// denylist.
package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/executor"
	"github.com/codeforge/execd/internal/format"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/monitoring"
	"github.com/codeforge/execd/internal/security"
	"github.com/codeforge/execd/internal/session"
	"github.com/codeforge/execd/internal/shared/utils"
	"github.com/codeforge/execd/internal/types"
)

// Provider implements the shell service
type Provider struct {
	cfg      *config.Config
	sessions *session.Manager
	exec     *executor.Executor
	metrics  *monitoring.Metrics
	fmtr     *format.Formatter
	logger   *logging.Logger
}

// NewProvider creates a shell provider
func NewProvider(cfg *config.Config, sessions *session.Manager, exec *executor.Executor, metrics *monitoring.Metrics, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		cfg:      cfg,
		sessions: sessions,
		exec:     exec,
		metrics:  metrics,
		fmtr:     format.New(cfg.Execution),
		logger:   logger.Component("shell"),
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "shell",
		Name:        "Shell Execution",
		Description: "Run shell commands in a session workspace, gated by a pattern denylist",
		Category:    types.CategoryShell,
		Capabilities: []string{
			"execute",
		},
		Tools: []types.Tool{
			{
				ID:          "shell.exec",
				Name:        "Execute Shell",
				Description: "Run a shell command line in the session workspace",
				Parameters: []types.Parameter{
					{Name: "command", Type: "string", Description: "Shell command(s) to execute", Required: true},
					{Name: "session_id", Type: "string", Description: "Session for working directory persistence", Required: false},
					{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs a shell operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "shell.exec":
		return p.execLine(ctx, params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) execLine(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	if !p.cfg.Execution.AllowShell {
		return failure("shell execution is disabled in configuration")
	}

	command := utils.CoerceString(params["command"])
	if strings.TrimSpace(command) == "" {
		command = utils.CoerceString(params["text"])
	}
	command = utils.ExtractCodeBlock(command, "bash")
	if strings.TrimSpace(command) == "" {
		return failure("no command provided")
	}

	// Denylist check happens before any session or process work, so a
	// blocked command consumes nothing.
	if pattern, matched := security.CheckShellPatterns(command, p.cfg.Security.BlockedShellPatternList()); matched {
		if p.metrics != nil {
			p.metrics.RecordSecurityBlock("shell_pattern")
		}
		p.logger.Warn("blocked shell pattern", zap.String("pattern", pattern))
		return failure(fmt.Sprintf("blocked pattern detected: %s", pattern))
	}

	sess, err := p.sessions.Resolve(stringParam(params, "session_id"))
	if err != nil {
		return nil, err
	}
	release := p.sessions.Acquire(sess)
	defer release()

	timeout := time.Duration(p.cfg.Execution.MaxExecutionTime) * time.Second
	if t, ok := params["timeout"].(float64); ok && t > 0 {
		if requested := time.Duration(t * float64(time.Second)); requested < timeout {
			timeout = requested
		}
	}

	out := p.exec.Run(ctx, executor.Request{
		ShellLine: command,
		Dir:       sess.WorkspacePath(),
		Timeout:   timeout,
	})

	success := out.ExitCode == 0
	sess.RecordHistory("shell.exec", command, success, out.Duration)
	if p.metrics != nil {
		p.metrics.RecordExecution("shell.exec", success, out.TimedOut, out.Duration)
	}

	formatted := p.fmtr.Result(out, map[string]string{
		"Session": sess.ID,
		"CWD":     sess.WorkspacePath(),
	})
	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"exit_code":        out.ExitCode,
			"stdout":           out.Stdout,
			"stderr":           out.Stderr,
			"duration_seconds": out.Duration.Seconds(),
			"timed_out":        out.TimedOut,
			"session_id":       sess.ID,
			"formatted":        formatted,
		},
	}, nil
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func failure(message string) (*types.Result, error) {
	msg := message
	return &types.Result{Success: false, Error: &msg}, nil
}
