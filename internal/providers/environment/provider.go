// Package environment reports on the execution environment: interpreter
// and pip versions, detected tooling, and configuration summary.
package environment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/executor"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/session"
	"github.com/codeforge/execd/internal/types"
)

// probedTools are common developer tools worth reporting when present.
var probedTools = []string{"ruff", "black", "mypy", "git", "node", "npm"}

// Provider implements the environment service
type Provider struct {
	cfg      *config.Config
	sessions *session.Manager
	exec     *executor.Executor
	logger   *logging.Logger
}

// NewProvider creates an environment provider
func NewProvider(cfg *config.Config, sessions *session.Manager, exec *executor.Executor, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		cfg:      cfg,
		sessions: sessions,
		exec:     exec,
		logger:   logger.Component("environment"),
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "environment",
		Name:        "Environment Info",
		Description: "Execution environment discovery and configuration reporting",
		Category:    types.CategoryEnvironment,
		Capabilities: []string{
			"info",
		},
		Tools: []types.Tool{
			{
				ID:          "environment.info",
				Name:        "Environment Info",
				Description: "Interpreter versions, available tools, and configuration",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs an environment operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "environment.info":
		return p.info(ctx)
	default:
		msg := fmt.Sprintf("unknown tool: %s", toolID)
		return &types.Result{Success: false, Error: &msg}, nil
	}
}

func (p *Provider) info(ctx context.Context) (*types.Result, error) {
	data := map[string]interface{}{
		"python": p.version(ctx, []string{p.cfg.Execution.PythonCmd, "--version"}),
		"pip":    p.version(ctx, []string{p.cfg.Execution.PythonCmd, "-m", "pip", "--version"}),
		"tools":  p.detectTools(ctx),
		"config": map[string]interface{}{
			"max_execution_time":    p.cfg.Execution.MaxExecutionTime,
			"shell_enabled":         p.cfg.Execution.AllowShell,
			"pip_install_enabled":   p.cfg.Execution.AllowPipInstall,
			"file_persistence":      p.cfg.Sessions.AllowFilePersistence,
			"max_sessions":          p.cfg.Sessions.MaxSessions,
			"session_timeout_mins":  p.cfg.Sessions.TimeoutMinutes,
			"max_files_per_session": p.cfg.Sessions.MaxFilesPerSession,
		},
		"active_sessions": p.sessions.Count(),
	}
	return &types.Result{Success: true, Data: data}, nil
}

// version runs a --version style command and returns its first output
// line, or "unknown" when the probe fails.
func (p *Provider) version(ctx context.Context, argv []string) string {
	out := p.exec.Run(ctx, executor.Request{
		Argv:    argv,
		Timeout: 5 * time.Second,
	})
	if out.ExitCode != 0 {
		return "unknown"
	}
	text := strings.TrimSpace(out.Stdout)
	if text == "" {
		text = strings.TrimSpace(out.Stderr)
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if text == "" {
		return "unknown"
	}
	return text
}

func (p *Provider) detectTools(ctx context.Context) []string {
	var available []string
	for _, tool := range probedTools {
		out := p.exec.Run(ctx, executor.Request{
			ShellLine: "command -v " + tool,
			Timeout:   3 * time.Second,
		})
		if out.ExitCode == 0 {
			available = append(available, tool)
		}
	}
	return available
}
