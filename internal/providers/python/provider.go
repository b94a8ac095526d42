// Package python provides Python execution tools: script execution with
// import filtering, syntax checking, dependency probing, and package
// installation.
package python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
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

// packageNameRe accepts pip requirement specifiers (name, extras, version
// constraints) and nothing that could smuggle shell syntax.
var packageNameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\[\]<>=!.]+$`)

// Provider implements the python service
type Provider struct {
	cfg      *config.Config
	sessions *session.Manager
	exec     *executor.Executor
	metrics  *monitoring.Metrics
	fmtr     *format.Formatter
	logger   *logging.Logger
}

// NewProvider creates a python provider
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
		logger:   logger.Component("python"),
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "python",
		Name:        "Python Execution",
		Description: "Execute Python code with import filtering, syntax checks, and dependency tools",
		Category:    types.CategoryPython,
		Capabilities: []string{
			"execute",
			"lint",
			"dependencies",
			"install",
		},
		Tools: []types.Tool{
			{
				ID:          "python.exec",
				Name:        "Execute Python",
				Description: "Run Python code in a session workspace",
				Parameters: []types.Parameter{
					{Name: "code", Type: "string", Description: "Python source (markdown fencing accepted)", Required: true},
					{Name: "session_id", Type: "string", Description: "Session for file persistence", Required: false},
					{Name: "save_as", Type: "string", Description: "Filename to keep the script under", Required: false},
					{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "python.lint",
				Name:        "Check Syntax",
				Description: "Syntax-check Python code without executing it",
				Parameters: []types.Parameter{
					{Name: "code", Type: "string", Description: "Python source", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "python.deps",
				Name:        "Check Dependencies",
				Description: "List declared imports and probe their availability",
				Parameters: []types.Parameter{
					{Name: "code", Type: "string", Description: "Python source with import statements", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "python.pipInstall",
				Name:        "Install Packages",
				Description: "Install Python packages with pip",
				Parameters: []types.Parameter{
					{Name: "packages", Type: "string", Description: "Space or comma separated package names", Required: true},
					{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs a python operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "python.exec":
		return p.execCode(ctx, params)
	case "python.lint":
		return p.lint(ctx, params)
	case "python.deps":
		return p.checkDeps(ctx, params)
	case "python.pipInstall":
		return p.pipInstall(ctx, params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) execCode(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	code := extractCode(params, "code")
	if code == "" {
		return failure("no code provided")
	}

	blocked := security.CheckImports(code, p.cfg.Security.BlockedImportList())
	if len(blocked) > 0 {
		if p.metrics != nil {
			p.metrics.RecordSecurityBlock("import")
		}
		p.logger.Warn("blocked imports detected", zap.Strings("imports", blocked))
		return failure(fmt.Sprintf("blocked imports detected: %s", strings.Join(blocked, ", ")))
	}

	sess, err := p.sessions.Resolve(stringParam(params, "session_id"))
	if err != nil {
		return nil, err
	}
	release := p.sessions.Acquire(sess)
	defer release()

	scriptName := utils.SanitizeFilename(stringParam(params, "save_as"))
	saveAs := stringParam(params, "save_as") != ""
	if !saveAs {
		scriptName = fmt.Sprintf("script_%s.py", utils.ShortHash(code))
	}
	scriptPath := filepath.Join(sess.WorkspacePath(), scriptName)
	if err := os.WriteFile(scriptPath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("writing script: %w", err)
	}
	if saveAs {
		sess.TrackFile(scriptName, scriptPath)
	}

	out := p.exec.Run(ctx, executor.Request{
		Argv:    []string{p.cfg.Execution.PythonCmd, scriptPath},
		Dir:     sess.WorkspacePath(),
		Timeout: p.timeout(params),
	})

	success := out.ExitCode == 0
	sess.RecordHistory("python.exec", code, success, out.Duration)
	if p.metrics != nil {
		p.metrics.RecordExecution("python.exec", success, out.TimedOut, out.Duration)
	}

	extra := map[string]string{"Session": sess.ID}
	if saveAs {
		extra["Saved as"] = scriptName
	}
	return outcomeResult(out, sess.ID, p.fmtr.Result(out, extra))
}

func (p *Provider) lint(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	code := extractCode(params, "code")
	if code == "" {
		return failure("no code provided")
	}

	tmpDir, err := os.MkdirTemp("", "execd_lint_")
	if err != nil {
		return nil, fmt.Errorf("creating lint dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "check.py")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("writing lint file: %w", err)
	}

	out := p.exec.Run(ctx, executor.Request{
		Argv:    []string{p.cfg.Execution.PythonCmd, "-m", "py_compile", path},
		Dir:     tmpDir,
		Timeout: 10 * time.Second,
	})

	data := map[string]interface{}{
		"syntax_ok": out.ExitCode == 0,
		"lines":     strings.Count(code, "\n") + 1,
		"imports":   len(security.DeclaredImports(code)),
	}
	if out.ExitCode != 0 {
		// Temp path is noise to the caller.
		data["syntax_error"] = strings.ReplaceAll(out.Stderr, path, "<code>")
	}

	// Style pass with ruff when available; syntax verdict stands alone.
	probe := p.exec.Run(ctx, executor.Request{
		ShellLine: "command -v ruff",
		Dir:       tmpDir,
		Timeout:   5 * time.Second,
	})
	if probe.ExitCode == 0 {
		ruff := p.exec.Run(ctx, executor.Request{
			Argv:    []string{"ruff", "check", "--output-format=concise", path},
			Dir:     tmpDir,
			Timeout: 15 * time.Second,
		})
		issues := ruff.Stdout
		if issues == "" {
			issues = ruff.Stderr
		}
		data["ruff_ok"] = ruff.ExitCode == 0
		if ruff.ExitCode != 0 {
			cleaned := strings.ReplaceAll(issues, path, "<code>")
			truncated, _ := utils.TruncateOutput(cleaned, 30, 2000)
			data["ruff_issues"] = truncated
		}
	}

	return successResult(data)
}

func (p *Provider) checkDeps(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	code := extractCode(params, "code")
	if code == "" {
		return failure("no code provided")
	}

	imports := security.DeclaredImports(code)
	if len(imports) == 0 {
		return successResult(map[string]interface{}{
			"imports":   []string{},
			"available": []string{},
			"missing":   []string{},
		})
	}
	sort.Strings(imports)

	available := make([]string, 0, len(imports))
	missing := make([]string, 0)
	versions := make(map[string]string)

	for _, imp := range imports {
		probe := fmt.Sprintf(
			"import importlib, importlib.metadata\n"+
				"try:\n"+
				"    importlib.import_module(%q)\n"+
				"    try:\n"+
				"        print('OK|' + importlib.metadata.version(%q))\n"+
				"    except Exception:\n"+
				"        print('OK|unknown')\n"+
				"except ImportError as e:\n"+
				"    print('FAIL|' + str(e))\n",
			imp, imp,
		)
		out := p.exec.Run(ctx, executor.Request{
			Argv:    []string{p.cfg.Execution.PythonCmd, "-c", probe},
			Timeout: 5 * time.Second,
		})
		line := strings.TrimSpace(out.Stdout)
		if out.ExitCode == 0 && strings.HasPrefix(line, "OK|") {
			available = append(available, imp)
			versions[imp] = strings.TrimPrefix(line, "OK|")
		} else {
			missing = append(missing, imp)
		}
	}

	return successResult(map[string]interface{}{
		"imports":   imports,
		"available": available,
		"missing":   missing,
		"versions":  versions,
	})
}

func (p *Provider) pipInstall(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	if !p.cfg.Execution.AllowPipInstall {
		return failure("package installation is disabled in configuration")
	}

	raw := utils.CoerceString(params["packages"])
	if strings.TrimSpace(raw) == "" {
		return failure("no packages specified")
	}

	names := splitPackages(raw)
	var invalid []string
	for _, name := range names {
		if !packageNameRe.MatchString(name) {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return failure(fmt.Sprintf("invalid package names: %s", strings.Join(invalid, ", ")))
	}

	timeout := p.timeout(params)
	if maxPip := 2 * time.Duration(p.cfg.Execution.MaxExecutionTime) * time.Second; timeout > maxPip {
		timeout = maxPip
	}

	argv := append([]string{p.cfg.Execution.PythonCmd, "-m", "pip", "install", "--user", "--quiet"}, names...)
	out := p.exec.Run(ctx, executor.Request{
		Argv:    argv,
		Timeout: timeout,
	})

	if p.metrics != nil {
		p.metrics.RecordExecution("python.pipInstall", out.ExitCode == 0, out.TimedOut, out.Duration)
	}
	p.logger.Info("pip install",
		zap.Strings("packages", names),
		zap.Int("exit_code", out.ExitCode),
	)

	result, err := outcomeResult(out, "", p.fmtr.Result(out, map[string]string{"Packages": strings.Join(names, ", ")}))
	if err == nil {
		result.Data["packages"] = names
	}
	return result, err
}

// timeout reads an optional per-call timeout, defaulting to and capped by
// the configured maximum.
func (p *Provider) timeout(params map[string]interface{}) time.Duration {
	limit := time.Duration(p.cfg.Execution.MaxExecutionTime) * time.Second
	if t, ok := params["timeout"].(float64); ok && t > 0 {
		requested := time.Duration(t * float64(time.Second))
		if requested < limit {
			return requested
		}
	}
	return limit
}

func splitPackages(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// extractCode coerces a loosely typed param and strips markdown fencing.
func extractCode(params map[string]interface{}, key string) string {
	raw := utils.CoerceString(params[key])
	if strings.TrimSpace(raw) == "" {
		raw = utils.CoerceString(params["text"])
	}
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return utils.ExtractCodeBlock(raw, "python")
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func successResult(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	msg := message
	return &types.Result{Success: false, Error: &msg}, nil
}

// outcomeResult maps an execution outcome to a Result. A nonzero guest
// exit is still a successful tool call; callers read exit_code.
func outcomeResult(out executor.Outcome, sessionID, formatted string) (*types.Result, error) {
	data := map[string]interface{}{
		"exit_code":        out.ExitCode,
		"stdout":           out.Stdout,
		"stderr":           out.Stderr,
		"duration_seconds": out.Duration.Seconds(),
		"timed_out":        out.TimedOut,
		"formatted":        formatted,
	}
	if sessionID != "" {
		data["session_id"] = sessionID
	}
	return &types.Result{Success: true, Data: data}, nil
}
