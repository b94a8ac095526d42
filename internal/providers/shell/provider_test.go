package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/executor"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/session"
)

func newTestProvider(t *testing.T) (*Provider, *session.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.Execution.MaxExecutionTime = 10
	cfg.Sessions.WorkspaceRoot = t.TempDir()

	sessions := session.NewManager(cfg.Sessions, logging.NewNop())
	t.Cleanup(sessions.Shutdown)

	exec := executor.New(logging.NewNop())
	return NewProvider(cfg, sessions, exec, nil, logging.NewNop()), sessions
}

// TestDefinition tests service metadata
func TestDefinition(t *testing.T) {
	p, _ := newTestProvider(t)
	def := p.Definition()

	assert.Equal(t, "shell", def.ID)
	require.Len(t, def.Tools, 1)
	assert.Equal(t, "shell.exec", def.Tools[0].ID)
}

// TestExecRunsCommand tests basic command execution
func TestExecRunsCommand(t *testing.T) {
	p, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
		"command": "echo hello && echo oops 1>&2",
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 0, result.Data["exit_code"])
	assert.Equal(t, "hello\n", result.Data["stdout"])
	assert.Equal(t, "oops\n", result.Data["stderr"])
	assert.NotEmpty(t, result.Data["session_id"])
}

// TestExecBlockedPattern tests that denylisted commands never spawn
func TestExecBlockedPattern(t *testing.T) {
	p, sessions := newTestProvider(t)

	for _, command := range []string{
		"rm -rf /",
		"mkfs.ext4 /dev/sda",
		"dd if=/dev/zero of=/dev/sda",
	} {
		result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
			"command": command,
		}, nil)
		require.NoError(t, err)
		assert.False(t, result.Success, "command: %s", command)
		require.NotNil(t, result.Error)
		assert.Contains(t, *result.Error, "blocked pattern")
	}

	// Blocked commands consume no session either.
	assert.Equal(t, 0, sessions.Count())
}

// TestExecDisabled tests the configuration gate
func TestExecDisabled(t *testing.T) {
	p, _ := newTestProvider(t)
	p.cfg.Execution.AllowShell = false

	result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
		"command": "echo hi",
	}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "disabled")
}

// TestExecWorkspacePersistence tests cwd continuity within a session
func TestExecWorkspacePersistence(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
		"command":    "echo state > state.txt",
		"session_id": "stateful",
	}, nil)
	require.NoError(t, err)

	result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
		"command":    "cat state.txt",
		"session_id": "stateful",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "state\n", result.Data["stdout"])
}

// TestExecFencedCommand tests markdown fence stripping
func TestExecFencedCommand(t *testing.T) {
	p, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
		"command": "```bash\necho fenced\n```",
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "fenced\n", result.Data["stdout"])
}

// TestExecNonzeroExit tests that guest failure is still a tool success
func TestExecNonzeroExit(t *testing.T) {
	p, sessions := newTestProvider(t)

	result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{
		"command":    "false",
		"session_id": "failing",
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Data["exit_code"])

	sess, ok := sessions.Get("failing")
	require.True(t, ok)
	history := sess.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}

// TestExecEmptyCommand tests the missing input edge case
func TestExecEmptyCommand(t *testing.T) {
	p, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "shell.exec", map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "no command")
}
