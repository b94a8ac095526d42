package environment

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
	cfg.Sessions.WorkspaceRoot = t.TempDir()

	sessions := session.NewManager(cfg.Sessions, logging.NewNop())
	t.Cleanup(sessions.Shutdown)

	exec := executor.New(logging.NewNop())
	return NewProvider(cfg, sessions, exec, logging.NewNop()), sessions
}

// TestDefinition tests service metadata
func TestDefinition(t *testing.T) {
	p, _ := newTestProvider(t)
	def := p.Definition()

	assert.Equal(t, "environment", def.ID)
	require.Len(t, def.Tools, 1)
	assert.Equal(t, "environment.info", def.Tools[0].ID)
}

// TestInfo tests the report shape without assuming what is installed
func TestInfo(t *testing.T) {
	p, sessions := newTestProvider(t)

	_, err := sessions.Resolve("active")
	require.NoError(t, err)

	result, err := p.Execute(context.Background(), "environment.info", nil, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.NotEmpty(t, result.Data["python"])
	assert.NotEmpty(t, result.Data["pip"])
	assert.Equal(t, 1, result.Data["active_sessions"])

	cfgData, ok := result.Data["config"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 30, cfgData["max_execution_time"])
	assert.Equal(t, 10, cfgData["max_sessions"])
	assert.Equal(t, true, cfgData["shell_enabled"])
}

// TestVersionUnknownCommand tests the probe failure fallback
func TestVersionUnknownCommand(t *testing.T) {
	p, _ := newTestProvider(t)

	got := p.version(context.Background(), []string{"no-such-interpreter-zz", "--version"})
	assert.Equal(t, "unknown", got)
}

// TestUnknownTool tests the dispatch default
func TestUnknownTool(t *testing.T) {
	p, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "environment.nope", nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
}
