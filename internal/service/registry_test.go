package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/execd/internal/types"
)

// stubProvider is a minimal provider that records the last call it saw.
type stubProvider struct {
	id       string
	category types.Category
	lastTool string
}

func (s *stubProvider) Definition() types.Service {
	return types.Service{
		ID:       s.id,
		Name:     s.id,
		Category: s.category,
		Tools: []types.Tool{
			{ID: s.id + ".echo", Name: "Echo"},
		},
	}
}

func (s *stubProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	s.lastTool = toolID
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"tool": toolID},
	}, nil
}

// TestRegisterAndGet tests provider registration and lookup
func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	stub := &stubProvider{id: "python", category: types.CategoryPython}
	require.NoError(t, r.Register(stub))

	got, ok := r.Get("python")
	assert.True(t, ok)
	assert.Equal(t, stub, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

// TestRegisterEmptyID tests rejection of an unnamed service
func TestRegisterEmptyID(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&stubProvider{id: ""})
	assert.Error(t, err)
}

// TestExecuteDispatch tests tool id routing to the owning provider
func TestExecuteDispatch(t *testing.T) {
	r := NewRegistry()
	python := &stubProvider{id: "python", category: types.CategoryPython}
	shell := &stubProvider{id: "shell", category: types.CategoryShell}
	require.NoError(t, r.Register(python))
	require.NoError(t, r.Register(shell))

	result, err := r.Execute(context.Background(), "shell.echo", nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "shell.echo", shell.lastTool)
	assert.Empty(t, python.lastTool)
}

// TestExecuteInvalidToolID tests the malformed id error path
func TestExecuteInvalidToolID(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "noseparator", nil, nil)
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "invalid tool ID")
}

// TestExecuteUnknownService tests dispatch to an unregistered service
func TestExecuteUnknownService(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "ghost.echo", nil, nil)
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

// TestListAndStats tests definition listing and registry counters
func TestListAndStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubProvider{id: "python", category: types.CategoryPython}))
	require.NoError(t, r.Register(&stubProvider{id: "workspace", category: types.CategoryWorkspace}))

	defs := r.List()
	assert.Len(t, defs, 2)

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_services"])
	assert.Equal(t, 2, stats["total_tools"])
}
