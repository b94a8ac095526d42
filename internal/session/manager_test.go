package session

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/types"
)

func newTestManager(t *testing.T, cfg config.SessionConfig) *Manager {
	t.Helper()
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = t.TempDir()
	}
	m := NewManager(cfg, logging.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}

// TestResolveCreatesSession tests creation with a generated id
func TestResolveCreatesSession(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	sess, err := m.Resolve("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.ID, "sess_"))

	info, err := os.Stat(sess.WorkspacePath())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, 1, m.Count())
}

// TestResolveReusesLiveSession tests same-id reuse
func TestResolveReusesLiveSession(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	first, err := m.Resolve("my-session")
	require.NoError(t, err)
	before := first.LastAccessedAt()

	time.Sleep(5 * time.Millisecond)
	second, err := m.Resolve("my-session")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, first.WorkspacePath(), second.WorkspacePath())
	assert.True(t, second.LastAccessedAt().After(before))
	assert.Equal(t, 1, m.Count())
}

// TestResolveRecreatesExpired tests that an expired id gets a fresh
// workspace under the same name
func TestResolveRecreatesExpired(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TimeoutMinutes = 0
	m := newTestManager(t, cfg)

	first, err := m.Resolve("stale")
	require.NoError(t, err)
	firstWorkspace := first.WorkspacePath()

	time.Sleep(time.Millisecond)
	second, err := m.Resolve("stale")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, firstWorkspace, second.WorkspacePath())

	// The stale workspace is gone.
	_, err = os.Stat(firstWorkspace)
	assert.True(t, os.IsNotExist(err))

	stats := m.GetStats()
	assert.GreaterOrEqual(t, stats.Expiries, int64(1))
}

// TestEvictOldest tests LRU eviction at capacity
func TestEvictOldest(t *testing.T) {
	cfg := testSessionConfig()
	cfg.MaxSessions = 2
	m := newTestManager(t, cfg)

	oldest, err := m.Resolve("oldest")
	require.NoError(t, err)
	oldestWorkspace := oldest.WorkspacePath()

	time.Sleep(5 * time.Millisecond)
	_, err = m.Resolve("newer")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = m.Resolve("third")
	require.NoError(t, err)

	assert.Equal(t, 2, m.Count())
	_, ok := m.Get("oldest")
	assert.False(t, ok)
	_, ok = m.Get("newer")
	assert.True(t, ok)

	_, err = os.Stat(oldestWorkspace)
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, int64(1), m.GetStats().Evictions)
}

// TestEvictSkipsBusy tests that in-flight sessions are never evicted
func TestEvictSkipsBusy(t *testing.T) {
	cfg := testSessionConfig()
	cfg.MaxSessions = 2
	m := newTestManager(t, cfg)

	busy, err := m.Resolve("busy")
	require.NoError(t, err)
	release := m.Acquire(busy)
	defer release()

	time.Sleep(5 * time.Millisecond)
	_, err = m.Resolve("idle")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = m.Resolve("incoming")
	require.NoError(t, err)

	// "busy" is older but survives; "idle" was evicted instead.
	_, ok := m.Get("busy")
	assert.True(t, ok)
	_, ok = m.Get("idle")
	assert.False(t, ok)
}

// TestResolveAllBusy tests the error path when capacity cannot be freed
func TestResolveAllBusy(t *testing.T) {
	cfg := testSessionConfig()
	cfg.MaxSessions = 1
	m := newTestManager(t, cfg)

	only, err := m.Resolve("only")
	require.NoError(t, err)
	release := m.Acquire(only)
	defer release()

	_, err = m.Resolve("blocked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use")
	assert.Equal(t, 1, m.Count())
}

// TestAcquireReleaseIdempotent tests that a release function is safe to
// call more than once
func TestAcquireReleaseIdempotent(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	sess, err := m.Resolve("s")
	require.NoError(t, err)

	release := m.Acquire(sess)
	release()
	release()
	assert.False(t, sess.busy())
}

// TestRemove tests explicit destruction
func TestRemove(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	sess, err := m.Resolve("doomed")
	require.NoError(t, err)
	workspace := sess.WorkspacePath()

	require.NoError(t, m.Remove("doomed"))
	_, err = os.Stat(workspace)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, m.Count())

	assert.ErrorIs(t, m.Remove("doomed"), types.ErrSessionNotFound)
	assert.ErrorIs(t, m.Remove("never-existed"), types.ErrSessionNotFound)
}

// TestGetDoesNotCreate tests the non-creating lookup
func TestGetDoesNotCreate(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	_, ok := m.Get("unknown")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

// TestSweepReapsExpired tests the amortized expiry sweep
func TestSweepReapsExpired(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TimeoutMinutes = 0
	cfg.MaxSessions = 100
	m := newTestManager(t, cfg)

	stale, err := m.Resolve("stale")
	require.NoError(t, err)
	staleWorkspace := stale.WorkspacePath()
	time.Sleep(time.Millisecond)

	// Resolving other ids enough times triggers the periodic sweep.
	for i := 0; i < sweepInterval+1; i++ {
		_, err := m.Resolve("")
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	_, err = os.Stat(staleWorkspace)
	assert.True(t, os.IsNotExist(err))
	assert.GreaterOrEqual(t, m.GetStats().Expiries, int64(1))
}

// TestListAndStats tests registry introspection
func TestListAndStats(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	_, err := m.Resolve("a")
	require.NoError(t, err)
	_, err = m.Resolve("b")
	require.NoError(t, err)

	ids := m.List()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	stats := m.GetStats()
	assert.Equal(t, 2, stats.Active)
	assert.Zero(t, stats.Evictions)
}

// TestShutdown tests that all workspaces are destroyed
func TestShutdown(t *testing.T) {
	m := newTestManager(t, testSessionConfig())

	a, err := m.Resolve("a")
	require.NoError(t, err)
	b, err := m.Resolve("b")
	require.NoError(t, err)

	m.Shutdown()

	assert.Equal(t, 0, m.Count())
	for _, ws := range []string{a.WorkspacePath(), b.WorkspacePath()} {
		_, err := os.Stat(ws)
		assert.True(t, os.IsNotExist(err))
	}
}
