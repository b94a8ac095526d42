package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/shared/id"
	"github.com/codeforge/execd/internal/types"
)

// sweepInterval is how many Resolve calls pass between expiry sweeps.
// Amortized so a sweep does not run on every lookup.
const sweepInterval = 10

// Manager is a capacity-bounded registry of filesystem-backed sessions.
// It creates sessions on demand, reuses live ones, expires idle ones, and
// evicts the least-recently-used session when full. Eviction destroys the
// session's workspace directory, so the registry is the single
// synchronization boundary: lookups, touches, insertions, and evictions
// all happen under one mutex. Work inside a resolved session's workspace
// does not hold that lock.
type Manager struct {
	cfg    config.SessionConfig
	logger *logging.Logger

	mu           sync.Mutex
	sessions     map[string]*Session
	resolveCount int

	// monotonic counters, read via Stats
	evictions int64
	expiries  int64
}

// Stats is a point-in-time snapshot of registry counters.
type Stats struct {
	Active    int
	Evictions int64
	Expiries  int64
}

// NewManager creates a session manager.
func NewManager(cfg config.SessionConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.Component("sessions"),
		sessions: make(map[string]*Session),
	}
}

// Resolve returns the live session named by sessionID, creating one when
// the id is unknown, expired, or empty. An empty id gets a generated one.
// At capacity the least-recently-used idle session is evicted to make
// room.
func (m *Manager) Resolve(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolveCount++
	if m.resolveCount%sweepInterval == 0 {
		m.sweepLocked()
	}

	if sessionID != "" {
		if existing, ok := m.sessions[sessionID]; ok {
			if !existing.IsExpired() {
				existing.Touch()
				return existing, nil
			}
			existing.Destroy()
			delete(m.sessions, sessionID)
			m.expiries++
			m.logger.Info("session expired", zap.String("session_id", sessionID))
		}
	}

	newID := sessionID
	if newID == "" {
		newID = id.NewSessionID().String()
	}

	if len(m.sessions) >= m.cfg.MaxSessions {
		if err := m.evictOldestLocked(); err != nil {
			return nil, err
		}
	}

	workspace, err := os.MkdirTemp(m.cfg.WorkspaceRoot, "execd_session_")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	sess := newSession(newID, workspace, m.cfg)
	m.sessions[newID] = sess
	m.logger.Info("session created",
		zap.String("session_id", newID),
		zap.String("workspace", workspace),
	)
	return sess, nil
}

// Get returns a live session without creating one. Expired sessions are
// reported as missing.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok || sess.IsExpired() {
		return nil, false
	}
	sess.Touch()
	return sess, true
}

// Acquire marks an execution in flight against sess and returns the
// release function. In-flight sessions are never evicted.
func (m *Manager) Acquire(sess *Session) func() {
	sess.acquire()
	var once sync.Once
	return func() { once.Do(sess.release) }
}

// Remove destroys a session and drops it from the registry.
func (m *Manager) Remove(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return types.ErrSessionNotFound
	}
	sess.Destroy()
	delete(m.sessions, sessionID)
	m.logger.Info("session removed", zap.String("session_id", sessionID))
	return nil
}

// List returns the ids of all registered sessions.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for sid := range m.sessions {
		ids = append(ids, sid)
	}
	return ids
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// GetStats returns registry counters.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Active:    len(m.sessions),
		Evictions: m.evictions,
		Expiries:  m.expiries,
	}
}

// Shutdown destroys all sessions. Best-effort; leftover workspaces from a
// hard crash are inside the temp root and reaped by the OS.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sid, sess := range m.sessions {
		sess.Destroy()
		delete(m.sessions, sid)
	}
	m.logger.Info("all sessions destroyed")
}

// sweepLocked destroys every expired session. Caller holds m.mu.
func (m *Manager) sweepLocked() {
	for sid, sess := range m.sessions {
		if sess.IsExpired() && !sess.busy() {
			sess.Destroy()
			delete(m.sessions, sid)
			m.expiries++
			m.logger.Info("session expired", zap.String("session_id", sid))
		}
	}
}

// evictOldestLocked removes the idle session with the oldest access time,
// ties broken by id so the choice is deterministic. Sessions with an
// execution in flight are ineligible. Caller holds m.mu.
func (m *Manager) evictOldestLocked() error {
	var (
		oldestID string
		oldestAt time.Time
	)
	for sid, sess := range m.sessions {
		if sess.busy() {
			continue
		}
		at := sess.LastAccessedAt()
		if oldestID == "" || at.Before(oldestAt) || (at.Equal(oldestAt) && sid < oldestID) {
			oldestID = sid
			oldestAt = at
		}
	}
	if oldestID == "" {
		return fmt.Errorf("session capacity reached (%d) and all sessions are in use", m.cfg.MaxSessions)
	}

	m.sessions[oldestID].Destroy()
	delete(m.sessions, oldestID)
	m.evictions++
	m.logger.Info("session evicted",
		zap.String("session_id", oldestID),
		zap.Time("last_accessed", oldestAt),
	)
	return nil
}
