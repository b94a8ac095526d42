package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/shared/utils"
	"github.com/codeforge/execd/internal/types"
)

const (
	// maxHistoryEntries bounds the per-session execution log; oldest
	// entries are dropped first.
	maxHistoryEntries = 50

	// maxHistoryInput caps the stored input summary. History is
	// diagnostic, not replayable, so the cut loses information on
	// purpose.
	maxHistoryInput = 200
)

// HistoryEntry is one completed execution, immutable once appended.
type HistoryEntry struct {
	Tool      string    `json:"tool"`
	Input     string    `json:"input"`
	Success   bool      `json:"success"`
	Duration  float64   `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an isolated workspace plus execution bookkeeping. All methods
// are safe for concurrent use, though concurrent writes to the same
// filename may interleave — the design does not serialize per-session
// filesystem effects.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg config.SessionConfig

	mu             sync.RWMutex
	lastAccessedAt time.Time
	executionCount int
	workspacePath  string
	fileOrder      []string          // insertion order of sanitized names
	files          map[string]string // sanitized name -> absolute path
	history        []HistoryEntry
	inFlight       int
	destroyed      bool
}

func newSession(id string, workspacePath string, cfg config.SessionConfig) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		CreatedAt:      now,
		cfg:            cfg,
		lastAccessedAt: now,
		workspacePath:  workspacePath,
		files:          make(map[string]string),
	}
}

// WorkspacePath returns the session's private directory.
func (s *Session) WorkspacePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspacePath
}

// LastAccessedAt returns the last touch time.
func (s *Session) LastAccessedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessedAt
}

// ExecutionCount returns the number of completed executions.
func (s *Session) ExecutionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executionCount
}

// Touch updates the last access time.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccessedAt = time.Now()
	s.mu.Unlock()
}

// IsExpired reports whether the session has been idle longer than the
// configured timeout.
func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	timeout := time.Duration(s.cfg.TimeoutMinutes) * time.Minute
	return time.Since(s.lastAccessedAt) > timeout
}

// AddFile sanitizes name, enforces the count and size quotas, writes
// content into the workspace, and returns the sanitized name actually
// used. Quota violations leave no partial write behind; disk errors
// propagate verbatim.
func (s *Session) AddFile(name, content string) (string, error) {
	safeName := utils.SanitizeFilename(name)

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return "", types.ErrSessionNotFound
	}
	_, exists := s.files[safeName]
	if !exists && len(s.files) >= s.cfg.MaxFilesPerSession {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: max %d files", types.ErrFileCapacity, s.cfg.MaxFilesPerSession)
	}
	if len(content) > s.cfg.MaxFileSizeBytes {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: max %d bytes", types.ErrFileTooLarge, s.cfg.MaxFileSizeBytes)
	}
	path := filepath.Join(s.workspacePath, safeName)
	s.mu.Unlock()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", safeName, err)
	}

	s.mu.Lock()
	if _, exists := s.files[safeName]; !exists {
		s.fileOrder = append(s.fileOrder, safeName)
	}
	s.files[safeName] = path
	s.mu.Unlock()

	return safeName, nil
}

// GetFile reads a stored file by name, sanitized the same way AddFile
// sanitizes. The second return is false when the name is unknown or the
// backing file was removed externally; disk read errors propagate.
func (s *Session) GetFile(name string) (string, bool, error) {
	safeName := utils.SanitizeFilename(name)

	s.mu.RLock()
	path, ok := s.files[safeName]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", safeName, err)
	}
	return string(data), true, nil
}

// FilePath returns the absolute workspace path for a stored file.
func (s *Session) FilePath(name string) (string, bool) {
	safeName := utils.SanitizeFilename(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.files[safeName]
	return path, ok
}

// ListFiles returns stored filenames in insertion order.
func (s *Session) ListFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.fileOrder))
	copy(out, s.fileOrder)
	return out
}

// TrackFile records an externally written workspace file (e.g. a script
// the python provider saved) under its sanitized name.
func (s *Session) TrackFile(name, path string) string {
	safeName := utils.SanitizeFilename(name)
	s.mu.Lock()
	if _, exists := s.files[safeName]; !exists {
		s.fileOrder = append(s.fileOrder, safeName)
	}
	s.files[safeName] = path
	s.mu.Unlock()
	return safeName
}

// RecordHistory appends one execution record, truncating the input summary
// and dropping the oldest entries beyond the cap. It also bumps the
// execution counter, so entries appear in completion order.
func (s *Session) RecordHistory(tool, input string, success bool, duration time.Duration) {
	entry := HistoryEntry{
		Tool:      tool,
		Input:     utils.TruncateString(input, maxHistoryInput),
		Success:   success,
		Duration:  duration.Seconds(),
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.executionCount++
	s.history = append(s.history, entry)
	if len(s.history) > maxHistoryEntries {
		s.history = s.history[len(s.history)-maxHistoryEntries:]
	}
	s.mu.Unlock()
}

// History returns a copy of the execution log, oldest first.
func (s *Session) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// acquire marks an execution in flight; sessions with nonzero in-flight
// counts are never selected for eviction.
func (s *Session) acquire() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
}

func (s *Session) release() {
	s.mu.Lock()
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.mu.Unlock()
}

func (s *Session) busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Destroy removes the workspace directory. Idempotent; a missing
// directory is not an error.
func (s *Session) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	path := s.workspacePath
	s.mu.Unlock()

	if path != "" {
		_ = os.RemoveAll(path)
	}
}
