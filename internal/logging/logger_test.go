package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew tests logger construction across levels
func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(Config{Level: level})
		require.NoError(t, err, "level %s", level)
		require.NotNil(t, logger)
		_ = logger.Sync()
	}
}

// TestNewInvalidLevel tests rejection of unknown levels
func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

// TestComponent tests child logger creation
func TestComponent(t *testing.T) {
	logger := NewNop()
	child := logger.Component("executor")
	require.NotNil(t, child)
	assert.NotSame(t, logger, child)

	// Safe to log through either.
	child.Info("message")
	logger.Info("message")
}

// TestNewDefault tests the fallback constructor never fails
func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	logger.Info("startup")
}
