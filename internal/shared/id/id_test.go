package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewSessionID tests prefix and uniqueness
func TestNewSessionID(t *testing.T) {
	a := NewSessionID().String()
	b := NewSessionID().String()

	assert.True(t, strings.HasPrefix(a, "sess_"))
	assert.NotEqual(t, a, b)
}

// TestNewRequestID tests prefix and uniqueness
func TestNewRequestID(t *testing.T) {
	a := NewRequestID().String()
	b := NewRequestID().String()

	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.NotEqual(t, a, b)
}

// TestGeneratorOrdering tests that ids sort by creation time
func TestGeneratorOrdering(t *testing.T) {
	g := NewGenerator()
	first := g.Generate()
	second := g.Generate()

	assert.LessOrEqual(t, first.Time(), second.Time())
}

// TestGeneratorConcurrency tests safe concurrent generation
func TestGeneratorConcurrency(t *testing.T) {
	g := NewGenerator()
	const workers = 8
	const perWorker = 50

	results := make(chan string, workers*perWorker)
	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < perWorker; j++ {
				results <- g.GenerateWithPrefix("sess")
			}
		}()
	}

	seen := make(map[string]struct{}, workers*perWorker)
	for i := 0; i < workers*perWorker; i++ {
		id := <-results
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id: %s", id)
		seen[id] = struct{}{}
	}
}
