package eventmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineStateStartStop(t *testing.T) {
	engine := NewEngineState(NewDefaultSettings())
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	assert.False(t, engine.IsRunning())

	assert.True(t, engine.MarkStarted("session-1", now))
	assert.True(t, engine.IsRunning())
	assert.Equal(t, "session-1", engine.SessionID())
	assert.Equal(t, now, engine.StartedAt())

	// Second start is a no-op and keeps the original session.
	assert.False(t, engine.MarkStarted("session-2", now.Add(time.Hour)))
	assert.Equal(t, "session-1", engine.SessionID())

	assert.True(t, engine.MarkStopped())
	assert.False(t, engine.IsRunning())
	assert.False(t, engine.MarkStopped())
}

func TestEngineStateSettingsSwap(t *testing.T) {
	engine := NewEngineState(NewDefaultSettings())

	updated := engine.Settings()
	updated.TradeCapital = 25000
	engine.SetSettings(updated)

	assert.Equal(t, 25000.0, engine.Settings().TradeCapital)
}
