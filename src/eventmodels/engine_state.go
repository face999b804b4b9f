package eventmodels

import (
	"sync"
	"time"
)

// EngineState is the explicit process-wide mutable state: current settings,
// running flag, broker/feed connectivity and the session id. Constructed
// once in main and passed by reference into every worker; all access goes
// through the mutex so no reader ever sees a torn settings record.
type EngineState struct {
	mutex sync.RWMutex

	settings      Settings
	running       bool
	sessionID     string
	startedAt     time.Time
	feedConnected bool
	brokerReady   bool
}

func NewEngineState(settings Settings) *EngineState {
	return &EngineState{
		settings: settings,
	}
}

func (e *EngineState) Settings() Settings {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.settings
}

func (e *EngineState) SetSettings(settings Settings) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.settings = settings
}

func (e *EngineState) IsRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.running
}

// MarkStarted flips the engine to running and assigns the session id.
// Returns false when already running, making start idempotent for callers.
func (e *EngineState) MarkStarted(sessionID string, at time.Time) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.running {
		return false
	}

	e.running = true
	e.sessionID = sessionID
	e.startedAt = at

	return true
}

func (e *EngineState) MarkStopped() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.running {
		return false
	}

	e.running = false

	return true
}

func (e *EngineState) SessionID() string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.sessionID
}

func (e *EngineState) StartedAt() time.Time {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.startedAt
}

func (e *EngineState) SetFeedConnected(connected bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.feedConnected = connected
}

func (e *EngineState) IsFeedConnected() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.feedConnected
}

func (e *EngineState) SetBrokerReady(ready bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.brokerReady = ready
}

func (e *EngineState) IsBrokerReady() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.brokerReady
}
