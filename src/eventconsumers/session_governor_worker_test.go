package eventconsumers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

func newGovernorHarness(t *testing.T, auth *eventservices.DhanAuth, prepare PrepareSessionFunc) (*SessionGovernorWorker, *runnerHarness, *eventmodels.MarketClock) {
	t.Helper()

	h := newRunnerHarness(t)

	clock, err := eventmodels.NewMarketClock()
	assert.NoError(t, err)

	movers := NewTopMoversWorker(&sync.WaitGroup{}, h.engine, h.risk, h.runner, auth, moversTestMaster(t))
	governor := NewSessionGovernorWorker(&sync.WaitGroup{}, clock, h.engine, h.risk, h.runner, movers, auth, prepare)

	return governor, h, clock
}

func fundLimitServer(t *testing.T, status int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		json.NewEncoder(w).Encode(eventmodels.DhanFundLimitDTO{DhanClientID: "client-1", AvailableBalance: 125000})
	}))
	t.Cleanup(server.Close)

	return server
}

// istTime builds an instant at the given IST wall-clock time on a weekday.
func istTime(t *testing.T, clock *eventmodels.MarketClock, hour, minute int) time.Time {
	t.Helper()

	// 2026-08-24 is a Monday.
	return time.Date(2026, 8, 24, hour, minute, 0, 0, clock.Location)
}

func TestSessionGovernorStartStop(t *testing.T) {
	server := fundLimitServer(t, http.StatusOK)
	auth := eventservices.NewDhanAuth("c", "t")
	auth.BaseURL = server.URL

	governor, h, _ := newGovernorHarness(t, auth, nil)
	h.engine.MarkStopped()

	status, err := governor.StartSession(context.Background())
	assert.NoError(t, err)
	assert.True(t, status.Running)
	assert.NotEmpty(t, status.SessionID)
	assert.False(t, status.TradingHalted)

	firstID := status.SessionID

	t.Run("start is idempotent", func(t *testing.T) {
		status, err := governor.StartSession(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, firstID, status.SessionID)
	})

	t.Run("stop halts entries", func(t *testing.T) {
		status, err := governor.StopSession()
		assert.NoError(t, err)
		assert.False(t, status.Running)
		assert.True(t, status.TradingHalted)
		assert.Equal(t, "stopped by operator", status.HaltReason)
	})

	t.Run("restart clears the halt", func(t *testing.T) {
		status, err := governor.StartSession(context.Background())
		assert.NoError(t, err)
		assert.True(t, status.Running)
		assert.False(t, status.TradingHalted)
		assert.NotEqual(t, firstID, status.SessionID)
	})
}

func TestSessionGovernorBrokerValidationFailure(t *testing.T) {
	server := fundLimitServer(t, http.StatusUnauthorized)
	auth := eventservices.NewDhanAuth("c", "t")
	auth.BaseURL = server.URL

	governor, h, _ := newGovernorHarness(t, auth, nil)
	h.engine.MarkStopped()

	status, err := governor.StartSession(context.Background())
	assert.Error(t, err)
	assert.False(t, status.Running)
	assert.False(t, status.FeedConnected)
}

func TestSessionGovernorPhaseTransitions(t *testing.T) {
	governor, h, clock := newGovernorHarness(t, eventservices.NewDhanAuth("c", "t"), nil)

	phases := make(chan eventmodels.SessionPhaseChangedEvent, 8)
	eventpubsub.SubscribeSync("testPhases", eventmodels.SessionPhaseChangedEventName, func(event eventmodels.SessionPhaseChangedEvent) {
		phases <- event
	})

	ctx := context.Background()

	governor.tick(ctx, istTime(t, clock, 9, 5))
	governor.tick(ctx, istTime(t, clock, 9, 20))
	governor.tick(ctx, istTime(t, clock, 9, 21)) // same phase, no event

	assert.Len(t, phases, 2)

	first := <-phases
	assert.Equal(t, eventmodels.MarketPhaseClosed, first.From)
	assert.Equal(t, eventmodels.MarketPhasePreMarket, first.To)

	second := <-phases
	assert.Equal(t, eventmodels.MarketPhaseOpen, second.To)
	assert.Equal(t, eventmodels.MarketPhaseOpen, governor.Phase())

	// Entering the square-off window flattens the book exactly once.
	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))

	governor.tick(ctx, istTime(t, clock, 15, 21))

	assert.Eventually(t, func() bool {
		return h.runner.OpenCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, h.risk.IsHalted())
}

func TestSessionGovernorPrepareRunsOncePerPremarket(t *testing.T) {
	var prepares int32
	prepare := func(ctx context.Context) error {
		atomic.AddInt32(&prepares, 1)
		return nil
	}

	governor, _, clock := newGovernorHarness(t, eventservices.NewDhanAuth("c", "t"), prepare)

	ctx := context.Background()

	governor.tick(ctx, istTime(t, clock, 9, 5))
	governor.tick(ctx, istTime(t, clock, 9, 6))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&prepares) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Still one: prepare is guarded per session, not per tick.
	governor.tick(ctx, istTime(t, clock, 9, 10))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&prepares))
}

func TestSessionGovernorStatusShape(t *testing.T) {
	governor, h, _ := newGovernorHarness(t, eventservices.NewDhanAuth("c", "t"), nil)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))

	status := governor.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "test-session", status.SessionID)
	assert.Equal(t, 1, status.ActiveLadders)
	assert.True(t, status.DryRun)
	assert.Greater(t, status.UptimeSeconds, 0.0)
}
