package eventconsumers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

type runnerHarness struct {
	engine *eventmodels.EngineState
	risk   *RiskManager
	runner *LadderRunnerWorker
}

// newRunnerHarness wires a running dry-run engine: orders fill instantly at
// the submitted price without a broker.
func newRunnerHarness(t *testing.T) *runnerHarness {
	t.Helper()

	eventpubsub.Init()

	settings := eventmodels.NewDefaultSettings()
	settings.DryRun = true
	settings.TradeCapital = 100000
	settings.CyclesPerStock = 3

	engine := eventmodels.NewEngineState(settings)
	engine.MarkStarted("test-session", time.Now().UTC())

	wg := &sync.WaitGroup{}
	risk := NewRiskManager()
	executor := NewOrderExecutionWorker(wg, eventservices.NewDhanAuth("c", "t"), engine)
	runner := NewLadderRunnerWorker(wg, engine, risk, executor)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	runner.Start(ctx)
	runner.SetEntriesEnabled(true)

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return &runnerHarness{engine: engine, risk: risk, runner: runner}
}

func startEvent(symbol eventmodels.StockSymbol, direction eventmodels.LadderDirection, ltp float64) eventmodels.StartLadderEvent {
	return eventmodels.StartLadderEvent{
		Symbol:     symbol,
		SecurityID: "1001",
		Direction:  direction,
		Tick:       eventmodels.NewTick(symbol, ltp, time.Now().UTC()),
		CycleIndex: 0,
	}
}

func (h *runnerHarness) publishTick(symbol eventmodels.StockSymbol, ltp float64) {
	eventpubsub.Publish("test", eventmodels.NewTickEventName, eventmodels.NewTick(symbol, ltp, time.Now().UTC()))
}

func TestLadderRunnerStartGuards(t *testing.T) {
	t.Run("engine must be running", func(t *testing.T) {
		h := newRunnerHarness(t)
		h.engine.MarkStopped()

		err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100))
		assert.ErrorIs(t, err, eventmodels.EngineNotRunningErr)
	})

	t.Run("entries gated by session phase", func(t *testing.T) {
		h := newRunnerHarness(t)
		h.runner.SetEntriesEnabled(false)

		err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100))
		assert.ErrorIs(t, err, eventmodels.MarketClosedErr)
	})

	t.Run("one ladder per symbol", func(t *testing.T) {
		h := newRunnerHarness(t)

		assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))

		err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderShort, 100))
		assert.ErrorIs(t, err, eventmodels.DuplicateLadderErr)
	})

	t.Run("capacity limit", func(t *testing.T) {
		h := newRunnerHarness(t)

		settings := h.engine.Settings()
		settings.MaxLadderStocks = 1
		h.engine.SetSettings(settings)

		assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))

		err := h.runner.StartLadder(startEvent("TCS", eventmodels.LadderLong, 100))
		assert.ErrorIs(t, err, eventmodels.MaxLaddersReachedErr)
	})

	t.Run("halted engine refuses entries", func(t *testing.T) {
		h := newRunnerHarness(t)
		h.risk.Halt("test halt")

		err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100))
		assert.ErrorIs(t, err, eventmodels.TradingHaltedErr)
	})
}

func TestLadderRunnerTargetExit(t *testing.T) {
	h := newRunnerHarness(t)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))
	assert.True(t, h.runner.HasOpenLadder("RELIANCE"))
	assert.Equal(t, 1, h.risk.ActiveCount())

	// Default target is +2%.
	h.publishTick("RELIANCE", 102)

	assert.Eventually(t, func() bool {
		return !h.runner.HasOpenLadder("RELIANCE")
	}, 2*time.Second, 10*time.Millisecond)

	positions := h.runner.Positions()
	assert.Len(t, positions, 1)
	assert.Equal(t, eventmodels.LadderStateClosedTarget, positions[0].State)
	assert.Equal(t, eventmodels.CloseReasonTarget, positions[0].Reason)

	assert.Eventually(t, func() bool {
		return h.risk.ActiveCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	state := h.risk.Snapshot()
	assert.InDelta(t, 2000.0, state.RealizedPnL, 1e-6)

	// A target exit does not retire the symbol.
	assert.False(t, h.runner.IsExcluded("TCS"))
	assert.True(t, h.runner.IsExcluded("RELIANCE")) // already ran this session
}

func TestLadderRunnerStopLossFlips(t *testing.T) {
	h := newRunnerHarness(t)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))

	// Default initial stop is -0.5%.
	h.publishTick("RELIANCE", 99.4)

	assert.Eventually(t, func() bool {
		for _, position := range h.runner.Positions() {
			if position.IsOpen() && position.Direction == eventmodels.LadderShort {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	var flipped eventmodels.LadderPosition
	for _, position := range h.runner.Positions() {
		if position.IsOpen() {
			flipped = position
		}
	}

	assert.Equal(t, 1, flipped.CycleIndex)
	assert.InDelta(t, 99.4, flipped.AvgEntryPrice, 1e-9)
	assert.True(t, h.runner.HasOpenLadder("RELIANCE"))
}

func TestLadderRunnerManualClose(t *testing.T) {
	h := newRunnerHarness(t)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))
	assert.NoError(t, h.runner.RequestClose("RELIANCE", eventmodels.CloseReasonManual))

	assert.Eventually(t, func() bool {
		return !h.runner.HasOpenLadder("RELIANCE")
	}, 2*time.Second, 10*time.Millisecond)

	positions := h.runner.Positions()
	assert.Len(t, positions, 1)
	assert.Equal(t, eventmodels.LadderStateClosedManual, positions[0].State)

	// Manual close retires the symbol for the session: no flip, no re-entry.
	err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100))
	assert.ErrorIs(t, err, eventmodels.SymbolRetiredErr)

	t.Run("close of unknown symbol", func(t *testing.T) {
		err := h.runner.RequestClose("NOSUCH", eventmodels.CloseReasonManual)
		assert.ErrorIs(t, err, eventmodels.LadderNotFoundErr)
	})
}

func TestLadderRunnerSquareOffAll(t *testing.T) {
	h := newRunnerHarness(t)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))
	assert.NoError(t, h.runner.StartLadder(startEvent("TCS", eventmodels.LadderShort, 200)))
	assert.Equal(t, 2, h.runner.OpenCount())

	h.risk.TriggerSquareOffAll(eventmodels.CloseReasonEOD)

	assert.Eventually(t, func() bool {
		return h.runner.OpenCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	for _, position := range h.runner.Positions() {
		assert.Equal(t, eventmodels.LadderStateClosedEOD, position.State)
		assert.Zero(t, position.Quantity)
	}

	// The halt from the square-off blocks fresh entries.
	err := h.runner.StartLadder(startEvent("INFY", eventmodels.LadderLong, 100))
	assert.ErrorIs(t, err, eventmodels.TradingHaltedErr)
}

func TestLadderRunnerAddOnFlow(t *testing.T) {
	h := newRunnerHarness(t)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))

	// +0.5% triggers the first pyramid leg.
	h.publishTick("RELIANCE", 100.5)

	assert.Eventually(t, func() bool {
		positions := h.runner.Positions()
		return len(positions) == 1 && positions[0].AddOnLevel == 1
	}, 2*time.Second, 10*time.Millisecond)

	positions := h.runner.Positions()
	assert.Equal(t, int64(2000), positions[0].Quantity)
	assert.InDelta(t, 100.25, positions[0].AvgEntryPrice, 1e-9)
	assert.Len(t, positions[0].Entries, 2)
}

// newBrokerRunnerHarness wires a live-order engine against a stub broker so
// tests can hold entry orders in flight or reject them.
func newBrokerRunnerHarness(t *testing.T, handler http.HandlerFunc) *runnerHarness {
	t.Helper()

	eventpubsub.Init()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	auth := eventservices.NewDhanAuth("c", "t")
	auth.BaseURL = server.URL

	settings := eventmodels.NewDefaultSettings()
	settings.TradeCapital = 100000

	engine := eventmodels.NewEngineState(settings)
	engine.MarkStarted("test-session", time.Now().UTC())

	wg := &sync.WaitGroup{}
	risk := NewRiskManager()
	executor := NewOrderExecutionWorker(wg, auth, engine)
	runner := NewLadderRunnerWorker(wg, engine, risk, executor)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	runner.Start(ctx)
	runner.SetEntriesEnabled(true)

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return &runnerHarness{engine: engine, risk: risk, runner: runner}
}

func TestLadderRunnerInFlightEntryBlocksDuplicate(t *testing.T) {
	release := make(chan struct{})
	h := newBrokerRunnerHarness(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(eventmodels.DhanOrderResponseDTO{OrderID: "112111182045", OrderStatus: "TRANSIT"})
	})

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100))
	}()

	// The entry order is held open at the broker; the symbol must already
	// be reserved so the ranker skips it and a second start is a duplicate.
	assert.Eventually(t, func() bool {
		return h.runner.IsExcluded("RELIANCE")
	}, 2*time.Second, 10*time.Millisecond)

	err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderShort, 100))
	assert.ErrorIs(t, err, eventmodels.DuplicateLadderErr)

	close(release)

	assert.NoError(t, <-firstErr)
	assert.Equal(t, 1, h.runner.OpenCount())
	assert.Equal(t, 1, h.risk.ActiveCount())
}

func TestLadderRunnerRejectedEntryReleasesSymbol(t *testing.T) {
	h := newBrokerRunnerHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	err := h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100))
	assert.ErrorIs(t, err, eventmodels.OrderRejectedErr)

	assert.False(t, h.runner.IsExcluded("RELIANCE"))
	assert.Equal(t, 0, h.runner.OpenCount())
	assert.Equal(t, 0, h.risk.ActiveCount())
}

func TestLadderRunnerResetSession(t *testing.T) {
	h := newRunnerHarness(t)

	assert.NoError(t, h.runner.StartLadder(startEvent("RELIANCE", eventmodels.LadderLong, 100)))
	assert.NoError(t, h.runner.RequestClose("RELIANCE", eventmodels.CloseReasonManual))

	assert.Eventually(t, func() bool {
		return !h.runner.HasOpenLadder("RELIANCE")
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, h.runner.IsExcluded("RELIANCE"))

	h.runner.ResetSession()

	assert.False(t, h.runner.IsExcluded("RELIANCE"))
	assert.Empty(t, h.runner.Positions())
}
