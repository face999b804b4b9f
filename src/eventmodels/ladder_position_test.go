package eventmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ladderTestSettings() Settings {
	settings := NewDefaultSettings()
	settings.TradeCapital = 100000
	settings.NoOfAddOns = 5
	settings.AddOnPct = 0.5
	settings.InitialStopLossPct = 0.5
	settings.TrailingStopLossPct = 0.5
	settings.TargetPct = 2.0
	settings.CyclesPerStock = 3

	return settings
}

func tickAt(symbol StockSymbol, ltp float64, ts time.Time) *Tick {
	return &Tick{Symbol: symbol, Ltp: ltp, Timestamp: ts, ReceivedAt: ts}
}

func TestNewLadderPosition(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	settings := ladderTestSettings()

	t.Run("long entry levels", func(t *testing.T) {
		p, err := NewLadderPosition("RELIANCE", "2885", LadderLong, tickAt("RELIANCE", 100, ts), settings, 0)
		assert.NoError(t, err)

		assert.Equal(t, int64(1000), p.LegQuantity)
		assert.Equal(t, int64(1000), p.Quantity)
		assert.Equal(t, 100.0, p.AvgEntryPrice)
		assert.InDelta(t, 99.5, p.StopLoss, 1e-9)
		assert.InDelta(t, 102.0, p.Target, 1e-9)
		assert.Equal(t, LadderStateActive, p.State)
		assert.Len(t, p.Entries, 1)
	})

	t.Run("short entry levels mirror long", func(t *testing.T) {
		p, err := NewLadderPosition("RELIANCE", "2885", LadderShort, tickAt("RELIANCE", 100, ts), settings, 0)
		assert.NoError(t, err)

		assert.InDelta(t, 100.5, p.StopLoss, 1e-9)
		assert.InDelta(t, 98.0, p.Target, 1e-9)
	})

	t.Run("quantity floors to whole shares", func(t *testing.T) {
		p, err := NewLadderPosition("MRF", "2277", LadderLong, tickAt("MRF", 30000, ts), settings, 0)
		assert.NoError(t, err)
		assert.Equal(t, int64(3), p.LegQuantity)
	})

	t.Run("capital below one share is rejected", func(t *testing.T) {
		_, err := NewLadderPosition("MRF", "2277", LadderLong, tickAt("MRF", 150000, ts), settings, 0)
		assert.ErrorIs(t, err, ZeroQuantityErr)
	})
}

func TestLadderPositionAddOn(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	settings := ladderTestSettings()

	p, err := NewLadderPosition("RELIANCE", "2885", LadderLong, tickAt("RELIANCE", 100, ts), settings, 0)
	assert.NoError(t, err)

	assert.InDelta(t, 100.5, p.NextAddOnPrice(), 1e-9)

	t.Run("favorable move signals an add-on without booking it", func(t *testing.T) {
		result := p.ApplyTick(tickAt("RELIANCE", 100.5, ts.Add(time.Minute)))

		assert.True(t, result.AddOnTriggered)
		assert.False(t, result.Closed)
		assert.Equal(t, int64(1000), p.Quantity)
		assert.Equal(t, 0, p.AddOnLevel)
	})

	t.Run("booking folds the fill into the position", func(t *testing.T) {
		entry := p.BookAddOn(tickAt("RELIANCE", 100.5, ts.Add(time.Minute)))

		assert.Equal(t, int64(1000), entry.Quantity)
		assert.Equal(t, int64(2000), p.Quantity)
		assert.InDelta(t, 100.25, p.AvgEntryPrice, 1e-9)
		assert.Equal(t, 1, p.AddOnLevel)
		assert.InDelta(t, 100.5, p.LastAddOnPrice, 1e-9)
		assert.InDelta(t, 102.255, p.Target, 1e-9)

		// Trailed stop from the 100.5 watermark is tighter than the
		// recomputed average-based stop, so it wins.
		assert.InDelta(t, 100.5*0.995, p.StopLoss, 1e-9)
	})

	t.Run("add-on budget is exhausted after NoOfAddOns legs", func(t *testing.T) {
		p.AddOnLevel = settings.NoOfAddOns

		result := p.ApplyTick(tickAt("RELIANCE", 101.5, ts.Add(2*time.Minute)))
		assert.False(t, result.AddOnTriggered)
	})
}

func TestLadderPositionTrailingStop(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	settings := ladderTestSettings()

	t.Run("long stop only tightens", func(t *testing.T) {
		p, err := NewLadderPosition("TCS", "11536", LadderLong, tickAt("TCS", 100, ts), settings, 0)
		assert.NoError(t, err)

		result := p.ApplyTick(tickAt("TCS", 101, ts.Add(time.Minute)))
		assert.True(t, result.StopMoved)
		assert.InDelta(t, 101*0.995, p.StopLoss, 1e-9)

		stopAfterRally := p.StopLoss

		// Pullback above the stop must not loosen it.
		result = p.ApplyTick(tickAt("TCS", 100.6, ts.Add(2*time.Minute)))
		assert.False(t, result.StopMoved)
		assert.False(t, result.Closed)
		assert.Equal(t, stopAfterRally, p.StopLoss)
	})

	t.Run("short stop only tightens downward", func(t *testing.T) {
		p, err := NewLadderPosition("TCS", "11536", LadderShort, tickAt("TCS", 100, ts), settings, 0)
		assert.NoError(t, err)

		result := p.ApplyTick(tickAt("TCS", 99, ts.Add(time.Minute)))
		assert.True(t, result.StopMoved)
		assert.InDelta(t, 99*1.005, p.StopLoss, 1e-9)

		stopAfterDrop := p.StopLoss

		result = p.ApplyTick(tickAt("TCS", 99.4, ts.Add(2*time.Minute)))
		assert.False(t, result.StopMoved)
		assert.Equal(t, stopAfterDrop, p.StopLoss)
	})
}

func TestLadderPositionExits(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	settings := ladderTestSettings()

	t.Run("target exit", func(t *testing.T) {
		p, err := NewLadderPosition("INFY", "1594", LadderLong, tickAt("INFY", 100, ts), settings, 0)
		assert.NoError(t, err)

		result := p.ApplyTick(tickAt("INFY", 102, ts.Add(time.Minute)))

		assert.True(t, result.Closed)
		assert.Equal(t, CloseReasonTarget, result.Reason)
		assert.False(t, result.FlipRequested)
		assert.Equal(t, LadderStateClosedTarget, p.State)
		assert.InDelta(t, 2000, p.RealizedPnL, 1e-9)
		assert.Zero(t, p.UnrealizedPnL)
	})

	t.Run("stop exit requests a flip within the cycle budget", func(t *testing.T) {
		p, err := NewLadderPosition("INFY", "1594", LadderLong, tickAt("INFY", 100, ts), settings, 0)
		assert.NoError(t, err)

		result := p.ApplyTick(tickAt("INFY", 99.4, ts.Add(time.Minute)))

		assert.True(t, result.Closed)
		assert.Equal(t, CloseReasonStopLoss, result.Reason)
		assert.True(t, result.FlipRequested)
		assert.Equal(t, LadderStateClosedSL, p.State)
		assert.InDelta(t, -600, p.RealizedPnL, 1e-9)
	})

	t.Run("stop exit on the last cycle does not flip", func(t *testing.T) {
		p, err := NewLadderPosition("INFY", "1594", LadderLong, tickAt("INFY", 100, ts), settings, 2)
		assert.NoError(t, err)

		result := p.ApplyTick(tickAt("INFY", 99.4, ts.Add(time.Minute)))

		assert.True(t, result.Closed)
		assert.False(t, result.FlipRequested)
	})

	t.Run("ticks after close are ignored", func(t *testing.T) {
		p, err := NewLadderPosition("INFY", "1594", LadderLong, tickAt("INFY", 100, ts), settings, 0)
		assert.NoError(t, err)

		p.ApplyTick(tickAt("INFY", 102, ts.Add(time.Minute)))
		realized := p.RealizedPnL

		result := p.ApplyTick(tickAt("INFY", 110, ts.Add(2*time.Minute)))
		assert.False(t, result.Closed)
		assert.Equal(t, realized, p.RealizedPnL)
	})

	t.Run("manual close is rejected once closed", func(t *testing.T) {
		p, err := NewLadderPosition("INFY", "1594", LadderLong, tickAt("INFY", 100, ts), settings, 0)
		assert.NoError(t, err)

		assert.NoError(t, p.Close(CloseReasonManual, 100.5, ts.Add(time.Minute)))
		assert.Equal(t, LadderStateClosedManual, p.State)

		err = p.Close(CloseReasonManual, 101, ts.Add(2*time.Minute))
		assert.ErrorIs(t, err, LadderAlreadyClosedErr)
	})
}

func TestLadderPositionStockLimits(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	settings := ladderTestSettings()

	t.Run("profit limit closes before target logic runs", func(t *testing.T) {
		p, err := NewLadderPosition("HDFCBANK", "1333", LadderLong, tickAt("HDFCBANK", 100, ts), settings, 0)
		assert.NoError(t, err)

		closed, reason := p.CheckStockLimits(tickAt("HDFCBANK", 106, ts.Add(time.Minute)), 5000, 2000)

		assert.True(t, closed)
		assert.Equal(t, CloseReasonStockProfitLimit, reason)
		assert.Equal(t, LadderStateClosedTarget, p.State)
	})

	t.Run("loss limit", func(t *testing.T) {
		p, err := NewLadderPosition("HDFCBANK", "1333", LadderLong, tickAt("HDFCBANK", 100, ts), settings, 0)
		assert.NoError(t, err)

		closed, reason := p.CheckStockLimits(tickAt("HDFCBANK", 97, ts.Add(time.Minute)), 5000, 2000)

		assert.True(t, closed)
		assert.Equal(t, CloseReasonStockLossLimit, reason)
		assert.Equal(t, LadderStateClosedSL, p.State)
	})

	t.Run("inside both limits stays open", func(t *testing.T) {
		p, err := NewLadderPosition("HDFCBANK", "1333", LadderLong, tickAt("HDFCBANK", 100, ts), settings, 0)
		assert.NoError(t, err)

		closed, _ := p.CheckStockLimits(tickAt("HDFCBANK", 100.8, ts.Add(time.Minute)), 5000, 2000)

		assert.False(t, closed)
		assert.True(t, p.IsOpen())
		assert.InDelta(t, 800, p.UnrealizedPnL, 1e-9)
	})

	t.Run("zero limits are disabled", func(t *testing.T) {
		p, err := NewLadderPosition("HDFCBANK", "1333", LadderLong, tickAt("HDFCBANK", 100, ts), settings, 0)
		assert.NoError(t, err)

		closed, _ := p.CheckStockLimits(tickAt("HDFCBANK", 150, ts.Add(time.Minute)), 0, 0)
		assert.False(t, closed)
	})
}

func TestLadderPositionCopy(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

	p, err := NewLadderPosition("SBIN", "3045", LadderLong, tickAt("SBIN", 100, ts), ladderTestSettings(), 0)
	assert.NoError(t, err)

	dup := p.Copy()
	dup.Entries[0].Price = 999

	assert.Equal(t, 100.0, p.Entries[0].Price)
}

func TestLadderPositionMarksToTick(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

	entry := tickAt("RELIANCE", 100, ts)
	entry.PrevClose = 98
	entry.Turnover = 4e8

	p, err := NewLadderPosition("RELIANCE", "2885", LadderLong, entry, ladderTestSettings(), 0)
	assert.NoError(t, err)

	assert.InDelta(t, (100.0-98.0)/98.0*100.0, p.ChangePct, 1e-9)
	assert.Equal(t, 4e8, p.Turnover)

	next := tickAt("RELIANCE", 101, ts.Add(time.Minute))
	next.PrevClose = 98
	next.Turnover = 6e8

	p.ApplyTick(next)

	assert.Equal(t, 101.0, p.Ltp)
	assert.InDelta(t, (101.0-98.0)/98.0*100.0, p.ChangePct, 1e-9)
	assert.Equal(t, 6e8, p.Turnover)
}
