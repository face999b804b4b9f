package eventmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func moverTick(symbol StockSymbol, ltp, prevClose, turnover float64) *Tick {
	return &Tick{
		Symbol:    symbol,
		Ltp:       ltp,
		PrevClose: prevClose,
		DayOpen:   prevClose,
		Turnover:  turnover,
		Timestamp: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
}

func TestRankMovers(t *testing.T) {
	ticks := []*Tick{
		moverTick("AAA", 103, 100, 5e7),  // +3%
		moverTick("BBB", 105, 100, 5e7),  // +5%
		moverTick("CCC", 97, 100, 5e7),   // -3%
		moverTick("DDD", 95, 100, 5e7),   // -5%
		moverTick("EEE", 110, 100, 1e6),  // below turnover floor
		moverTick("FFF", 100, 100, 5e7),  // unchanged, in neither bucket
	}

	movers := RankMovers(ticks, 1e7)

	assert.Len(t, movers.Gainers, 2)
	assert.Equal(t, StockSymbol("BBB"), movers.Gainers[0].Symbol)
	assert.Equal(t, StockSymbol("AAA"), movers.Gainers[1].Symbol)

	assert.Len(t, movers.Losers, 2)
	assert.Equal(t, StockSymbol("DDD"), movers.Losers[0].Symbol)
	assert.Equal(t, StockSymbol("CCC"), movers.Losers[1].Symbol)
}

func TestRankMoversTieBreaks(t *testing.T) {
	t.Run("equal change ranks higher turnover first", func(t *testing.T) {
		movers := RankMovers([]*Tick{
			moverTick("LOWTURN", 102, 100, 2e7),
			moverTick("HIGHTURN", 102, 100, 9e7),
		}, 0)

		assert.Equal(t, StockSymbol("HIGHTURN"), movers.Gainers[0].Symbol)
	})

	t.Run("full tie falls back to symbol order", func(t *testing.T) {
		movers := RankMovers([]*Tick{
			moverTick("ZED", 102, 100, 5e7),
			moverTick("ALPHA", 102, 100, 5e7),
		}, 0)

		assert.Equal(t, StockSymbol("ALPHA"), movers.Gainers[0].Symbol)
	})
}

func TestSelectLadderCandidates(t *testing.T) {
	settings := NewDefaultSettings()
	settings.TopNGainers = 2
	settings.TopNLosers = 2
	settings.MinTurnoverCrores = 1
	settings.MaxOpenGapPctLong = 3.0
	settings.MinOpenGapPctShort = -3.0

	ticks := []*Tick{
		moverTick("GAIN1", 105, 100, 5e7),
		moverTick("GAIN2", 104, 100, 5e7),
		moverTick("GAIN3", 103, 100, 5e7),
		moverTick("LOSE1", 95, 100, 5e7),
		moverTick("LOSE2", 96, 100, 5e7),
	}

	t.Run("gainers first, per-side caps respected", func(t *testing.T) {
		selections := SelectLadderCandidates(ticks, settings, 10, nil)

		assert.Len(t, selections, 4)
		assert.Equal(t, StockSymbol("GAIN1"), selections[0].Symbol)
		assert.Equal(t, LadderLong, selections[0].Direction)
		assert.Equal(t, StockSymbol("LOSE1"), selections[2].Symbol)
		assert.Equal(t, LadderShort, selections[2].Direction)
	})

	t.Run("capacity cuts off losers", func(t *testing.T) {
		selections := SelectLadderCandidates(ticks, settings, 3, nil)

		assert.Len(t, selections, 3)
		assert.Equal(t, LadderShort, selections[2].Direction)
	})

	t.Run("zero capacity selects nothing", func(t *testing.T) {
		assert.Nil(t, SelectLadderCandidates(ticks, settings, 0, nil))
	})

	t.Run("excluded symbols are skipped, next rank fills in", func(t *testing.T) {
		excluded := func(symbol StockSymbol) bool { return symbol == "GAIN1" }

		selections := SelectLadderCandidates(ticks, settings, 10, excluded)

		assert.Equal(t, StockSymbol("GAIN2"), selections[0].Symbol)
		assert.Equal(t, StockSymbol("GAIN3"), selections[1].Symbol)
	})

	t.Run("gap filters drop stretched opens", func(t *testing.T) {
		gapped := moverTick("GAPPED", 107, 100, 5e7)
		gapped.DayOpen = 105 // opened +5%, beyond the +3% long cap

		selections := SelectLadderCandidates([]*Tick{gapped}, settings, 10, nil)
		assert.Empty(t, selections)
	})
}
