package eventmodels

import (
	"sort"
	"time"
)

// RankMovers splits ticks into gainers and losers ranked by percentage
// change, dropping anything below the turnover floor. Ordering is
// deterministic: change pct, then higher turnover, then symbol.
func RankMovers(ticks []*Tick, minTurnoverRupees float64) TopMovers {
	movers := TopMovers{GeneratedAt: time.Now().UTC()}

	for _, tick := range ticks {
		if tick == nil || tick.Turnover < minTurnoverRupees {
			continue
		}

		row := MoverRow{
			Symbol:    tick.Symbol,
			Ltp:       tick.Ltp,
			ChangePct: tick.ChangePct(),
			Turnover:  tick.Turnover,
		}

		switch {
		case row.ChangePct > 0:
			movers.Gainers = append(movers.Gainers, row)
		case row.ChangePct < 0:
			movers.Losers = append(movers.Losers, row)
		}
	}

	sort.SliceStable(movers.Gainers, func(i, j int) bool {
		return moverLess(movers.Gainers[i], movers.Gainers[j], true)
	})
	sort.SliceStable(movers.Losers, func(i, j int) bool {
		return moverLess(movers.Losers[i], movers.Losers[j], false)
	})

	return movers
}

func moverLess(a, b MoverRow, descending bool) bool {
	if a.ChangePct != b.ChangePct {
		if descending {
			return a.ChangePct > b.ChangePct
		}
		return a.ChangePct < b.ChangePct
	}

	if a.Turnover != b.Turnover {
		return a.Turnover > b.Turnover
	}

	return a.Symbol < b.Symbol
}

// LadderSelection is one symbol the ranker wants a ladder opened in.
type LadderSelection struct {
	Symbol    StockSymbol
	Direction LadderDirection
	Tick      *Tick
}

// SelectLadderCandidates picks up to TopNGainers long and TopNLosers short
// selections from the ranked movers, gainers first, within the remaining
// ladder capacity. Excluded symbols (open ladders, already-started or
// retired symbols) are skipped, as are candidates failing the opening-gap
// filters.
func SelectLadderCandidates(ticks []*Tick, settings Settings, capacity int, excluded func(StockSymbol) bool) []LadderSelection {
	if capacity <= 0 {
		return nil
	}

	movers := RankMovers(ticks, settings.MinTurnoverRupees())

	tickBySymbol := make(map[StockSymbol]*Tick, len(ticks))
	for _, tick := range ticks {
		if tick != nil {
			tickBySymbol[tick.Symbol] = tick
		}
	}

	var selections []LadderSelection

	appendFrom := func(rows []MoverRow, direction LadderDirection, limit int) {
		taken := 0
		for _, row := range rows {
			if taken >= limit || len(selections) >= capacity {
				return
			}

			if excluded != nil && excluded(row.Symbol) {
				continue
			}

			tick, ok := tickBySymbol[row.Symbol]
			if !ok {
				continue
			}

			gap := tick.OpenGapPct()
			if direction == LadderLong && gap > settings.MaxOpenGapPctLong {
				continue
			}
			if direction == LadderShort && gap < settings.MinOpenGapPctShort {
				continue
			}

			selections = append(selections, LadderSelection{Symbol: row.Symbol, Direction: direction, Tick: tick})
			taken++
		}
	}

	appendFrom(movers.Gainers, LadderLong, settings.TopNGainers)
	appendFrom(movers.Losers, LadderShort, settings.TopNLosers)

	return selections
}
