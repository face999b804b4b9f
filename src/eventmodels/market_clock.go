package eventmodels

import (
	"fmt"
	"time"
)

type MarketPhase string

const (
	MarketPhasePreMarket MarketPhase = "PRE_MARKET"
	MarketPhaseOpen      MarketPhase = "OPEN"
	MarketPhaseSquareOff MarketPhase = "SQUARE_OFF"
	MarketPhaseClosed    MarketPhase = "CLOSED"
)

// MarketClock maps wall-clock time onto NSE session phases. All boundaries
// are minutes after midnight in the exchange timezone (Asia/Kolkata):
// premarket 09:00, open 09:15, square-off 15:20, close 15:30.
type MarketClock struct {
	Location       *time.Location
	PreMarketStart int
	OpenStart      int
	SquareOffStart int
	CloseStart     int
}

func NewMarketClock() (*MarketClock, error) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return nil, fmt.Errorf("NewMarketClock: failed to load exchange timezone: %w", err)
	}

	return &MarketClock{
		Location:       loc,
		PreMarketStart: 9 * 60,
		OpenStart:      9*60 + 15,
		SquareOffStart: 15*60 + 20,
		CloseStart:     15*60 + 30,
	}, nil
}

// PhaseAt returns the session phase for the instant. Weekends are Closed;
// exchange holidays are not modelled here.
func (c *MarketClock) PhaseAt(t time.Time) MarketPhase {
	local := t.In(c.Location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return MarketPhaseClosed
	}

	minutes := local.Hour()*60 + local.Minute()

	switch {
	case minutes < c.PreMarketStart:
		return MarketPhaseClosed
	case minutes < c.OpenStart:
		return MarketPhasePreMarket
	case minutes < c.SquareOffStart:
		return MarketPhaseOpen
	case minutes < c.CloseStart:
		return MarketPhaseSquareOff
	default:
		return MarketPhaseClosed
	}
}

// TradingDate is the session date key (YYYY-MM-DD) for the instant, in
// exchange time. Used to scope the candidates cache to one day.
func (c *MarketClock) TradingDate(t time.Time) string {
	return t.In(c.Location).Format("2006-01-02")
}

// NextMidnight returns the next midnight in exchange time, the expiry for
// anything cached per trading day.
func (c *MarketClock) NextMidnight(t time.Time) time.Time {
	local := t.In(c.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location).AddDate(0, 0, 1)

	return next
}
