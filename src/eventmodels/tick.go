package eventmodels

import (
	"fmt"
	"time"
)

// Tick is the canonical market data event produced by the feed normalizer.
// Turnover is the cumulative traded value for the day in rupees.
type Tick struct {
	Symbol     StockSymbol `json:"symbol"`
	Ltp        float64     `json:"ltp"`
	PrevClose  float64     `json:"prevClose"`
	DayOpen    float64     `json:"dayOpen"`
	Volume     int64       `json:"volume"`
	Turnover   float64     `json:"turnover"`
	Timestamp  time.Time   `json:"timestamp"`
	ReceivedAt time.Time   `json:"-"`
}

func NewTick(symbol StockSymbol, ltp float64, timestamp time.Time) *Tick {
	return &Tick{
		Symbol:     symbol,
		Ltp:        ltp,
		Timestamp:  timestamp,
		ReceivedAt: time.Now().UTC(),
	}
}

func (t *Tick) Validate() error {
	if len(t.Symbol) == 0 {
		return fmt.Errorf("validate: symbol not set")
	}

	if t.Ltp <= 0 {
		return fmt.Errorf("validate: ltp must be greater than zero, got %v", t.Ltp)
	}

	return nil
}

// ChangePct is the percentage move from the previous close.
func (t *Tick) ChangePct() float64 {
	if t.PrevClose == 0 {
		return 0
	}

	return (t.Ltp - t.PrevClose) / t.PrevClose * 100.0
}

// OpenGapPct is the opening gap relative to the previous close. Positive
// means the stock opened above yesterday's close.
func (t *Tick) OpenGapPct() float64 {
	if t.PrevClose == 0 || t.DayOpen == 0 {
		return 0
	}

	return (t.DayOpen - t.PrevClose) / t.PrevClose * 100.0
}

// LatencyMs is the exchange-to-process ingestion latency in fractional
// milliseconds. Zero when either timestamp is missing.
func (t *Tick) LatencyMs() float64 {
	if t.Timestamp.IsZero() || t.ReceivedAt.IsZero() {
		return 0
	}

	return float64(t.ReceivedAt.Sub(t.Timestamp).Microseconds()) / 1000.0
}
