package eventmodels

import "time"

// Candidate is a liquidity-qualified symbol produced by the premarket
// universe filter. AvgMinuteVolume is the per-minute average over the
// lookback window.
type Candidate struct {
	Symbol          StockSymbol `json:"symbol" csv:"symbol"`
	SecurityID      string      `json:"securityId" csv:"security_id"`
	AvgMinuteVolume float64     `json:"avgMinuteVolume" csv:"avg_minute_volume"`
}

type DailyCandle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type DailyCandles []DailyCandle

const tradingMinutesPerDay = 375

// AvgMinuteVolume averages traded volume per trading minute across the
// candles (375 minutes per NSE session).
func (c DailyCandles) AvgMinuteVolume() float64 {
	if len(c) == 0 {
		return 0
	}

	var total int64
	for _, candle := range c {
		total += candle.Volume
	}

	return float64(total) / float64(len(c)*tradingMinutesPerDay)
}
