package eventmodels

import "time"

type MoverDirection string

const (
	MoverDirectionGainers MoverDirection = "gainers"
	MoverDirectionLosers  MoverDirection = "losers"
)

type MoverRow struct {
	Symbol    StockSymbol `json:"symbol"`
	Ltp       float64     `json:"ltp"`
	ChangePct float64     `json:"changePct"`
	Turnover  float64     `json:"turnover"`
}

// TopMovers is the ranker's latest output, kept for the API and dashboard.
type TopMovers struct {
	Gainers     []MoverRow `json:"gainers"`
	Losers      []MoverRow `json:"losers"`
	GeneratedAt time.Time  `json:"generatedAt"`
}
