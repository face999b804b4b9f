package eventmodels

import (
	"fmt"
	"time"
)

// DhanHistoricalChartResponseDTO is the broker's daily chart response:
// parallel arrays, one element per candle.
type DhanHistoricalChartResponseDTO struct {
	Open      []float64 `json:"open"`
	High      []float64 `json:"high"`
	Low       []float64 `json:"low"`
	Close     []float64 `json:"close"`
	Volume    []float64 `json:"volume"`
	Timestamp []int64   `json:"timestamp"`
}

// ToDailyCandles zips the parallel arrays into candles, keeping the last n.
func (dto *DhanHistoricalChartResponseDTO) ToDailyCandles(n int) (DailyCandles, error) {
	size := len(dto.Timestamp)
	if size == 0 {
		return nil, fmt.Errorf("ToDailyCandles: empty chart response")
	}

	if len(dto.Open) != size || len(dto.High) != size || len(dto.Low) != size || len(dto.Close) != size || len(dto.Volume) != size {
		return nil, fmt.Errorf("ToDailyCandles: mismatched array lengths in chart response")
	}

	start := 0
	if size > n {
		start = size - n
	}

	candles := make(DailyCandles, 0, size-start)
	for i := start; i < size; i++ {
		candles = append(candles, DailyCandle{
			Date:   time.Unix(dto.Timestamp[i], 0).UTC(),
			Open:   dto.Open[i],
			High:   dto.High[i],
			Low:    dto.Low[i],
			Close:  dto.Close[i],
			Volume: int64(dto.Volume[i]),
		})
	}

	return candles, nil
}

type DhanOhlcDTO struct {
	Open  float64 `json:"open"`
	Close float64 `json:"close"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
}

// DhanQuoteDTO is one security's snapshot in the market quote response.
type DhanQuoteDTO struct {
	LastPrice    float64     `json:"last_price"`
	AveragePrice float64     `json:"average_price"`
	Volume       int64       `json:"volume"`
	NetChange    float64     `json:"net_change"`
	Ohlc         DhanOhlcDTO `json:"ohlc"`
}

// DhanQuoteSnapshotResponseDTO maps exchange segment -> security id -> quote.
type DhanQuoteSnapshotResponseDTO struct {
	Data   map[string]map[string]DhanQuoteDTO `json:"data"`
	Status string                             `json:"status"`
}

type DhanOrderRequestDTO struct {
	DhanClientID    string `json:"dhanClientId"`
	CorrelationID   string `json:"correlationId"`
	TransactionType string `json:"transactionType"`
	ExchangeSegment string `json:"exchangeSegment"`
	ProductType     string `json:"productType"`
	OrderType       string `json:"orderType"`
	Validity        string `json:"validity"`
	SecurityID      string `json:"securityId"`
	Quantity        int64  `json:"quantity"`
}

type DhanOrderResponseDTO struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

type DhanFundLimitDTO struct {
	DhanClientID     string  `json:"dhanClientId"`
	AvailableBalance float64 `json:"availabelBalance"`
	SodLimit         float64 `json:"sodLimit"`
	UtilizedAmount   float64 `json:"utilizedAmount"`
}
