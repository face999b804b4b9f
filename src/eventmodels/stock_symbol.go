package eventmodels

import (
	"encoding/json"
	"strings"
)

type StockSymbol string

func (s StockSymbol) String() string {
	return strings.ToUpper(string(s))
}

// WithEQSeries returns the NSE equity-series form of the symbol, e.g.
// RELIANCE -> RELIANCE-EQ. Already-suffixed symbols are returned unchanged.
func (s StockSymbol) WithEQSeries() StockSymbol {
	up := s.String()
	if strings.HasSuffix(up, "-EQ") {
		return StockSymbol(up)
	}

	return StockSymbol(up + "-EQ")
}

func (s StockSymbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func NewStockSymbol(s string) StockSymbol {
	return StockSymbol(strings.ToUpper(strings.TrimSpace(s)))
}
