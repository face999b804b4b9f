package eventservices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

// FetchQuoteSnapshot pulls a point-in-time quote for up to 1000 securities
// in one call. Used by the ranker as a REST fallback before the live feed
// has produced ticks.
func FetchQuoteSnapshot(auth *DhanAuth, securityIDs []string) (map[string]eventmodels.DhanQuoteDTO, error) {
	client := http.Client{
		Timeout: 10 * time.Second,
	}

	payload := map[string][]string{"NSE_EQ": securityIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("FetchQuoteSnapshot: failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v2/marketfeed/quote", auth.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("FetchQuoteSnapshot: failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("access-token", auth.AccessToken)
	req.Header.Add("client-id", auth.ClientID)

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FetchQuoteSnapshot: failed to fetch quotes: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FetchQuoteSnapshot: failed to fetch quotes, http code %v", res.Status)
	}

	var dto eventmodels.DhanQuoteSnapshotResponseDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("FetchQuoteSnapshot: failed to decode json: %w", err)
	}

	quotes, ok := dto.Data["NSE_EQ"]
	if !ok {
		return nil, fmt.Errorf("FetchQuoteSnapshot: response missing NSE_EQ segment")
	}

	return quotes, nil
}

// QuoteSnapshotTicks converts a REST quote snapshot into canonical ticks so
// the same ranking path serves both live and fallback data.
func QuoteSnapshotTicks(master *ScripMaster, quotes map[string]eventmodels.DhanQuoteDTO) []*eventmodels.Tick {
	now := time.Now().UTC()

	ticks := make([]*eventmodels.Tick, 0, len(quotes))
	for securityID, quote := range quotes {
		symbol, ok := master.SymbolForSecurityID(securityID)
		if !ok {
			continue
		}

		turnover := quote.AveragePrice * float64(quote.Volume)

		ticks = append(ticks, &eventmodels.Tick{
			Symbol:     symbol,
			Ltp:        quote.LastPrice,
			PrevClose:  quote.Ohlc.Close,
			DayOpen:    quote.Ohlc.Open,
			Volume:     quote.Volume,
			Turnover:   turnover,
			Timestamp:  now,
			ReceivedAt: now,
		})
	}

	return ticks
}
