package eventservices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

type historicalChartRequestDTO struct {
	SecurityID      string `json:"securityId"`
	ExchangeSegment string `json:"exchangeSegment"`
	Instrument      string `json:"instrument"`
	FromDate        string `json:"fromDate"`
	ToDate          string `json:"toDate"`
}

// FetchDailyCandles returns the last `days` daily candles for a security.
// The window requested is padded to cover weekends and holidays.
func FetchDailyCandles(auth *DhanAuth, securityID string, days int) (eventmodels.DailyCandles, error) {
	client := http.Client{
		Timeout: 10 * time.Second,
	}

	now := time.Now().UTC()
	payload := historicalChartRequestDTO{
		SecurityID:      securityID,
		ExchangeSegment: "NSE_EQ",
		Instrument:      "EQUITY",
		FromDate:        now.AddDate(0, 0, -(days*2 + 7)).Format("2006-01-02"),
		ToDate:          now.Format("2006-01-02"),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("FetchDailyCandles: failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v2/charts/historical", auth.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("FetchDailyCandles: failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("access-token", auth.AccessToken)
	req.Header.Add("client-id", auth.ClientID)

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FetchDailyCandles: failed to fetch chart: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FetchDailyCandles: failed to fetch chart, http code %v", res.Status)
	}

	var dto eventmodels.DhanHistoricalChartResponseDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("FetchDailyCandles: failed to decode json: %w", err)
	}

	candles, err := dto.ToDailyCandles(days)
	if err != nil {
		return nil, fmt.Errorf("FetchDailyCandles: %w", err)
	}

	return candles, nil
}
