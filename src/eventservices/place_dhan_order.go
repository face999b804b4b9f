package eventservices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

// PlaceDhanOrder submits an intraday market order. A 4xx response means the
// broker rejected the order and the error wraps OrderRejectedErr so callers
// skip retries; transport failures and 5xx responses are retryable.
func PlaceDhanOrder(auth *DhanAuth, order *eventmodels.Order) (*eventmodels.DhanOrderResponseDTO, error) {
	client := http.Client{
		Timeout: 10 * time.Second,
	}

	payload := eventmodels.DhanOrderRequestDTO{
		DhanClientID:    auth.ClientID,
		CorrelationID:   order.ClientOrderID.String(),
		TransactionType: string(order.Side),
		ExchangeSegment: "NSE_EQ",
		ProductType:     "INTRADAY",
		OrderType:       "MARKET",
		Validity:        "DAY",
		SecurityID:      order.SecurityID,
		Quantity:        order.Quantity,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("PlaceDhanOrder: failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v2/orders", auth.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("PlaceDhanOrder: failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("access-token", auth.AccessToken)
	req.Header.Add("client-id", auth.ClientID)

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PlaceDhanOrder: failed to place order: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode >= 400 && res.StatusCode < 500 {
		return nil, fmt.Errorf("PlaceDhanOrder: http code %v: %w", res.Status, eventmodels.OrderRejectedErr)
	}

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("PlaceDhanOrder: failed to place order, http code %v", res.Status)
	}

	var dto eventmodels.DhanOrderResponseDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("PlaceDhanOrder: failed to decode json: %w", err)
	}

	if dto.OrderStatus == "REJECTED" {
		return &dto, fmt.Errorf("PlaceDhanOrder: status %s: %w", dto.OrderStatus, eventmodels.OrderRejectedErr)
	}

	return &dto, nil
}
