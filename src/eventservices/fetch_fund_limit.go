package eventservices

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

// FetchFundLimit doubles as the broker auth check: a successful response
// proves the credentials work before the engine starts a session.
func FetchFundLimit(auth *DhanAuth) (*eventmodels.DhanFundLimitDTO, error) {
	client := http.Client{
		Timeout: 10 * time.Second,
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v2/fundlimit", auth.BaseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("FetchFundLimit: failed to create request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	req.Header.Add("access-token", auth.AccessToken)
	req.Header.Add("client-id", auth.ClientID)

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FetchFundLimit: failed to fetch fund limit: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FetchFundLimit: failed to fetch fund limit, http code %v", res.Status)
	}

	var dto eventmodels.DhanFundLimitDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("FetchFundLimit: failed to decode json: %w", err)
	}

	return &dto, nil
}
