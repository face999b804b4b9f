package eventservices

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

func testAuth(server *httptest.Server) *DhanAuth {
	auth := NewDhanAuth("client-1", "token-1")
	auth.BaseURL = server.URL

	return auth
}

func newTestOrder(t *testing.T) *eventmodels.Order {
	t.Helper()

	order, err := eventmodels.NewOrder("RELIANCE", "2885", eventmodels.OrderSideBuy, 10, eventmodels.OrderPurposeEntry, 2500)
	assert.NoError(t, err)

	return order
}

func TestPlaceDhanOrder(t *testing.T) {
	t.Run("accepted order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/orders", r.URL.Path)
			assert.Equal(t, "token-1", r.Header.Get("access-token"))

			var dto eventmodels.DhanOrderRequestDTO
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&dto))
			assert.Equal(t, "BUY", dto.TransactionType)
			assert.Equal(t, "2885", dto.SecurityID)
			assert.Equal(t, int64(10), dto.Quantity)
			assert.Equal(t, "INTRADAY", dto.ProductType)

			json.NewEncoder(w).Encode(eventmodels.DhanOrderResponseDTO{OrderID: "112111182045", OrderStatus: "TRANSIT"})
		}))
		defer server.Close()

		response, err := PlaceDhanOrder(testAuth(server), newTestOrder(t))
		assert.NoError(t, err)
		assert.Equal(t, "112111182045", response.OrderID)
	})

	t.Run("4xx wraps the rejection sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := PlaceDhanOrder(testAuth(server), newTestOrder(t))
		assert.ErrorIs(t, err, eventmodels.OrderRejectedErr)
	})

	t.Run("rejected status wraps the rejection sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(eventmodels.DhanOrderResponseDTO{OrderID: "112111182046", OrderStatus: "REJECTED"})
		}))
		defer server.Close()

		_, err := PlaceDhanOrder(testAuth(server), newTestOrder(t))
		assert.ErrorIs(t, err, eventmodels.OrderRejectedErr)
	})

	t.Run("5xx is retryable, not a rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := PlaceDhanOrder(testAuth(server), newTestOrder(t))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, eventmodels.OrderRejectedErr)
	})
}

func TestFetchFundLimit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/fundlimit", r.URL.Path)
			json.NewEncoder(w).Encode(eventmodels.DhanFundLimitDTO{DhanClientID: "client-1", AvailableBalance: 125000})
		}))
		defer server.Close()

		funds, err := FetchFundLimit(testAuth(server))
		assert.NoError(t, err)
		assert.Equal(t, 125000.0, funds.AvailableBalance)
	})

	t.Run("auth failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := FetchFundLimit(testAuth(server))
		assert.Error(t, err)
	})
}
