package eventconsumers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

func startTestExecutor(t *testing.T, auth *eventservices.DhanAuth, dryRun bool) (*OrderExecutionWorker, context.CancelFunc) {
	t.Helper()

	eventpubsub.Init()

	settings := eventmodels.NewDefaultSettings()
	settings.DryRun = dryRun
	engine := eventmodels.NewEngineState(settings)

	wg := &sync.WaitGroup{}
	worker := NewOrderExecutionWorker(wg, auth, engine)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return worker, cancel
}

func executorTestOrder(t *testing.T) *eventmodels.Order {
	t.Helper()

	order, err := eventmodels.NewOrder("RELIANCE", "2885", eventmodels.OrderSideBuy, 10, eventmodels.OrderPurposeEntry, 2500)
	assert.NoError(t, err)

	return order
}

func TestOrderExecutionDryRun(t *testing.T) {
	worker, _ := startTestExecutor(t, eventservices.NewDhanAuth("c", "t"), true)

	order := executorTestOrder(t)

	filled, err := worker.Submit(context.Background(), order)
	assert.NoError(t, err)

	assert.Equal(t, eventmodels.OrderStatusFilled, filled.Status)
	assert.Equal(t, "dry-run", filled.BrokerOrderID)
	assert.Equal(t, 2500.0, filled.FillPrice)
}

func TestOrderExecutionRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		json.NewEncoder(w).Encode(eventmodels.DhanOrderResponseDTO{OrderID: "112111182045", OrderStatus: "TRANSIT"})
	}))
	defer server.Close()

	auth := eventservices.NewDhanAuth("c", "t")
	auth.BaseURL = server.URL

	worker, _ := startTestExecutor(t, auth, false)

	filled, err := worker.Submit(context.Background(), executorTestOrder(t))
	assert.NoError(t, err)

	assert.Equal(t, eventmodels.OrderStatusFilled, filled.Status)
	assert.Equal(t, "112111182045", filled.BrokerOrderID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, filled.Attempts)
}

func TestOrderExecutionRejectionIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	auth := eventservices.NewDhanAuth("c", "t")
	auth.BaseURL = server.URL

	worker, _ := startTestExecutor(t, auth, false)

	order := executorTestOrder(t)

	_, err := worker.Submit(context.Background(), order)
	assert.ErrorIs(t, err, eventmodels.OrderRejectedErr)

	// No retries after a definitive rejection.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, eventmodels.OrderStatusRejected, order.Status)
}

func TestOrderExecutionAbandonedSubmitDoesNotWedgeQueue(t *testing.T) {
	worker, _ := startTestExecutor(t, eventservices.NewDhanAuth("c", "t"), true)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.Submit(cancelled, executorTestOrder(t))
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned request's outcome lands in its buffered channel; the
	// consumer moves on and the next order still fills.
	filled, err := worker.Submit(context.Background(), executorTestOrder(t))
	assert.NoError(t, err)
	assert.Equal(t, eventmodels.OrderStatusFilled, filled.Status)
}

func TestOrderExecutionPreservesSubmissionOrder(t *testing.T) {
	worker, _ := startTestExecutor(t, eventservices.NewDhanAuth("c", "t"), true)

	var mu sync.Mutex
	var fills []string
	eventpubsub.SubscribeSync("testOrdering", eventmodels.OrderFilledEventName, func(event eventmodels.OrderFilledEvent) {
		mu.Lock()
		fills = append(fills, string(event.Order.Symbol))
		mu.Unlock()
	})

	first := executorTestOrder(t)

	second, err := eventmodels.NewOrder("TCS", "11536", eventmodels.OrderSideSell, 5, eventmodels.OrderPurposeExit, 3200)
	assert.NoError(t, err)

	_, err = worker.Submit(context.Background(), first)
	assert.NoError(t, err)

	_, err = worker.Submit(context.Background(), second)
	assert.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"RELIANCE", "TCS"}, fills)
}
