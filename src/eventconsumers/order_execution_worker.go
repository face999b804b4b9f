package eventconsumers

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
	"github.com/kmehta2012/ladder-trading/src/utils"
)

const (
	orderMaxAttempts    = 3
	orderBackoffBase    = 1 * time.Second
	orderQueuePollDelay = 5 * time.Millisecond
)

// OrderExecutionWorker is the gateway between symbol tasks and the broker.
// Requests flow through a FIFO queue so broker calls happen on one
// goroutine, behind a shared rate limit. Transient failures retry with
// backoff; a broker rejection is terminal and surfaces to the submitting
// task immediately.
//
// In dry-run mode orders fill instantly at the submitted price without
// touching the broker.
type OrderExecutionWorker struct {
	wg     *sync.WaitGroup
	auth   *eventservices.DhanAuth
	engine *eventmodels.EngineState
	queue  *eventmodels.FIFOQueue[*eventmodels.OrderRequest]
	bucket *utils.TokenBucket
}

func NewOrderExecutionWorker(wg *sync.WaitGroup, auth *eventservices.DhanAuth, engine *eventmodels.EngineState) *OrderExecutionWorker {
	return &OrderExecutionWorker{
		wg:     wg,
		auth:   auth,
		engine: engine,
		queue:  eventmodels.NewFIFOQueue[*eventmodels.OrderRequest]("orderRequests", 999),
		bucket: utils.NewTokenBucket(8, 8),
	}
}

// Submit places the order and blocks until it reaches a terminal state. The
// returned error wraps eventmodels.OrderRejectedErr for definitive broker
// rejections; anything else was a transient failure that exhausted its
// retries.
func (w *OrderExecutionWorker) Submit(ctx context.Context, order *eventmodels.Order) (*eventmodels.Order, error) {
	request := eventmodels.NewOrderRequest(order)
	w.queue.Enqueue(request)

	select {
	case filled := <-request.Result:
		return filled, nil
	case err := <-request.Err:
		return order, err
	case <-ctx.Done():
		return order, ctx.Err()
	}
}

func (w *OrderExecutionWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping OrderExecutionWorker consumer")
				return
			default:
				request, ok := w.queue.Dequeue()
				if !ok {
					time.Sleep(orderQueuePollDelay)
					continue
				}

				w.execute(ctx, request)
			}
		}
	}()
}

func (w *OrderExecutionWorker) execute(ctx context.Context, request *eventmodels.OrderRequest) {
	order := request.Order

	if err := w.bucket.Take(ctx); err != nil {
		order.MarkFailed(err)
		request.Err <- err
		return
	}

	eventpubsub.Publish("OrderExecutionWorker", eventmodels.OrderPlacedEventName, eventmodels.OrderPlacedEvent{Order: order})

	if w.engine.Settings().DryRun {
		order.MarkPlaced("dry-run")
		order.MarkFilled(order.Price, time.Now().UTC())

		log.WithFields(log.Fields{
			"symbol":  order.Symbol,
			"side":    order.Side,
			"qty":     order.Quantity,
			"purpose": order.Purpose,
		}).Info("dry run: simulated fill")

		eventpubsub.Publish("OrderExecutionWorker", eventmodels.OrderFilledEventName, eventmodels.OrderFilledEvent{Order: order})
		request.Result <- order
		return
	}

	var lastErr error
	for attempt := 1; attempt <= orderMaxAttempts; attempt++ {
		order.Attempts = attempt

		response, err := eventservices.PlaceDhanOrder(w.auth, order)
		if err == nil {
			order.MarkPlaced(response.OrderID)

			// Fills are booked atomically at the submission price; the
			// broker's own fill report is not consumed.
			order.MarkFilled(order.Price, time.Now().UTC())

			eventpubsub.Publish("OrderExecutionWorker", eventmodels.OrderFilledEventName, eventmodels.OrderFilledEvent{Order: order})
			request.Result <- order
			return
		}

		lastErr = err

		if errors.Is(err, eventmodels.OrderRejectedErr) {
			order.MarkRejected(err.Error())
			break
		}

		log.Errorf("OrderExecutionWorker: attempt %d/%d for %s failed: %v", attempt, orderMaxAttempts, order.Symbol, err)

		if attempt < orderMaxAttempts {
			backoff := orderBackoffBase << (attempt - 1)

			select {
			case <-ctx.Done():
				order.MarkFailed(ctx.Err())
				request.Err <- ctx.Err()
				return
			case <-time.After(backoff):
			}
		}
	}

	if order.Status != eventmodels.OrderStatusRejected {
		order.MarkFailed(lastErr)
	}

	eventpubsub.Publish("OrderExecutionWorker", eventmodels.OrderFailedEventName, eventmodels.OrderFailedEvent{Order: order, Err: lastErr.Error()})
	request.Err <- lastErr
}
