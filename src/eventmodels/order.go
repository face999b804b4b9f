package eventmodels

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPlaced   OrderStatus = "PLACED"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusFailed   OrderStatus = "FAILED"
)

type OrderPurpose string

const (
	OrderPurposeEntry     OrderPurpose = "entry"
	OrderPurposeAddOn     OrderPurpose = "add_on"
	OrderPurposeExit      OrderPurpose = "exit"
	OrderPurposeFlipEntry OrderPurpose = "flip_entry"
	OrderPurposeSquareOff OrderPurpose = "square_off"
)

// EntrySide maps a ladder direction to the broker side that opens it.
func EntrySide(direction LadderDirection) OrderSide {
	if direction == LadderLong {
		return OrderSideBuy
	}

	return OrderSideSell
}

// ExitSide maps a ladder direction to the broker side that flattens it.
func ExitSide(direction LadderDirection) OrderSide {
	if direction == LadderLong {
		return OrderSideSell
	}

	return OrderSideBuy
}

// Order is a market order bound for the execution gateway. Fills are booked
// atomically at the requested quantity; FillPrice echoes the submission-time
// last traded price.
type Order struct {
	ClientOrderID uuid.UUID    `json:"clientOrderId"`
	BrokerOrderID string       `json:"brokerOrderId,omitempty"`
	Symbol        StockSymbol  `json:"symbol"`
	SecurityID    string       `json:"securityId"`
	Side          OrderSide    `json:"side"`
	Quantity      int64        `json:"quantity"`
	Purpose       OrderPurpose `json:"purpose"`
	Price         float64      `json:"price"`
	Status        OrderStatus  `json:"status"`
	Attempts      int          `json:"attempts"`
	LastError     string       `json:"lastError,omitempty"`
	RequestedAt   time.Time    `json:"requestedAt"`
	FilledAt      time.Time    `json:"filledAt,omitempty"`
	FillPrice     float64      `json:"fillPrice,omitempty"`
}

func NewOrder(symbol StockSymbol, securityID string, side OrderSide, quantity int64, purpose OrderPurpose, price float64) (*Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("NewOrder: %s: quantity must be greater than zero, got %d", symbol, quantity)
	}

	return &Order{
		ClientOrderID: uuid.New(),
		Symbol:        symbol,
		SecurityID:    securityID,
		Side:          side,
		Quantity:      quantity,
		Purpose:       purpose,
		Price:         price,
		Status:        OrderStatusPending,
		RequestedAt:   time.Now().UTC(),
	}, nil
}

// OrderRequest carries an order through the gateway queue together with the
// channels its submitter blocks on. Result and Err hold one slot each, so
// the gateway can deliver the outcome even after the submitter gave up on
// its context.
type OrderRequest struct {
	Order  *Order
	Result chan *Order
	Err    chan error
}

func NewOrderRequest(order *Order) *OrderRequest {
	return &OrderRequest{
		Order:  order,
		Result: make(chan *Order, 1),
		Err:    make(chan error, 1),
	}
}

func (o *Order) MarkPlaced(brokerOrderID string) {
	o.BrokerOrderID = brokerOrderID
	o.Status = OrderStatusPlaced
}

func (o *Order) MarkFilled(price float64, at time.Time) {
	o.Status = OrderStatusFilled
	o.FillPrice = price
	o.FilledAt = at
}

func (o *Order) MarkRejected(reason string) {
	o.Status = OrderStatusRejected
	o.LastError = reason
}

func (o *Order) MarkFailed(err error) {
	o.Status = OrderStatusFailed
	if err != nil {
		o.LastError = err.Error()
	}
}

// LatencyMs is request-to-fill latency in fractional milliseconds, zero
// until filled.
func (o *Order) LatencyMs() float64 {
	if o.FilledAt.IsZero() {
		return 0
	}

	return float64(o.FilledAt.Sub(o.RequestedAt).Microseconds()) / 1000.0
}
