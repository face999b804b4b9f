package eventmodels

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type LadderEntry struct {
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
	OrderID   uuid.UUID `json:"orderId"`
}

// LadderTickResult reports the decisions a single tick produced so the
// owning task can place orders and emit events. Exits are applied by the
// time this is returned; an add-on is only signalled here and stays
// unbooked until the owning task confirms the order via BookAddOn.
type LadderTickResult struct {
	AddOnTriggered bool
	Closed         bool
	Reason         CloseReason
	FlipRequested  bool
	StopMoved      bool
}

// LadderPosition is a pyramiding intraday position in one symbol. All
// transitions are synchronous methods so the type stays testable without
// goroutines; the ladder runner serializes access per symbol.
//
// Strategy percentages are snapshotted from Settings when the ladder opens:
// a mid-session settings change only affects ladders opened afterwards.
type LadderPosition struct {
	Symbol     StockSymbol     `json:"symbol"`
	SecurityID string          `json:"securityId"`
	Direction  LadderDirection `json:"direction"`
	State      LadderState     `json:"state"`
	Reason     CloseReason     `json:"closeReason,omitempty"`

	LegQuantity    int64         `json:"legQuantity"`
	Entries        []LadderEntry `json:"entries"`
	Quantity       int64         `json:"quantity"`
	AvgEntryPrice  float64       `json:"avgEntryPrice"`
	LastAddOnPrice float64       `json:"lastAddOnPrice"`
	AddOnLevel     int           `json:"addOnLevel"`

	HighWatermark float64 `json:"highWatermark"`
	StopLoss      float64 `json:"stopLoss"`
	Target        float64 `json:"target"`

	Ltp           float64 `json:"ltp"`
	ChangePct     float64 `json:"changePct"`
	Turnover      float64 `json:"turnover"`
	RealizedPnL   float64 `json:"realizedPnl"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`

	CycleIndex int `json:"cycleIndex"`
	CycleTotal int `json:"cycleTotal"`

	OpenedAt time.Time `json:"openedAt"`
	ClosedAt time.Time `json:"closedAt,omitempty"`

	NoOfAddOns          int     `json:"noOfAddOns"`
	AddOnPct            float64 `json:"addOnPct"`
	InitialStopLossPct  float64 `json:"initialStopLossPct"`
	TrailingStopLossPct float64 `json:"trailingStopLossPct"`
	TargetPct           float64 `json:"targetPct"`
}

// NewLadderPosition opens a ladder at the tick's last traded price. The
// per-leg quantity is fixed here for the life of the ladder: every add-on
// buys the same number of shares as the first entry.
func NewLadderPosition(symbol StockSymbol, securityID string, direction LadderDirection, tick *Tick, settings Settings, cycleIndex int) (*LadderPosition, error) {
	if !direction.Validate() {
		return nil, fmt.Errorf("NewLadderPosition: invalid direction %q", direction)
	}

	if err := tick.Validate(); err != nil {
		return nil, fmt.Errorf("NewLadderPosition: %w", err)
	}

	legQty := int64(math.Floor(settings.TradeCapital / tick.Ltp))
	if legQty <= 0 {
		return nil, fmt.Errorf("NewLadderPosition: %s at %.2f: %w", symbol, tick.Ltp, ZeroQuantityErr)
	}

	openedAt := tick.Timestamp
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}

	p := &LadderPosition{
		Symbol:              symbol,
		SecurityID:          securityID,
		Direction:           direction,
		State:               LadderStateActive,
		LegQuantity:         legQty,
		Quantity:            legQty,
		AvgEntryPrice:       tick.Ltp,
		LastAddOnPrice:      tick.Ltp,
		AddOnLevel:          0,
		HighWatermark:       tick.Ltp,
		Ltp:                 tick.Ltp,
		ChangePct:           tick.ChangePct(),
		Turnover:            tick.Turnover,
		CycleIndex:          cycleIndex,
		CycleTotal:          settings.CyclesPerStock,
		OpenedAt:            openedAt,
		NoOfAddOns:          settings.NoOfAddOns,
		AddOnPct:            settings.AddOnPct,
		InitialStopLossPct:  settings.InitialStopLossPct,
		TrailingStopLossPct: settings.TrailingStopLossPct,
		TargetPct:           settings.TargetPct,
	}

	p.Entries = []LadderEntry{{Price: tick.Ltp, Quantity: legQty, Timestamp: openedAt}}

	if direction == LadderLong {
		p.StopLoss = tick.Ltp * (1 - settings.InitialStopLossPct/100)
		p.Target = tick.Ltp * (1 + settings.TargetPct/100)
	} else {
		p.StopLoss = tick.Ltp * (1 + settings.InitialStopLossPct/100)
		p.Target = tick.Ltp * (1 - settings.TargetPct/100)
	}

	return p, nil
}

// ApplyTick runs one tick through the ladder. Checks run in a fixed order:
// target, stop loss, add-on, trailing stop. A stop-loss exit requests a
// flip while the cycle budget allows.
func (p *LadderPosition) ApplyTick(t *Tick) LadderTickResult {
	var result LadderTickResult

	if p.State != LadderStateActive {
		return result
	}

	p.markToTick(t)

	if p.Direction == LadderLong {
		if t.Ltp > p.HighWatermark {
			p.HighWatermark = t.Ltp
		}
	} else {
		if t.Ltp < p.HighWatermark {
			p.HighWatermark = t.Ltp
		}
	}

	p.UnrealizedPnL = p.unrealizedAt(t.Ltp)

	if p.targetHit(t.Ltp) {
		p.close(CloseReasonTarget, t.Ltp, t.Timestamp)
		result.Closed = true
		result.Reason = CloseReasonTarget
		return result
	}

	if p.stopHit(t.Ltp) {
		p.close(CloseReasonStopLoss, t.Ltp, t.Timestamp)
		result.Closed = true
		result.Reason = CloseReasonStopLoss
		result.FlipRequested = p.CycleIndex+1 < p.CycleTotal
		return result
	}

	if p.AddOnLevel < p.NoOfAddOns && p.addOnTriggered(t.Ltp) {
		result.AddOnTriggered = true
	}

	if moved := p.trailStop(); moved {
		result.StopMoved = true
	}

	return result
}

func (p *LadderPosition) targetHit(ltp float64) bool {
	if p.Direction == LadderLong {
		return ltp >= p.Target
	}

	return ltp <= p.Target
}

func (p *LadderPosition) stopHit(ltp float64) bool {
	if p.Direction == LadderLong {
		return ltp <= p.StopLoss
	}

	return ltp >= p.StopLoss
}

func (p *LadderPosition) addOnTriggered(ltp float64) bool {
	return p.Direction == LadderLong && ltp >= p.NextAddOnPrice() ||
		p.Direction == LadderShort && ltp <= p.NextAddOnPrice()
}

// NextAddOnPrice is the level at which the next pyramid leg fills.
func (p *LadderPosition) NextAddOnPrice() float64 {
	if p.Direction == LadderLong {
		return p.LastAddOnPrice * (1 + p.AddOnPct/100)
	}

	return p.LastAddOnPrice * (1 - p.AddOnPct/100)
}

// BookAddOn folds a filled pyramid leg into the position: the average entry
// becomes the quantity-weighted mean of all fills, and the stop and target
// are recomputed from the new average. The stop never loosens relative to
// its trailed value.
func (p *LadderPosition) BookAddOn(t *Tick) LadderEntry {
	entry := LadderEntry{Price: t.Ltp, Quantity: p.LegQuantity, Timestamp: t.Timestamp}
	p.Entries = append(p.Entries, entry)

	var notional float64
	var qty int64
	for _, e := range p.Entries {
		notional += e.Price * float64(e.Quantity)
		qty += e.Quantity
	}

	p.Quantity = qty
	p.AvgEntryPrice = notional / float64(qty)
	p.LastAddOnPrice = t.Ltp
	p.AddOnLevel++
	p.UnrealizedPnL = p.unrealizedAt(t.Ltp)

	if p.Direction == LadderLong {
		if candidate := p.AvgEntryPrice * (1 - p.InitialStopLossPct/100); candidate > p.StopLoss {
			p.StopLoss = candidate
		}
		p.Target = p.AvgEntryPrice * (1 + p.TargetPct/100)
	} else {
		if candidate := p.AvgEntryPrice * (1 + p.InitialStopLossPct/100); candidate < p.StopLoss {
			p.StopLoss = candidate
		}
		p.Target = p.AvgEntryPrice * (1 - p.TargetPct/100)
	}

	p.trailStop()

	return entry
}

// trailStop recomputes the trailing stop from the watermark. The stop only
// ever tightens: up for longs, down for shorts.
func (p *LadderPosition) trailStop() bool {
	if p.Direction == LadderLong {
		candidate := p.HighWatermark * (1 - p.TrailingStopLossPct/100)
		if candidate > p.StopLoss {
			p.StopLoss = candidate
			return true
		}

		return false
	}

	candidate := p.HighWatermark * (1 + p.TrailingStopLossPct/100)
	if candidate < p.StopLoss {
		p.StopLoss = candidate
		return true
	}

	return false
}

// CheckStockLimits marks the position to the tick and closes it when total
// P&L breaches the per-stock profit target or loss limit. Runs before the
// target/stop/add-on checks on every tick. Limits come from live settings,
// not the position's snapshot.
func (p *LadderPosition) CheckStockLimits(t *Tick, profitTarget, lossLimit float64) (bool, CloseReason) {
	if p.State != LadderStateActive {
		return false, ""
	}

	p.markToTick(t)
	p.UnrealizedPnL = p.unrealizedAt(t.Ltp)

	total := p.TotalPnL()

	if profitTarget > 0 && total >= profitTarget {
		p.close(CloseReasonStockProfitLimit, t.Ltp, t.Timestamp)
		return true, CloseReasonStockProfitLimit
	}

	if lossLimit > 0 && total <= -lossLimit {
		p.close(CloseReasonStockLossLimit, t.Ltp, t.Timestamp)
		return true, CloseReasonStockLossLimit
	}

	return false, ""
}

// Close exits the ladder at the given price for manual, EOD or global-exit
// reasons. Tick-driven exits go through ApplyTick instead.
func (p *LadderPosition) Close(reason CloseReason, price float64, at time.Time) error {
	if p.State != LadderStateActive {
		return fmt.Errorf("LadderPosition.Close: %s: %w", p.Symbol, LadderAlreadyClosedErr)
	}

	p.close(reason, price, at)

	return nil
}

func (p *LadderPosition) close(reason CloseReason, price float64, at time.Time) {
	p.Ltp = price
	p.RealizedPnL = p.unrealizedAt(price)
	p.UnrealizedPnL = 0
	p.State = reason.State()
	p.Reason = reason

	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.ClosedAt = at
}

func (p *LadderPosition) markToTick(t *Tick) {
	p.Ltp = t.Ltp
	p.ChangePct = t.ChangePct()
	p.Turnover = t.Turnover
}

func (p *LadderPosition) unrealizedAt(price float64) float64 {
	if p.Direction == LadderLong {
		return (price - p.AvgEntryPrice) * float64(p.Quantity)
	}

	return (p.AvgEntryPrice - price) * float64(p.Quantity)
}

func (p *LadderPosition) TotalPnL() float64 {
	return p.RealizedPnL + p.UnrealizedPnL
}

func (p *LadderPosition) IsOpen() bool {
	return p.State == LadderStateActive
}

// Copy returns a value copy with its own entries slice, safe to publish
// outside the owning task.
func (p *LadderPosition) Copy() LadderPosition {
	out := *p
	out.Entries = make([]LadderEntry, len(p.Entries))
	copy(out.Entries, p.Entries)

	return out
}

// TagLastEntry stamps the order id onto the most recent entry once the
// gateway has created the order for it.
func (p *LadderPosition) TagLastEntry(orderID uuid.UUID) {
	if len(p.Entries) == 0 {
		return
	}

	p.Entries[len(p.Entries)-1].OrderID = orderID
}
