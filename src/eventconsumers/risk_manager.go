package eventconsumers

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
)

// RiskManager is the single serialization point for everything shared
// across symbol tasks: global P&L, the active-ladder slot count and the
// trading-halted flag. Symbol tasks report per-symbol deltas; nothing else
// writes the global state.
type RiskManager struct {
	mutex          sync.Mutex
	state          *eventmodels.GlobalRiskState
	globalExitOnce sync.Once
}

func NewRiskManager() *RiskManager {
	return &RiskManager{
		state: eventmodels.NewGlobalRiskState(),
	}
}

// ApplyUpdate folds one symbol's latest P&L into the global state.
// realizedDelta is added to the session total; unrealized replaces the
// symbol's previous unrealized contribution.
func (r *RiskManager) ApplyUpdate(symbol eventmodels.StockSymbol, realizedDelta, unrealized float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	pnl := r.state.PerSymbol[symbol]

	r.state.RealizedPnL += realizedDelta
	r.state.UnrealizedPnL += unrealized - pnl.Unrealized

	pnl.Realized += realizedDelta
	pnl.Unrealized = unrealized
	r.state.PerSymbol[symbol] = pnl
}

// TryReserveSlot claims one of the maxLadders active slots. Reservations are
// refused while trading is halted, which is what keeps new ladders out
// during a global unwind.
func (r *RiskManager) TryReserveSlot(maxLadders int) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state.TradingHalted {
		return false
	}

	if r.state.ActiveCount >= maxLadders {
		return false
	}

	r.state.ActiveCount++

	return true
}

func (r *RiskManager) ReleaseSlot(symbol eventmodels.StockSymbol) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state.ActiveCount > 0 {
		r.state.ActiveCount--
	} else {
		log.Errorf("RiskManager.ReleaseSlot: %s released with no active slots", symbol)
	}
}

func (r *RiskManager) ActiveCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.state.ActiveCount
}

// TriggerSquareOffAll halts new reservations and broadcasts the priority
// square-off signal. Safe to call more than once; already-closed ladders
// treat the repeat as a no-op.
func (r *RiskManager) TriggerSquareOffAll(reason eventmodels.CloseReason) {
	r.mutex.Lock()
	r.state.TradingHalted = true
	r.state.HaltReason = string(reason)
	r.mutex.Unlock()

	log.Warnf("RiskManager: square off all, reason=%s", reason)

	eventpubsub.Publish("RiskManager", eventmodels.SquareOffAllEventName, eventmodels.SquareOffAllEvent{
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	})
}

// Halt blocks new entries without squaring off existing ladders. Used when
// the operator stops the strategy but leaves open positions risk-managed.
func (r *RiskManager) Halt(reason string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.state.TradingHalted = true
	r.state.HaltReason = reason
}

// ResetHalt re-enables slot reservations, e.g. at the start of a fresh
// session after the previous day's unwind.
func (r *RiskManager) ResetHalt() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.state.TradingHalted = false
	r.state.HaltReason = ""
}

func (r *RiskManager) IsHalted() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.state.TradingHalted
}

// CheckGlobalExits fires the session-wide profit/loss exits when enabled. A
// zero level disables that side. The square-off triggers exactly once per
// process lifetime; the halted flag keeps the engine flat afterwards.
func (r *RiskManager) CheckGlobalExits(settings eventmodels.Settings) {
	r.mutex.Lock()
	total := r.state.TotalPnL()
	halted := r.state.TradingHalted
	r.mutex.Unlock()

	if halted {
		return
	}

	profitHit := settings.GlobalProfitExit > 0 && total >= settings.GlobalProfitExit
	lossHit := settings.GlobalLossExit > 0 && total <= -settings.GlobalLossExit

	if !profitHit && !lossHit {
		return
	}

	r.globalExitOnce.Do(func() {
		log.Warnf("RiskManager: global exit hit, totalPnl=%.2f", total)
		r.TriggerSquareOffAll(eventmodels.CloseReasonGlobalExit)
	})
}

// Snapshot returns a deep copy safe to serve to the API and the snapshot
// broadcaster.
func (r *RiskManager) Snapshot() eventmodels.GlobalRiskState {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.state.Copy()
}
