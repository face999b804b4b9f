package eventconsumers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
)

// LadderLifecycleEvent fires on every open, add-on, close and flip so the
// snapshot broadcaster can push out-of-cycle updates. Payload is
// (kind string, position eventmodels.LadderPosition).
const LadderLifecycleEvent events.EventName = "ladder.lifecycle"

const symbolTickBuffer = 64

// symbolTask is the mailbox for one symbol's goroutine. Control signals
// (square-off, manual close) take priority over queued ticks.
type symbolTask struct {
	symbol  eventmodels.StockSymbol
	ticks   chan *eventmodels.Tick
	control chan eventmodels.CloseReason
}

// LadderRunnerWorker owns every ladder state machine. Each symbol with an
// open ladder gets its own goroutine consuming that symbol's ticks strictly
// in arrival order; different symbols never block each other. The only
// cross-task state is the risk manager and the runner's own registry, both
// mutex-guarded.
type LadderRunnerWorker struct {
	wg       *sync.WaitGroup
	engine   *eventmodels.EngineState
	risk     *RiskManager
	executor *OrderExecutionWorker

	mutex          sync.RWMutex
	tasks          map[eventmodels.StockSymbol]*symbolTask
	positions      map[eventmodels.StockSymbol]*eventmodels.LadderPosition
	closed         []eventmodels.LadderPosition
	started        map[eventmodels.StockSymbol]bool
	retired        map[eventmodels.StockSymbol]bool
	pending        map[eventmodels.StockSymbol]bool
	entriesEnabled bool

	ctx context.Context
}

func NewLadderRunnerWorker(wg *sync.WaitGroup, engine *eventmodels.EngineState, risk *RiskManager, executor *OrderExecutionWorker) *LadderRunnerWorker {
	return &LadderRunnerWorker{
		wg:        wg,
		engine:    engine,
		risk:      risk,
		executor:  executor,
		tasks:     make(map[eventmodels.StockSymbol]*symbolTask),
		positions: make(map[eventmodels.StockSymbol]*eventmodels.LadderPosition),
		started:   make(map[eventmodels.StockSymbol]bool),
		retired:   make(map[eventmodels.StockSymbol]bool),
		pending:   make(map[eventmodels.StockSymbol]bool),
	}
}

func (w *LadderRunnerWorker) Start(ctx context.Context) {
	w.ctx = ctx

	eventpubsub.SubscribeSync("LadderRunnerWorker", eventmodels.NewTickEventName, w.onTick)
	eventpubsub.Subscribe("LadderRunnerWorker", eventmodels.StartLadderEventName, w.onStartLadder)
	eventpubsub.Subscribe("LadderRunnerWorker", eventmodels.SquareOffAllEventName, w.onSquareOffAll)
	eventpubsub.Subscribe("LadderRunnerWorker", eventmodels.SessionPhaseChangedEventName, w.onPhaseChanged)
}

// onTick routes a tick to the symbol's task. Runs on the feed goroutine, so
// it must never block: a full mailbox drops the tick.
func (w *LadderRunnerWorker) onTick(tick *eventmodels.Tick) {
	w.mutex.RLock()
	task, ok := w.tasks[tick.Symbol]
	w.mutex.RUnlock()

	if !ok {
		return
	}

	select {
	case task.ticks <- tick:
	default:
		log.Debugf("LadderRunnerWorker: dropping tick for %s, mailbox full", tick.Symbol)
	}
}

func (w *LadderRunnerWorker) onPhaseChanged(event eventmodels.SessionPhaseChangedEvent) {
	w.mutex.Lock()
	w.entriesEnabled = event.To == eventmodels.MarketPhaseOpen
	w.mutex.Unlock()
}

// SetEntriesEnabled overrides the phase gate, used by tests and dry runs
// outside market hours.
func (w *LadderRunnerWorker) SetEntriesEnabled(enabled bool) {
	w.mutex.Lock()
	w.entriesEnabled = enabled
	w.mutex.Unlock()
}

func (w *LadderRunnerWorker) onStartLadder(event eventmodels.StartLadderEvent) {
	if err := w.StartLadder(event); err != nil {
		log.Warnf("LadderRunnerWorker: not starting %s: %v", event.Symbol, err)
	}
}

// StartLadder opens a ladder and spawns the symbol task. The symbol is
// reserved under the mutex before the blocking entry order goes out, so a
// concurrent start for the same symbol is a duplicate even while the order
// is still in flight. A rejected or failed entry releases the reservation
// and leaves no trace.
func (w *LadderRunnerWorker) StartLadder(event eventmodels.StartLadderEvent) error {
	if !w.engine.IsRunning() {
		return eventmodels.EngineNotRunningErr
	}

	w.mutex.Lock()
	if !w.entriesEnabled {
		w.mutex.Unlock()
		return eventmodels.MarketClosedErr
	}

	if w.retired[event.Symbol] {
		w.mutex.Unlock()
		return eventmodels.SymbolRetiredErr
	}

	if _, open := w.tasks[event.Symbol]; open || w.pending[event.Symbol] {
		w.mutex.Unlock()
		return eventmodels.DuplicateLadderErr
	}
	w.pending[event.Symbol] = true
	w.mutex.Unlock()

	settings := w.engine.Settings()

	if !w.risk.TryReserveSlot(settings.MaxLadderStocks) {
		w.clearPending(event.Symbol)

		if w.risk.IsHalted() {
			return eventmodels.TradingHaltedErr
		}

		return eventmodels.MaxLaddersReachedErr
	}

	position, err := w.openPosition(event, settings)
	if err != nil {
		w.risk.ReleaseSlot(event.Symbol)
		w.clearPending(event.Symbol)
		return err
	}

	task := &symbolTask{
		symbol:  event.Symbol,
		ticks:   make(chan *eventmodels.Tick, symbolTickBuffer),
		control: make(chan eventmodels.CloseReason, 4),
	}

	w.mutex.Lock()
	w.tasks[event.Symbol] = task
	w.positions[event.Symbol] = position
	w.started[event.Symbol] = true
	delete(w.pending, event.Symbol)
	w.mutex.Unlock()

	w.risk.ApplyUpdate(event.Symbol, 0, 0)
	w.emitLifecycle("opened", position)

	log.WithFields(log.Fields{
		"symbol": event.Symbol,
		"dir":    event.Direction,
		"qty":    position.Quantity,
		"ltp":    position.AvgEntryPrice,
		"cycle":  position.CycleIndex,
	}).Info("ladder opened")

	w.wg.Add(1)
	go w.runSymbolTask(task)

	return nil
}

// openPosition builds the position and places its entry order. Any failure
// returns an error with no position created.
func (w *LadderRunnerWorker) openPosition(event eventmodels.StartLadderEvent, settings eventmodels.Settings) (*eventmodels.LadderPosition, error) {
	position, err := eventmodels.NewLadderPosition(event.Symbol, event.SecurityID, event.Direction, event.Tick, settings, event.CycleIndex)
	if err != nil {
		return nil, fmt.Errorf("LadderRunnerWorker.openPosition: %w", err)
	}

	purpose := eventmodels.OrderPurposeEntry
	if event.CycleIndex > 0 {
		purpose = eventmodels.OrderPurposeFlipEntry
	}

	order, err := eventmodels.NewOrder(event.Symbol, event.SecurityID, eventmodels.EntrySide(event.Direction), position.LegQuantity, purpose, event.Tick.Ltp)
	if err != nil {
		return nil, fmt.Errorf("LadderRunnerWorker.openPosition: %w", err)
	}

	filled, err := w.executor.Submit(w.ctx, order)
	if err != nil {
		return nil, fmt.Errorf("LadderRunnerWorker.openPosition: entry order failed: %w", err)
	}

	position.TagLastEntry(filled.ClientOrderID)

	return position, nil
}

// runSymbolTask is the per-symbol event loop. Control signals are checked
// before draining the tick mailbox so a square-off is never stuck behind
// queued ticks.
func (w *LadderRunnerWorker) runSymbolTask(task *symbolTask) {
	defer w.wg.Done()

	for {
		select {
		case reason := <-task.control:
			w.forceClose(task, reason)
			return
		default:
		}

		select {
		case <-w.ctx.Done():
			w.unregisterTask(task.symbol)
			return
		case reason := <-task.control:
			w.forceClose(task, reason)
			return
		case tick := <-task.ticks:
			if done := w.handleTick(task, tick); done {
				return
			}
		}
	}
}

// handleTick runs one tick through the symbol's ladder. Returns true when
// the ladder closed and the task should exit.
func (w *LadderRunnerWorker) handleTick(task *symbolTask, tick *eventmodels.Tick) bool {
	settings := w.engine.Settings()

	w.mutex.Lock()
	position, ok := w.positions[task.symbol]
	if !ok || !position.IsOpen() {
		w.mutex.Unlock()
		return true
	}

	if closed, reason := position.CheckStockLimits(tick, settings.ProfitTargetPerStock, settings.LossLimitPerStock); closed {
		w.mutex.Unlock()
		w.finalizeClose(task.symbol, position, reason)
		return true
	}

	result := position.ApplyTick(tick)
	w.mutex.Unlock()

	if result.Closed {
		w.finalizeClose(task.symbol, position, result.Reason)

		if result.FlipRequested {
			w.tryFlip(task.symbol, position, tick)
		}

		return true
	}

	if result.AddOnTriggered {
		w.placeAddOn(task.symbol, position, tick)
	}

	w.risk.ApplyUpdate(task.symbol, 0, position.UnrealizedPnL)
	w.risk.CheckGlobalExits(settings)

	return false
}

// placeAddOn submits the pyramid leg and books it on fill. A failed order
// leaves the position exactly as it was; the trigger re-fires on the next
// qualifying tick.
func (w *LadderRunnerWorker) placeAddOn(symbol eventmodels.StockSymbol, position *eventmodels.LadderPosition, tick *eventmodels.Tick) {
	order, err := eventmodels.NewOrder(symbol, position.SecurityID, eventmodels.EntrySide(position.Direction), position.LegQuantity, eventmodels.OrderPurposeAddOn, tick.Ltp)
	if err != nil {
		log.Errorf("LadderRunnerWorker.placeAddOn: %v", err)
		return
	}

	filled, err := w.executor.Submit(w.ctx, order)
	if err != nil {
		log.Errorf("LadderRunnerWorker.placeAddOn: %s add-on order failed: %v", symbol, err)
		return
	}

	w.mutex.Lock()
	position.BookAddOn(tick)
	position.TagLastEntry(filled.ClientOrderID)
	booked := position.Copy()
	w.mutex.Unlock()

	log.WithFields(log.Fields{
		"symbol": symbol,
		"level":  booked.AddOnLevel,
		"qty":    booked.Quantity,
		"avg":    booked.AvgEntryPrice,
		"sl":     booked.StopLoss,
	}).Info("ladder add-on filled")

	w.emitLifecycle("add_on", position)
}

// forceClose handles manual, EOD and square-off closes arriving on the
// control channel. Closing an already-closed ladder is a no-op.
func (w *LadderRunnerWorker) forceClose(task *symbolTask, reason eventmodels.CloseReason) {
	w.mutex.Lock()
	position, ok := w.positions[task.symbol]
	if !ok || !position.IsOpen() {
		w.mutex.Unlock()
		w.unregisterTask(task.symbol)
		return
	}

	if err := position.Close(reason, position.Ltp, time.Now().UTC()); err != nil {
		w.mutex.Unlock()
		w.unregisterTask(task.symbol)
		return
	}
	w.mutex.Unlock()

	w.finalizeClose(task.symbol, position, reason)
}

// finalizeClose flattens the broker position, books realized P&L and
// retires the task registry entry. The position is already in a closed
// state when this runs.
func (w *LadderRunnerWorker) finalizeClose(symbol eventmodels.StockSymbol, position *eventmodels.LadderPosition, reason eventmodels.CloseReason) {
	// Close request with no open quantity is a no-op success, which makes
	// repeated square-off signals safe.
	if position.Quantity > 0 {
		order, err := eventmodels.NewOrder(symbol, position.SecurityID, eventmodels.ExitSide(position.Direction), position.Quantity, eventmodels.OrderPurposeExit, position.Ltp)
		if err == nil {
			if _, submitErr := w.executor.Submit(w.ctx, order); submitErr != nil {
				// A stuck exit leaves live exposure; flag loudly for the
				// operator rather than dropping it silently.
				log.WithFields(log.Fields{
					"symbol": symbol,
					"qty":    position.Quantity,
					"reason": reason,
				}).Errorf("ladder exit order failed, position needs manual attention: %v", submitErr)
			}
		}
	}

	w.risk.ApplyUpdate(symbol, position.RealizedPnL, 0)
	w.risk.ReleaseSlot(symbol)

	w.mutex.Lock()
	closed := position.Copy()
	closed.Quantity = 0
	w.closed = append(w.closed, closed)
	delete(w.positions, symbol)
	if reason.RetiresSymbol() {
		w.retired[symbol] = true
	}
	w.mutex.Unlock()

	w.unregisterTask(symbol)

	log.WithFields(log.Fields{
		"symbol":   symbol,
		"reason":   reason,
		"realized": position.RealizedPnL,
	}).Info("ladder closed")

	w.emitLifecycle("closed", position)
	w.risk.CheckGlobalExits(w.engine.Settings())
}

// tryFlip opens the opposite-direction ladder right after a stop-loss exit.
// A flip is a fresh entry: same guards, new slot reservation, next cycle.
func (w *LadderRunnerWorker) tryFlip(symbol eventmodels.StockSymbol, closed *eventmodels.LadderPosition, tick *eventmodels.Tick) {
	if w.risk.IsHalted() {
		return
	}

	event := eventmodels.StartLadderEvent{
		Symbol:     symbol,
		SecurityID: closed.SecurityID,
		Direction:  closed.Direction.Opposite(),
		Tick:       tick,
		CycleIndex: closed.CycleIndex + 1,
	}

	if err := w.StartLadder(event); err != nil {
		log.Warnf("LadderRunnerWorker: flip for %s not started: %v", symbol, err)
		return
	}

	log.Infof("ladder flipped: %s %s -> %s, cycle %d", symbol, closed.Direction, event.Direction, event.CycleIndex)

	w.mutex.RLock()
	flipped, ok := w.positions[symbol]
	w.mutex.RUnlock()

	if ok {
		w.emitLifecycle("flipped", flipped)
	}
}

func (w *LadderRunnerWorker) clearPending(symbol eventmodels.StockSymbol) {
	w.mutex.Lock()
	delete(w.pending, symbol)
	w.mutex.Unlock()
}

func (w *LadderRunnerWorker) unregisterTask(symbol eventmodels.StockSymbol) {
	w.mutex.Lock()
	delete(w.tasks, symbol)
	w.mutex.Unlock()
}

func (w *LadderRunnerWorker) emitLifecycle(kind string, position *eventmodels.LadderPosition) {
	w.mutex.RLock()
	snapshot := position.Copy()
	w.mutex.RUnlock()

	events.Emit(LadderLifecycleEvent, kind, snapshot)
	eventpubsub.Publish("LadderRunnerWorker", eventmodels.LadderUpdateEventName, eventmodels.LadderUpdateEvent{Kind: kind, Position: snapshot})
}

func (w *LadderRunnerWorker) onSquareOffAll(event eventmodels.SquareOffAllEvent) {
	w.mutex.RLock()
	tasks := make([]*symbolTask, 0, len(w.tasks))
	for _, task := range w.tasks {
		tasks = append(tasks, task)
	}
	w.mutex.RUnlock()

	log.Warnf("LadderRunnerWorker: square off all, reason=%s, openLadders=%d", event.Reason, len(tasks))

	for _, task := range tasks {
		select {
		case task.control <- event.Reason:
		default:
		}
	}
}

// RequestClose asks one symbol's task to close at the next opportunity,
// ahead of any queued ticks.
func (w *LadderRunnerWorker) RequestClose(symbol eventmodels.StockSymbol, reason eventmodels.CloseReason) error {
	w.mutex.RLock()
	task, ok := w.tasks[symbol]
	w.mutex.RUnlock()

	if !ok {
		return fmt.Errorf("LadderRunnerWorker.RequestClose: %s: %w", symbol, eventmodels.LadderNotFoundErr)
	}

	select {
	case task.control <- reason:
		return nil
	default:
		return fmt.Errorf("LadderRunnerWorker.RequestClose: %s: control queue full", symbol)
	}
}

// HasOpenLadder reports whether the symbol currently has an active ladder
// or a task still winding down.
func (w *LadderRunnerWorker) HasOpenLadder(symbol eventmodels.StockSymbol) bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	_, ok := w.tasks[symbol]
	return ok
}

// IsExcluded is the ranker's eligibility check: a symbol is out when it
// already ran this session, holds an open or in-flight ladder or was
// retired.
func (w *LadderRunnerWorker) IsExcluded(symbol eventmodels.StockSymbol) bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	if _, ok := w.tasks[symbol]; ok {
		return true
	}

	return w.pending[symbol] || w.started[symbol] || w.retired[symbol]
}

func (w *LadderRunnerWorker) OpenCount() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return len(w.tasks)
}

// Positions returns copies of every position this session, open first, then
// closed, each group sorted by symbol.
func (w *LadderRunnerWorker) Positions() []eventmodels.LadderPosition {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	open := make([]eventmodels.LadderPosition, 0, len(w.positions))
	for _, position := range w.positions {
		open = append(open, position.Copy())
	}

	sort.Slice(open, func(i, j int) bool {
		return open[i].Symbol < open[j].Symbol
	})

	out := append(open, w.closed...)

	return out
}

// ResetSession clears the per-session registries for a fresh trading day.
func (w *LadderRunnerWorker) ResetSession() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.closed = nil
	w.started = make(map[eventmodels.StockSymbol]bool)
	w.retired = make(map[eventmodels.StockSymbol]bool)
	w.pending = make(map[eventmodels.StockSymbol]bool)
}
