package eventconsumers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

// PrepareSessionFunc runs the premarket bootstrap: universe filter (or
// cache load) and feed subscription. Wired in from main.
type PrepareSessionFunc func(ctx context.Context) error

// SessionGovernorWorker watches the exchange clock, publishes phase
// transitions and forces the end-of-day square-off. It also owns the
// operator start/stop controls.
type SessionGovernorWorker struct {
	wg      *sync.WaitGroup
	clock   *eventmodels.MarketClock
	engine  *eventmodels.EngineState
	risk    *RiskManager
	runner  *LadderRunnerWorker
	movers  *TopMoversWorker
	auth    *eventservices.DhanAuth
	prepare PrepareSessionFunc

	mutex            sync.Mutex
	phase            eventmodels.MarketPhase
	lastSquareOffDay string
	prepared         bool
}

func NewSessionGovernorWorker(wg *sync.WaitGroup, clock *eventmodels.MarketClock, engine *eventmodels.EngineState, risk *RiskManager, runner *LadderRunnerWorker, movers *TopMoversWorker, auth *eventservices.DhanAuth, prepare PrepareSessionFunc) *SessionGovernorWorker {
	return &SessionGovernorWorker{
		wg:      wg,
		clock:   clock,
		engine:  engine,
		risk:    risk,
		runner:  runner,
		movers:  movers,
		auth:    auth,
		prepare: prepare,
		phase:   eventmodels.MarketPhaseClosed,
	}
}

func (w *SessionGovernorWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping SessionGovernorWorker consumer")
				return
			case <-ticker.C:
				w.tick(ctx, time.Now())
			}
		}
	}()
}

func (w *SessionGovernorWorker) tick(ctx context.Context, now time.Time) {
	phase := w.clock.PhaseAt(now)

	w.mutex.Lock()
	previous := w.phase
	if phase == previous {
		w.mutex.Unlock()
		return
	}
	w.phase = phase
	w.mutex.Unlock()

	log.Infof("session phase: %s -> %s", previous, phase)

	eventpubsub.Publish("SessionGovernorWorker", eventmodels.SessionPhaseChangedEventName, eventmodels.SessionPhaseChangedEvent{
		From: previous,
		To:   phase,
		At:   now,
	})

	switch phase {
	case eventmodels.MarketPhasePreMarket:
		w.runPrepare(ctx)
	case eventmodels.MarketPhaseSquareOff:
		w.squareOffOncePerDay(now)
	}
}

func (w *SessionGovernorWorker) runPrepare(ctx context.Context) {
	if w.prepare == nil || !w.engine.IsRunning() {
		return
	}

	w.mutex.Lock()
	if w.prepared {
		w.mutex.Unlock()
		return
	}
	w.prepared = true
	w.mutex.Unlock()

	go func() {
		if err := w.prepare(ctx); err != nil {
			log.Errorf("SessionGovernorWorker: session prepare failed: %v", err)

			w.mutex.Lock()
			w.prepared = false
			w.mutex.Unlock()
		}
	}()
}

// squareOffOncePerDay fires the EOD unwind exactly once per trading date.
// Active ladders keep processing their stop/target logic right up to this
// point; the broadcast closes all of them unconditionally.
func (w *SessionGovernorWorker) squareOffOncePerDay(now time.Time) {
	if !w.engine.IsRunning() {
		return
	}

	day := w.clock.TradingDate(now)

	w.mutex.Lock()
	if w.lastSquareOffDay == day {
		w.mutex.Unlock()
		return
	}
	w.lastSquareOffDay = day
	w.mutex.Unlock()

	w.risk.TriggerSquareOffAll(eventmodels.CloseReasonEOD)
}

func (w *SessionGovernorWorker) Phase() eventmodels.MarketPhase {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.phase
}

// StartSession validates the broker connection, resets per-session state
// and flips the engine to running. Idempotent: starting a running engine
// just returns the current status.
func (w *SessionGovernorWorker) StartSession(ctx context.Context) (eventmodels.SessionStatus, error) {
	if w.engine.IsRunning() {
		return w.Status(), nil
	}

	funds, err := eventservices.FetchFundLimit(w.auth)
	if err != nil {
		w.engine.SetBrokerReady(false)
		return w.Status(), fmt.Errorf("SessionGovernorWorker.StartSession: broker validation failed: %w", err)
	}

	w.engine.SetBrokerReady(true)
	log.Infof("broker validated, available balance %.2f", funds.AvailableBalance)

	sessionID := uuid.New().String()
	now := time.Now().UTC()

	if !w.engine.MarkStarted(sessionID, now) {
		return w.Status(), nil
	}

	w.risk.ResetHalt()
	w.runner.ResetSession()

	eventpubsub.Publish("SessionGovernorWorker", eventmodels.EngineStateChangedEventName, eventmodels.EngineStateChangedEvent{
		Running:   true,
		SessionID: sessionID,
		At:        now,
	})

	// Starting mid-session still needs the premarket bootstrap.
	phase := w.Phase()
	if phase == eventmodels.MarketPhasePreMarket || phase == eventmodels.MarketPhaseOpen {
		w.runPrepare(ctx)
	}

	log.Infof("session started, id=%s", sessionID)

	return w.Status(), nil
}

// StopSession halts new entries. Open ladders stay risk-managed; the
// operator squares off explicitly if wanted.
func (w *SessionGovernorWorker) StopSession() (eventmodels.SessionStatus, error) {
	if !w.engine.MarkStopped() {
		return w.Status(), nil
	}

	w.risk.Halt("stopped by operator")

	eventpubsub.Publish("SessionGovernorWorker", eventmodels.EngineStateChangedEventName, eventmodels.EngineStateChangedEvent{
		Running:   false,
		SessionID: w.engine.SessionID(),
		At:        time.Now().UTC(),
	})

	log.Info("session stopped, entries disabled")

	return w.Status(), nil
}

func (w *SessionGovernorWorker) Status() eventmodels.SessionStatus {
	risk := w.risk.Snapshot()

	status := eventmodels.SessionStatus{
		Running:        w.engine.IsRunning(),
		SessionID:      w.engine.SessionID(),
		Phase:          w.Phase(),
		TradingHalted:  risk.TradingHalted,
		HaltReason:     risk.HaltReason,
		ActiveLadders:  w.runner.OpenCount(),
		CandidateCount: w.movers.CandidateCount(),
		FeedConnected:  w.engine.IsFeedConnected(),
		DryRun:         w.engine.Settings().DryRun,
	}

	if status.Running {
		status.StartedAt = w.engine.StartedAt()
		status.UptimeSeconds = time.Since(w.engine.StartedAt()).Seconds()
	}

	return status
}
