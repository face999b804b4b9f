package eventconsumers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
)

const (
	snapshotInterval     = 500 * time.Millisecond
	snapshotWriteTimeout = 5 * time.Second
)

// SnapshotBroadcasterWorker assembles a consistent view of every ladder
// plus the global totals and streams it to dashboard websocket clients.
// The timer gives a bounded maximum interval; ladder lifecycle events
// trigger an immediate out-of-cycle push so transitions are never delayed.
type SnapshotBroadcasterWorker struct {
	wg       *sync.WaitGroup
	engine   *eventmodels.EngineState
	risk     *RiskManager
	runner   *LadderRunnerWorker
	movers   *TopMoversWorker
	governor *SessionGovernorWorker
	upgrader websocket.Upgrader

	mutex   sync.Mutex
	clients map[*websocket.Conn]bool

	notify chan struct{}
}

func NewSnapshotBroadcasterWorker(wg *sync.WaitGroup, engine *eventmodels.EngineState, risk *RiskManager, runner *LadderRunnerWorker, movers *TopMoversWorker, governor *SessionGovernorWorker) *SnapshotBroadcasterWorker {
	return &SnapshotBroadcasterWorker{
		wg:       wg,
		engine:   engine,
		risk:     risk,
		runner:   runner,
		movers:   movers,
		governor: governor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		notify:  make(chan struct{}, 1),
	}
}

// BuildSnapshot reads copies from the runner and risk manager; it never
// holds a lock a symbol task is waiting on.
func (w *SnapshotBroadcasterWorker) BuildSnapshot() *eventmodels.LadderSnapshot {
	risk := w.risk.Snapshot()

	return &eventmodels.LadderSnapshot{
		SessionID:      w.engine.SessionID(),
		Phase:          w.governor.Phase(),
		Running:        w.engine.IsRunning(),
		TradingHalted:  risk.TradingHalted,
		HaltReason:     risk.HaltReason,
		Positions:      w.runner.Positions(),
		RealizedPnL:    risk.RealizedPnL,
		UnrealizedPnL:  risk.UnrealizedPnL,
		ActiveCount:    risk.ActiveCount,
		CandidateCount: w.movers.CandidateCount(),
		FeedConnected:  w.engine.IsFeedConnected(),
		Settings:       w.engine.Settings(),
		GeneratedAt:    time.Now().UTC(),
	}
}

// HandleWS upgrades a dashboard connection and registers it for snapshot
// pushes. The read loop only exists to notice the client going away.
func (w *SnapshotBroadcasterWorker) HandleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Errorf("SnapshotBroadcasterWorker: upgrade failed: %v", err)
		return
	}

	w.mutex.Lock()
	w.clients[conn] = true
	count := len(w.clients)
	w.mutex.Unlock()

	log.Infof("dashboard client connected (%d total)", count)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				w.dropClient(conn)
				return
			}
		}
	}()

	// Send the current state right away instead of waiting for the timer.
	w.requestBroadcast()
}

func (w *SnapshotBroadcasterWorker) dropClient(conn *websocket.Conn) {
	w.mutex.Lock()
	if _, ok := w.clients[conn]; ok {
		delete(w.clients, conn)
		conn.Close()
	}
	w.mutex.Unlock()
}

func (w *SnapshotBroadcasterWorker) requestBroadcast() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *SnapshotBroadcasterWorker) broadcast() {
	w.mutex.Lock()
	if len(w.clients) == 0 {
		w.mutex.Unlock()
		return
	}

	conns := make([]*websocket.Conn, 0, len(w.clients))
	for conn := range w.clients {
		conns = append(conns, conn)
	}
	w.mutex.Unlock()

	snapshot := w.BuildSnapshot()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(snapshotWriteTimeout))
		if err := conn.WriteJSON(snapshot); err != nil {
			// A slow or dead client never stalls the broadcast loop.
			log.Debugf("SnapshotBroadcasterWorker: dropping client: %v", err)
			w.dropClient(conn)
		}
	}
}

func (w *SnapshotBroadcasterWorker) onPhaseChanged(event eventmodels.SessionPhaseChangedEvent) {
	if event.To != eventmodels.MarketPhaseClosed || !w.engine.IsRunning() {
		return
	}

	// End-of-day summary table.
	log.Infof("session complete\n%s", w.BuildSnapshot().String())
}

func (w *SnapshotBroadcasterWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	eventpubsub.Subscribe("SnapshotBroadcasterWorker", eventmodels.SessionPhaseChangedEventName, w.onPhaseChanged)

	events.On(LadderLifecycleEvent, func(payload ...interface{}) {
		w.requestBroadcast()
	})

	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping SnapshotBroadcasterWorker consumer")
				w.closeAll()
				return
			case <-ticker.C:
				w.broadcast()
			case <-w.notify:
				w.broadcast()
			}
		}
	}()
}

func (w *SnapshotBroadcasterWorker) closeAll() {
	w.mutex.Lock()
	for conn := range w.clients {
		conn.Close()
	}
	w.clients = make(map[*websocket.Conn]bool)
	w.mutex.Unlock()
}
