package eventconsumers

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

const rankInterval = 30 * time.Second

// TopMoversWorker ranks the qualified universe by percentage change on a
// fixed cadence and asks the ladder runner to open ladders in the top
// gainers and losers. Ranking runs off the latest tick per symbol rather
// than every tick, which bounds selection churn.
type TopMoversWorker struct {
	wg       *sync.WaitGroup
	engine   *eventmodels.EngineState
	risk     *RiskManager
	runner   *LadderRunnerWorker
	auth     *eventservices.DhanAuth
	master   *eventservices.ScripMaster
	interval time.Duration

	mutex          sync.Mutex
	candidates     map[eventmodels.StockSymbol]bool
	candidateCount int
	latest         map[eventmodels.StockSymbol]*eventmodels.Tick
	lastMovers     eventmodels.TopMovers
	rankingEnabled bool
}

func NewTopMoversWorker(wg *sync.WaitGroup, engine *eventmodels.EngineState, risk *RiskManager, runner *LadderRunnerWorker, auth *eventservices.DhanAuth, master *eventservices.ScripMaster) *TopMoversWorker {
	return &TopMoversWorker{
		wg:         wg,
		engine:     engine,
		risk:       risk,
		runner:     runner,
		auth:       auth,
		master:     master,
		interval:   rankInterval,
		candidates: make(map[eventmodels.StockSymbol]bool),
		latest:     make(map[eventmodels.StockSymbol]*eventmodels.Tick),
	}
}

// SetCandidates installs the session's qualified universe. Ticks for
// anything outside it are ignored.
func (w *TopMoversWorker) SetCandidates(candidates []eventmodels.Candidate) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.candidates = make(map[eventmodels.StockSymbol]bool, len(candidates))
	for _, candidate := range candidates {
		w.candidates[candidate.Symbol] = true
	}
	w.candidateCount = len(candidates)
}

func (w *TopMoversWorker) CandidateCount() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.candidateCount
}

func (w *TopMoversWorker) onTick(tick *eventmodels.Tick) {
	w.mutex.Lock()
	if w.candidates[tick.Symbol] {
		w.latest[tick.Symbol] = tick
	}
	w.mutex.Unlock()
}

func (w *TopMoversWorker) onPhaseChanged(event eventmodels.SessionPhaseChangedEvent) {
	w.mutex.Lock()
	w.rankingEnabled = event.To == eventmodels.MarketPhaseOpen
	w.mutex.Unlock()
}

// SetRankingEnabled overrides the phase gate, used by tests and dry runs
// outside market hours.
func (w *TopMoversWorker) SetRankingEnabled(enabled bool) {
	w.mutex.Lock()
	w.rankingEnabled = enabled
	w.mutex.Unlock()
}

func (w *TopMoversWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	eventpubsub.SubscribeSync("TopMoversWorker", eventmodels.NewTickEventName, w.onTick)
	eventpubsub.Subscribe("TopMoversWorker", eventmodels.SessionPhaseChangedEventName, w.onPhaseChanged)

	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping TopMoversWorker consumer")
				return
			case <-ticker.C:
				w.Evaluate()
			}
		}
	}()
}

// Evaluate runs one selection pass: rank the latest candidate ticks, then
// publish a start-ladder command for each pick within remaining capacity.
// The runner owns the actual entry and re-checks every guard, so a stale
// selection fails safe there.
func (w *TopMoversWorker) Evaluate() {
	if !w.engine.IsRunning() || w.risk.IsHalted() {
		return
	}

	w.mutex.Lock()
	enabled := w.rankingEnabled
	ticks := make([]*eventmodels.Tick, 0, len(w.latest))
	for _, tick := range w.latest {
		ticks = append(ticks, tick)
	}
	w.mutex.Unlock()

	if !enabled || len(ticks) == 0 {
		return
	}

	settings := w.engine.Settings()

	movers := eventmodels.RankMovers(ticks, settings.MinTurnoverRupees())

	w.mutex.Lock()
	w.lastMovers = movers
	w.mutex.Unlock()

	capacity := settings.MaxLadderStocks - w.risk.ActiveCount()

	selections := eventmodels.SelectLadderCandidates(ticks, settings, capacity, w.runner.IsExcluded)
	if len(selections) == 0 {
		return
	}

	log.Infof("TopMoversWorker: selected %d new ladders (capacity %d)", len(selections), capacity)

	for _, selection := range selections {
		securityID, err := w.master.SecurityIDForSymbol(selection.Symbol)
		if err != nil {
			log.Warnf("TopMoversWorker: skipping %s: %v", selection.Symbol, err)
			continue
		}

		eventpubsub.Publish("TopMoversWorker", eventmodels.StartLadderEventName, eventmodels.StartLadderEvent{
			Symbol:     selection.Symbol,
			SecurityID: securityID,
			Direction:  selection.Direction,
			Tick:       selection.Tick,
			CycleIndex: 0,
		})
	}
}

// Movers returns the latest live ranking. With no live ticks yet (engine
// started before the feed, or market closed) it pulls a one-shot REST quote
// snapshot for the candidate set so the API serves the same ranked shape
// either way.
func (w *TopMoversWorker) Movers(ctx context.Context) (eventmodels.TopMovers, error) {
	w.mutex.Lock()
	last := w.lastMovers
	haveLive := len(w.latest) > 0
	candidates := make([]eventmodels.StockSymbol, 0, len(w.candidates))
	for symbol := range w.candidates {
		candidates = append(candidates, symbol)
	}
	w.mutex.Unlock()

	if haveLive || len(last.Gainers)+len(last.Losers) > 0 {
		return last, nil
	}

	securityIDs := make([]string, 0, len(candidates))
	for _, symbol := range candidates {
		id, err := w.master.SecurityIDForSymbol(symbol)
		if err != nil {
			continue
		}
		securityIDs = append(securityIDs, id)
	}

	if len(securityIDs) == 0 {
		return last, nil
	}

	quotes, err := eventservices.FetchQuoteSnapshot(w.auth, securityIDs)
	if err != nil {
		return eventmodels.TopMovers{}, err
	}

	settings := w.engine.Settings()

	ticks := eventservices.QuoteSnapshotTicks(w.master, quotes)
	movers := eventmodels.RankMovers(ticks, settings.MinTurnoverRupees())

	w.mutex.Lock()
	w.lastMovers = movers
	w.mutex.Unlock()

	return movers, nil
}
