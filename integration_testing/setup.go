package integrationtesting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/kmehta2012/ladder-trading/src/eventconsumers"
	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/ladderapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/metricsapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/moversapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/sessionapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/settingsapi"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
)

const testScripMasterCSV = `SEM_EXM_EXCH_ID,SEM_SMST_SECURITY_ID,SEM_INSTRUMENT_NAME,SEM_TRADING_SYMBOL,SEM_SERIES
NSE,2885,EQUITY,RELIANCE,EQ
NSE,11536,EQUITY,TCS,EQ
NSE,1594,EQUITY,INFY,EQ
`

// testEngine is the whole trading engine wired in-process: dry-run order
// execution, a stub broker for fund validation and the full REST surface
// behind an httptest server. Market data is driven by publishing ticks on
// the bus, exactly what the feed client does in production.
type testEngine struct {
	Engine      *eventmodels.EngineState
	Risk        *eventconsumers.RiskManager
	Runner      *eventconsumers.LadderRunnerWorker
	Movers      *eventconsumers.TopMoversWorker
	Governor    *eventconsumers.SessionGovernorWorker
	Monitor     *eventconsumers.PerformanceMonitorWorker
	Broadcaster *eventconsumers.SnapshotBroadcasterWorker
	Server      *httptest.Server
}

func startTestEngine(t *testing.T) *testEngine {
	t.Helper()

	eventpubsub.Init()

	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/fundlimit":
			json.NewEncoder(w).Encode(eventmodels.DhanFundLimitDTO{DhanClientID: "client-1", AvailableBalance: 500000})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(broker.Close)

	auth := eventservices.NewDhanAuth("client-1", "token-1")
	auth.BaseURL = broker.URL

	masterPath := filepath.Join(t.TempDir(), "scrip-master.csv")
	require.NoError(t, os.WriteFile(masterPath, []byte(testScripMasterCSV), 0644))

	master, err := eventservices.LoadScripMasterFromFile(masterPath)
	require.NoError(t, err)

	clock, err := eventmodels.NewMarketClock()
	require.NoError(t, err)

	settings := eventmodels.NewDefaultSettings()
	settings.DryRun = true
	settings.TradeCapital = 100000

	engine := eventmodels.NewEngineState(settings)

	wg := &sync.WaitGroup{}
	risk := eventconsumers.NewRiskManager()
	executor := eventconsumers.NewOrderExecutionWorker(wg, auth, engine)
	runner := eventconsumers.NewLadderRunnerWorker(wg, engine, risk, executor)
	movers := eventconsumers.NewTopMoversWorker(wg, engine, risk, runner, auth, master)
	governor := eventconsumers.NewSessionGovernorWorker(wg, clock, engine, risk, runner, movers, auth, nil)
	monitor := eventconsumers.NewPerformanceMonitorWorker(wg)
	broadcaster := eventconsumers.NewSnapshotBroadcasterWorker(wg, engine, risk, runner, movers, governor)

	ctx, cancel := context.WithCancel(context.Background())
	// The governor's clock loop is deliberately not started: tests drive
	// session state through the API instead of the wall clock.
	executor.Start(ctx)
	runner.Start(ctx)
	movers.Start(ctx)
	monitor.Start(ctx)
	broadcaster.Start(ctx)

	router := mux.NewRouter()
	sessionapi.SetupHandler(router.PathPrefix("/api/session").Subrouter(), governor, engine)
	settingsapi.SetupHandler(router.PathPrefix("/api/settings").Subrouter(), engine)
	ladderapi.SetupHandler(router.PathPrefix("/api/ladders").Subrouter(), runner, risk)
	moversapi.SetupHandler(router.PathPrefix("/api/movers").Subrouter(), movers)
	metricsapi.SetupHandler(router.PathPrefix("/api/metrics").Subrouter(), monitor, risk)
	router.HandleFunc("/ws", broadcaster.HandleWS)

	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		cancel()
		wg.Wait()
	})

	return &testEngine{
		Engine:      engine,
		Risk:        risk,
		Runner:      runner,
		Movers:      movers,
		Governor:    governor,
		Monitor:     monitor,
		Broadcaster: broadcaster,
		Server:      server,
	}
}

// publishTick mimics one normalized packet coming off the market feed.
func (e *testEngine) publishTick(symbol eventmodels.StockSymbol, ltp, prevClose float64) {
	tick := eventmodels.NewTick(symbol, ltp, time.Now().UTC())
	tick.PrevClose = prevClose
	tick.DayOpen = prevClose
	tick.Turnover = 5e8

	eventpubsub.Publish("testFeed", eventmodels.NewTickEventName, tick)
}

func (e *testEngine) post(t *testing.T, path string) *http.Response {
	t.Helper()

	res, err := http.Post(e.Server.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })

	return res
}

func (e *testEngine) getJSON(t *testing.T, path string, out interface{}) {
	t.Helper()

	res, err := http.Get(e.Server.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.NewDecoder(res.Body).Decode(out))
}
