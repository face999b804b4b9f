package metricsapi

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventconsumers"
	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventproducers"
)

var (
	monitor *eventconsumers.PerformanceMonitorWorker
	risk    *eventconsumers.RiskManager
)

type metricsResponse struct {
	Latency       eventmodels.PerformanceStats `json:"latency"`
	RealizedPnL   float64                      `json:"realizedPnl"`
	UnrealizedPnL float64                      `json:"unrealizedPnl"`
	TotalPnL      float64                      `json:"totalPnl"`
	ActiveLadders int                          `json:"activeLadders"`
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	state := risk.Snapshot()

	response := metricsResponse{
		Latency:       monitor.Stats(),
		RealizedPnL:   state.RealizedPnL,
		UnrealizedPnL: state.UnrealizedPnL,
		TotalPnL:      state.TotalPnL(),
		ActiveLadders: state.ActiveCount,
	}

	if err := eventproducers.SetResponse(&response, w); err != nil {
		log.Errorf("handleMetrics: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, monitorWorker *eventconsumers.PerformanceMonitorWorker, riskManager *eventconsumers.RiskManager) {
	monitor = monitorWorker
	risk = riskManager

	router.HandleFunc("", handleMetrics)
}
