package sessionapi

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventconsumers"
	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventproducers"
)

var (
	governor *eventconsumers.SessionGovernorWorker
	engine   *eventmodels.EngineState
)

func handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(404)
		return
	}

	status, err := governor.StartSession(r.Context())
	if err != nil {
		if respErr := eventproducers.SetErrorResponse("startSession", 502, err, w); respErr != nil {
			log.Errorf("handleStart: failed to set error response: %v", respErr)
		}
		return
	}

	if err := eventproducers.SetResponse(&status, w); err != nil {
		log.Errorf("handleStart: failed to set response: %v", err)
	}
}

func handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(404)
		return
	}

	status, err := governor.StopSession()
	if err != nil {
		if respErr := eventproducers.SetErrorResponse("stopSession", 500, err, w); respErr != nil {
			log.Errorf("handleStop: failed to set error response: %v", respErr)
		}
		return
	}

	if err := eventproducers.SetResponse(&status, w); err != nil {
		log.Errorf("handleStop: failed to set response: %v", err)
	}
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	status := governor.Status()

	if err := eventproducers.SetResponse(&status, w); err != nil {
		log.Errorf("handleStatus: failed to set response: %v", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	health := eventmodels.HealthStatus{
		Ok:            true,
		FeedConnected: engine.IsFeedConnected(),
		EngineRunning: engine.IsRunning(),
		BrokerReady:   engine.IsBrokerReady(),
	}

	if err := eventproducers.SetResponse(&health, w); err != nil {
		log.Errorf("handleHealth: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, governorWorker *eventconsumers.SessionGovernorWorker, engineState *eventmodels.EngineState) {
	governor = governorWorker
	engine = engineState

	router.HandleFunc("/start", handleStart)
	router.HandleFunc("/stop", handleStop)
	router.HandleFunc("/status", handleStatus)
	router.HandleFunc("/health", handleHealth)
}
