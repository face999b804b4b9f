package ladderapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventconsumers"
	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventproducers"
)

var (
	runner *eventconsumers.LadderRunnerWorker
	risk   *eventconsumers.RiskManager
)

type laddersFilter struct {
	State eventmodels.LadderState `schema:"state"`
}

type laddersResponse struct {
	Ladders []eventmodels.LadderPosition `json:"ladders"`
	Count   int                          `json:"count"`
}

type squareOffResponse struct {
	Requested bool                    `json:"requested"`
	Reason    eventmodels.CloseReason `json:"reason"`
}

func handleLadders(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	var filter laddersFilter
	if err := schema.NewDecoder().Decode(&filter, r.URL.Query()); err != nil {
		if respErr := eventproducers.SetErrorResponse("validation", 400, err, w); respErr != nil {
			log.Errorf("handleLadders: failed to set error response: %v", respErr)
		}
		return
	}

	positions := runner.Positions()

	if filter.State != "" {
		filtered := make([]eventmodels.LadderPosition, 0, len(positions))
		for _, position := range positions {
			if position.State == filter.State {
				filtered = append(filtered, position)
			}
		}
		positions = filtered
	}

	response := laddersResponse{Ladders: positions, Count: len(positions)}

	if err := eventproducers.SetResponse(&response, w); err != nil {
		log.Errorf("handleLadders: failed to set response: %v", err)
	}
}

func handleSquareOffAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(404)
		return
	}

	risk.TriggerSquareOffAll(eventmodels.CloseReasonManual)

	response := squareOffResponse{Requested: true, Reason: eventmodels.CloseReasonManual}

	if err := eventproducers.SetResponse(&response, w); err != nil {
		log.Errorf("handleSquareOffAll: failed to set response: %v", err)
	}
}

func handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(404)
		return
	}

	vars := mux.Vars(r)
	symbol := eventmodels.StockSymbol(vars["symbol"])
	if symbol == "" {
		if respErr := eventproducers.SetErrorResponse("validation", 400, fmt.Errorf("missing symbol"), w); respErr != nil {
			log.Errorf("handleClose: failed to set error response: %v", respErr)
		}
		return
	}

	if err := runner.RequestClose(symbol, eventmodels.CloseReasonManual); err != nil {
		if respErr := eventproducers.SetErrorResponse("closeLadder", 404, err, w); respErr != nil {
			log.Errorf("handleClose: failed to set error response: %v", respErr)
		}
		return
	}

	response := squareOffResponse{Requested: true, Reason: eventmodels.CloseReasonManual}

	if err := eventproducers.SetResponse(&response, w); err != nil {
		log.Errorf("handleClose: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, runnerWorker *eventconsumers.LadderRunnerWorker, riskManager *eventconsumers.RiskManager) {
	runner = runnerWorker
	risk = riskManager

	router.HandleFunc("", handleLadders)
	router.HandleFunc("/square-off-all", handleSquareOffAll)
	router.HandleFunc("/{symbol}/close", handleClose)
}
