package moversapi

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

var movers *eventconsumers.TopMoversWorker

type moversFilter struct {
	Direction eventmodels.MoverDirection `schema:"direction"`
}

func handleMovers(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	var filter moversFilter
	if err := schema.NewDecoder().Decode(&filter, r.URL.Query()); err != nil {
		if respErr := eventproducers.SetErrorResponse("validation", 400, err, w); respErr != nil {
			log.Errorf("handleMovers: failed to set error response: %v", respErr)
		}
		return
	}

	ranked, err := movers.Movers(r.Context())
	if err != nil {
		if respErr := eventproducers.SetErrorResponse("fetchMovers", 502, err, w); respErr != nil {
			log.Errorf("handleMovers: failed to set error response: %v", respErr)
		}
		return
	}

	switch filter.Direction {
	case "":
	case eventmodels.MoverDirectionGainers:
		ranked.Losers = nil
	case eventmodels.MoverDirectionLosers:
		ranked.Gainers = nil
	default:
		err := fmt.Errorf("unknown direction %q", filter.Direction)
		if respErr := eventproducers.SetErrorResponse("validation", 400, err, w); respErr != nil {
			log.Errorf("handleMovers: failed to set error response: %v", respErr)
		}
		return
	}

	if err := eventproducers.SetResponse(&ranked, w); err != nil {
		log.Errorf("handleMovers: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, moversWorker *eventconsumers.TopMoversWorker) {
	movers = moversWorker

	router.HandleFunc("", handleMovers)
}
