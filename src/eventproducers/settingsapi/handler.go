package settingsapi

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventproducers"
)

var engine *eventmodels.EngineState

// handleSettings serves the live strategy parameters and accepts partial
// updates. Updates only affect ladders opened afterwards; open positions
// keep the percentages they snapshotted at entry.
func handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		settings := engine.Settings()

		if err := eventproducers.SetResponse(&settings, w); err != nil {
			log.Errorf("handleSettings: failed to set response: %v", err)
		}
		return
	}

	if r.Method == "POST" || r.Method == "PUT" {
		var request eventmodels.UpdateSettingsRequest
		if err := request.ParseHTTPRequest(r); err != nil {
			if respErr := eventproducers.SetErrorResponse("validation", 400, err, w); respErr != nil {
				log.Errorf("handleSettings: failed to set error response: %v", respErr)
			}
			return
		}

		updated, err := request.ApplyTo(engine.Settings())
		if err != nil {
			if respErr := eventproducers.SetErrorResponse("validation", 400, err, w); respErr != nil {
				log.Errorf("handleSettings: failed to set error response: %v", respErr)
			}
			return
		}

		engine.SetSettings(updated)
		log.Infof("settings updated: %+v", updated)

		if err := eventproducers.SetResponse(&updated, w); err != nil {
			log.Errorf("handleSettings: failed to set response: %v", err)
		}
		return
	}

	w.WriteHeader(404)
}

func SetupHandler(router *mux.Router, engineState *eventmodels.EngineState) {
	engine = engineState

	router.HandleFunc("", handleSettings)
}
