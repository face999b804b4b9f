package eventservices

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/utils"
)

const (
	universeLookbackDays    = 5
	universeMinMinuteVolume = 2000
)

// BuildUniverse runs the premarket liquidity filter: for every symbol in the
// instrument list, average the last five sessions' volume per trading minute
// and qualify the symbol when it clears 2000. An empty result is reported by
// the caller, not an error; it just leaves the engine idle.
//
// Historical fetches share the broker's data rate limit, so the pass is
// serialized through the token bucket rather than fanned out.
func BuildUniverse(ctx context.Context, auth *DhanAuth, master *ScripMaster, symbols []eventmodels.StockSymbol, bucket *utils.TokenBucket) ([]eventmodels.Candidate, error) {
	var candidates []eventmodels.Candidate

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("BuildUniverse: %w", ctx.Err())
		}

		securityID, err := master.SecurityIDForSymbol(symbol)
		if err != nil {
			log.Warnf("BuildUniverse: skipping %s: %v", symbol, err)
			continue
		}

		if err := bucket.Take(ctx); err != nil {
			return nil, fmt.Errorf("BuildUniverse: %w", err)
		}

		candles, err := FetchDailyCandles(auth, securityID, universeLookbackDays)
		if err != nil {
			log.Warnf("BuildUniverse: skipping %s: %v", symbol, err)
			continue
		}

		avgMinuteVolume := candles.AvgMinuteVolume()
		if avgMinuteVolume <= universeMinMinuteVolume {
			continue
		}

		candidates = append(candidates, eventmodels.Candidate{
			Symbol:          symbol,
			SecurityID:      securityID,
			AvgMinuteVolume: avgMinuteVolume,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Symbol < candidates[j].Symbol
	})

	log.Infof("universe filter qualified %d of %d symbols", len(candidates), len(symbols))

	return candidates, nil
}
