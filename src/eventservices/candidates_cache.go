package eventservices

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

// CandidatesCache stores the day's qualified universe in a local Badger db
// so engine restarts within the same session skip the historical-data pass.
// Entries expire at the next exchange midnight.
type CandidatesCache struct {
	db *badger.DB
}

func OpenCandidatesCache(dir string) (*CandidatesCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("OpenCandidatesCache: failed to open %s: %w", dir, err)
	}

	return &CandidatesCache{db: db}, nil
}

func (c *CandidatesCache) Close() error {
	return c.db.Close()
}

func candidatesKey(tradingDate string) []byte {
	return []byte(fmt.Sprintf("candidates:%s", tradingDate))
}

// Get returns the cached universe for the trading date, or found=false on a
// miss (never an error for a plain miss).
func (c *CandidatesCache) Get(tradingDate string) ([]eventmodels.Candidate, bool, error) {
	var candidates []eventmodels.Candidate
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(candidatesKey(tradingDate))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}

			return err
		}

		found = true

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &candidates)
		})
	})

	if err != nil {
		return nil, false, fmt.Errorf("CandidatesCache.Get: %w", err)
	}

	return candidates, found, nil
}

// Put stores the universe for the trading date with a TTL expiring at the
// given instant.
func (c *CandidatesCache) Put(tradingDate string, candidates []eventmodels.Candidate, expiresAt time.Time) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("CandidatesCache.Put: failed to marshal candidates: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("CandidatesCache.Put: expiry %v is in the past", expiresAt)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(candidatesKey(tradingDate), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})

	if err != nil {
		return fmt.Errorf("CandidatesCache.Put: %w", err)
	}

	return nil
}
