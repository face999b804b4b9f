package eventservices

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

const ScripMasterURL = "https://images.dhan.co/api-data/api-scrip-master.csv"

// ScripMaster indexes the broker's instrument file both ways: trading symbol
// to security id for order placement, and back for feed normalization. Only
// NSE cash-segment equities are indexed.
type ScripMaster struct {
	bySymbol     map[eventmodels.StockSymbol]string
	bySecurityID map[string]eventmodels.StockSymbol
}

func newScripMaster(records []*eventmodels.ScripRecord) *ScripMaster {
	m := &ScripMaster{
		bySymbol:     make(map[eventmodels.StockSymbol]string),
		bySecurityID: make(map[string]eventmodels.StockSymbol),
	}

	for _, record := range records {
		if !record.IsNSEEquity() {
			continue
		}

		symbol := eventmodels.NewStockSymbol(record.TradingSymbol)
		m.bySymbol[symbol] = record.SecurityID
		m.bySecurityID[record.SecurityID] = symbol
	}

	return m
}

func LoadScripMasterFromFile(path string) (*ScripMaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScripMasterFromFile: failed to open %s: %w", path, err)
	}

	defer f.Close()

	return parseScripMaster(f)
}

// FetchScripMaster downloads the instrument file. The file runs to a couple
// hundred thousand rows, hence the long timeout.
func FetchScripMaster(url string) (*ScripMaster, error) {
	client := http.Client{
		Timeout: 120 * time.Second,
	}

	res, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("FetchScripMaster: failed to download scrip master: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FetchScripMaster: failed to download scrip master, http code %v", res.Status)
	}

	return parseScripMaster(res.Body)
}

func parseScripMaster(r io.Reader) (*ScripMaster, error) {
	var records []*eventmodels.ScripRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parseScripMaster: failed to unmarshal csv: %w", err)
	}

	master := newScripMaster(records)
	if master.Len() == 0 {
		return nil, fmt.Errorf("parseScripMaster: no NSE equities found in scrip master")
	}

	log.Infof("scrip master loaded: %d NSE equities", master.Len())

	return master, nil
}

func (m *ScripMaster) Len() int {
	return len(m.bySymbol)
}

// SecurityIDForSymbol resolves a trading symbol, falling back to the -EQ
// suffixed series form.
func (m *ScripMaster) SecurityIDForSymbol(symbol eventmodels.StockSymbol) (string, error) {
	if id, ok := m.bySymbol[eventmodels.NewStockSymbol(string(symbol))]; ok {
		return id, nil
	}

	if id, ok := m.bySymbol[symbol.WithEQSeries()]; ok {
		return id, nil
	}

	return "", fmt.Errorf("ScripMaster.SecurityIDForSymbol: %s: %w", symbol, eventmodels.SymbolNotMappedErr)
}

func (m *ScripMaster) SymbolForSecurityID(securityID string) (eventmodels.StockSymbol, bool) {
	symbol, ok := m.bySecurityID[securityID]
	return symbol, ok
}

// Symbols returns every indexed trading symbol. Order is not defined.
func (m *ScripMaster) Symbols() []eventmodels.StockSymbol {
	symbols := make([]eventmodels.StockSymbol, 0, len(m.bySymbol))
	for symbol := range m.bySymbol {
		symbols = append(symbols, symbol)
	}

	return symbols
}
