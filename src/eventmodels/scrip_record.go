package eventmodels

// ScripRecord is one row of the broker's scrip master CSV. Column names
// follow the published file; gocsv ignores the columns we do not map.
type ScripRecord struct {
	ExchangeID     string `csv:"SEM_EXM_EXCH_ID"`
	SecurityID     string `csv:"SEM_SMST_SECURITY_ID"`
	InstrumentName string `csv:"SEM_INSTRUMENT_NAME"`
	TradingSymbol  string `csv:"SEM_TRADING_SYMBOL"`
	Series         string `csv:"SEM_SERIES"`
}

// IsNSEEquity reports whether the row is a cash-segment NSE equity, the only
// universe the engine trades.
func (r *ScripRecord) IsNSEEquity() bool {
	return r.ExchangeID == "NSE" && r.InstrumentName == "EQUITY"
}
