package eventmodels

type SymbolPnL struct {
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
}

func (s SymbolPnL) Total() float64 {
	return s.Realized + s.Unrealized
}

// GlobalRiskState is the aggregator's view of the whole session. Realized
// accumulates across closed ladders (flips included); Unrealized is the sum
// over currently open ladders only.
type GlobalRiskState struct {
	RealizedPnL   float64                   `json:"realizedPnl"`
	UnrealizedPnL float64                   `json:"unrealizedPnl"`
	PerSymbol     map[StockSymbol]SymbolPnL `json:"perSymbol"`
	ActiveCount   int                       `json:"activeCount"`
	TradingHalted bool                      `json:"tradingHalted"`
	HaltReason    string                    `json:"haltReason,omitempty"`
}

func NewGlobalRiskState() *GlobalRiskState {
	return &GlobalRiskState{
		PerSymbol: make(map[StockSymbol]SymbolPnL),
	}
}

func (g *GlobalRiskState) TotalPnL() float64 {
	return g.RealizedPnL + g.UnrealizedPnL
}

// Copy returns a deep copy safe to hand outside the aggregator's lock.
func (g *GlobalRiskState) Copy() GlobalRiskState {
	out := *g
	out.PerSymbol = make(map[StockSymbol]SymbolPnL, len(g.PerSymbol))
	for sym, pnl := range g.PerSymbol {
		out.PerSymbol[sym] = pnl
	}

	return out
}
