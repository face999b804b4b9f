package eventmodels

import "fmt"

var (
	TradingHaltedErr       = fmt.Errorf("trading is halted")
	LadderNotFoundErr      = fmt.Errorf("no ladder for symbol")
	LadderAlreadyClosedErr = fmt.Errorf("ladder already closed")
	DuplicateLadderErr     = fmt.Errorf("ladder already open for symbol")
	ZeroQuantityErr        = fmt.Errorf("trade capital buys less than one share")
	MaxLaddersReachedErr   = fmt.Errorf("max ladder stocks reached")
	SymbolRetiredErr       = fmt.Errorf("symbol retired for the session")
	SymbolNotMappedErr     = fmt.Errorf("symbol not present in scrip master")
	EngineNotRunningErr    = fmt.Errorf("engine is not running")
	MarketClosedErr        = fmt.Errorf("market is closed")
	OrderRejectedErr       = fmt.Errorf("order rejected by broker")
)

type ErrorDTO struct {
	Msg string `json:"msg"`
}

func NewErrorDTO(err error) *ErrorDTO {
	return &ErrorDTO{Msg: err.Error()}
}
