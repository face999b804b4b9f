package eventmodels

// CloseReason records why a ladder closed, at finer grain than the closed
// state buckets. Profit-side reasons map to CLOSED_TARGET, loss-side to
// CLOSED_SL, operator action to CLOSED_MANUAL, session-level exits to
// CLOSED_EOD.
type CloseReason string

const (
	CloseReasonTarget           CloseReason = "target"
	CloseReasonStopLoss         CloseReason = "stop_loss"
	CloseReasonManual           CloseReason = "manual"
	CloseReasonEOD              CloseReason = "eod"
	CloseReasonStockProfitLimit CloseReason = "stock_profit_limit"
	CloseReasonStockLossLimit   CloseReason = "stock_loss_limit"
	CloseReasonGlobalExit       CloseReason = "global_exit"
)

func (r CloseReason) State() LadderState {
	switch r {
	case CloseReasonTarget, CloseReasonStockProfitLimit:
		return LadderStateClosedTarget
	case CloseReasonStopLoss, CloseReasonStockLossLimit:
		return LadderStateClosedSL
	case CloseReasonManual:
		return LadderStateClosedManual
	case CloseReasonEOD, CloseReasonGlobalExit:
		return LadderStateClosedEOD
	default:
		return LadderStateClosedManual
	}
}

// RetiresSymbol reports whether the symbol is barred from re-selection for
// the rest of the session after closing for this reason.
func (r CloseReason) RetiresSymbol() bool {
	switch r {
	case CloseReasonStockProfitLimit, CloseReasonStockLossLimit, CloseReasonManual, CloseReasonGlobalExit:
		return true
	default:
		return false
	}
}
