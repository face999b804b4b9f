package eventmodels

type LadderState string

const (
	LadderStateIdle         LadderState = "IDLE"
	LadderStateActive       LadderState = "ACTIVE"
	LadderStateClosedTarget LadderState = "CLOSED_TARGET"
	LadderStateClosedSL     LadderState = "CLOSED_SL"
	LadderStateClosedManual LadderState = "CLOSED_MANUAL"
	LadderStateClosedEOD    LadderState = "CLOSED_EOD"
)

func (s LadderState) IsClosed() bool {
	switch s {
	case LadderStateClosedTarget, LadderStateClosedSL, LadderStateClosedManual, LadderStateClosedEOD:
		return true
	default:
		return false
	}
}
