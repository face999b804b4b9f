package eventmodels

type EventName string

const (
	NewTickEventName             EventName = "NewTick"
	StartLadderEventName         EventName = "StartLadder"
	LadderUpdateEventName        EventName = "LadderUpdate"
	OrderPlacedEventName         EventName = "OrderPlaced"
	OrderFilledEventName         EventName = "OrderFilled"
	OrderFailedEventName         EventName = "OrderFailed"
	SquareOffAllEventName        EventName = "SquareOffAll"
	SessionPhaseChangedEventName EventName = "SessionPhaseChanged"
	EngineStateChangedEventName  EventName = "EngineStateChanged"
	FeedStatusEventName          EventName = "FeedStatus"
)
