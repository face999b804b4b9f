package eventmodels

import (
	"fmt"
	"time"
)

// StartLadderEvent asks the ladder runner to open a ladder. Published by the
// top-mover ranker for fresh selections and by the runner itself for flips.
type StartLadderEvent struct {
	Symbol     StockSymbol
	SecurityID string
	Direction  LadderDirection
	Tick       *Tick
	CycleIndex int
}

func (ev StartLadderEvent) String() string {
	return fmt.Sprintf("StartLadderEvent: %s %s cycle=%d @ %.2f", ev.Symbol, ev.Direction, ev.CycleIndex, ev.Tick.Ltp)
}

// SquareOffAllEvent is the priority broadcast that flattens every open
// ladder. Reason distinguishes EOD, operator action and global risk exits.
type SquareOffAllEvent struct {
	Reason      CloseReason
	RequestedAt time.Time
}

type SessionPhaseChangedEvent struct {
	From MarketPhase
	To   MarketPhase
	At   time.Time
}

type EngineStateChangedEvent struct {
	Running   bool
	SessionID string
	At        time.Time
}

// FeedStatusEvent reports feed connectivity. Fatal is set when the reconnect
// budget is exhausted and the session cannot continue.
type FeedStatusEvent struct {
	Connected bool
	Fatal     bool
	Attempts  int
	Err       string
}

type OrderPlacedEvent struct {
	Order *Order
}

type OrderFilledEvent struct {
	Order *Order
}

type OrderFailedEvent struct {
	Order *Order
	Err   string
}

// LadderUpdateEvent mirrors ladder lifecycle transitions to the snapshot
// broadcaster. Position is a copy taken by the symbol task.
type LadderUpdateEvent struct {
	Kind     string // opened | add_on | closed | flipped
	Position LadderPosition
}
