package eventmodels

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LadderSnapshot is the consistent point-in-time view streamed to dashboard
// clients and logged at end of day. Positions are copies sorted by symbol;
// building one never blocks a symbol task.
type LadderSnapshot struct {
	SessionID      string           `json:"sessionId"`
	Phase          MarketPhase      `json:"phase"`
	Running        bool             `json:"running"`
	TradingHalted  bool             `json:"tradingHalted"`
	HaltReason     string           `json:"haltReason,omitempty"`
	Positions      []LadderPosition `json:"positions"`
	RealizedPnL    float64          `json:"realizedPnl"`
	UnrealizedPnL  float64          `json:"unrealizedPnl"`
	ActiveCount    int              `json:"activeCount"`
	CandidateCount int              `json:"candidateCount"`
	FeedConnected  bool             `json:"feedConnected"`
	Settings       Settings         `json:"settings"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}

func (s *LadderSnapshot) TotalPnL() float64 {
	return s.RealizedPnL + s.UnrealizedPnL
}

func (s *LadderSnapshot) String() string {
	display := &strings.Builder{}
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"Symbol", "Dir", "State", "Qty", "Avg", "LTP", "SL", "Target", "Lvl", "Cycle", "PnL"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnSeparator("")

	display.WriteString(fmt.Sprintf("Ladders (%s, active=%d):\n", s.Phase, s.ActiveCount))

	for _, pos := range s.Positions {
		table.Append([]string{
			pos.Symbol.String(),
			string(pos.Direction),
			string(pos.State),
			p.Sprintf("%d", pos.Quantity),
			p.Sprintf("%.2f", pos.AvgEntryPrice),
			p.Sprintf("%.2f", pos.Ltp),
			p.Sprintf("%.2f", pos.StopLoss),
			p.Sprintf("%.2f", pos.Target),
			fmt.Sprintf("%d/%d", pos.AddOnLevel, pos.NoOfAddOns),
			fmt.Sprintf("%d/%d", pos.CycleIndex+1, pos.CycleTotal),
			p.Sprintf("%.2f", pos.TotalPnL()),
		})
	}

	table.Render()
	display.WriteString(fmt.Sprintf("Realized: %s  Unrealized: %s  Total: %s\n",
		p.Sprintf("%.2f", s.RealizedPnL),
		p.Sprintf("%.2f", s.UnrealizedPnL),
		p.Sprintf("%.2f", s.TotalPnL()),
	))

	return display.String()
}
