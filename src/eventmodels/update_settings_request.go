package eventmodels

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// UpdateSettingsRequest carries a partial settings update: only non-nil
// fields are applied.
type UpdateSettingsRequest struct {
	NoOfAddOns           *int     `json:"noOfAddOns"`
	AddOnPct             *float64 `json:"addOnPct"`
	InitialStopLossPct   *float64 `json:"initialStopLossPct"`
	TrailingStopLossPct  *float64 `json:"trailingStopLossPct"`
	TargetPct            *float64 `json:"targetPct"`
	MaxLadderStocks      *int     `json:"maxLadderStocks"`
	TopNGainers          *int     `json:"topNGainers"`
	TopNLosers           *int     `json:"topNLosers"`
	MinTurnoverCrores    *float64 `json:"minTurnoverCrores"`
	TradeCapital         *float64 `json:"tradeCapital"`
	ProfitTargetPerStock *float64 `json:"profitTargetPerStock"`
	LossLimitPerStock    *float64 `json:"lossLimitPerStock"`
	MaxOpenGapPctLong    *float64 `json:"maxOpenGapPctLong"`
	MinOpenGapPctShort   *float64 `json:"minOpenGapPctShort"`
	CyclesPerStock       *int     `json:"cyclesPerStock"`
	GlobalProfitExit     *float64 `json:"globalProfitExit"`
	GlobalLossExit       *float64 `json:"globalLossExit"`
	DryRun               *bool    `json:"dryRun"`
}

func (r *UpdateSettingsRequest) ParseHTTPRequest(req *http.Request) error {
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		return fmt.Errorf("UpdateSettingsRequest.ParseHTTPRequest: failed to decode json: %w", err)
	}

	return nil
}

// ApplyTo merges the update into base, re-validates and re-clamps. The
// returned settings are a copy; base is untouched on validation failure.
func (r *UpdateSettingsRequest) ApplyTo(base Settings) (Settings, error) {
	out := base

	if r.NoOfAddOns != nil {
		out.NoOfAddOns = *r.NoOfAddOns
	}
	if r.AddOnPct != nil {
		out.AddOnPct = *r.AddOnPct
	}
	if r.InitialStopLossPct != nil {
		out.InitialStopLossPct = *r.InitialStopLossPct
	}
	if r.TrailingStopLossPct != nil {
		out.TrailingStopLossPct = *r.TrailingStopLossPct
	}
	if r.TargetPct != nil {
		out.TargetPct = *r.TargetPct
	}
	if r.MaxLadderStocks != nil {
		out.MaxLadderStocks = *r.MaxLadderStocks
	}
	if r.TopNGainers != nil {
		out.TopNGainers = *r.TopNGainers
	}
	if r.TopNLosers != nil {
		out.TopNLosers = *r.TopNLosers
	}
	if r.MinTurnoverCrores != nil {
		out.MinTurnoverCrores = *r.MinTurnoverCrores
	}
	if r.TradeCapital != nil {
		out.TradeCapital = *r.TradeCapital
	}
	if r.ProfitTargetPerStock != nil {
		out.ProfitTargetPerStock = *r.ProfitTargetPerStock
	}
	if r.LossLimitPerStock != nil {
		out.LossLimitPerStock = *r.LossLimitPerStock
	}
	if r.MaxOpenGapPctLong != nil {
		out.MaxOpenGapPctLong = *r.MaxOpenGapPctLong
	}
	if r.MinOpenGapPctShort != nil {
		out.MinOpenGapPctShort = *r.MinOpenGapPctShort
	}
	if r.CyclesPerStock != nil {
		out.CyclesPerStock = *r.CyclesPerStock
	}
	if r.GlobalProfitExit != nil {
		out.GlobalProfitExit = *r.GlobalProfitExit
	}
	if r.GlobalLossExit != nil {
		out.GlobalLossExit = *r.GlobalLossExit
	}
	if r.DryRun != nil {
		out.DryRun = *r.DryRun
	}

	if err := out.Validate(); err != nil {
		return base, fmt.Errorf("UpdateSettingsRequest.ApplyTo: %w", err)
	}

	out.Clamp()

	return out, nil
}
