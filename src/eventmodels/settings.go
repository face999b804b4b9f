package eventmodels

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Settings is the full strategy parameter set. All percentage fields are
// expressed in percent, not fractions: AddOnPct 0.5 means 0.5%.
type Settings struct {
	NoOfAddOns           int     `json:"noOfAddOns" yaml:"no_of_add_ons"`
	AddOnPct             float64 `json:"addOnPct" yaml:"add_on_pct"`
	InitialStopLossPct   float64 `json:"initialStopLossPct" yaml:"initial_stop_loss_pct"`
	TrailingStopLossPct  float64 `json:"trailingStopLossPct" yaml:"trailing_stop_loss_pct"`
	TargetPct            float64 `json:"targetPct" yaml:"target_pct"`
	MaxLadderStocks      int     `json:"maxLadderStocks" yaml:"max_ladder_stocks"`
	TopNGainers          int     `json:"topNGainers" yaml:"top_n_gainers"`
	TopNLosers           int     `json:"topNLosers" yaml:"top_n_losers"`
	MinTurnoverCrores    float64 `json:"minTurnoverCrores" yaml:"min_turnover_crores"`
	TradeCapital         float64 `json:"tradeCapital" yaml:"trade_capital"`
	ProfitTargetPerStock float64 `json:"profitTargetPerStock" yaml:"profit_target_per_stock"`
	LossLimitPerStock    float64 `json:"lossLimitPerStock" yaml:"loss_limit_per_stock"`
	MaxOpenGapPctLong    float64 `json:"maxOpenGapPctLong" yaml:"max_open_gap_pct_long"`
	MinOpenGapPctShort   float64 `json:"minOpenGapPctShort" yaml:"min_open_gap_pct_short"`
	CyclesPerStock       int     `json:"cyclesPerStock" yaml:"cycles_per_stock"`
	GlobalProfitExit     float64 `json:"globalProfitExit" yaml:"global_profit_exit"`
	GlobalLossExit       float64 `json:"globalLossExit" yaml:"global_loss_exit"`
	DryRun               bool    `json:"dryRun" yaml:"dry_run"`
}

func NewDefaultSettings() Settings {
	return Settings{
		NoOfAddOns:           5,
		AddOnPct:             0.5,
		InitialStopLossPct:   0.5,
		TrailingStopLossPct:  0.5,
		TargetPct:            2.0,
		MaxLadderStocks:      20,
		TopNGainers:          10,
		TopNLosers:           10,
		MinTurnoverCrores:    1.0,
		TradeCapital:         1000,
		ProfitTargetPerStock: 5000,
		LossLimitPerStock:    2000,
		MaxOpenGapPctLong:    3.0,
		MinOpenGapPctShort:   -3.0,
		CyclesPerStock:       3,
		GlobalProfitExit:     0,
		GlobalLossExit:       0,
		DryRun:               false,
	}
}

func (s *Settings) Validate() error {
	if s.NoOfAddOns < 0 {
		return fmt.Errorf("validate: noOfAddOns must not be negative")
	}

	if s.AddOnPct <= 0 {
		return fmt.Errorf("validate: addOnPct must be greater than zero")
	}

	if s.InitialStopLossPct <= 0 {
		return fmt.Errorf("validate: initialStopLossPct must be greater than zero")
	}

	if s.TrailingStopLossPct <= 0 {
		return fmt.Errorf("validate: trailingStopLossPct must be greater than zero")
	}

	if s.TargetPct <= 0 {
		return fmt.Errorf("validate: targetPct must be greater than zero")
	}

	if s.MaxLadderStocks < 1 {
		return fmt.Errorf("validate: maxLadderStocks must be at least 1")
	}

	if s.TopNGainers < 0 || s.TopNLosers < 0 {
		return fmt.Errorf("validate: topNGainers and topNLosers must not be negative")
	}

	if s.MinTurnoverCrores < 0 {
		return fmt.Errorf("validate: minTurnoverCrores must not be negative")
	}

	if s.TradeCapital <= 0 {
		return fmt.Errorf("validate: tradeCapital must be greater than zero")
	}

	if s.ProfitTargetPerStock <= 0 {
		return fmt.Errorf("validate: profitTargetPerStock must be greater than zero")
	}

	if s.LossLimitPerStock <= 0 {
		return fmt.Errorf("validate: lossLimitPerStock must be greater than zero")
	}

	if s.CyclesPerStock < 1 {
		return fmt.Errorf("validate: cyclesPerStock must be at least 1")
	}

	if s.GlobalProfitExit < 0 || s.GlobalLossExit < 0 {
		return fmt.Errorf("validate: global exit levels must not be negative")
	}

	return nil
}

// Clamp enforces TopNGainers + TopNLosers <= MaxLadderStocks. Losers are
// reduced first, then gainers.
func (s *Settings) Clamp() {
	excess := s.TopNGainers + s.TopNLosers - s.MaxLadderStocks
	if excess <= 0 {
		return
	}

	fromLosers := min(excess, s.TopNLosers)
	s.TopNLosers -= fromLosers
	excess -= fromLosers

	if excess > 0 {
		s.TopNGainers -= excess
	}

	log.Warnf("Settings.Clamp(): topNGainers+topNLosers exceeded maxLadderStocks=%d, clamped to gainers=%d losers=%d", s.MaxLadderStocks, s.TopNGainers, s.TopNLosers)
}

// MinTurnoverRupees converts MinTurnoverCrores to rupees (1 crore = 1e7).
func (s *Settings) MinTurnoverRupees() float64 {
	return s.MinTurnoverCrores * 1e7
}
