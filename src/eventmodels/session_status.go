package eventmodels

import "time"

type SessionStatus struct {
	Running        bool        `json:"running"`
	SessionID      string      `json:"sessionId,omitempty"`
	Phase          MarketPhase `json:"phase"`
	StartedAt      time.Time   `json:"startedAt,omitempty"`
	UptimeSeconds  float64     `json:"uptimeSeconds"`
	TradingHalted  bool        `json:"tradingHalted"`
	HaltReason     string      `json:"haltReason,omitempty"`
	ActiveLadders  int         `json:"activeLadders"`
	CandidateCount int         `json:"candidateCount"`
	FeedConnected  bool        `json:"feedConnected"`
	DryRun         bool        `json:"dryRun"`
}

type HealthStatus struct {
	Ok            bool `json:"ok"`
	FeedConnected bool `json:"feedConnected"`
	EngineRunning bool `json:"engineRunning"`
	BrokerReady   bool `json:"brokerReady"`
}
