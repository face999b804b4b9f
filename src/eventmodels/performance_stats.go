package eventmodels

// PerformanceStats summarizes ingestion and execution latency over the
// monitor's rolling windows. All values are milliseconds.
type PerformanceStats struct {
	TickCount   int     `json:"tickCount"`
	TickMeanMs  float64 `json:"tickMeanMs"`
	TickP95Ms   float64 `json:"tickP95Ms"`
	TickMaxMs   float64 `json:"tickMaxMs"`
	OrderCount  int     `json:"orderCount"`
	OrderMeanMs float64 `json:"orderMeanMs"`
	OrderP95Ms  float64 `json:"orderP95Ms"`
	OrderMaxMs  float64 `json:"orderMaxMs"`
}
