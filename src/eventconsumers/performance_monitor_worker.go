package eventconsumers

import (
	"context"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
)

const (
	tickLatencyWindow   = 1000
	orderLatencyWindow  = 100
	perfLogInterval     = 60 * time.Second
	tickLatencyWarnMs   = 500.0
	latencyWarnInterval = 30 * time.Second
)

// latencyRing is a fixed-size ring of latency samples in milliseconds.
type latencyRing struct {
	samples []float64
	next    int
	filled  bool
	count   uint64
}

func newLatencyRing(size int) *latencyRing {
	return &latencyRing{samples: make([]float64, size)}
}

func (r *latencyRing) add(ms float64) {
	r.samples[r.next] = ms
	r.next++
	r.count++

	if r.next == len(r.samples) {
		r.next = 0
		r.filled = true
	}
}

func (r *latencyRing) values() []float64 {
	if r.filled {
		out := make([]float64, len(r.samples))
		copy(out, r.samples)
		return out
	}

	out := make([]float64, r.next)
	copy(out, r.samples[:r.next])
	return out
}

// PerformanceMonitorWorker keeps rolling windows of tick-ingestion and
// order round-trip latencies and logs a digest every minute. Stats back the
// metrics endpoint.
type PerformanceMonitorWorker struct {
	wg *sync.WaitGroup

	mutex  sync.Mutex
	ticks  *latencyRing
	orders *latencyRing

	lastSlowWarn time.Time
}

func NewPerformanceMonitorWorker(wg *sync.WaitGroup) *PerformanceMonitorWorker {
	return &PerformanceMonitorWorker{
		wg:     wg,
		ticks:  newLatencyRing(tickLatencyWindow),
		orders: newLatencyRing(orderLatencyWindow),
	}
}

func (w *PerformanceMonitorWorker) onTick(tick *eventmodels.Tick) {
	ms := tick.LatencyMs()
	if ms <= 0 {
		return
	}

	w.mutex.Lock()
	w.ticks.add(ms)

	if ms > tickLatencyWarnMs && time.Since(w.lastSlowWarn) > latencyWarnInterval {
		w.lastSlowWarn = time.Now()
		log.Warnf("PerformanceMonitorWorker: tick latency %.1fms for %s", ms, tick.Symbol)
	}
	w.mutex.Unlock()
}

func (w *PerformanceMonitorWorker) onOrderFilled(event eventmodels.OrderFilledEvent) {
	ms := event.Order.LatencyMs()
	if ms <= 0 {
		return
	}

	w.mutex.Lock()
	w.orders.add(ms)
	w.mutex.Unlock()
}

func ringStats(values []float64) (mean, p95, max float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	mean, _ = stats.Mean(values)
	p95, _ = stats.Percentile(values, 95)
	max, _ = stats.Max(values)

	return mean, p95, max
}

func (w *PerformanceMonitorWorker) Stats() eventmodels.PerformanceStats {
	w.mutex.Lock()
	tickValues := w.ticks.values()
	orderValues := w.orders.values()
	tickCount := w.ticks.count
	orderCount := w.orders.count
	w.mutex.Unlock()

	tickMean, tickP95, tickMax := ringStats(tickValues)
	orderMean, orderP95, orderMax := ringStats(orderValues)

	return eventmodels.PerformanceStats{
		TickCount:   int(tickCount),
		TickMeanMs:  tickMean,
		TickP95Ms:   tickP95,
		TickMaxMs:   tickMax,
		OrderCount:  int(orderCount),
		OrderMeanMs: orderMean,
		OrderP95Ms:  orderP95,
		OrderMaxMs:  orderMax,
	}
}

func (w *PerformanceMonitorWorker) Start(ctx context.Context) {
	w.wg.Add(1)

	eventpubsub.Subscribe("PerformanceMonitorWorker", eventmodels.NewTickEventName, w.onTick)
	eventpubsub.Subscribe("PerformanceMonitorWorker", eventmodels.OrderFilledEventName, w.onOrderFilled)

	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(perfLogInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping PerformanceMonitorWorker consumer")
				return
			case <-ticker.C:
				s := w.Stats()
				if s.TickCount == 0 {
					continue
				}

				log.WithFields(log.Fields{
					"ticks":       s.TickCount,
					"tickMeanMs":  s.TickMeanMs,
					"tickP95Ms":   s.TickP95Ms,
					"tickMaxMs":   s.TickMaxMs,
					"orders":      s.OrderCount,
					"orderMeanMs": s.OrderMeanMs,
					"orderP95Ms":  s.OrderP95Ms,
				}).Info("latency digest")
			}
		}
	}()
}
