package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// Collector records engine activity both as prometheus metrics and as an
// in-memory snapshot for the status API and the TUI.
type Collector struct {
	mu sync.RWMutex

	evaluations uint64
	threats     map[types.ThreatType]uint64
	decisions   map[interfaces.SwapState]uint64
	gasAverage  *big.Int
	lastUpdated time.Time

	evaluationsTotal   *prometheus.CounterVec
	threatsTotal       *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	analyticsScore     prometheus.Histogram
	gasAverageWei      prometheus.Gauge
}

// NewCollector creates a collector registered on the default prometheus
// registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegisterer creates a collector registered on the given
// registerer, so tests can use isolated registries.
func NewCollectorWithRegisterer(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		threats:    make(map[types.ThreatType]uint64),
		decisions:  make(map[interfaces.SwapState]uint64),
		gasAverage: new(big.Int),
		evaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevshield_evaluations_total",
			Help: "Total transaction evaluations by outcome",
		}, []string{"outcome"}),
		threatsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevshield_threats_total",
			Help: "Detected threats by type",
		}, []string{"type"}),
		decisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevshield_decisions_total",
			Help: "Protection decisions by terminal state",
		}, []string{"state"}),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mevshield_evaluation_duration_seconds",
			Help:    "Time spent evaluating a single transaction",
			Buckets: prometheus.DefBuckets,
		}),
		analyticsScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mevshield_analytics_score",
			Help:    "Distribution of 0-100 analytics risk scores",
			Buckets: []float64{10, 25, 50, 75, 90, 100},
		}),
		gasAverageWei: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mevshield_gas_average_wei",
			Help: "Rolling gas price average in wei",
		}),
	}
}

// RecordEvaluation records one evaluation and its outcome.
func (c *Collector) RecordEvaluation(duration time.Duration, result *interfaces.EvaluationResult) {
	c.evaluationDuration.Observe(duration.Seconds())

	outcome := "clean"
	if result != nil && result.IsThreat {
		outcome = "threat"
		c.threatsTotal.WithLabelValues(string(result.Threat)).Inc()
	}
	c.evaluationsTotal.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	c.evaluations++
	if result != nil && result.IsThreat {
		c.threats[result.Threat]++
	}
	c.lastUpdated = time.Now()
	c.mu.Unlock()
}

// RecordDecision records one protection decision.
func (c *Collector) RecordDecision(state interfaces.SwapState) {
	c.decisionsTotal.WithLabelValues(string(state)).Inc()

	c.mu.Lock()
	c.decisions[state]++
	c.lastUpdated = time.Now()
	c.mu.Unlock()
}

// RecordAnalyticsScore records one 0-100 analytics score.
func (c *Collector) RecordAnalyticsScore(score int) {
	c.analyticsScore.Observe(float64(score))
}

// RecordGasAverage publishes the current rolling gas average.
func (c *Collector) RecordGasAverage(avg *big.Int) {
	if avg == nil {
		return
	}
	f, _ := new(big.Float).SetInt(avg).Float64()
	c.gasAverageWei.Set(f)

	c.mu.Lock()
	c.gasAverage.Set(avg)
	c.lastUpdated = time.Now()
	c.mu.Unlock()
}

// Snapshot returns a copy of the in-memory counters.
func (c *Collector) Snapshot() *interfaces.EngineStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	threats := make(map[types.ThreatType]uint64, len(c.threats))
	for k, v := range c.threats {
		threats[k] = v
	}
	decisions := make(map[interfaces.SwapState]uint64, len(c.decisions))
	for k, v := range c.decisions {
		decisions[k] = v
	}
	return &interfaces.EngineStats{
		Evaluations:   c.evaluations,
		Threats:       threats,
		Decisions:     decisions,
		GasAverageWei: c.gasAverage.String(),
		LastUpdated:   c.lastUpdated,
	}
}

var _ interfaces.MetricsRecorder = (*Collector)(nil)
