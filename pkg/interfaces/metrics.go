package interfaces

import (
	"context"
	"math/big"
	"time"

	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// MetricsRecorder records engine activity for the prometheus exporter and
// the status surfaces (API, TUI).
type MetricsRecorder interface {
	RecordEvaluation(duration time.Duration, result *EvaluationResult)
	RecordDecision(state SwapState)
	RecordAnalyticsScore(score int)
	RecordGasAverage(avg *big.Int)
	Snapshot() *EngineStats
}

// AlertManager stores and dispatches threat alerts.
type AlertManager interface {
	AlertSink
	RecentAlerts(limit int) []*types.Alert
	Subscribe() <-chan *types.Alert
}

// EngineStats is a point-in-time view of engine activity.
type EngineStats struct {
	Evaluations   uint64                      `json:"evaluations"`
	Threats       map[types.ThreatType]uint64 `json:"threats"`
	Decisions     map[SwapState]uint64        `json:"decisions"`
	GasAverageWei string                      `json:"gasAverageWei"`
	LastUpdated   time.Time                   `json:"lastUpdated"`
}

// PipelineStats reports evaluation pipeline throughput.
type PipelineStats struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queueSize"`
	Processed uint64 `json:"processed"`
	Threats   uint64 `json:"threats"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}

// Observation pairs a transaction with the oracle reading and caller-declared
// expected price that accompany it through the pipeline.
type Observation struct {
	Tx            *types.Transaction     `json:"tx"`
	FeedID        string                 `json:"feedId"`
	ExpectedPrice *big.Int               `json:"expectedPrice"`
	Observed      types.PriceObservation `json:"observed"`
}

// ObservationPipeline consumes transaction observations and drives the
// trackers, detectors, scorer and alerting.
type ObservationPipeline interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Submit(ctx context.Context, obs *Observation) error
	Stats() *PipelineStats
}
