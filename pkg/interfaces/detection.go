package interfaces

import (
	"context"
	"math/big"
	"time"

	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// GasHistory maintains a bounded rolling window of observed gas prices.
type GasHistory interface {
	Record(gasPrice *big.Int)
	Average() *big.Int
	Samples() int
}

// PriceBook keeps the latest observation per price feed.
type PriceBook interface {
	Update(obs types.PriceObservation)
	Lookup(feedID string) types.PriceObservation
	Feeds() int
}

// Evaluator runs the pattern detectors against a single observation.
//
// Evaluate is the inline decision path: detectors run in fixed priority order
// (sandwich, front-run, arbitrage) and the first match wins. Analyze runs all
// three detectors unconditionally and is the input to the additive analytics
// scorer. Both commit the observation to the trackers after the detectors
// have seen the pre-update snapshot.
type Evaluator interface {
	Evaluate(ctx context.Context, req *EvaluationRequest) (*EvaluationResult, error)
	Analyze(ctx context.Context, req *EvaluationRequest) (*AnalysisResult, error)
}

// ThresholdAdmin is implemented by evaluators that allow detection thresholds
// to be replaced at runtime.
type ThresholdAdmin interface {
	Thresholds() DetectorConfig
	SetThresholds(cfg *DetectorConfig) error
}

// RiskScorer produces the 0-100 analytics score from a transaction and the
// detector findings for it.
type RiskScorer interface {
	Score(tx *types.Transaction, gasAverage *big.Int, findings DetectorFindings) int
}

// EvaluationRequest carries the already-resolved inputs for one evaluation.
// The oracle observation is supplied by the caller; the core never fetches.
type EvaluationRequest struct {
	FeedID        string
	ExpectedPrice *big.Int
	Observed      types.PriceObservation
	GasPrice      *big.Int
	Now           time.Time
}

// EvaluationResult is the outcome of the first-match decision path. ScoreBp
// is the basis-point deviation that triggered the detector, capped at 10000.
type EvaluationResult struct {
	IsThreat bool             `json:"isThreat"`
	Threat   types.ThreatType `json:"threat"`
	ScoreBp  uint64           `json:"scoreBp"`
}

// DetectorFindings records which detectors fired during an Analyze pass.
type DetectorFindings struct {
	Sandwich  bool `json:"sandwich"`
	Frontrun  bool `json:"frontrun"`
	Arbitrage bool `json:"arbitrage"`
}

// AnalysisResult is the outcome of an Analyze pass: the inline first-match
// view plus the unconditional findings and the gas average the detectors
// compared against (the pre-commit rolling mean).
type AnalysisResult struct {
	Inline     EvaluationResult `json:"inline"`
	Findings   DetectorFindings `json:"findings"`
	GasAverage *big.Int         `json:"gasAverage"`
}

// DetectorConfig holds the operator-tunable detection thresholds.
type DetectorConfig struct {
	RiskThresholdBp       uint64
	MinPriceDeltaBp       uint64
	FrontrunGasMultiplier uint64
	ArbitrageWindow       time.Duration
	OracleFreshness       time.Duration
}

// DefaultDetectorConfig returns the stock thresholds. These were calibrated
// ad hoc; treat them as tunable defaults, not proven anti-MEV parameters.
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		RiskThresholdBp:       500,
		MinPriceDeltaBp:       100,
		FrontrunGasMultiplier: 120,
		ArbitrageWindow:       30 * time.Second,
		OracleFreshness:       300 * time.Second,
	}
}
