package detector

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// bpDenominator converts ratios into basis points (10000bp = 100%).
var bpDenominator = big.NewInt(10000)

// MaxScoreBp is the cap on the inline basis-point deviation score.
const MaxScoreBp = 10000

func clampBp(v *big.Int) uint64 {
	if !v.IsUint64() || v.Uint64() > MaxScoreBp {
		return MaxScoreBp
	}
	return v.Uint64()
}

// evaluator wires the three pattern detectors to the shared trackers. The
// mutex guards the thresholds, which operators may replace at runtime.
type evaluator struct {
	mu        sync.RWMutex
	config    *interfaces.DetectorConfig
	sandwich  *SandwichDetector
	frontrun  *FrontrunDetector
	arbitrage *ArbitrageDetector
	gas       interfaces.GasHistory
	prices    interfaces.PriceBook
	logger    *zap.Logger
}

// NewEvaluator creates an evaluator over the given trackers. A nil config
// falls back to the stock thresholds.
func NewEvaluator(config *interfaces.DetectorConfig, gas interfaces.GasHistory, prices interfaces.PriceBook, logger *zap.Logger) interfaces.Evaluator {
	if config == nil {
		config = interfaces.DefaultDetectorConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &evaluator{
		config:    config,
		sandwich:  NewSandwichDetector(config.RiskThresholdBp),
		frontrun:  NewFrontrunDetector(config.FrontrunGasMultiplier),
		arbitrage: NewArbitrageDetector(config.MinPriceDeltaBp, config.ArbitrageWindow),
		gas:       gas,
		prices:    prices,
		logger:    logger,
	}
}

// Evaluate runs the inline decision path: sandwich, then front-run, then
// arbitrage, first match wins.
func (e *evaluator) Evaluate(ctx context.Context, req *interfaces.EvaluationRequest) (*interfaces.EvaluationResult, error) {
	res, _, err := e.run(ctx, req, false)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Analyze runs all three detectors unconditionally for the analytics path.
func (e *evaluator) Analyze(ctx context.Context, req *interfaces.EvaluationRequest) (*interfaces.AnalysisResult, error) {
	res, analysis, err := e.run(ctx, req, true)
	if err != nil {
		return nil, err
	}
	analysis.Inline = *res
	return analysis, nil
}

// run validates the request, snapshots tracker state, evaluates the
// detectors against the snapshot, and only then commits the observation to
// the trackers. The commit happens on every successful evaluation, threat or
// not; short-circuiting affects detector order only.
func (e *evaluator) run(ctx context.Context, req *interfaces.EvaluationRequest, all bool) (*interfaces.EvaluationResult, *interfaces.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	e.mu.RLock()
	freshness := e.config.OracleFreshness
	sandwich, frontrun, arbitrage := e.sandwich, e.frontrun, e.arbitrage
	e.mu.RUnlock()

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	if age := now.Sub(req.Observed.Timestamp); req.Observed.Timestamp.IsZero() || age > freshness {
		return nil, nil, fmt.Errorf("%w: feed %s observation age %s exceeds %s",
			types.ErrStaleOracleData, req.FeedID, now.Sub(req.Observed.Timestamp), freshness)
	}

	// Pre-update snapshots. The arbitrage predicate consumes the previous
	// observation before Update overwrites it, and the front-run predicate
	// compares against the average excluding the incoming sample.
	prev := e.prices.Lookup(req.FeedID)
	avg := e.gas.Average()

	result := &interfaces.EvaluationResult{Threat: types.ThreatNone}
	analysis := &interfaces.AnalysisResult{GasAverage: avg}

	sandwichHit, slippageBp, err := sandwich.Detect(req.ExpectedPrice, req.Observed.Price)
	if err != nil {
		return nil, nil, err
	}
	analysis.Findings.Sandwich = sandwichHit
	if sandwichHit && !result.IsThreat {
		result.IsThreat = true
		result.Threat = types.ThreatSandwich
		result.ScoreBp = slippageBp
	}

	if all || !result.IsThreat {
		frontrunHit, excessBp := frontrun.Detect(req.GasPrice, avg)
		analysis.Findings.Frontrun = frontrunHit
		if frontrunHit && !result.IsThreat {
			result.IsThreat = true
			result.Threat = types.ThreatFrontrun
			result.ScoreBp = excessBp
		}
	}

	if all || !result.IsThreat {
		cur := req.Observed
		cur.FeedID = req.FeedID
		arbitrageHit, deltaBp := arbitrage.Detect(prev, cur)
		analysis.Findings.Arbitrage = arbitrageHit
		if arbitrageHit && !result.IsThreat {
			result.IsThreat = true
			result.Threat = types.ThreatArbitrage
			result.ScoreBp = deltaBp
		}
	}

	e.commit(req)

	if result.IsThreat {
		e.logger.Debug("threat detected",
			zap.String("feed", req.FeedID),
			zap.String("threat", string(result.Threat)),
			zap.Uint64("score_bp", result.ScoreBp))
	}
	return result, analysis, nil
}

// Thresholds returns a copy of the active detection thresholds.
func (e *evaluator) Thresholds() interfaces.DetectorConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.config
}

// SetThresholds replaces the detection thresholds. In-flight evaluations keep
// the detectors they started with.
func (e *evaluator) SetThresholds(cfg *interfaces.DetectorConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil detector config", types.ErrInvalidInput)
	}
	if cfg.RiskThresholdBp > MaxScoreBp {
		return fmt.Errorf("%w: risk threshold %dbp exceeds %d", types.ErrInvalidInput, cfg.RiskThresholdBp, MaxScoreBp)
	}
	if cfg.FrontrunGasMultiplier < 100 {
		return fmt.Errorf("%w: gas multiplier %d must be at least 100", types.ErrInvalidInput, cfg.FrontrunGasMultiplier)
	}

	next := *cfg
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = &next
	e.sandwich = NewSandwichDetector(next.RiskThresholdBp)
	e.frontrun = NewFrontrunDetector(next.FrontrunGasMultiplier)
	e.arbitrage = NewArbitrageDetector(next.MinPriceDeltaBp, next.ArbitrageWindow)
	return nil
}

func (e *evaluator) commit(req *interfaces.EvaluationRequest) {
	obs := req.Observed
	obs.FeedID = req.FeedID
	e.prices.Update(obs)
	e.gas.Record(req.GasPrice)
}

func validateRequest(req *interfaces.EvaluationRequest) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", types.ErrInvalidInput)
	}
	if req.FeedID == "" {
		return fmt.Errorf("%w: empty feed id", types.ErrInvalidInput)
	}
	if req.ExpectedPrice == nil || req.ExpectedPrice.Sign() <= 0 {
		return fmt.Errorf("%w: expected price must be positive", types.ErrInvalidInput)
	}
	if req.Observed.Price == nil || req.Observed.Price.Sign() <= 0 {
		return fmt.Errorf("%w: observed price must be positive", types.ErrInvalidInput)
	}
	if req.GasPrice == nil || req.GasPrice.Sign() < 0 {
		return fmt.Errorf("%w: gas price must be non-negative", types.ErrInvalidInput)
	}
	return nil
}

var (
	_ interfaces.Evaluator      = (*evaluator)(nil)
	_ interfaces.ThresholdAdmin = (*evaluator)(nil)
)
