package protection

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// adjustFloorBp is the tightest per-call tolerance the adjust strategy
// produces.
const adjustFloorBp = 50

// Engine is the protection decision engine. Each ProtectSwap call is
// evaluated fresh: guards, then inline detection, then strategy dispatch.
type Engine struct {
	store     interfaces.ConfigStore
	evaluator interfaces.Evaluator
	executor  interfaces.SwapExecutor
	relay     interfaces.SwapExecutor
	delays    *DelayBook
	alerts    interfaces.AlertSink
	recorder  interfaces.MetricsRecorder
	clock     func() time.Time
	logger    *zap.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithRelayExecutor sets the alternate execution path used by the
// private-relay strategy.
func WithRelayExecutor(relay interfaces.SwapExecutor) Option {
	return func(e *Engine) { e.relay = relay }
}

// WithAlertSink wires threat alerts to a sink.
func WithAlertSink(sink interfaces.AlertSink) Option {
	return func(e *Engine) { e.alerts = sink }
}

// WithMetricsRecorder wires decision counters to a recorder.
func WithMetricsRecorder(rec interfaces.MetricsRecorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine creates a protection engine over the given store, evaluator and
// executor.
func NewEngine(store interfaces.ConfigStore, evaluator interfaces.Evaluator, executor interfaces.SwapExecutor, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:     store,
		evaluator: evaluator,
		executor:  executor,
		delays:    NewDelayBook(),
		clock:     time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.relay == nil {
		e.relay = executor
	}
	return e
}

// Configure validates and upserts the protection configuration for
// cfg.Owner. Validation failures leave the store untouched. Configuring
// always (re)activates protection.
func (e *Engine) Configure(ctx context.Context, cfg *types.ProtectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", types.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	stored := *cfg
	stored.Active = true
	stored.UpdatedAt = e.clock()
	e.store.Put(&stored)
	e.logger.Info("protection configured",
		zap.String("owner", cfg.Owner.Hex()),
		zap.String("strategy", string(cfg.Strategy)),
		zap.Uint64("max_slippage_bp", cfg.MaxSlippageBp))
	return nil
}

// GetConfig returns the stored configuration for the owner.
func (e *Engine) GetConfig(owner common.Address) (*types.ProtectionConfig, error) {
	cfg, ok := e.store.Get(owner)
	if !ok {
		return nil, types.ErrNotConfigured
	}
	return cfg, nil
}

// EmergencyStop deactivates protection for the owner. Operator action; the
// configuration itself is retained so a later Configure restores service.
func (e *Engine) EmergencyStop(ctx context.Context, owner common.Address) error {
	if !e.store.Deactivate(owner) {
		return types.ErrNotConfigured
	}
	e.logger.Warn("emergency stop", zap.String("owner", owner.Hex()))
	return nil
}

// ProtectSwap runs the guard chain, the inline detection path and the
// configured mitigation strategy for one pending swap.
func (e *Engine) ProtectSwap(ctx context.Context, owner common.Address, params *interfaces.SwapParams) (*interfaces.SwapOutcome, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil swap params", types.ErrInvalidInput)
	}

	cfg, ok := e.store.Get(owner)
	if !ok || !cfg.Active {
		return nil, types.ErrNotConfigured
	}

	now := e.clock()

	// Hard guards, each independent of the risk engine. No state is
	// mutated before these pass.
	if !params.Deadline.IsZero() && params.Deadline.Before(now) {
		return nil, fmt.Errorf("%w: deadline %s", types.ErrExpired, params.Deadline.UTC().Format(time.RFC3339))
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount in must be positive", types.ErrInvalidAmount)
	}
	if !cfg.IsWhitelisted(params.TokenIn) || !cfg.IsWhitelisted(params.TokenOut) {
		return nil, types.ErrNotWhitelisted
	}

	// An earlier delay decision for this feed still stands until its
	// not-before time passes.
	if cfg.Strategy == types.StrategyDelay {
		if notBefore, pending := e.delays.Pending(params.FeedID, now); pending {
			return e.decide(&interfaces.SwapOutcome{
				State:          interfaces.SwapDelayed,
				RetryNotBefore: notBefore,
				Threat:         types.ThreatNone,
			}), nil
		}
	}

	result, err := e.evaluator.Evaluate(ctx, &interfaces.EvaluationRequest{
		FeedID:        params.FeedID,
		ExpectedPrice: params.ExpectedPrice,
		Observed:      params.Observed,
		GasPrice:      params.GasPrice,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	toleranceBp := cfg.MaxSlippageBp
	state := interfaces.SwapAllowed
	executor := e.executor

	if result.IsThreat {
		e.emitAlert(ctx, params, result, now)

		switch cfg.Strategy {
		case types.StrategyRevert:
			outcome := e.decide(&interfaces.SwapOutcome{
				State:   interfaces.SwapBlocked,
				Threat:  result.Threat,
				ScoreBp: result.ScoreBp,
			})
			return outcome, fmt.Errorf("%w: %s on feed %s (%dbp)", types.ErrThreatDetected, result.Threat, params.FeedID, result.ScoreBp)

		case types.StrategyAdjust:
			toleranceBp = tightenTolerance(toleranceBp)

		case types.StrategyDelay:
			notBefore := now.Add(RetryDelay(result.Threat, result.ScoreBp))
			e.delays.Set(params.FeedID, notBefore)
			return e.decide(&interfaces.SwapOutcome{
				State:          interfaces.SwapDelayed,
				Threat:         result.Threat,
				ScoreBp:        result.ScoreBp,
				RetryNotBefore: notBefore,
			}), nil

		case types.StrategyPrivateRelay:
			state = interfaces.SwapRerouted
			executor = e.relay
		}
	}

	amountOut, err := executor.Execute(ctx, params, toleranceBp)
	if err != nil {
		return nil, fmt.Errorf("swap execution failed: %w", err)
	}

	// Post-swap slippage check: realized output below the caller's declared
	// minimum or below the configured tolerance means refund and failure,
	// never partial execution.
	if err := e.checkSlippage(params, amountOut, toleranceBp); err != nil {
		outcome := e.decide(&interfaces.SwapOutcome{
			State:   interfaces.SwapBlocked,
			Threat:  result.Threat,
			ScoreBp: result.ScoreBp,
		})
		return outcome, err
	}

	return e.decide(&interfaces.SwapOutcome{
		Executed:  true,
		State:     state,
		AmountOut: amountOut,
		Threat:    result.Threat,
		ScoreBp:   result.ScoreBp,
	}), nil
}

func (e *Engine) checkSlippage(params *interfaces.SwapParams, amountOut *big.Int, toleranceBp uint64) error {
	if params.MinAmountOut != nil && amountOut.Cmp(params.MinAmountOut) < 0 {
		return fmt.Errorf("%w: out %s below declared minimum %s", types.ErrSlippageExceeded, amountOut, params.MinAmountOut)
	}
	if params.ExpectedPrice != nil && params.ExpectedPrice.Sign() > 0 {
		expectedOut := new(big.Int).Mul(params.AmountIn, params.ExpectedPrice)
		expectedOut.Div(expectedOut, types.Unit)
		floor := new(big.Int).Mul(expectedOut, new(big.Int).SetUint64(10000-toleranceBp))
		floor.Div(floor, big.NewInt(10000))
		if amountOut.Cmp(floor) < 0 {
			return fmt.Errorf("%w: out %s below tolerance floor %s (%dbp)", types.ErrSlippageExceeded, amountOut, floor, toleranceBp)
		}
	}
	return nil
}

func (e *Engine) emitAlert(ctx context.Context, params *interfaces.SwapParams, result *interfaces.EvaluationResult, now time.Time) {
	if e.alerts == nil {
		return
	}
	alert := &types.Alert{
		ID:        fmt.Sprintf("alert_%d", now.UnixNano()),
		Threat:    result.Threat,
		Severity:  types.SeverityForScore(int(result.ScoreBp / 100)),
		FeedID:    params.FeedID,
		Target:    params.Sender,
		GasPrice:  params.GasPrice,
		Score:     int(result.ScoreBp),
		TxHash:    params.TxRef,
		CreatedAt: now,
	}
	if err := e.alerts.SendAlert(ctx, alert); err != nil {
		e.logger.Warn("alert delivery failed", zap.Error(err))
	}
}

func (e *Engine) decide(outcome *interfaces.SwapOutcome) *interfaces.SwapOutcome {
	if outcome.Threat == "" {
		outcome.Threat = types.ThreatNone
	}
	if e.recorder != nil {
		e.recorder.RecordDecision(outcome.State)
	}
	return outcome
}

// tightenTolerance halves the configured tolerance for this call only,
// floored at adjustFloorBp.
func tightenTolerance(toleranceBp uint64) uint64 {
	tightened := toleranceBp / 2
	if tightened < adjustFloorBp {
		tightened = adjustFloorBp
	}
	if tightened > toleranceBp {
		tightened = toleranceBp
	}
	return tightened
}

var _ interfaces.ProtectionEngine = (*Engine)(nil)
