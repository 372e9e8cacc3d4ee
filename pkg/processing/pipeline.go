package processing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// PipelineConfig holds configuration for the evaluation pipeline.
type PipelineConfig struct {
	Workers         int           `json:"workers"`
	QueueSize       int           `json:"queue_size"`
	JobTimeout      time.Duration `json:"job_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultPipelineConfig returns the stock pipeline sizing.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Workers:         4,
		QueueSize:       1000,
		JobTimeout:      5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Pipeline consumes transaction observations from the ingestion collaborator
// and drives the full analytics path: trackers, detectors, scorer, alerting.
// Admission order across transactions is not guaranteed; per-feed previous
// observation consistency is the evaluator's job.
type Pipeline struct {
	config    *PipelineConfig
	evaluator interfaces.Evaluator
	scorer    interfaces.RiskScorer
	alerts    interfaces.AlertSink
	recorder  interfaces.MetricsRecorder
	logger    *zap.Logger

	queue  chan *interfaces.Observation
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	processed atomic.Uint64
	threats   atomic.Uint64
	errors    atomic.Uint64
	dropped   atomic.Uint64
}

// NewPipeline creates an evaluation pipeline. A nil config uses the default
// sizing; alerts and recorder may be nil.
func NewPipeline(config *PipelineConfig, evaluator interfaces.Evaluator, scorer interfaces.RiskScorer, alerts interfaces.AlertSink, recorder interfaces.MetricsRecorder, logger *zap.Logger) *Pipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:    config,
		evaluator: evaluator,
		scorer:    scorer,
		alerts:    alerts,
		recorder:  recorder,
		logger:    logger,
		queue:     make(chan *interfaces.Observation, config.QueueSize),
	}
}

// Start launches the worker goroutines.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline is already running")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}
	p.running = true
	p.logger.Info("evaluation pipeline started", zap.Int("workers", p.config.Workers))
	return nil
}

// Stop drains the queue and waits for the workers, bounded by the shutdown
// timeout.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return fmt.Errorf("pipeline is not running")
	}
	p.running = false
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		p.cancel()
		return fmt.Errorf("pipeline shutdown timeout")
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
	p.cancel()
	p.logger.Info("evaluation pipeline stopped")
	return nil
}

// Submit enqueues one observation. A full queue drops the observation and
// returns an error rather than blocking ingestion.
func (p *Pipeline) Submit(ctx context.Context, obs *interfaces.Observation) error {
	if obs == nil || obs.Tx == nil {
		return fmt.Errorf("%w: nil observation", types.ErrInvalidInput)
	}
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return fmt.Errorf("pipeline is not running")
	}

	select {
	case p.queue <- obs:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped.Add(1)
		return fmt.Errorf("pipeline queue is full")
	}
}

// Stats returns current pipeline throughput counters.
func (p *Pipeline) Stats() *interfaces.PipelineStats {
	return &interfaces.PipelineStats{
		Workers:   p.config.Workers,
		QueueSize: len(p.queue),
		Processed: p.processed.Load(),
		Threats:   p.threats.Load(),
		Errors:    p.errors.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case obs, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, obs)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) process(ctx context.Context, obs *interfaces.Observation) {
	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	started := time.Now()
	analysis, err := p.evaluator.Analyze(jobCtx, &interfaces.EvaluationRequest{
		FeedID:        obs.FeedID,
		ExpectedPrice: obs.ExpectedPrice,
		Observed:      obs.Observed,
		GasPrice:      obs.Tx.GasPrice,
		Now:           obs.Tx.Timestamp,
	})
	if err != nil {
		p.errors.Add(1)
		p.logger.Debug("observation rejected",
			zap.String("feed", obs.FeedID),
			zap.String("tx", obs.Tx.Hash.Hex()),
			zap.Error(err))
		return
	}

	p.processed.Add(1)
	score := 0
	if p.scorer != nil {
		score = p.scorer.Score(obs.Tx, analysis.GasAverage, analysis.Findings)
	}

	if p.recorder != nil {
		p.recorder.RecordEvaluation(time.Since(started), &analysis.Inline)
		p.recorder.RecordAnalyticsScore(score)
		p.recorder.RecordGasAverage(analysis.GasAverage)
	}

	if analysis.Inline.IsThreat {
		p.threats.Add(1)
		p.emitAlert(jobCtx, obs, analysis, score)
	}
}

func (p *Pipeline) emitAlert(ctx context.Context, obs *interfaces.Observation, analysis *interfaces.AnalysisResult, score int) {
	if p.alerts == nil {
		return
	}
	alert := &types.Alert{
		Threat:    analysis.Inline.Threat,
		Severity:  types.SeverityForScore(score),
		FeedID:    obs.FeedID,
		Target:    obs.Tx.From,
		GasPrice:  obs.Tx.GasPrice,
		Score:     score,
		TxHash:    obs.Tx.Hash,
		CreatedAt: time.Now(),
	}
	if err := p.alerts.SendAlert(ctx, alert); err != nil {
		p.logger.Warn("alert delivery failed", zap.Error(err))
	}
}

var _ interfaces.ObservationPipeline = (*Pipeline)(nil)
