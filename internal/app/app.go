package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/internal/api"
	"github.com/mev-shield/tx-protection-engine/internal/config"
	"github.com/mev-shield/tx-protection-engine/pkg/detector"
	"github.com/mev-shield/tx-protection-engine/pkg/history"
	"github.com/mev-shield/tx-protection-engine/pkg/ingest"
	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/metrics"
	"github.com/mev-shield/tx-protection-engine/pkg/processing"
	"github.com/mev-shield/tx-protection-engine/pkg/protection"
	"github.com/mev-shield/tx-protection-engine/pkg/scoring"
)

// Application owns the long-running components: the API server, the
// evaluation pipeline and the optional ingest stream.
type Application struct {
	config   *config.Config
	server   *api.Server
	pipeline interfaces.ObservationPipeline
	stream   *ingest.StreamClient
	logger   *zap.Logger
}

// NewApplication assembles the application from its wired components. The
// stream client is nil when ingestion is disabled.
func NewApplication(cfg *config.Config, server *api.Server, pipeline interfaces.ObservationPipeline, stream *ingest.StreamClient, logger *zap.Logger) *Application {
	return &Application{
		config:   cfg,
		server:   server,
		pipeline: pipeline,
		stream:   stream,
		logger:   logger,
	}
}

// Start brings the components up: pipeline first, then ingest, then the API.
func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("starting protection engine",
		zap.String("host", a.config.Server.Host),
		zap.Int("port", a.config.Server.Port))

	if err := a.pipeline.Start(ctx); err != nil {
		return err
	}
	if a.stream != nil {
		if err := a.stream.Start(ctx); err != nil {
			return err
		}
	}
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("protection engine started")
	return nil
}

// Stop shuts the components down in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	a.logger.Info("stopping protection engine")

	var firstErr error
	if err := a.server.Stop(ctx); err != nil {
		firstErr = err
	}
	if a.stream != nil {
		if err := a.stream.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.pipeline.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	a.logger.Info("protection engine stopped")
	return firstErr
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return zap.NewProduction()
}

func newDetectorConfig(cfg *config.Config) *interfaces.DetectorConfig {
	return &interfaces.DetectorConfig{
		RiskThresholdBp:       cfg.Detection.RiskThresholdBp,
		MinPriceDeltaBp:       cfg.Detection.MinPriceDeltaBp,
		FrontrunGasMultiplier: cfg.Detection.FrontrunGasMultiplier,
		ArbitrageWindow:       cfg.Detection.ArbitrageWindow,
		OracleFreshness:       cfg.Detection.OracleFreshness,
	}
}

func newGasHistory(cfg *config.Config) interfaces.GasHistory {
	return history.NewGasTracker(cfg.Detection.GasHistorySize)
}

func newPriceBook() interfaces.PriceBook {
	return history.NewPriceBook()
}

func newEvaluator(dc *interfaces.DetectorConfig, gas interfaces.GasHistory, prices interfaces.PriceBook, logger *zap.Logger) interfaces.Evaluator {
	return detector.NewEvaluator(dc, gas, prices, logger)
}

func newScorer() interfaces.RiskScorer {
	return scoring.NewScorer(scoring.DefaultWeights())
}

func newRecorder() interfaces.MetricsRecorder {
	return metrics.NewCollector()
}

func newAlertManager(cfg *config.Config, logger *zap.Logger) interfaces.AlertManager {
	return metrics.NewAlertManager(&metrics.AlertManagerConfig{
		MaxAlerts:      cfg.Monitoring.MaxAlerts,
		EnableWebhooks: cfg.Monitoring.AlertWebhookURL != "",
		WebhookURL:     cfg.Monitoring.AlertWebhookURL,
		WebhookTimeout: cfg.Monitoring.WebhookTimeout,
	}, logger)
}

func newEngine(cfg *config.Config, evaluator interfaces.Evaluator, alerts interfaces.AlertManager, recorder interfaces.MetricsRecorder, logger *zap.Logger) (interfaces.ProtectionEngine, error) {
	executor, err := protection.NewSimulatedExecutor(cfg.Protection.FeeBp)
	if err != nil {
		return nil, err
	}
	return protection.NewEngine(protection.NewMemoryConfigStore(), evaluator, executor, logger,
		protection.WithAlertSink(alerts),
		protection.WithMetricsRecorder(recorder)), nil
}

func newPipeline(cfg *config.Config, evaluator interfaces.Evaluator, scorer interfaces.RiskScorer, alerts interfaces.AlertManager, recorder interfaces.MetricsRecorder, logger *zap.Logger) interfaces.ObservationPipeline {
	return processing.NewPipeline(&processing.PipelineConfig{
		Workers:         cfg.Pipeline.Workers,
		QueueSize:       cfg.Pipeline.QueueSize,
		JobTimeout:      cfg.Pipeline.JobTimeout,
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
	}, evaluator, scorer, alerts, recorder, logger)
}

func newStreamClient(cfg *config.Config, pipeline interfaces.ObservationPipeline, logger *zap.Logger) (*ingest.StreamClient, error) {
	if !cfg.Ingest.Enabled {
		return nil, nil
	}
	sc := ingest.DefaultStreamConfig(cfg.Ingest.StreamURL)
	sc.ReconnectDelay = cfg.Ingest.ReconnectDelay
	sc.MaxReconnectDelay = cfg.Ingest.MaxReconnectDelay
	return ingest.NewStreamClient(sc, pipeline, logger)
}

func newServer(cfg *config.Config, evaluator interfaces.Evaluator, scorer interfaces.RiskScorer, engine interfaces.ProtectionEngine, recorder interfaces.MetricsRecorder, alerts interfaces.AlertManager, pipeline interfaces.ObservationPipeline, logger *zap.Logger) *api.Server {
	return api.NewServer(&cfg.Server, evaluator, scorer, engine, recorder, alerts, pipeline, logger)
}

// Module provides the fx module for dependency injection.
var Module = fx.Options(
	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger}
	}),
	fx.Provide(
		newLogger,
		newDetectorConfig,
		newGasHistory,
		newPriceBook,
		newEvaluator,
		newScorer,
		newRecorder,
		newAlertManager,
		newEngine,
		newPipeline,
		newStreamClient,
		newServer,
		NewApplication,
	),
)
