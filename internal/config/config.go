package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the protection engine.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Protection ProtectionConfig `mapstructure:"protection"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig contains API server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DetectionConfig contains the operator-tunable detection thresholds.
type DetectionConfig struct {
	RiskThresholdBp       uint64        `mapstructure:"risk_threshold_bp"`
	MinPriceDeltaBp       uint64        `mapstructure:"min_price_delta_bp"`
	FrontrunGasMultiplier uint64        `mapstructure:"frontrun_gas_multiplier"`
	ArbitrageWindow       time.Duration `mapstructure:"arbitrage_window"`
	OracleFreshness       time.Duration `mapstructure:"oracle_freshness"`
	GasHistorySize        int           `mapstructure:"gas_history_size"`
}

// ProtectionConfig contains decision-engine configuration.
type ProtectionConfig struct {
	FeeBp uint64 `mapstructure:"fee_bp"`
}

// PipelineConfig contains evaluation pipeline sizing.
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IngestConfig contains the transaction stream source configuration.
type IngestConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	StreamURL         string        `mapstructure:"stream_url"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
}

// MonitoringConfig contains alerting and metrics configuration.
type MonitoringConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxAlerts       int           `mapstructure:"max_alerts"`
	AlertWebhookURL string        `mapstructure:"alert_webhook_url"`
	WebhookTimeout  time.Duration `mapstructure:"webhook_timeout"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the engine must not start with.
func (c *Config) Validate() error {
	if c.Detection.RiskThresholdBp > 10000 {
		return fmt.Errorf("detection.risk_threshold_bp %d exceeds 10000", c.Detection.RiskThresholdBp)
	}
	if c.Detection.FrontrunGasMultiplier < 100 {
		return fmt.Errorf("detection.frontrun_gas_multiplier %d must be at least 100", c.Detection.FrontrunGasMultiplier)
	}
	if c.Protection.FeeBp > 500 {
		return fmt.Errorf("protection.fee_bp %d exceeds the 500bp cap", c.Protection.FeeBp)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Detection defaults; calibrated ad hoc, tune per deployment.
	viper.SetDefault("detection.risk_threshold_bp", 500)
	viper.SetDefault("detection.min_price_delta_bp", 100)
	viper.SetDefault("detection.frontrun_gas_multiplier", 120)
	viper.SetDefault("detection.arbitrage_window", "30s")
	viper.SetDefault("detection.oracle_freshness", "300s")
	viper.SetDefault("detection.gas_history_size", 100)

	// Protection defaults
	viper.SetDefault("protection.fee_bp", 100)

	// Pipeline defaults
	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.queue_size", 1000)
	viper.SetDefault("pipeline.job_timeout", "5s")
	viper.SetDefault("pipeline.shutdown_timeout", "10s")

	// Ingest defaults
	viper.SetDefault("ingest.enabled", false)
	viper.SetDefault("ingest.stream_url", "")
	viper.SetDefault("ingest.reconnect_delay", "1s")
	viper.SetDefault("ingest.max_reconnect_delay", "60s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.max_alerts", 1000)
	viper.SetDefault("monitoring.webhook_timeout", "10s")
}
