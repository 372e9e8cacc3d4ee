package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			RiskThresholdBp:       500,
			MinPriceDeltaBp:       100,
			FrontrunGasMultiplier: 120,
			ArbitrageWindow:       30 * time.Second,
			OracleFreshness:       300 * time.Second,
			GasHistorySize:        100,
		},
		Protection: ProtectionConfig{FeeBp: 100},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("risk threshold over 10000bp", func(t *testing.T) {
		cfg := validConfig()
		cfg.Detection.RiskThresholdBp = 10001
		assert.Error(t, cfg.Validate())
	})

	t.Run("gas multiplier below 100", func(t *testing.T) {
		cfg := validConfig()
		cfg.Detection.FrontrunGasMultiplier = 99
		assert.Error(t, cfg.Validate())
	})

	t.Run("fee over cap", func(t *testing.T) {
		cfg := validConfig()
		cfg.Protection.FeeBp = 501
		assert.Error(t, cfg.Validate())
	})
}
