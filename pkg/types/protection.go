package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Strategy selects how the protection engine reacts to a detected threat.
type Strategy string

const (
	StrategyRevert       Strategy = "revert"
	StrategyAdjust       Strategy = "adjust"
	StrategyDelay        Strategy = "delay"
	StrategyPrivateRelay Strategy = "private_relay"
)

// MaxSlippageCapBp is the hard cap on a user's configured slippage tolerance.
const MaxSlippageCapBp = 1000

// ProtectionConfig is the per-user protection configuration. Reconfiguration
// replaces the whole value; fields are never merged.
type ProtectionConfig struct {
	Owner         common.Address   `json:"owner"`
	Active        bool             `json:"active"`
	Strategy      Strategy         `json:"strategy"`
	MaxSlippageBp uint64           `json:"maxSlippageBp"`
	GasLimitFloor uint64           `json:"gasLimitFloor"`
	WhitelistMode bool             `json:"whitelistMode"`
	Whitelist     []common.Address `json:"whitelist,omitempty"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Validate checks the configuration before it is written to the store.
func (c *ProtectionConfig) Validate() error {
	switch c.Strategy {
	case StrategyRevert, StrategyAdjust, StrategyDelay, StrategyPrivateRelay:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, c.Strategy)
	}
	if c.MaxSlippageBp > MaxSlippageCapBp {
		return fmt.Errorf("%w: max slippage %dbp exceeds %dbp cap", ErrInvalidInput, c.MaxSlippageBp, MaxSlippageCapBp)
	}
	if c.WhitelistMode && len(c.Whitelist) == 0 {
		return fmt.Errorf("%w: whitelist mode requires at least one token", ErrInvalidInput)
	}
	return nil
}

// IsWhitelisted reports whether the token is on the allow-list. Always true
// when whitelist mode is off.
func (c *ProtectionConfig) IsWhitelisted(token common.Address) bool {
	if !c.WhitelistMode {
		return true
	}
	for _, t := range c.Whitelist {
		if t == token {
			return true
		}
	}
	return false
}
