package interfaces

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// ProtectionEngine is the swap-gating entry point. Each call is evaluated
// fresh; the engine keeps no per-swap state beyond the delay book.
type ProtectionEngine interface {
	ProtectSwap(ctx context.Context, owner common.Address, params *SwapParams) (*SwapOutcome, error)
	Configure(ctx context.Context, cfg *types.ProtectionConfig) error
	GetConfig(owner common.Address) (*types.ProtectionConfig, error)
	EmergencyStop(ctx context.Context, owner common.Address) error
}

// ConfigStore persists per-user protection configurations.
type ConfigStore interface {
	Get(owner common.Address) (*types.ProtectionConfig, bool)
	Put(cfg *types.ProtectionConfig)
	Deactivate(owner common.Address) bool
}

// SwapExecutor performs (or simulates) the actual swap once the engine has
// allowed it. maxSlippageBp is the effective tolerance for this call.
type SwapExecutor interface {
	Execute(ctx context.Context, params *SwapParams, maxSlippageBp uint64) (*big.Int, error)
}

// AlertSink receives one-way threat notifications.
type AlertSink interface {
	SendAlert(ctx context.Context, alert *types.Alert) error
}

// SwapParams describes one pending swap presented to the engine.
type SwapParams struct {
	FeedID        string                 `json:"feedId"`
	TokenIn       common.Address         `json:"tokenIn"`
	TokenOut      common.Address         `json:"tokenOut"`
	AmountIn      *big.Int               `json:"amountIn"`
	MinAmountOut  *big.Int               `json:"minAmountOut"`
	ExpectedPrice *big.Int               `json:"expectedPrice"`
	Observed      types.PriceObservation `json:"observed"`
	GasPrice      *big.Int               `json:"gasPrice"`
	Deadline      time.Time              `json:"deadline"`
	TxRef         common.Hash            `json:"txRef,omitempty"`
	Sender        common.Address         `json:"sender,omitempty"`
}

// SwapState is the terminal state of one protection evaluation.
type SwapState string

const (
	SwapAllowed  SwapState = "allowed"
	SwapBlocked  SwapState = "blocked"
	SwapDelayed  SwapState = "delayed"
	SwapRerouted SwapState = "rerouted"
)

// SwapOutcome reports what the engine decided and, when the swap ran, the
// realized output amount.
type SwapOutcome struct {
	Executed       bool             `json:"executed"`
	State          SwapState        `json:"state"`
	AmountOut      *big.Int         `json:"amountOut,omitempty"`
	Threat         types.ThreatType `json:"threat"`
	ScoreBp        uint64           `json:"scoreBp"`
	RetryNotBefore time.Time        `json:"retryNotBefore,omitempty"`
}
