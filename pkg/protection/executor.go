package protection

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// SimulatedExecutor prices a swap off the supplied oracle observation and
// deducts the protection fee. It stands in for the on-chain execution
// collaborator; the engine only consumes its realized output amount.
type SimulatedExecutor struct {
	FeeBp uint64
}

// MaxProtectionFeeBp caps the operator-configurable protection fee.
const MaxProtectionFeeBp = 500

// NewSimulatedExecutor creates an executor charging the given fee in basis
// points.
func NewSimulatedExecutor(feeBp uint64) (*SimulatedExecutor, error) {
	if feeBp > MaxProtectionFeeBp {
		return nil, fmt.Errorf("%w: protection fee %dbp exceeds %dbp cap", types.ErrInvalidInput, feeBp, MaxProtectionFeeBp)
	}
	return &SimulatedExecutor{FeeBp: feeBp}, nil
}

// Execute converts amountIn at the observed price and deducts the fee.
func (e *SimulatedExecutor) Execute(ctx context.Context, params *interfaces.SwapParams, maxSlippageBp uint64) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.Observed.Price == nil || params.Observed.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: observed price must be positive", types.ErrInvalidInput)
	}

	out := new(big.Int).Mul(params.AmountIn, params.Observed.Price)
	out.Div(out, types.Unit)

	fee := new(big.Int).SetUint64(10000 - e.FeeBp)
	out.Mul(out, fee)
	out.Div(out, big.NewInt(10000))
	return out, nil
}

var _ interfaces.SwapExecutor = (*SimulatedExecutor)(nil)
