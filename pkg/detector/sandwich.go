package detector

import (
	"fmt"
	"math/big"

	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// SandwichDetector flags slippage between the caller-declared expected price
// and the oracle-observed price that exceeds the risk threshold.
type SandwichDetector struct {
	RiskThresholdBp uint64
}

// NewSandwichDetector creates a sandwich detector with the given threshold in
// basis points.
func NewSandwichDetector(riskThresholdBp uint64) *SandwichDetector {
	return &SandwichDetector{RiskThresholdBp: riskThresholdBp}
}

// Detect returns whether the slippage strictly exceeds the threshold, along
// with the slippage in basis points. A zero or negative expected price is
// invalid input; the division by expected must never run against it.
func (d *SandwichDetector) Detect(expected, observed *big.Int) (bool, uint64, error) {
	if expected == nil || expected.Sign() <= 0 {
		return false, 0, fmt.Errorf("%w: expected price must be positive", types.ErrInvalidInput)
	}
	if observed == nil || observed.Sign() <= 0 {
		return false, 0, fmt.Errorf("%w: observed price must be positive", types.ErrInvalidInput)
	}

	delta := new(big.Int).Sub(observed, expected)
	delta.Abs(delta)

	slippage := delta.Mul(delta, bpDenominator)
	slippage.Div(slippage, expected)

	bp := clampBp(slippage)
	return bp > d.RiskThresholdBp, bp, nil
}
