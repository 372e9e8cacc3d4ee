package detector

import "math/big"

// FrontrunDetector flags gas prices anomalously above the rolling average.
type FrontrunDetector struct {
	// GasMultiplier is a percentage: 120 means "fires above 120% of the
	// rolling average".
	GasMultiplier uint64
}

// NewFrontrunDetector creates a front-run detector with the given multiplier.
func NewFrontrunDetector(gasMultiplier uint64) *FrontrunDetector {
	return &FrontrunDetector{GasMultiplier: gasMultiplier}
}

// Detect returns whether the transaction's gas price exceeds
// average * multiplier / 100, along with the excess over the average in
// basis points. With no gas history yet (average 0) there is no baseline
// to compare against and the detector never fires.
func (d *FrontrunDetector) Detect(gasPrice, average *big.Int) (bool, uint64) {
	if gasPrice == nil || average == nil || average.Sign() == 0 {
		return false, 0
	}

	limit := new(big.Int).Mul(average, new(big.Int).SetUint64(d.GasMultiplier))
	limit.Div(limit, big.NewInt(100))
	if gasPrice.Cmp(limit) <= 0 {
		return false, 0
	}

	excess := new(big.Int).Sub(gasPrice, average)
	excess.Mul(excess, bpDenominator)
	excess.Div(excess, average)
	return true, clampBp(excess)
}
