package detector

import (
	"math/big"
	"time"

	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// ArbitrageDetector flags rapid price swings between consecutive
// observations of the same feed.
type ArbitrageDetector struct {
	MinDeltaBp uint64
	Window     time.Duration
}

// NewArbitrageDetector creates an arbitrage detector with the given minimum
// delta (basis points) and observation window.
func NewArbitrageDetector(minDeltaBp uint64, window time.Duration) *ArbitrageDetector {
	return &ArbitrageDetector{MinDeltaBp: minDeltaBp, Window: window}
}

// Detect compares the current observation against the previous one for the
// feed. The previous observation is the caller's pre-update snapshot; the
// detector never reads shared state. A feed seen for the first time (zero
// sentinel) can never fire, nor can observations spaced wider than the
// window.
func (d *ArbitrageDetector) Detect(prev, cur types.PriceObservation) (bool, uint64) {
	if prev.IsZero() || prev.Price == nil || prev.Price.Sign() <= 0 {
		return false, 0
	}
	if cur.Price == nil || cur.Price.Sign() <= 0 {
		return false, 0
	}
	elapsed := cur.Timestamp.Sub(prev.Timestamp)
	if elapsed < 0 || elapsed > d.Window {
		return false, 0
	}

	delta := new(big.Int).Sub(cur.Price, prev.Price)
	delta.Abs(delta)
	delta.Mul(delta, bpDenominator)
	delta.Div(delta, prev.Price)

	bp := clampBp(delta)
	return bp > d.MinDeltaBp, bp
}
