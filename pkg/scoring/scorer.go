package scoring

import (
	"math/big"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// Weights for the additive analytics score. The highest matching tier per
// factor applies; tiers within a factor never stack. These were calibrated
// ad hoc and are kept together here so retuning touches one place.
type Weights struct {
	GasRatioHigh   int // ratio > 2.0
	GasRatioMedium int // ratio > 1.5
	GasRatioLow    int // ratio > 1.2
	ValueLarge     int // value > 10 units
	ValueMedium    int // value > 1 unit
	Sandwich       int
	Frontrun       int
	Arbitrage      int
}

// DefaultWeights returns the stock weighting table (100-point scale).
func DefaultWeights() Weights {
	return Weights{
		GasRatioHigh:   30,
		GasRatioMedium: 20,
		GasRatioLow:    10,
		ValueLarge:     25,
		ValueMedium:    15,
		Sandwich:       25,
		Frontrun:       20,
		Arbitrage:      15,
	}
}

// MaxScore is the upper bound of the analytics score.
const MaxScore = 100

// scorer implements the additive 0-100 analytics score.
type scorer struct {
	weights Weights
}

// NewScorer creates a risk scorer with the given weights. Zero-value weights
// fall back to the defaults.
func NewScorer(weights Weights) interfaces.RiskScorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &scorer{weights: weights}
}

// Score combines the gas-ratio factor, the value factor and the detector
// findings into a single score clamped to [0, 100]. All ratio comparisons
// are exact integer math; no floats touch the score.
func (s *scorer) Score(tx *types.Transaction, gasAverage *big.Int, findings interfaces.DetectorFindings) int {
	score := 0
	if tx != nil {
		score += s.gasRatioPoints(tx.GasPrice, gasAverage)
		score += s.valuePoints(tx.Value)
	}
	if findings.Sandwich {
		score += s.weights.Sandwich
	}
	if findings.Frontrun {
		score += s.weights.Frontrun
	}
	if findings.Arbitrage {
		score += s.weights.Arbitrage
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// gasRatioPoints awards the highest tier whose ratio bound the gas price
// strictly exceeds: >2.0, >1.5, >1.2 of the rolling average.
func (s *scorer) gasRatioPoints(gasPrice, average *big.Int) int {
	if gasPrice == nil || average == nil || average.Sign() <= 0 {
		return 0
	}
	if ratioExceeds(gasPrice, average, 2, 1) {
		return s.weights.GasRatioHigh
	}
	if ratioExceeds(gasPrice, average, 3, 2) {
		return s.weights.GasRatioMedium
	}
	if ratioExceeds(gasPrice, average, 6, 5) {
		return s.weights.GasRatioLow
	}
	return 0
}

// valuePoints awards the highest matching value tier (18-decimal units).
func (s *scorer) valuePoints(value *big.Int) int {
	if value == nil {
		return 0
	}
	large := new(big.Int).Mul(big.NewInt(10), types.Unit)
	if value.Cmp(large) > 0 {
		return s.weights.ValueLarge
	}
	if value.Cmp(types.Unit) > 0 {
		return s.weights.ValueMedium
	}
	return 0
}

// ratioExceeds reports gasPrice/average > num/den using integer cross
// multiplication.
func ratioExceeds(gasPrice, average *big.Int, num, den int64) bool {
	lhs := new(big.Int).Mul(gasPrice, big.NewInt(den))
	rhs := new(big.Int).Mul(average, big.NewInt(num))
	return lhs.Cmp(rhs) > 0
}
