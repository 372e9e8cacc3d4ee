package scoring

import (
	"math/big"
	"testing"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
	"github.com/stretchr/testify/assert"
)

func unitValue(units int64, extra int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(units), types.Unit)
	return v.Add(v, big.NewInt(extra))
}

func tx(gasPrice int64, value *big.Int) *types.Transaction {
	return &types.Transaction{
		GasPrice: big.NewInt(gasPrice),
		Value:    value,
	}
}

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer(Weights{})
	avg := big.NewInt(100)

	tests := []struct {
		name     string
		tx       *types.Transaction
		findings interfaces.DetectorFindings
		want     int
	}{
		{
			name: "gas ratio above 2.0 and small value",
			tx:   tx(250, unitValue(0, 5e17)), // ratio 2.5, value 0.5 units
			want: 30,
		},
		{
			name: "gas ratio exactly 2.0 falls to 1.5 tier",
			tx:   tx(200, big.NewInt(0)),
			want: 20,
		},
		{
			name: "gas ratio exactly 1.5 falls to 1.2 tier",
			tx:   tx(150, big.NewInt(0)),
			want: 10,
		},
		{
			name: "gas ratio exactly 1.2 scores nothing",
			tx:   tx(120, big.NewInt(0)),
			want: 0,
		},
		{
			name: "value above 10 units",
			tx:   tx(100, unitValue(10, 1)),
			want: 25,
		},
		{
			name: "value above 1 unit",
			tx:   tx(100, unitValue(1, 1)),
			want: 15,
		},
		{
			name: "value tiers do not stack",
			tx:   tx(100, unitValue(100, 0)),
			want: 25,
		},
		{
			name:     "sandwich finding",
			tx:       tx(100, big.NewInt(0)),
			findings: interfaces.DetectorFindings{Sandwich: true},
			want:     25,
		},
		{
			name:     "all factors clamp at 100",
			tx:       tx(1000, unitValue(50, 0)),
			findings: interfaces.DetectorFindings{Sandwich: true, Frontrun: true, Arbitrage: true},
			want:     100, // 30+25+25+20+15 = 115 clamped
		},
		{
			name:     "detectors only",
			tx:       tx(100, big.NewInt(0)),
			findings: interfaces.DetectorFindings{Frontrun: true, Arbitrage: true},
			want:     35,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.tx, avg, tt.findings)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScorer_ColdStartGasAverage(t *testing.T) {
	scorer := NewScorer(Weights{})

	// No gas baseline: the gas factor contributes nothing.
	got := scorer.Score(tx(1_000_000, big.NewInt(0)), big.NewInt(0), interfaces.DetectorFindings{})
	assert.Zero(t, got)
}

func TestScorer_MonotonicInGasRatio(t *testing.T) {
	scorer := NewScorer(Weights{})
	avg := big.NewInt(100)

	prev := 0
	for _, gas := range []int64{50, 110, 125, 160, 210, 500} {
		got := scorer.Score(tx(gas, big.NewInt(0)), avg, interfaces.DetectorFindings{})
		assert.GreaterOrEqual(t, got, prev, "score must not decrease as gas ratio grows (gas=%d)", gas)
		assert.LessOrEqual(t, got, MaxScore)
		prev = got
	}
}

func TestScorer_MonotonicInValue(t *testing.T) {
	scorer := NewScorer(Weights{})
	avg := big.NewInt(100)

	prev := 0
	for _, units := range []int64{0, 1, 2, 9, 11, 1000} {
		got := scorer.Score(tx(100, unitValue(units, 1)), avg, interfaces.DetectorFindings{})
		assert.GreaterOrEqual(t, got, prev, "score must not decrease as value grows (units=%d)", units)
		assert.LessOrEqual(t, got, MaxScore)
		prev = got
	}
}

func TestSeverityTiers(t *testing.T) {
	tests := []struct {
		score int
		want  types.Severity
	}{
		{score: 100, want: types.SeverityCritical},
		{score: 76, want: types.SeverityCritical},
		{score: 75, want: types.SeverityHigh},
		{score: 51, want: types.SeverityHigh},
		{score: 50, want: types.SeverityMedium},
		{score: 26, want: types.SeverityMedium},
		{score: 25, want: types.SeverityLow},
		{score: 0, want: types.SeverityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, types.SeverityForScore(tt.score), "score %d", tt.score)
	}
}
