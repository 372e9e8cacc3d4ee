package detector

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrontrunDetector_Detect(t *testing.T) {
	detector := NewFrontrunDetector(120)

	tests := []struct {
		name     string
		gasPrice int64
		average  int64
		wantHit  bool
		wantBp   uint64
	}{
		{
			name:     "cold start never fires regardless of gas price",
			gasPrice: 1_000_000_000_000,
			average:  0,
			wantHit:  false,
		},
		{
			name:     "at the multiplier boundary does not fire",
			gasPrice: 120,
			average:  100,
			wantHit:  false,
		},
		{
			name:     "above the multiplier fires",
			gasPrice: 121,
			average:  100,
			wantHit:  true,
			wantBp:   2100, // 21% above average
		},
		{
			name:     "double the average fires",
			gasPrice: 200,
			average:  100,
			wantHit:  true,
			wantBp:   10000,
		},
		{
			name:     "triple the average clamps at 10000bp",
			gasPrice: 300,
			average:  100,
			wantHit:  true,
			wantBp:   10000,
		},
		{
			name:     "below average does not fire",
			gasPrice: 80,
			average:  100,
			wantHit:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, bp := detector.Detect(big.NewInt(tt.gasPrice), big.NewInt(tt.average))
			assert.Equal(t, tt.wantHit, hit)
			assert.Equal(t, tt.wantBp, bp)
		})
	}
}

func TestFrontrunDetector_NilInputs(t *testing.T) {
	detector := NewFrontrunDetector(120)

	hit, bp := detector.Detect(nil, big.NewInt(100))
	assert.False(t, hit)
	assert.Zero(t, bp)

	hit, bp = detector.Detect(big.NewInt(100), nil)
	assert.False(t, hit)
	assert.Zero(t, bp)
}
