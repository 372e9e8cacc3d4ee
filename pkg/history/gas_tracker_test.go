package history

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasTracker_AverageEmpty(t *testing.T) {
	tracker := NewGasTracker(100)

	avg := tracker.Average()
	require.NotNil(t, avg)
	assert.Equal(t, 0, avg.Sign())
	assert.Equal(t, 0, tracker.Samples())
}

func TestGasTracker_SingleSampleNotDiluted(t *testing.T) {
	tracker := NewGasTracker(100)
	tracker.Record(big.NewInt(20_000_000_000)) // 20 gwei

	// One populated slot out of 100: the mean must be the sample itself,
	// not the sample divided by the buffer capacity.
	assert.Equal(t, big.NewInt(20_000_000_000), tracker.Average())
	assert.Equal(t, 1, tracker.Samples())
}

func TestGasTracker_Average(t *testing.T) {
	tests := []struct {
		name    string
		samples []int64
		want    int64
	}{
		{
			name:    "two samples",
			samples: []int64{10, 20},
			want:    15,
		},
		{
			name:    "zero samples excluded from mean",
			samples: []int64{0, 30, 60},
			want:    45,
		},
		{
			name:    "integer division truncates",
			samples: []int64{10, 11},
			want:    10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewGasTracker(100)
			for _, s := range tt.samples {
				tracker.Record(big.NewInt(s))
			}
			assert.Equal(t, big.NewInt(tt.want), tracker.Average())
		})
	}
}

func TestGasTracker_OverwritesOldest(t *testing.T) {
	tracker := NewGasTracker(4)

	for i := int64(1); i <= 4; i++ {
		tracker.Record(big.NewInt(i * 10))
	}
	// Buffer full: 10, 20, 30, 40 -> mean 25.
	assert.Equal(t, big.NewInt(25), tracker.Average())

	// Fifth sample evicts the oldest (10): 50, 20, 30, 40 -> mean 35.
	tracker.Record(big.NewInt(50))
	assert.Equal(t, big.NewInt(35), tracker.Average())
	assert.Equal(t, 4, tracker.Samples())
}

func TestGasTracker_RecordDefensiveCopy(t *testing.T) {
	tracker := NewGasTracker(10)
	price := big.NewInt(100)
	tracker.Record(price)

	price.SetInt64(999)
	assert.Equal(t, big.NewInt(100), tracker.Average())
}

func TestGasTracker_ConcurrentRecord(t *testing.T) {
	tracker := NewGasTracker(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tracker.Record(big.NewInt(1_000_000_000))
				tracker.Average()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, big.NewInt(1_000_000_000), tracker.Average())
	assert.Equal(t, 100, tracker.Samples())
}
