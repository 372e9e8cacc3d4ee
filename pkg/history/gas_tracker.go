package history

import (
	"math/big"
	"sync"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
)

// DefaultGasWindowSize is the fixed sample capacity of the gas tracker.
const DefaultGasWindowSize = 100

// GasTracker is a fixed-capacity ring buffer of observed gas prices. Writes
// overwrite the oldest slot once the buffer is full. The buffer is a single
// shared resource; a mutex serializes Record against Average.
type GasTracker struct {
	mu      sync.Mutex
	samples []*big.Int
	cursor  int
	count   int
}

// NewGasTracker creates a gas tracker with the given capacity. A capacity of
// zero or less falls back to DefaultGasWindowSize.
func NewGasTracker(capacity int) *GasTracker {
	if capacity <= 0 {
		capacity = DefaultGasWindowSize
	}
	return &GasTracker{
		samples: make([]*big.Int, capacity),
	}
}

// Record appends a gas price sample, overwriting the oldest slot when full.
func (g *GasTracker) Record(gasPrice *big.Int) {
	if gasPrice == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.samples[g.cursor] = new(big.Int).Set(gasPrice)
	g.cursor = (g.cursor + 1) % len(g.samples)
	if g.count < len(g.samples) {
		g.count++
	}
}

// Average returns the arithmetic mean of the populated non-zero slots, or 0
// when no samples have ever been recorded. Never-written slots hold the zero
// sentinel and are excluded so a cold-start buffer does not bias the mean.
func (g *GasTracker) Average() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()

	sum := new(big.Int)
	n := 0
	for _, s := range g.samples {
		if s == nil || s.Sign() == 0 {
			continue
		}
		sum.Add(sum, s)
		n++
	}
	if n == 0 {
		return new(big.Int)
	}
	return sum.Div(sum, big.NewInt(int64(n)))
}

// Samples returns how many slots have been written so far, capped at the
// buffer capacity.
func (g *GasTracker) Samples() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

var _ interfaces.GasHistory = (*GasTracker)(nil)
