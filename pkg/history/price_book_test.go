package history

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/mev-shield/tx-protection-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceBook_LookupUnknownFeed(t *testing.T) {
	book := NewPriceBook()

	obs := book.Lookup("ETH")
	assert.True(t, obs.IsZero())
	require.NotNil(t, obs.Price)
	assert.Equal(t, 0, obs.Price.Sign())
	assert.True(t, obs.Timestamp.IsZero())
}

func TestPriceBook_UpdateOverwrites(t *testing.T) {
	book := NewPriceBook()
	now := time.Now()

	book.Update(types.PriceObservation{FeedID: "ETH", Price: big.NewInt(2000), Timestamp: now})
	book.Update(types.PriceObservation{FeedID: "ETH", Price: big.NewInt(2100), Timestamp: now.Add(time.Second)})

	obs := book.Lookup("ETH")
	assert.Equal(t, big.NewInt(2100), obs.Price)
	assert.Equal(t, now.Add(time.Second), obs.Timestamp)
	assert.Equal(t, 1, book.Feeds())
}

func TestPriceBook_LookupIdempotent(t *testing.T) {
	book := NewPriceBook()
	book.Update(types.PriceObservation{FeedID: "BTC", Price: big.NewInt(45000), Timestamp: time.Now()})

	first := book.Lookup("BTC")
	second := book.Lookup("BTC")
	assert.Equal(t, first, second)
}

func TestPriceBook_FeedsIndependent(t *testing.T) {
	book := NewPriceBook()
	now := time.Now()

	book.Update(types.PriceObservation{FeedID: "ETH", Price: big.NewInt(2000), Timestamp: now})
	book.Update(types.PriceObservation{FeedID: "BTC", Price: big.NewInt(45000), Timestamp: now})

	assert.Equal(t, big.NewInt(2000), book.Lookup("ETH").Price)
	assert.Equal(t, big.NewInt(45000), book.Lookup("BTC").Price)
	assert.Equal(t, 2, book.Feeds())
}

func TestPriceBook_ConcurrentFeeds(t *testing.T) {
	book := NewPriceBook()
	feeds := []string{"ETH", "BTC", "SOL", "ARB", "OP", "LINK"}

	var wg sync.WaitGroup
	for _, feed := range feeds {
		wg.Add(1)
		go func(feed string) {
			defer wg.Done()
			for i := int64(1); i <= 100; i++ {
				book.Update(types.PriceObservation{FeedID: feed, Price: big.NewInt(i), Timestamp: time.Now()})
				book.Lookup(feed)
			}
		}(feed)
	}
	wg.Wait()

	assert.Equal(t, len(feeds), book.Feeds())
	for _, feed := range feeds {
		assert.Equal(t, big.NewInt(100), book.Lookup(feed).Price)
	}
}
