package history

import (
	"hash/fnv"
	"math/big"
	"sync"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

const priceBookShards = 16

// PriceBook keeps the latest observation per feed. Only the most recent
// observation is stored; Update overwrites. Feeds are sharded so concurrent
// evaluations for different feeds do not contend on one lock.
type PriceBook struct {
	shards [priceBookShards]priceShard
}

type priceShard struct {
	mu    sync.RWMutex
	feeds map[string]types.PriceObservation
}

// NewPriceBook creates an empty price book.
func NewPriceBook() *PriceBook {
	b := &PriceBook{}
	for i := range b.shards {
		b.shards[i].feeds = make(map[string]types.PriceObservation)
	}
	return b
}

func (b *PriceBook) shard(feedID string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(feedID))
	return &b.shards[h.Sum32()%priceBookShards]
}

// Update overwrites the stored observation for the feed.
func (b *PriceBook) Update(obs types.PriceObservation) {
	if obs.FeedID == "" {
		return
	}
	s := b.shard(obs.FeedID)
	s.mu.Lock()
	s.feeds[obs.FeedID] = obs
	s.mu.Unlock()
}

// Lookup returns the latest observation for the feed, or the zero sentinel
// (price 0, timestamp 0) for a feed that has never been observed.
func (b *PriceBook) Lookup(feedID string) types.PriceObservation {
	s := b.shard(feedID)
	s.mu.RLock()
	obs, ok := s.feeds[feedID]
	s.mu.RUnlock()
	if !ok {
		return types.PriceObservation{FeedID: feedID, Price: new(big.Int)}
	}
	return obs
}

// Feeds returns the number of feeds observed at least once.
func (b *PriceBook) Feeds() int {
	n := 0
	for i := range b.shards {
		b.shards[i].mu.RLock()
		n += len(b.shards[i].feeds)
		b.shards[i].mu.RUnlock()
	}
	return n
}

var _ interfaces.PriceBook = (*PriceBook)(nil)
