package protection

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// MemoryConfigStore keeps per-user protection configurations in memory.
// Put replaces the whole configuration; nothing is merged.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[common.Address]types.ProtectionConfig
}

// NewMemoryConfigStore creates an empty configuration store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{
		configs: make(map[common.Address]types.ProtectionConfig),
	}
}

// Get returns a copy of the stored configuration for the owner.
func (s *MemoryConfigStore) Get(owner common.Address) (*types.ProtectionConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[owner]
	if !ok {
		return nil, false
	}
	out := cfg
	out.Whitelist = append([]common.Address(nil), cfg.Whitelist...)
	return &out, true
}

// Put overwrites the configuration for cfg.Owner.
func (s *MemoryConfigStore) Put(cfg *types.ProtectionConfig) {
	if cfg == nil {
		return
	}
	stored := *cfg
	stored.Whitelist = append([]common.Address(nil), cfg.Whitelist...)
	s.mu.Lock()
	s.configs[cfg.Owner] = stored
	s.mu.Unlock()
}

// Deactivate clears the active flag for the owner, returning false when no
// configuration exists.
func (s *MemoryConfigStore) Deactivate(owner common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[owner]
	if !ok {
		return false
	}
	cfg.Active = false
	cfg.UpdatedAt = time.Now()
	s.configs[owner] = cfg
	return true
}

var _ interfaces.ConfigStore = (*MemoryConfigStore)(nil)
