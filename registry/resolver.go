package registry

import (
	"encoding/hex"
	"fmt"
	"sync"

	"swapmarket/native/swap"
)

// StaticResolver maps registry addresses to their capability implementations
// from a fixed table populated at wiring time.
type StaticResolver struct {
	mu         sync.RWMutex
	registries map[[20]byte]swap.TokenRegistry
}

// NewStaticResolver creates an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{registries: make(map[[20]byte]swap.TokenRegistry)}
}

// Register binds a registry address to its implementation, replacing any
// previous binding.
func (r *StaticResolver) Register(addr [20]byte, reg swap.TokenRegistry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registries[addr] = reg
}

// Registry implements swap.RegistryResolver.
func (r *StaticResolver) Registry(addr [20]byte) (swap.TokenRegistry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registries[addr]
	if !ok {
		return nil, fmt.Errorf("registry: no registry bound to 0x%s", hex.EncodeToString(addr[:]))
	}
	return reg, nil
}
