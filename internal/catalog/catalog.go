package catalog

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"trading-bot/pkg/exchanges/common"
)

// Loader fetches the full instrument list. It returns an empty map on
// failure.
type Loader interface {
	LoadContracts(ctx context.Context) map[string]common.Contract
}

// Catalog is the read-mostly set of tradable contracts.
type Catalog struct {
	loader Loader
	logger *zap.Logger

	mu        sync.RWMutex
	contracts map[string]common.Contract
}

// New builds an empty catalog; call Reload to populate it.
func New(loader Loader, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		loader:    loader,
		logger:    logger.With(zap.String("component", "catalog")),
		contracts: make(map[string]common.Contract),
	}
}

// Reload refreshes the catalog. An empty result keeps the previous contents
// so a transient outage does not wipe known instruments.
func (c *Catalog) Reload(ctx context.Context) int {
	fresh := c.loader.LoadContracts(ctx)
	if len(fresh) == 0 {
		c.logger.Warn("catalog reload returned no contracts; keeping previous set")
		return c.Len()
	}
	c.mu.Lock()
	c.contracts = fresh
	c.mu.Unlock()
	return len(fresh)
}

// Get returns the contract for symbol.
func (c *Catalog) Get(symbol string) (common.Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.contracts[symbol]
	return ct, ok
}

// Len returns the number of known contracts.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.contracts)
}

// Symbols returns all known symbols, sorted.
func (c *Catalog) Symbols() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.contracts))
	for s := range c.contracts {
		out = append(out, s)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
