package balance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trading-bot/pkg/exchanges/common"
)

// Fetcher reads the account balances from the exchange.
type Fetcher interface {
	GetBalances(ctx context.Context) (map[string]common.Balance, error)
}

// Manager keeps a periodically refreshed copy of the account balances for
// read-only consumers. Trade sizing always queries the exchange directly.
type Manager struct {
	exchange     Fetcher
	syncInterval time.Duration
	logger       *zap.Logger

	mu       sync.RWMutex
	balances map[string]common.Balance
	lastSync time.Time
}

// NewManager creates a new balance manager.
func NewManager(exchange Fetcher, syncInterval time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		exchange:     exchange,
		syncInterval: syncInterval,
		logger:       logger.With(zap.String("component", "balance")),
		balances:     make(map[string]common.Balance),
	}
}

// Start syncs once and then every syncInterval until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if err := m.Sync(ctx); err != nil {
		m.logger.Warn("initial balance sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(m.syncInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.Sync(ctx); err != nil {
					m.logger.Warn("balance sync failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sync replaces the cached balances with a fresh snapshot. On error the
// previous snapshot is kept.
func (m *Manager) Sync(ctx context.Context) error {
	balances, err := m.exchange.GetBalances(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.balances = balances
	m.lastSync = time.Now()
	m.mu.Unlock()

	m.logger.Debug("balances synced", zap.Int("assets", len(balances)))
	return nil
}

// Get returns the cached balance of asset.
func (m *Manager) Get(asset string) (common.Balance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[asset]
	return b, ok
}

// Snapshot returns a copy of the cached balances and when they were taken.
func (m *Manager) Snapshot() (map[string]common.Balance, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]common.Balance, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return out, m.lastSync
}
