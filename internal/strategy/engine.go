package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"trading-bot/internal/events"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/common"
	market "trading-bot/pkg/market/binance"
)

// Engine is the registry of running strategy instances and the dispatch
// point for stream events.
type Engine struct {
	deps   Deps
	logger *zap.Logger

	mu        sync.RWMutex
	instances map[string]*running
}

type running struct {
	inst   *Instance
	cancel context.CancelFunc
}

// Snapshot is a read-only view of one instance.
type Snapshot struct {
	Config   Config          `json:"config"`
	Contract common.Contract `json:"contract"`
	Trades   []Trade         `json:"trades"`
}

// NewEngine builds an empty engine.
func NewEngine(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{
		deps:      deps,
		logger:    deps.Logger.With(zap.String("component", "strategy-engine")),
		instances: make(map[string]*running),
	}
}

// Start builds and launches an instance for cfg.
func (e *Engine) Start(ctx context.Context, cfg Config) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	contract, ok := e.deps.Contracts.Get(cfg.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, cfg.Symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.instances[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, cfg.ID)
	}
	inst, err := newInstance(cfg, contract, e.deps)
	if err != nil {
		return nil, err
	}
	ictx, cancel := context.WithCancel(ctx)
	inst.start(ictx)
	e.instances[cfg.ID] = &running{inst: inst, cancel: cancel}

	e.logger.Info("strategy instance started", zap.String("strategy", cfg.ID), zap.String("symbol", cfg.Symbol))
	return inst, nil
}

// Stop cancels the instance and waits for its loop to exit. Trades stay
// in the returned instance's ledger.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	r, ok := e.instances[id]
	delete(e.instances, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	r.cancel()
	<-r.inst.Done()
	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.EventStrategyStop, id)
	}
	return nil
}

// StopAll stops every instance.
func (e *Engine) StopAll() {
	for _, inst := range e.Instances() {
		_ = e.Stop(inst.ID())
	}
}

// Get returns the running instance with id.
func (e *Engine) Get(id string) (*Instance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.instances[id]
	if !ok {
		return nil, false
	}
	return r.inst, true
}

// Instances returns the running instances ordered by id.
func (e *Engine) Instances() []*Instance {
	e.mu.RLock()
	out := make([]*Instance, 0, len(e.instances))
	for _, r := range e.instances {
		out = append(out, r.inst)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].ID() < out[b].ID() })
	return out
}

// ForSymbol returns the instances trading symbol.
func (e *Engine) ForSymbol(symbol string) []*Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Instance
	for _, r := range e.instances {
		if r.inst.cfg.Symbol == symbol {
			out = append(out, r.inst)
		}
	}
	return out
}

// Snapshot returns a copy of every instance's configuration and ledger.
func (e *Engine) Snapshot() []Snapshot {
	insts := e.Instances()
	out := make([]Snapshot, 0, len(insts))
	for _, inst := range insts {
		out = append(out, Snapshot{Config: inst.Config(), Contract: inst.Contract(), Trades: inst.Trades()})
	}
	return out
}

// Trades returns the ledger of instance id.
func (e *Engine) Trades(id string) ([]Trade, bool) {
	inst, ok := e.Get(id)
	if !ok {
		return nil, false
	}
	return inst.Trades(), true
}

// Logs returns the activity log of instance id. With pendingOnly set, only
// entries not yet displayed are returned and they are marked displayed.
func (e *Engine) Logs(id string, pendingOnly bool) ([]LogEntry, bool) {
	inst, ok := e.Get(id)
	if !ok {
		return nil, false
	}
	if pendingOnly {
		return inst.PendingLogs(), true
	}
	return inst.Logs(), true
}

// Configs returns the configurations of the running instances.
func (e *Engine) Configs() []Config {
	insts := e.Instances()
	out := make([]Config, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.Config())
	}
	return out
}

// OnQuote refreshes PnL of every instance bound to symbol.
func (e *Engine) OnQuote(symbol string, bid, ask float64) {
	for _, inst := range e.ForSymbol(symbol) {
		inst.OnQuote(bid, ask)
	}
}

// OnTrade hands a trade tick to every instance bound to its symbol.
func (e *Engine) OnTrade(t market.Trade) {
	for _, inst := range e.ForSymbol(t.Symbol) {
		inst.Enqueue(t)
	}
}

// StrategySource loads persisted strategy rows.
type StrategySource interface {
	LoadStrategies(ctx context.Context) ([]db.StrategyRow, error)
}

// LoadFromStore starts every saved strategy. Rows that cannot start are
// logged and skipped; the returned error joins their failures.
func (e *Engine) LoadFromStore(ctx context.Context, store StrategySource) (int, error) {
	rows, err := store.LoadStrategies(ctx)
	if err != nil {
		return 0, fmt.Errorf("load strategies: %w", err)
	}

	started := 0
	var errs []error
	for _, row := range rows {
		if _, err := e.Start(ctx, ConfigFromRow(row)); err != nil {
			e.logger.Warn("saved strategy not started", zap.String("strategy", row.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		started++
	}
	return started, errors.Join(errs...)
}
