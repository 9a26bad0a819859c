package strategy

import "sync"

// Ledger is the append-only trade list of one instance. The instance
// goroutine opens and closes trades, the feed refreshes PnL and the API
// reads snapshots.
type Ledger struct {
	mu     sync.Mutex
	trades []Trade
}

// Append adds t. IDs are kept strictly increasing.
func (l *Ledger) Append(t Trade) Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.trades); n > 0 && t.ID <= l.trades[n-1].ID {
		t.ID = l.trades[n-1].ID + 1
	}
	l.trades = append(l.trades, t)
	return t
}

// Open returns the open trade, if any.
func (l *Ledger) Open() (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].Status == TradeOpen {
			return l.trades[i], true
		}
	}
	return Trade{}, false
}

// Update applies fn to the trade with id and returns the result.
func (l *Ledger) Update(id int64, fn func(*Trade)) (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.trades {
		if l.trades[i].ID == id {
			fn(&l.trades[i])
			return l.trades[i], true
		}
	}
	return Trade{}, false
}

// MarkPrices recomputes PnL of every open trade whose entry is known.
func (l *Ledger) MarkPrices(bid, ask float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.trades {
		if pnl, ok := l.trades[i].PnLAt(bid, ask); ok {
			l.trades[i].PnL = pnl
		}
	}
}

// Snapshot returns a copy of all trades, oldest first.
func (l *Ledger) Snapshot() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}
