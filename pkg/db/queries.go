package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// WatchlistEntry is one symbol pinned in the workspace.
type WatchlistEntry struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// StrategyRow is a persisted strategy instance configuration.
// TakeProfit and StopLoss are percentages; zero disables them.
type StrategyRow struct {
	ID          string             `json:"id"`
	Type        string             `json:"strategy_type"`
	Contract    string             `json:"contract"`
	Timeframe   string             `json:"timeframe"`
	BalancePct  float64            `json:"balance_pct"`
	TakeProfit  float64            `json:"take_profit"`
	StopLoss    float64            `json:"stop_loss"`
	ExtraParams map[string]float64 `json:"extra_params"`
}

// TradeRow mirrors one ledger entry.
type TradeRow struct {
	ID           int64
	StrategyID   string
	Symbol       string
	Side         string
	Quantity     float64
	EntryPrice   sql.NullFloat64
	EntryOrderID int64
	Status       string
	PnL          float64
	ExitReason   string
	OpenedAt     time.Time
	ClosedAt     sql.NullTime
}

// Store holds the workspace queries.
type Store struct {
	db *sql.DB
}

// SaveWatchlist replaces the watchlist with entries.
func (s *Store) SaveWatchlist(ctx context.Context, entries []WatchlistEntry) error {
	return s.replace(ctx, "watchlist", func(tx *sql.Tx) error {
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, `INSERT INTO watchlist (symbol, exchange) VALUES (?, ?)`, e.Symbol, e.Exchange); err != nil {
				return fmt.Errorf("insert watchlist %s: %w", e.Symbol, err)
			}
		}
		return nil
	})
}

// LoadWatchlist returns the saved watchlist in insertion order.
func (s *Store) LoadWatchlist(ctx context.Context) ([]WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, exchange FROM watchlist ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		if err := rows.Scan(&e.Symbol, &e.Exchange); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveStrategies replaces the strategy table with rows.
func (s *Store) SaveStrategies(ctx context.Context, rows []StrategyRow) error {
	return s.replace(ctx, "strategies", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO strategies (id, strategy_type, contract, timeframe, balance_pct, take_profit, stop_loss, extra_params)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			params, err := json.Marshal(r.ExtraParams)
			if err != nil {
				return fmt.Errorf("marshal params for strategy %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.Type, r.Contract, r.Timeframe, r.BalancePct,
				r.TakeProfit, r.StopLoss, string(params)); err != nil {
				return fmt.Errorf("insert strategy %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// LoadStrategies returns the saved strategies. Rows without an id get one
// derived from their type, contract and row number.
func (s *Store) LoadStrategies(ctx context.Context) ([]StrategyRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, COALESCE(id, ''), strategy_type, contract, timeframe, balance_pct,
		       COALESCE(take_profit, 0), COALESCE(stop_loss, 0), COALESCE(extra_params, '')
		FROM strategies
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var out []StrategyRow
	for rows.Next() {
		var (
			r      StrategyRow
			rowID  int64
			params string
		)
		if err := rows.Scan(&rowID, &r.ID, &r.Type, &r.Contract, &r.Timeframe, &r.BalancePct,
			&r.TakeProfit, &r.StopLoss, &params); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		if r.ID == "" {
			r.ID = fmt.Sprintf("%s-%s-%d", r.Type, r.Contract, rowID)
		}
		if params != "" {
			if err := json.Unmarshal([]byte(params), &r.ExtraParams); err != nil {
				return nil, fmt.Errorf("decode params for strategy %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertTrade records the latest state of a trade.
func (s *Store) UpsertTrade(ctx context.Context, t TradeRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, strategy_id, symbol, side, quantity, entry_price, entry_order_id, status, pnl, exit_reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_id, id) DO UPDATE SET
			entry_price = excluded.entry_price,
			status = excluded.status,
			pnl = excluded.pnl,
			exit_reason = excluded.exit_reason,
			closed_at = excluded.closed_at
	`, t.ID, t.StrategyID, t.Symbol, t.Side, t.Quantity, t.EntryPrice, t.EntryOrderID, t.Status,
		t.PnL, t.ExitReason, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("upsert trade %s/%d: %w", t.StrategyID, t.ID, err)
	}
	return nil
}

// ListTrades returns the trades of a strategy, oldest first. An empty
// strategyID lists every trade.
func (s *Store) ListTrades(ctx context.Context, strategyID string) ([]TradeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy_id, symbol, side, quantity, entry_price, entry_order_id, status, pnl, exit_reason, opened_at, closed_at
		FROM trades
		WHERE ? = '' OR strategy_id = ?
		ORDER BY opened_at, id
	`, strategyID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(&t.ID, &t.StrategyID, &t.Symbol, &t.Side, &t.Quantity, &t.EntryPrice,
			&t.EntryOrderID, &t.Status, &t.PnL, &t.ExitReason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// replace clears table and refills it inside one transaction.
func (s *Store) replace(ctx context.Context, table string, fill func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return err
	}
	return tx.Commit()
}
