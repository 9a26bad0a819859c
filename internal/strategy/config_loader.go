package strategy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trading-bot/pkg/db"
)

// ConfigFile represents the top-level YAML structure.
type ConfigFile struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadConfig reads strategies from a YAML file and validates each entry.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range file.Strategies {
		if err := file.Strategies[i].Validate(); err != nil {
			return nil, err
		}
	}
	return file.Strategies, nil
}

// StrategyStore persists strategy rows.
type StrategyStore interface {
	SaveStrategies(ctx context.Context, rows []db.StrategyRow) error
}

// SyncConfigToStore replaces the saved strategies with configs.
func SyncConfigToStore(ctx context.Context, store StrategyStore, configs []Config) error {
	rows := make([]db.StrategyRow, 0, len(configs))
	for _, c := range configs {
		rows = append(rows, c.Row())
	}
	return store.SaveStrategies(ctx, rows)
}

// ConfigFromRow converts a persisted row.
func ConfigFromRow(r db.StrategyRow) Config {
	return Config{
		ID:         r.ID,
		Kind:       Kind(r.Type),
		Symbol:     r.Contract,
		Timeframe:  r.Timeframe,
		BalancePct: r.BalancePct,
		TakeProfit: r.TakeProfit,
		StopLoss:   r.StopLoss,
		Params:     r.ExtraParams,
	}
}

// Row converts c for persistence.
func (c Config) Row() db.StrategyRow {
	return db.StrategyRow{
		ID:          c.ID,
		Type:        string(c.Kind),
		Contract:    c.Symbol,
		Timeframe:   c.Timeframe,
		BalancePct:  c.BalancePct,
		TakeProfit:  c.TakeProfit,
		StopLoss:    c.StopLoss,
		ExtraParams: c.Params,
	}
}
