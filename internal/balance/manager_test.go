package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-bot/pkg/exchanges/common"
)

type fetcherFunc func(ctx context.Context) (map[string]common.Balance, error)

func (f fetcherFunc) GetBalances(ctx context.Context) (map[string]common.Balance, error) {
	return f(ctx)
}

func TestSyncReplacesSnapshot(t *testing.T) {
	calls := 0
	m := NewManager(fetcherFunc(func(context.Context) (map[string]common.Balance, error) {
		calls++
		if calls == 1 {
			return map[string]common.Balance{"USDT": {Asset: "USDT", Free: 100}, "BTC": {Asset: "BTC", Free: 1}}, nil
		}
		return map[string]common.Balance{"USDT": {Asset: "USDT", Free: 50}}, nil
	}), 0, nil)

	require.NoError(t, m.Sync(context.Background()))
	b, ok := m.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 1.0, b.Free)

	require.NoError(t, m.Sync(context.Background()))
	_, ok = m.Get("BTC")
	assert.False(t, ok)

	snap, at := m.Snapshot()
	assert.False(t, at.IsZero())
	assert.Equal(t, 50.0, snap["USDT"].Free)

	snap["USDT"] = common.Balance{}
	b, _ = m.Get("USDT")
	assert.Equal(t, 50.0, b.Free)
}

func TestSyncErrorKeepsPreviousSnapshot(t *testing.T) {
	fail := false
	m := NewManager(fetcherFunc(func(context.Context) (map[string]common.Balance, error) {
		if fail {
			return nil, errors.New("no result")
		}
		return map[string]common.Balance{"USDT": {Asset: "USDT", WalletBalance: 25}}, nil
	}), 0, nil)

	require.NoError(t, m.Sync(context.Background()))
	fail = true
	assert.Error(t, m.Sync(context.Background()))

	b, ok := m.Get("USDT")
	require.True(t, ok)
	assert.Equal(t, 25.0, b.WalletBalance)
}
