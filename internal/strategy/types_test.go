package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongTradePnL(t *testing.T) {
	tr := Trade{Side: SideLong, Quantity: 2, EntryPrice: 100, EntrySet: true, Status: TradeOpen}
	pnl, ok := tr.PnLAt(101.5, 101.6)
	require.True(t, ok)
	assert.InDelta(t, 3.0, pnl, 1e-9)
}

func TestShortTradePnLUsesAsk(t *testing.T) {
	tr := Trade{Side: SideShort, Quantity: 2, EntryPrice: 100, EntrySet: true, Status: TradeOpen}
	pnl, ok := tr.PnLAt(98, 99)
	require.True(t, ok)
	assert.InDelta(t, 2.0, pnl, 1e-9)
}

func TestPnLUndefinedWithoutEntryOrWhenClosed(t *testing.T) {
	_, ok := Trade{Side: SideLong, Quantity: 2, Status: TradeOpen}.PnLAt(101, 102)
	assert.False(t, ok)
	_, ok = Trade{Side: SideLong, Quantity: 2, EntryPrice: 100, EntrySet: true, Status: TradeClosed}.PnLAt(101, 102)
	assert.False(t, ok)
}

func TestExitReason(t *testing.T) {
	long := Trade{Side: SideLong, EntryPrice: 100}
	short := Trade{Side: SideShort, EntryPrice: 100}

	assert.Equal(t, "take_profit", exitReason(long, 102, 2, 1))
	assert.Equal(t, "stop_loss", exitReason(long, 98.9, 2, 1))
	assert.Equal(t, "", exitReason(long, 101, 2, 1))
	assert.Equal(t, "", exitReason(long, 50, 2, 0))

	assert.Equal(t, "take_profit", exitReason(short, 97.9, 2, 1))
	assert.Equal(t, "stop_loss", exitReason(short, 101.5, 2, 1))
	assert.Equal(t, "", exitReason(short, 99, 2, 1))
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{ID: "a", Kind: "Technical", Symbol: " btcusdt ", Timeframe: "1h", BalancePct: 5}
	}

	c := valid()
	require.NoError(t, c.Validate())
	assert.Equal(t, KindTechnical, c.Kind)
	assert.Equal(t, "BTCUSDT", c.Symbol)

	c = valid()
	c.Timeframe = "7m"
	assert.ErrorIs(t, c.Validate(), ErrInvalidTimeframe)

	c = valid()
	c.Kind = "grid"
	assert.ErrorIs(t, c.Validate(), ErrUnknownKind)

	c = valid()
	c.BalancePct = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.StopLoss = -1
	assert.Error(t, c.Validate())
}

func TestLedgerKeepsIDsIncreasing(t *testing.T) {
	var l Ledger
	a := l.Append(Trade{ID: 10, Status: TradeClosed})
	b := l.Append(Trade{ID: 10, Status: TradeOpen})
	assert.Equal(t, int64(10), a.ID)
	assert.Equal(t, int64(11), b.ID)

	open, ok := l.Open()
	require.True(t, ok)
	assert.Equal(t, int64(11), open.ID)

	snap := l.Snapshot()
	snap[0].PnL = 99
	assert.Equal(t, 0.0, l.Snapshot()[0].PnL)
}
