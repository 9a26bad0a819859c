package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBookTickerVariants(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		time int64
	}{
		{
			name: "spot has no event type",
			msg:  `{"u":400900217,"s":"BNBUSDT","b":"25.35190000","B":"31.21000000","a":"25.36520000","A":"40.66000000"}`,
		},
		{
			name: "futures carries event type",
			msg:  `{"e":"bookTicker","u":400900217,"E":1568014460893,"T":1568014460891,"s":"BNBUSDT","b":"25.35190000","B":"31.21000000","a":"25.36520000","A":"40.66000000"}`,
			time: 1568014460891,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok, err := Decode([]byte(tc.msg))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, KindQuote, ev.Kind)
			assert.Equal(t, BookTicker{Symbol: "BNBUSDT", BidPrice: 25.3519, AskPrice: 25.3652, Time: tc.time}, ev.Quote)
			assert.Equal(t, "BNBUSDT", ev.Symbol())
		})
	}
}

func TestDecodeAggTrade(t *testing.T) {
	msg := `{"e":"aggTrade","E":123456789,"s":"BNBBTC","a":12345,"p":"0.001","q":"100","f":100,"l":105,"T":123456785,"m":true,"M":true}`

	ev, ok, err := Decode([]byte(msg))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindTrade, ev.Kind)
	assert.Equal(t, Trade{Symbol: "BNBBTC", Price: 0.001, Qty: 100, Time: 123456785, IsBuyerMaker: true}, ev.Trade)
}

func TestDecodeIgnoresNonMarketMessages(t *testing.T) {
	for _, msg := range []string{
		`{"result":null,"id":1}`,
		`{"e":"kline","s":"BTCUSDT"}`,
		`{"u":1,"s":"BTCUSDT"}`,
	} {
		_, ok, err := Decode([]byte(msg))
		assert.NoError(t, err, msg)
		assert.False(t, ok, msg)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, msg := range []string{
		`{not json`,
		`[1,2,3]`,
		`{"e":"bookTicker","s":"BTCUSDT","a":"1"}`,
		`{"e":"aggTrade","s":"BTCUSDT","p":"x","q":"1","T":1}`,
	} {
		_, ok, err := Decode([]byte(msg))
		assert.Error(t, err, msg)
		assert.False(t, ok, msg)
	}
}
