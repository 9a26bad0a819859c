package binance

import (
	"context"
	"net/url"
	"strconv"

	"trading-bot/pkg/exchanges/common"
)

// maxKlines is the largest page the klines endpoints return.
const maxKlines = 1000

// ServerTime fetches exchange server time in milliseconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	body, err := c.public(ctx, c.paths.time, nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.decode(c.paths.time, body, &resp); err != nil {
		return 0, err
	}
	return resp.ServerTime, nil
}

// GetHistoricalCandles returns up to 1000 most recent candles, oldest first.
func (c *Client) GetHistoricalCandles(ctx context.Context, contract common.Contract, interval string) ([]common.Candle, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(maxKlines))

	body, err := c.public(ctx, c.paths.klines, params)
	if err != nil {
		return nil, err
	}
	var raw [][]any
	if err := c.decode(c.paths.klines, body, &raw); err != nil {
		return nil, err
	}

	candles := make([]common.Candle, 0, len(raw))
	for _, item := range raw {
		if len(item) < 6 {
			continue
		}
		candles = append(candles, common.Candle{
			OpenTime: toInt64(item[0]),
			Open:     toFloat(item[1]),
			High:     toFloat(item[2]),
			Low:      toFloat(item[3]),
			Close:    toFloat(item[4]),
			Volume:   toFloat(item[5]),
			Interval: interval,
		})
	}
	return candles, nil
}

// GetBookTicker returns the current best bid/ask for symbol.
func (c *Client) GetBookTicker(ctx context.Context, symbol string) (common.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.public(ctx, c.paths.bookTicker, params)
	if err != nil {
		return common.Quote{}, err
	}
	var resp struct {
		Symbol   string `json:"symbol"`
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := c.decode(c.paths.bookTicker, body, &resp); err != nil {
		return common.Quote{}, err
	}
	return common.Quote{
		Symbol: resp.Symbol,
		Bid:    parseFloat(resp.BidPrice),
		Ask:    parseFloat(resp.AskPrice),
	}, nil
}
