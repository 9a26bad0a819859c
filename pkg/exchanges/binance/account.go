package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"trading-bot/pkg/exchanges/common"
)

// ErrInsufficientBalance is returned when the quote asset cannot fund a
// single lot.
var ErrInsufficientBalance = errors.New("binance: insufficient balance")

type spotAccountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type futuresAccountResponse struct {
	Assets []struct {
		Asset            string `json:"asset"`
		WalletBalance    string `json:"walletBalance"`
		MarginBalance    string `json:"marginBalance"`
		InitialMargin    string `json:"initialMargin"`
		MaintMargin      string `json:"maintMargin"`
		UnrealizedProfit string `json:"unrealizedProfit"`
		AvailableBalance string `json:"availableBalance"`
	} `json:"assets"`
}

// GetBalances returns a fresh account snapshot keyed by asset.
func (c *Client) GetBalances(ctx context.Context) (map[string]common.Balance, error) {
	body, err := c.doSigned(ctx, http.MethodGet, c.paths.account, nil)
	if err != nil {
		return nil, err
	}

	balances := make(map[string]common.Balance)
	if c.cfg.Market.IsFutures() {
		var resp futuresAccountResponse
		if err := c.decode(c.paths.account, body, &resp); err != nil {
			return nil, err
		}
		for _, a := range resp.Assets {
			balances[a.Asset] = common.Balance{
				Asset:         a.Asset,
				Free:          parseFloat(a.AvailableBalance),
				WalletBalance: parseFloat(a.WalletBalance),
				MarginBalance: parseFloat(a.MarginBalance),
				InitialMargin: parseFloat(a.InitialMargin),
				MaintMargin:   parseFloat(a.MaintMargin),
				UnrealizedPnL: parseFloat(a.UnrealizedProfit),
			}
		}
		return balances, nil
	}

	var resp spotAccountResponse
	if err := c.decode(c.paths.account, body, &resp); err != nil {
		return nil, err
	}
	for _, b := range resp.Balances {
		balances[b.Asset] = common.Balance{
			Asset:  b.Asset,
			Free:   parseFloat(b.Free),
			Locked: parseFloat(b.Locked),
		}
	}
	return balances, nil
}

// TradeSize converts balancePct of the available quote balance into a
// quantity at price, rounded down to the lot size.
func (c *Client) TradeSize(ctx context.Context, contract common.Contract, price, balancePct float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("trade size for %s: invalid price %v", contract.Symbol, price)
	}
	balances, err := c.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	bal, ok := balances[contract.QuoteAsset]
	if !ok {
		return 0, fmt.Errorf("%w: no %s balance", ErrInsufficientBalance, contract.QuoteAsset)
	}

	available := bal.Available(c.cfg.Market)
	size := contract.RoundQuantity((available * balancePct / 100) / price)
	c.logger.Info("trade size",
		zap.String("symbol", contract.Symbol),
		zap.String("asset", contract.QuoteAsset),
		zap.Float64("balance", available),
		zap.Float64("size", size))
	if size <= 0 {
		return 0, fmt.Errorf("%w: %s %v cannot buy one lot", ErrInsufficientBalance, contract.QuoteAsset, available)
	}
	return size, nil
}
