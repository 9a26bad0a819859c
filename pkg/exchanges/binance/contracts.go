package binance

import (
	"context"

	"go.uber.org/zap"

	"trading-bot/pkg/exchanges/common"
)

type exchangeInfoResponse struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol            string         `json:"symbol"`
	Status            string         `json:"status"`
	BaseAsset         string         `json:"baseAsset"`
	QuoteAsset        string         `json:"quoteAsset"`
	PricePrecision    *int           `json:"pricePrecision"`
	QuantityPrecision *int           `json:"quantityPrecision"`
	Filters           []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
}

// LoadContracts fetches the instrument catalog. It never fails: on any
// error the map is empty and a warning is logged.
func (c *Client) LoadContracts(ctx context.Context) map[string]common.Contract {
	contracts := make(map[string]common.Contract)

	body, err := c.public(ctx, c.paths.exchangeInfo, nil)
	if err != nil {
		c.logger.Warn("contracts could not be loaded", zap.Error(err))
		return contracts
	}
	var info exchangeInfoResponse
	if err := c.decode(c.paths.exchangeInfo, body, &info); err != nil {
		c.logger.Warn("contracts could not be loaded", zap.Error(err))
		return contracts
	}

	for _, s := range info.Symbols {
		contracts[s.Symbol] = c.toContract(s)
	}
	c.logger.Info("contracts loaded", zap.Int("count", len(contracts)))
	return contracts
}

// toContract prefers the explicit precision fields (futures) and falls back
// to the PRICE_FILTER / LOT_SIZE steps (spot).
func (c *Client) toContract(s symbolInfo) common.Contract {
	var pricePrec, qtyPrec int
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			pricePrec = common.PrecisionFromStep(f.TickSize)
		case "LOT_SIZE":
			qtyPrec = common.PrecisionFromStep(f.StepSize)
		}
	}
	if s.PricePrecision != nil {
		pricePrec = *s.PricePrecision
	}
	if s.QuantityPrecision != nil {
		qtyPrec = *s.QuantityPrecision
	}

	return common.Contract{
		Symbol:            s.Symbol,
		BaseAsset:         s.BaseAsset,
		QuoteAsset:        s.QuoteAsset,
		PricePrecision:    pricePrec,
		QuantityPrecision: qtyPrec,
		TickSize:          common.StepFromPrecision(pricePrec),
		LotSize:           common.StepFromPrecision(qtyPrec),
		Market:            c.cfg.Market,
	}
}
