package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-bot/pkg/exchanges/common"
)

// ErrInvalidQuantity is returned when the quantity rounds down to zero lots.
var ErrInvalidQuantity = errors.New("binance: quantity below lot size")

var _ common.Gateway = (*Client)(nil)

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
}

// accountTrade is one fill from myTrades / userTrades.
type accountTrade struct {
	ID      int64  `json:"id"`
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"orderId"`
	Price   string `json:"price"`
	Qty     string `json:"qty"`
	Time    int64  `json:"time"`
}

// PlaceOrder submits an order. Quantity is floored to the lot size and the
// price, when given, is rounded to the nearest tick.
func (c *Client) PlaceOrder(ctx context.Context, contract common.Contract, req common.OrderRequest) (common.OrderResult, error) {
	qty := contract.RoundQuantity(req.Qty)
	if qty <= 0 {
		return common.OrderResult{}, fmt.Errorf("%w: %s qty %v lot %v", ErrInvalidQuantity, contract.Symbol, req.Qty, contract.LotSize)
	}
	ordType := req.Type
	if ordType == "" {
		ordType = common.OrderTypeMarket
	}

	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("type", string(ordType))
	params.Set("quantity", contract.FormatQuantity(qty))
	if req.Price > 0 {
		params.Set("price", contract.FormatPrice(contract.RoundPrice(req.Price)))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", string(req.TimeInForce))
	} else if ordType == common.OrderTypeLimit {
		params.Set("timeInForce", string(common.TIFGTC))
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	params.Set("newClientOrderId", clientID)

	body, err := c.doSigned(ctx, http.MethodPost, c.paths.order, params)
	if err != nil {
		return common.OrderResult{}, err
	}
	return c.orderResult(ctx, contract, body, false)
}

// CancelOrder cancels orderID and reports its final state.
func (c *Client) CancelOrder(ctx context.Context, contract common.Contract, orderID int64) (common.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.doSigned(ctx, http.MethodDelete, c.paths.order, params)
	if err != nil {
		return common.OrderResult{}, err
	}
	return c.orderResult(ctx, contract, body, true)
}

// GetOrderStatus queries orderID.
func (c *Client) GetOrderStatus(ctx context.Context, contract common.Contract, orderID int64) (common.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.doSigned(ctx, http.MethodGet, c.paths.order, params)
	if err != nil {
		return common.OrderResult{}, err
	}
	return c.orderResult(ctx, contract, body, false)
}

// orderResult normalizes an order payload. Spot payloads carry no average
// price, so it is rebuilt from the account fills: always when reconcile is
// set, otherwise only for filled orders.
func (c *Client) orderResult(ctx context.Context, contract common.Contract, body []byte, reconcile bool) (common.OrderResult, error) {
	var resp orderResponse
	if err := c.decode(c.paths.order, body, &resp); err != nil {
		return common.OrderResult{}, err
	}
	res := common.OrderResult{
		OrderID:     resp.OrderID,
		ClientID:    resp.ClientOrderID,
		Status:      mapStatus(resp.Status),
		ExecutedQty: parseFloat(resp.ExecutedQty),
		AvgPrice:    parseFloat(resp.AvgPrice),
	}
	if c.cfg.Market.IsFutures() {
		return res, nil
	}

	res.AvgPrice = 0
	if reconcile || res.Status == common.StatusFilled {
		if avg, err := c.AverageFillPrice(ctx, contract, res.OrderID); err == nil {
			res.AvgPrice = avg
		}
	}
	return res, nil
}

// AverageFillPrice is the quantity-weighted price of the account fills for
// orderID, rounded to the tick size. Zero when there are no fills.
func (c *Client) AverageFillPrice(ctx context.Context, contract common.Contract, orderID int64) (float64, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)

	body, err := c.doSigned(ctx, http.MethodGet, c.paths.trades, params)
	if err != nil {
		return 0, err
	}
	var trades []accountTrade
	if err := c.decode(c.paths.trades, body, &trades); err != nil {
		return 0, err
	}
	return averageFillPrice(trades, orderID, contract), nil
}

func averageFillPrice(trades []accountTrade, orderID int64, contract common.Contract) float64 {
	qty := decimal.Zero
	notional := decimal.Zero
	for _, t := range trades {
		if t.OrderID != orderID {
			continue
		}
		q, err := decimal.NewFromString(t.Qty)
		if err != nil {
			continue
		}
		p, err := decimal.NewFromString(t.Price)
		if err != nil {
			continue
		}
		qty = qty.Add(q)
		notional = notional.Add(p.Mul(q))
	}
	if qty.IsZero() {
		return 0
	}
	avg, _ := notional.Div(qty).Float64()
	return contract.RoundPrice(avg)
}

func mapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}
