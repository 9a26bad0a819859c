package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// Dead reports whether the order left the book without filling.
func (s OrderStatus) Dead() bool {
	switch s {
	case StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// MarketType distinguishes spot vs futures venues.
type MarketType string

const (
	MarketSpot    MarketType = "SPOT"
	MarketUSDTFut MarketType = "USDT_FUTURES"
)

// IsFutures reports whether m is a derivatives venue.
func (m MarketType) IsFutures() bool { return m == MarketUSDTFut }

// Contract describes a tradable instrument. Immutable once loaded.
type Contract struct {
	Symbol            string     `json:"symbol"`
	BaseAsset         string     `json:"base_asset"`
	QuoteAsset        string     `json:"quote_asset"`
	PricePrecision    int        `json:"price_precision"`
	QuantityPrecision int        `json:"quantity_precision"`
	TickSize          float64    `json:"tick_size"`
	LotSize           float64    `json:"lot_size"`
	Market            MarketType `json:"market"`
}

// Balance is one asset of an account snapshot. Spot fills Free/Locked,
// futures fills the margin fields.
type Balance struct {
	Asset         string  `json:"asset"`
	Free          float64 `json:"free"`
	Locked        float64 `json:"locked"`
	WalletBalance float64 `json:"wallet_balance"`
	MarginBalance float64 `json:"margin_balance"`
	InitialMargin float64 `json:"initial_margin"`
	MaintMargin   float64 `json:"maint_margin"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Available is the amount usable for sizing new positions on market m.
func (b Balance) Available(m MarketType) float64 {
	if m.IsFutures() {
		return b.WalletBalance
	}
	return b.Free
}

// Candle is one OHLCV bar of Interval ("1m", "1h", ...). OpenTime is in
// milliseconds.
type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Interval string  `json:"interval"`
}

// Quote is a best bid/ask pair.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// OrderRequest captures an order intent for a known contract.
type OrderRequest struct {
	Side        Side
	Type        OrderType
	Qty         float64
	Price       float64 // LIMIT only
	TimeInForce TimeInForce
	ClientID    string // optional client order id
}

// OrderResult is the normalized view of an order as reported by the exchange.
type OrderResult struct {
	OrderID     int64       `json:"order_id"`
	ClientID    string      `json:"client_id"`
	Status      OrderStatus `json:"status"`
	ExecutedQty float64     `json:"executed_qty"`
	AvgPrice    float64     `json:"avg_price"`
}
