package market

import "strings"

// Channel is a per-symbol stream on the exchange websocket.
type Channel string

const (
	ChannelBookTicker Channel = "bookTicker"
	ChannelAggTrade   Channel = "aggTrade"
)

// Subscription is one (symbol, channel) pair of the registry.
type Subscription struct {
	Symbol  string
	Channel Channel
}

// Param renders the stream name used in SUBSCRIBE, e.g. "btcusdt@bookTicker".
func (s Subscription) Param() string {
	return strings.ToLower(s.Symbol) + "@" + string(s.Channel)
}

// State is the connection state of a Stream.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// EventKind tags the payload carried by an Event.
type EventKind int

const (
	KindQuote EventKind = iota + 1
	KindTrade
)

func (k EventKind) String() string {
	switch k {
	case KindQuote:
		return "quote"
	case KindTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// BookTicker holds best bid/ask.
type BookTicker struct {
	Symbol   string
	BidPrice float64
	AskPrice float64
	Time     int64
}

// Trade is an aggregated trade tick.
type Trade struct {
	Symbol       string
	Price        float64
	Qty          float64
	Time         int64 // trade time, ms
	IsBuyerMaker bool
}

// Event is one decoded stream message. Quote is set for KindQuote, Trade
// for KindTrade.
type Event struct {
	Kind  EventKind
	Quote BookTicker
	Trade Trade
}

// Symbol returns the instrument the event refers to.
func (e Event) Symbol() string {
	if e.Kind == KindTrade {
		return e.Trade.Symbol
	}
	return e.Quote.Symbol
}
