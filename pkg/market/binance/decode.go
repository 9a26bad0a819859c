package market

import (
	"errors"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// Decode turns a raw stream payload into an Event. ok is false for
// messages that carry no market data (subscription acks, unknown events).
//
// Spot book tickers have no "e" field; they are recognized by the presence
// of "u" and "A". Futures book tickers carry e="bookTicker".
func Decode(msg []byte) (ev Event, ok bool, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return Event{}, false, fmt.Errorf("decode stream message: %w", err)
	}

	kind, _ := rawString(fields["e"])
	if kind == "" {
		_, hasU := fields["u"]
		_, hasA := fields["A"]
		if hasU && hasA {
			kind = string(ChannelBookTicker)
		}
	}

	switch kind {
	case string(ChannelBookTicker):
		symbol, _ := rawString(fields["s"])
		bid, errB := rawFloat(fields["b"])
		ask, errA := rawFloat(fields["a"])
		if symbol == "" || errB != nil || errA != nil {
			return Event{}, false, fmt.Errorf("invalid bookTicker payload: %s", msg)
		}
		ts, _ := rawInt64(fields["T"])
		return Event{Kind: KindQuote, Quote: BookTicker{Symbol: symbol, BidPrice: bid, AskPrice: ask, Time: ts}}, true, nil

	case string(ChannelAggTrade):
		symbol, _ := rawString(fields["s"])
		price, errP := rawFloat(fields["p"])
		qty, errQ := rawFloat(fields["q"])
		ts, errT := rawInt64(fields["T"])
		if symbol == "" || errP != nil || errQ != nil || errT != nil {
			return Event{}, false, fmt.Errorf("invalid aggTrade payload: %s", msg)
		}
		var maker bool
		_ = json.Unmarshal(fields["m"], &maker)
		return Event{Kind: KindTrade, Trade: Trade{Symbol: symbol, Price: price, Qty: qty, Time: ts, IsBuyerMaker: maker}}, true, nil
	}
	return Event{}, false, nil
}

var errMissingField = errors.New("missing field")

func rawString(raw json.RawMessage) (string, error) {
	var s string
	if len(raw) == 0 {
		return "", errMissingField
	}
	err := json.Unmarshal(raw, &s)
	return s, err
}

// rawFloat accepts both quoted ("1.5") and bare (1.5) numbers.
func rawFloat(raw json.RawMessage) (float64, error) {
	if s, err := rawString(raw); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	if len(raw) == 0 {
		return 0, errMissingField
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

func rawInt64(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, errMissingField
	}
	var n int64
	err := json.Unmarshal(raw, &n)
	return n, err
}
