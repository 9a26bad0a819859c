package events

import "time"

// Event enumerates the topics published to UI subscribers.
type Event string

const (
	EventQuote        Event = "quote"
	EventTradeOpened  Event = "trade.opened"
	EventTradeClosed  Event = "trade.closed"
	EventStrategyLog  Event = "strategy.log"
	EventStreamState  Event = "stream.state"
	EventStrategyStop Event = "strategy.stopped"
)

// Message is what subscribers receive.
type Message struct {
	Topic   Event     `json:"topic"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}
