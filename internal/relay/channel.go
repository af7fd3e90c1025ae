package relay

import (
	"errors"
	"fmt"
)

// Client event types sent by the browser shell.
const (
	EventSubmit       = "submit"
	EventInterval     = "interval"
	EventSymbolChange = "symbolChange"
	EventBacktest     = "backtest"
)

// ClientEvent is one user action reported by the browser.
type ClientEvent struct {
	Type     string `json:"type"`
	Ticker   string `json:"ticker,omitempty"`
	Interval string `json:"interval,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

// ErrUnknownEvent is returned for client events with an unsupported type.
var ErrUnknownEvent = errors.New("relay: unknown client event")

// Validate checks the event type.
func (e ClientEvent) Validate() error {
	switch e.Type {
	case EventSubmit, EventInterval, EventSymbolChange, EventBacktest:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownEvent, e.Type)
	}
}

// Channel is the page session seen by the transports.
type Channel interface {
	Broker() *Broker
	// Replay returns the full current page state as one event.
	Replay() Event
	// Dispatch fixes evt's place in the action order and returns without
	// waiting for its backend requests.
	Dispatch(evt ClientEvent) error
	// Touch marks the session as used.
	Touch()
}

// Resolver finds the channel for a session id.
type Resolver func(id string) (Channel, bool)
