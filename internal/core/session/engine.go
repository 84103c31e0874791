package session

import (
	"context"

	"tokoscout/internal/core/result"
)

// EventKind discriminates the messages a scrape session emits.
type EventKind string

const (
	// EventProgress carries one shop's results. Emitted zero or more times,
	// in any order, possibly more than once per shop.
	EventProgress EventKind = "progress"
	// EventDone is the terminal success event, emitted exactly once.
	EventDone EventKind = "done"
	// EventError is the terminal failure event.
	EventError EventKind = "error"
)

// Event is one message on a session's stream. SessionID lets the controller
// drop late events from an abandoned session instead of trusting that the old
// subscription was torn down in time.
type Event struct {
	SessionID string             `json:"session_id"`
	Kind      EventKind          `json:"kind"`
	Shop      *result.ShopResult `json:"shop,omitempty"`
	Err       string             `json:"error,omitempty"`
}

// Subscription is a cancellable handle on one session's event stream. The
// channel closes after a terminal event or after Close.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Engine is the scraping collaborator the controller drives. Submit either
// accepts the job or returns the rejection reason; results then arrive on the
// subscription for that session id.
type Engine interface {
	SubmitScrape(ctx context.Context, sessionID string, queries []string, platform result.Platform) error
	Subscribe(ctx context.Context, sessionID string) (Subscription, error)
}
