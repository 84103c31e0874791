// Package session owns the lifecycle of one scrape search: submitting the
// query set, folding streamed shop results into the live result set, and
// snapshotting completed sessions into history.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tokoscout/internal/core/history"
	"tokoscout/internal/core/query"
	"tokoscout/internal/core/result"
	"tokoscout/internal/logger"
)

// Phase is the controller's state-machine position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseStreaming  Phase = "streaming"
	PhaseFailed     Phase = "failed"
)

var (
	// ErrSessionActive rejects a submit while a session is in flight.
	ErrSessionActive = errors.New("a scrape session is already running")
	// ErrNoQueries rejects a submit with an empty query set.
	ErrNoQueries = errors.New("query set is empty")
	// ErrEntryNotFound reports a history load for an unknown entry id.
	ErrEntryNotFound = errors.New("history entry not found")
)

// Controller serializes all console state behind one mutex: the query tags,
// the live result set, the view expansion maps and the session phase. Events
// arrive on a goroutine per subscription and are fenced by session id, so a
// late event from an abandoned session can never touch the current one.
type Controller struct {
	mu      sync.Mutex
	engine  Engine
	history *history.Store
	log     *logger.Logger

	tags      *query.TagSet
	phase     Phase
	sessionID string
	queries   []string
	platform  result.Platform
	results   result.Set
	view      *ViewState
	lastErr   string
	sub       Subscription
}

func NewController(engine Engine, hist *history.Store) *Controller {
	return &Controller{
		engine:  engine,
		history: hist,
		log:     logger.New("Session"),
		tags:    query.NewTagSet(),
		phase:   PhaseIdle,
		view:    NewViewState(),
	}
}

// AddQuery adds one tag (trimmed, deduplicated) and returns the current tags.
func (c *Controller) AddQuery(raw string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags.Add(raw)
	return c.tags.Tags()
}

// RemoveQuery removes the tag at index i.
func (c *Controller) RemoveQuery(i int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags.Remove(i)
	return c.tags.Tags()
}

// PopQuery removes the last tag, the backspace-on-empty-input behavior.
func (c *Controller) PopQuery() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags.PopLast()
	return c.tags.Tags()
}

func (c *Controller) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tags.Tags()
}

// Submit starts a new session over the current query set. It refuses while a
// session is in flight and with an empty query set. The previous session's
// subscription is released before the new one is installed, and the fresh
// session id fences any events that still leak through.
func (c *Controller) Submit(ctx context.Context, platform result.Platform) (string, error) {
	c.mu.Lock()
	if c.phase == PhaseSubmitting || c.phase == PhaseStreaming {
		c.mu.Unlock()
		return "", ErrSessionActive
	}
	queries := c.tags.Submit()
	if len(queries) == 0 {
		c.mu.Unlock()
		return "", ErrNoQueries
	}
	c.detachLocked()
	id := uuid.NewString()
	c.sessionID = id
	c.queries = queries
	c.platform = platform
	c.results = result.Set{}
	c.view.Reset()
	c.lastErr = ""
	c.phase = PhaseSubmitting
	c.mu.Unlock()

	sub, err := c.engine.Subscribe(ctx, id)
	if err != nil {
		err = fmt.Errorf("subscribe: %w", err)
		c.fail(id, err)
		return "", err
	}
	if err := c.engine.SubmitScrape(ctx, id, queries, platform); err != nil {
		_ = sub.Close()
		err = fmt.Errorf("submit rejected: %w", err)
		c.fail(id, err)
		return "", err
	}

	c.mu.Lock()
	c.sub = sub
	c.phase = PhaseStreaming
	c.mu.Unlock()
	c.log.LogInfof("session %s streaming: %d queries on %s", id, len(queries), platform)

	go c.consume(id, sub)
	return id, nil
}

// consume drains one subscription until a terminal event, feeding progress
// into the merger.
func (c *Controller) consume(id string, sub Subscription) {
	for ev := range sub.Events() {
		if c.apply(id, ev) {
			return
		}
	}
	// Stream closed without a terminal event: treat as a failed session
	// rather than hanging in streaming forever.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == id && c.phase == PhaseStreaming {
		c.phase = PhaseFailed
		c.lastErr = "event stream closed before the session completed"
		c.detachLocked()
		c.log.LogErrorf("session %s: stream closed early", id)
	}
}

// apply handles one event and reports whether the consume loop should stop.
func (c *Controller) apply(id string, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.sessionID {
		// The controller moved on to a newer session; stop draining.
		return true
	}
	if ev.SessionID != "" && ev.SessionID != id {
		c.log.LogDebugf("dropping event from stale session %s", ev.SessionID)
		return false
	}

	switch ev.Kind {
	case EventProgress:
		if ev.Shop != nil {
			c.results = result.Merge(c.results, *ev.Shop)
		}
		return false
	case EventDone:
		entry := c.history.Record(context.Background(), c.queries, c.platform, c.results)
		c.phase = PhaseIdle
		c.detachLocked()
		c.log.LogInfof("session %s done: %d shops, %d products (history #%d)",
			id, len(c.results), entry.ResultCount, entry.ID)
		return true
	case EventError:
		// Partial results from the failed session stay merged.
		c.phase = PhaseFailed
		c.lastErr = ev.Err
		c.detachLocked()
		c.log.LogErrorf("session %s failed: %s", id, ev.Err)
		return true
	}
	return false
}

func (c *Controller) fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != id {
		return
	}
	c.phase = PhaseFailed
	c.lastErr = err.Error()
	c.log.LogError("session failed before streaming", err)
}

// detachLocked releases the current subscription. Callers hold c.mu.
func (c *Controller) detachLocked() {
	if c.sub != nil {
		_ = c.sub.Close()
		c.sub = nil
	}
}

// LoadHistory replays a stored session into the live view: tags, platform and
// results are replaced and the expansion state resets. Refused while a
// session is in flight.
func (c *Controller) LoadHistory(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting || c.phase == PhaseStreaming {
		return ErrSessionActive
	}
	entry, ok := c.history.Load(id)
	if !ok {
		return ErrEntryNotFound
	}
	c.detachLocked()
	c.sessionID = ""
	c.tags.Replace(entry.Queries)
	c.queries = entry.Queries
	c.platform = entry.Platform
	c.results = entry.Results
	c.view.Reset()
	c.lastErr = ""
	c.phase = PhaseIdle
	return nil
}

// ToggleShop flips the expansion state of one shop group.
func (c *Controller) ToggleShop(shop int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.ToggleShop(shop)
}

// ToggleQuery flips the expansion state of one query group within a shop.
func (c *Controller) ToggleQuery(shop, queryIdx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.ToggleQuery(shop, queryIdx)
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	Phase           Phase           `json:"phase"`
	Loading         bool            `json:"loading"`
	Platform        result.Platform `json:"platform,omitempty"`
	Queries         []string        `json:"queries"`
	Results         result.Set      `json:"results"`
	ExpandedShops   map[int]bool    `json:"expanded_shops"`
	ExpandedQueries map[string]bool `json:"expanded_queries"`
	LastError       string          `json:"last_error,omitempty"`
}

// Snapshot deep-copies the current console state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	shops, queries := c.view.snapshot()
	return Snapshot{
		Phase:           c.phase,
		Loading:         c.phase == PhaseSubmitting || c.phase == PhaseStreaming,
		Platform:        c.platform,
		Queries:         c.tags.Tags(),
		Results:         c.results.Clone(),
		ExpandedShops:   shops,
		ExpandedQueries: queries,
		LastError:       c.lastErr,
	}
}

// Close releases any live subscription, for shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachLocked()
}
