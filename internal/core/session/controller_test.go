package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokoscout/internal/core/history"
	"tokoscout/internal/core/result"
)

type fakeSub struct {
	ch     chan Event
	closed chan struct{}
	once   sync.Once
}

func (s *fakeSub) Events() <-chan Event { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSub) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeEngine struct {
	mu           sync.Mutex
	subs         map[string]*fakeSub
	submitErr    error
	subscribeErr error
	submitted    [][]string
}

func newFakeEngine() *fakeEngine { return &fakeEngine{subs: map[string]*fakeSub{}} }

func (e *fakeEngine) SubmitScrape(ctx context.Context, sessionID string, queries []string, platform result.Platform) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitErr != nil {
		return e.submitErr
	}
	e.submitted = append(e.submitted, queries)
	return nil
}

func (e *fakeEngine) Subscribe(ctx context.Context, sessionID string) (Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subscribeErr != nil {
		return nil, e.subscribeErr
	}
	sub := &fakeSub{ch: make(chan Event, 16), closed: make(chan struct{})}
	e.subs[sessionID] = sub
	return sub, nil
}

func (e *fakeEngine) sub(sessionID string) *fakeSub {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subs[sessionID]
}

func (e *fakeEngine) emit(sessionID string, ev Event) {
	e.sub(sessionID).ch <- ev
}

type memBlob struct{ data map[string][]byte }

func newMemBlob() *memBlob { return &memBlob{data: map[string][]byte{}} }

func (m *memBlob) GetBlob(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := m.data[key]
	return b, ok, nil
}
func (m *memBlob) SetBlob(ctx context.Context, key string, b []byte) error {
	m.data[key] = b
	return nil
}
func (m *memBlob) DeleteBlob(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeEngine, *history.Store) {
	t.Helper()
	engine := newFakeEngine()
	store := history.NewStore(context.Background(), newMemBlob())
	c := NewController(engine, store)
	t.Cleanup(c.Close)
	return c, engine, store
}

func waitPhase(t *testing.T, c *Controller, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == phase
	}, time.Second, 5*time.Millisecond)
}

func shopEvent(sessionID, shopURL string, products int) Event {
	qr := result.QueryResult{Query: "sepatu", Products: []result.Product{}}
	for i := 0; i < products; i++ {
		qr.Products = append(qr.Products, result.Product{Link: shopURL + "/p"})
	}
	return Event{
		SessionID: sessionID,
		Kind:      EventProgress,
		Shop: &result.ShopResult{
			ShopURL:  shopURL,
			ShopName: shopURL,
			Platform: result.PlatformTokopedia,
			Results:  []result.QueryResult{qr},
		},
	}
}

func TestSubmit_EmptyQuerySetRejected(t *testing.T) {
	c, engine, _ := newTestController(t)

	_, err := c.Submit(context.Background(), result.PlatformTokopedia)
	assert.ErrorIs(t, err, ErrNoQueries)
	assert.Empty(t, engine.submitted)
	assert.Equal(t, PhaseIdle, c.Snapshot().Phase)
}

func TestSubmit_EndToEnd(t *testing.T) {
	c, engine, store := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/shop-a", 2))
	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/shop-b", 0))
	engine.emit(id, Event{SessionID: id, Kind: EventDone})

	waitPhase(t, c, PhaseIdle)
	snap := c.Snapshot()
	assert.False(t, snap.Loading)
	require.Len(t, snap.Results, 2)
	assert.Equal(t, "https://www.tokopedia.com/shop-a", snap.Results[0].ShopURL)
	assert.Len(t, snap.Results[0].Results[0].Products, 2)
	assert.Equal(t, "https://www.tokopedia.com/shop-b", snap.Results[1].ShopURL)
	assert.Empty(t, snap.Results[1].Results[0].Products)

	entries := store.List()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ResultCount)
	assert.Equal(t, []string{"sepatu"}, entries[0].Queries)
	assert.Equal(t, result.PlatformTokopedia, entries[0].Platform)

	assert.True(t, engine.sub(id).isClosed(), "subscription released on done")
}

func TestSubmit_WhileStreamingRejected(t *testing.T) {
	c, _, _ := newTestController(t)
	c.AddQuery("sepatu")

	_, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	_, err = c.Submit(context.Background(), result.PlatformTokopedia)
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestSubmit_EngineRejection(t *testing.T) {
	c, engine, _ := newTestController(t)
	engine.submitErr = errors.New("no workers")
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.Error(t, err)
	assert.Empty(t, id)

	snap := c.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.False(t, snap.Loading)
	assert.Contains(t, snap.LastError, "no workers")
}

func TestSubmit_SubscribeFailure(t *testing.T) {
	c, engine, _ := newTestController(t)
	engine.subscribeErr = errors.New("channel refused")
	c.AddQuery("sepatu")

	_, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, c.Snapshot().Phase)
}

func TestSubmit_FailedSessionCanResubmit(t *testing.T) {
	c, engine, _ := newTestController(t)
	engine.submitErr = errors.New("down")
	c.AddQuery("sepatu")

	_, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.Error(t, err)

	engine.submitErr = nil
	_, err = c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)
}

func TestStreaming_ErrorRetainsPartials(t *testing.T) {
	c, engine, store := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/shop-a", 1))
	engine.emit(id, Event{SessionID: id, Kind: EventError, Err: "blocked by captcha"})

	waitPhase(t, c, PhaseFailed)
	snap := c.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "blocked by captcha", snap.LastError)
	require.Len(t, snap.Results, 1, "partial results kept for inspection")
	assert.Empty(t, store.List(), "failed session is not recorded")
}

func TestStreaming_StaleSessionEventsDropped(t *testing.T) {
	c, engine, _ := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	// An event tagged with another session's id must never be merged, even
	// when it arrives on the live subscription.
	engine.emit(id, shopEvent("stale-session", "https://www.tokopedia.com/ghost", 5))
	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/shop-a", 1))
	engine.emit(id, Event{SessionID: id, Kind: EventDone})

	waitPhase(t, c, PhaseIdle)
	snap := c.Snapshot()
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "https://www.tokopedia.com/shop-a", snap.Results[0].ShopURL)
}

func TestStreaming_SameShopReplacedInPlace(t *testing.T) {
	c, engine, _ := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/x", 1))
	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/y", 1))
	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/x", 3))
	engine.emit(id, Event{SessionID: id, Kind: EventDone})

	waitPhase(t, c, PhaseIdle)
	snap := c.Snapshot()
	require.Len(t, snap.Results, 2)
	assert.Equal(t, "https://www.tokopedia.com/x", snap.Results[0].ShopURL)
	assert.Len(t, snap.Results[0].Results[0].Products, 3, "last write wins")
	assert.Equal(t, "https://www.tokopedia.com/y", snap.Results[1].ShopURL)
}

func TestStreaming_StreamClosedEarlyFailsSession(t *testing.T) {
	c, engine, _ := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	close(engine.sub(id).ch)

	waitPhase(t, c, PhaseFailed)
	assert.NotEmpty(t, c.Snapshot().LastError)
}

func TestSubmit_ResetsResultsAndExpansion(t *testing.T) {
	c, engine, _ := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)
	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/shop-a", 1))
	engine.emit(id, Event{SessionID: id, Kind: EventDone})
	waitPhase(t, c, PhaseIdle)

	c.ToggleShop(0)
	require.True(t, c.Snapshot().ExpandedShops[0])

	id2, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)

	snap := c.Snapshot()
	assert.Empty(t, snap.Results, "live set cleared on submit")
	assert.Empty(t, snap.ExpandedShops, "expansion reset on submit")
	assert.NotEqual(t, id, id2)
}

func TestLoadHistory_ReplaysSnapshot(t *testing.T) {
	c, engine, store := newTestController(t)
	c.AddQuery("sepatu")

	id, err := c.Submit(context.Background(), result.PlatformTokopedia)
	require.NoError(t, err)
	waitPhase(t, c, PhaseStreaming)
	engine.emit(id, shopEvent(id, "https://www.tokopedia.com/shop-a", 2))
	engine.emit(id, Event{SessionID: id, Kind: EventDone})
	waitPhase(t, c, PhaseIdle)

	entry := store.List()[0]

	// Move the live view somewhere else, then replay.
	c.PopQuery()
	c.AddQuery("tas")
	c.ToggleShop(0)

	require.NoError(t, c.LoadHistory(entry.ID))
	snap := c.Snapshot()
	assert.Equal(t, []string{"sepatu"}, snap.Queries)
	assert.Equal(t, result.PlatformTokopedia, snap.Platform)
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "https://www.tokopedia.com/shop-a", snap.Results[0].ShopURL)
	assert.Empty(t, snap.ExpandedShops, "expansion reset on history load")
	assert.Equal(t, PhaseIdle, snap.Phase)

	assert.ErrorIs(t, c.LoadHistory(999999), ErrEntryNotFound)
}

func TestToggle(t *testing.T) {
	c, _, _ := newTestController(t)

	snap := c.Snapshot()
	assert.False(t, snap.ExpandedShops[2], "default collapsed")

	c.ToggleShop(2)
	c.ToggleQuery(2, 1)
	snap = c.Snapshot()
	assert.True(t, snap.ExpandedShops[2])
	assert.True(t, snap.ExpandedQueries["2:1"])

	c.ToggleShop(2)
	snap = c.Snapshot()
	assert.False(t, snap.ExpandedShops[2])
	assert.True(t, snap.ExpandedQueries["2:1"])
}
