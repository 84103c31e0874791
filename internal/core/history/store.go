// Package history keeps durable snapshots of completed scrape sessions.
package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tokoscout/internal/core/result"
	"tokoscout/internal/logger"
)

// MaxEntries bounds the log; inserting past it evicts the oldest entry.
const MaxEntries = 20

// storageKey is the single durable key the whole log is serialized under.
const storageKey = "console:history"

// Blob is the durable key-value facility the store persists through. The
// Redis platform service implements it.
type Blob interface {
	GetBlob(ctx context.Context, key string) ([]byte, bool, error)
	SetBlob(ctx context.Context, key string, b []byte) error
	DeleteBlob(ctx context.Context, key string) error
}

// Entry is one completed session, immutable once recorded.
type Entry struct {
	ID          int64           `json:"id"`
	Timestamp   string          `json:"timestamp"`
	Queries     []string        `json:"queries"`
	Platform    result.Platform `json:"platform"`
	ResultCount int             `json:"resultCount"`
	Results     result.Set      `json:"results"`
}

func (e Entry) clone() Entry {
	out := e
	out.Queries = append([]string(nil), e.Queries...)
	out.Results = e.Results.Clone()
	return out
}

// Store holds the in-memory log, newest first, and mirrors every mutation to
// the blob storage. The in-memory log stays authoritative when a write fails.
type Store struct {
	mu      sync.Mutex
	kv      Blob
	log     *logger.Logger
	entries []Entry
	lastID  int64
}

// NewStore loads the persisted log once. A missing or unreadable blob yields
// an empty log, never an error: history is best-effort by design.
func NewStore(ctx context.Context, kv Blob) *Store {
	s := &Store{kv: kv, log: logger.New("History")}
	b, ok, err := kv.GetBlob(ctx, storageKey)
	if err != nil {
		s.log.LogWarnf("history load failed, starting empty: %v", err)
		return s
	}
	if !ok {
		return s
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		s.log.LogWarnf("history blob corrupt, starting empty: %v", err)
		return s
	}
	s.entries = entries
	for _, e := range entries {
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
	s.log.LogInfof("loaded %d history entries", len(entries))
	return s
}

// nextID hands out unix-millisecond ids, bumped by one when two records land
// in the same millisecond so ids stay strictly increasing.
func (s *Store) nextID() int64 {
	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Record snapshots one completed session at the head of the log, evicts past
// MaxEntries and persists. The stored entry owns deep copies, so the caller's
// live result set can keep changing afterwards.
func (s *Store) Record(ctx context.Context, queries []string, platform result.Platform, results result.Set) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:          s.nextID(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Queries:     append([]string(nil), queries...),
		Platform:    platform,
		ResultCount: results.ProductCount(),
		Results:     results.Clone(),
	}
	s.entries = append([]Entry{entry}, s.entries...)
	if len(s.entries) > MaxEntries {
		s.entries = s.entries[:MaxEntries]
	}
	s.persist(ctx)
	return entry.clone()
}

// List returns the log newest first. Entries are deep-copied.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Load returns the entry with the given id for replaying into the live view.
// Read-only: the log itself is untouched.
func (s *Store) Load(id int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Delete removes the entry with the given id and persists the remainder.
// An absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.persist(ctx)
			return
		}
	}
}

// Clear empties the log and removes the persisted blob entirely.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	if err := s.kv.DeleteBlob(ctx, storageKey); err != nil {
		s.log.LogWarnf("history clear: blob delete failed: %v", err)
	}
}

// persist rewrites the whole log under the storage key. Failures are logged
// and swallowed; they must never fail the session that triggered the write.
func (s *Store) persist(ctx context.Context) {
	b, err := json.Marshal(s.entries)
	if err != nil {
		s.log.LogWarnf("history marshal failed: %v", err)
		return
	}
	if err := s.kv.SetBlob(ctx, storageKey, b); err != nil {
		s.log.LogWarnf("history write failed, in-memory log still valid: %v", err)
	}
}
