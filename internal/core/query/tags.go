// Package query holds the set of product-name search terms the operator has
// entered but not yet submitted.
package query

import "strings"

// TagSet is an ordered, deduplicated collection of trimmed query strings.
// It is not safe for concurrent use; the session controller serializes access.
type TagSet struct {
	tags []string
}

func NewTagSet() *TagSet { return &TagSet{} }

// Add trims the raw input and inserts it if absent. Empty-after-trim input and
// re-adding an existing tag are silent no-ops. Returns whether a tag was added.
func (t *TagSet) Add(raw string) bool {
	v := strings.TrimSpace(raw)
	if v == "" {
		return false
	}
	for _, existing := range t.tags {
		if existing == v {
			return false
		}
	}
	t.tags = append(t.tags, v)
	return true
}

// Remove drops the tag at position i. Out-of-range indices are a no-op.
func (t *TagSet) Remove(i int) bool {
	if i < 0 || i >= len(t.tags) {
		return false
	}
	t.tags = append(t.tags[:i], t.tags[i+1:]...)
	return true
}

// PopLast removes and returns the most recently added tag. This backs the
// "backspace on an empty input deletes the last tag" editing behavior.
func (t *TagSet) PopLast() (string, bool) {
	if len(t.tags) == 0 {
		return "", false
	}
	last := t.tags[len(t.tags)-1]
	t.tags = t.tags[:len(t.tags)-1]
	return last, true
}

// Replace swaps the whole set, applying the same trim/dedup rules as Add.
// Used when a history entry is loaded back into the editor.
func (t *TagSet) Replace(tags []string) {
	t.tags = nil
	for _, raw := range tags {
		t.Add(raw)
	}
}

// Tags returns a copy of the current tags in insertion order.
func (t *TagSet) Tags() []string {
	return append([]string(nil), t.tags...)
}

func (t *TagSet) Len() int { return len(t.tags) }

// Submit freezes the current tags for a scrape submission. Rejecting an empty
// set is the caller's job; Submit just hands out the copy.
func (t *TagSet) Submit() []string { return t.Tags() }
