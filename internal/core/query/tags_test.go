package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd_TrimsAndDedups(t *testing.T) {
	ts := NewTagSet()

	assert.True(t, ts.Add("  sepatu "))
	assert.False(t, ts.Add("sepatu"), "re-adding is a silent no-op")
	assert.False(t, ts.Add("   "), "empty after trim is a no-op")
	assert.True(t, ts.Add("tas"))

	assert.Equal(t, []string{"sepatu", "tas"}, ts.Tags())
}

func TestAdd_RepeatsNeverDuplicate(t *testing.T) {
	ts := NewTagSet()
	for i := 0; i < 5; i++ {
		ts.Add("sepatu")
		ts.Add(" sepatu")
	}
	assert.Equal(t, []string{"sepatu"}, ts.Tags())
}

func TestRemove(t *testing.T) {
	ts := NewTagSet()
	ts.Add("a")
	ts.Add("b")
	ts.Add("c")

	assert.True(t, ts.Remove(1))
	assert.Equal(t, []string{"a", "c"}, ts.Tags())

	assert.False(t, ts.Remove(5))
	assert.False(t, ts.Remove(-1))
	assert.Equal(t, []string{"a", "c"}, ts.Tags())
}

func TestPopLast(t *testing.T) {
	ts := NewTagSet()
	ts.Add("a")
	ts.Add("b")
	ts.Add("c")

	last, ok := ts.PopLast()
	assert.True(t, ok)
	assert.Equal(t, "c", last)
	assert.Equal(t, []string{"a", "b"}, ts.Tags())

	_, ok = NewTagSet().PopLast()
	assert.False(t, ok)
}

func TestSubmit_ReturnsFrozenCopy(t *testing.T) {
	ts := NewTagSet()
	ts.Add("a")

	frozen := ts.Submit()
	ts.Add("b")

	assert.Equal(t, []string{"a"}, frozen)
	assert.Equal(t, []string{"a", "b"}, ts.Tags())
}

func TestReplace(t *testing.T) {
	ts := NewTagSet()
	ts.Add("old")

	ts.Replace([]string{" a ", "b", "a", ""})
	assert.Equal(t, []string{"a", "b"}, ts.Tags())
}
