package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_NewFileRotatesCollection(t *testing.T) {
	st := NewState("abc")

	first, fresh := st.Observe("jane.pdf")
	require.True(t, fresh)
	assert.Equal(t, "abc", first.SessionID)
	assert.True(t, strings.HasPrefix(first.CollectionID, "abc_"))
	assert.Len(t, strings.TrimPrefix(first.CollectionID, "abc_"), 12)

	again, fresh := st.Observe("jane.pdf")
	assert.False(t, fresh)
	assert.Equal(t, first, again)

	second, fresh := st.Observe("john.pdf")
	require.True(t, fresh)
	assert.NotEqual(t, first.CollectionID, second.CollectionID)
	assert.Equal(t, "john.pdf", second.Filename)
}

func TestState_NotQueryableBeforeReady(t *testing.T) {
	st := NewState("abc")

	_, ok := st.Current()
	assert.False(t, ok)

	b, _ := st.Observe("jane.pdf")
	_, ok = st.Current()
	assert.False(t, ok)

	st.MarkReady(b)
	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, b, cur)

	// A new upload hides the previous collection until it is ingested.
	next, _ := st.Observe("john.pdf")
	_, ok = st.Current()
	assert.False(t, ok)

	// A stale ready signal must not expose the new collection.
	st.MarkReady(b)
	_, ok = st.Current()
	assert.False(t, ok)

	st.MarkReady(next)
	cur, ok = st.Current()
	require.True(t, ok)
	assert.Equal(t, next.CollectionID, cur.CollectionID)
}

func TestState_DistinctSessionsNeverShare(t *testing.T) {
	a, _ := NewState("").Observe("same.pdf")
	b, _ := NewState("").Observe("same.pdf")

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.NotEqual(t, a.CollectionID, b.CollectionID)
}

func TestState_ConcurrentObserve(t *testing.T) {
	st := NewState("abc")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _ := st.Observe(fmt.Sprintf("file-%d.pdf", i%2))
			st.MarkReady(b)
		}(i)
	}
	wg.Wait()

	cur, ok := st.Current()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(cur.CollectionID, "abc_"))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(NewID()))
	assert.NoError(t, ValidateID("client-42"))
	assert.ErrorIs(t, ValidateID(""), ErrInvalidID)
	assert.ErrorIs(t, ValidateID("../etc"), ErrInvalidID)
	assert.ErrorIs(t, ValidateID("a_b"), ErrInvalidID)
	assert.ErrorIs(t, ValidateID(strings.Repeat("x", 65)), ErrInvalidID)
}

func TestManager(t *testing.T) {
	m := NewManager(0)

	st, err := m.Get("")
	require.NoError(t, err)
	assert.NoError(t, ValidateID(st.ID()))

	same, err := m.Get(st.ID())
	require.NoError(t, err)
	assert.Same(t, st, same)

	found, ok := m.Lookup(st.ID())
	require.True(t, ok)
	assert.Same(t, st, found)

	_, ok = m.Lookup("unknown")
	assert.False(t, ok)

	_, err = m.Get("bad id!")
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.Equal(t, 1, m.Len())
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(20 * time.Millisecond)

	st, err := m.Get("short-lived")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, ok := m.Lookup("short-lived")
	assert.False(t, ok)

	fresh, err := m.Get("short-lived")
	require.NoError(t, err)
	assert.NotSame(t, st, fresh)
}
