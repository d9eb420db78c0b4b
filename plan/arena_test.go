package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/plan"
)

func TestArenaInsertGet(t *testing.T) {
	a := plan.NewArena[string]()
	k := a.Insert("hello")
	v, ok := a.Get(k)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 1, a.Len())
}

func TestArenaCrossArenaKeyRejected(t *testing.T) {
	a := plan.NewArena[int]()
	b := plan.NewArena[int]()
	k := a.Insert(1)
	_, ok := b.Get(k)
	assert.False(t, ok)
}

func TestArenaRemoveAndReuseDetectsStaleKey(t *testing.T) {
	a := plan.NewArena[int]()
	k1 := a.Insert(10)
	assert.True(t, a.Remove(k1))

	_, ok := a.Get(k1)
	assert.False(t, ok, "removed key must not resolve")

	k2 := a.Insert(20)
	v, ok := a.Get(k2)
	require.True(t, ok)
	assert.Equal(t, 20, v)

	// k1's slot was reused, but k1 itself is stale (older generation).
	_, ok = a.Get(k1)
	assert.False(t, ok)
}

func TestArenaSet(t *testing.T) {
	a := plan.NewArena[int]()
	k := a.Insert(1)
	assert.True(t, a.Set(k, 2))
	v, _ := a.Get(k)
	assert.Equal(t, 2, v)
}

func TestArenaKeysStableOrder(t *testing.T) {
	a := plan.NewArena[string]()
	k1 := a.Insert("a")
	k2 := a.Insert("b")
	keys := a.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, k1, keys[0])
	assert.Equal(t, k2, keys[1])
}

func TestArenaEach(t *testing.T) {
	a := plan.NewArena[int]()
	a.Insert(1)
	a.Insert(2)
	sum := 0
	a.Each(func(_ plan.Key[int], v int) { sum += v })
	assert.Equal(t, 3, sum)
}
