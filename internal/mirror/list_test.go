package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64
	Name string
}

func newItems() *List[item] {
	return NewList(func(i item) int64 { return i.ID })
}

func TestList_ReplaceAppendRemove(t *testing.T) {
	l := newItems()
	gen := l.Generation()

	require.True(t, l.Replace(gen, []item{{1, "a"}, {2, "b"}}))
	require.True(t, l.Append(gen, item{3, "c"}))
	require.True(t, l.Append(gen, item{2, "B"}))
	require.True(t, l.Remove(gen, 1))

	assert.Equal(t, []item{{2, "B"}, {3, "c"}}, l.Items())
	found, ok := l.Find(3)
	assert.True(t, ok)
	assert.Equal(t, "c", found.Name)
	_, ok = l.Find(1)
	assert.False(t, ok)
}

func TestList_ResetInvalidatesInFlightWrites(t *testing.T) {
	l := newItems()
	gen := l.Generation()
	l.Reset()

	assert.False(t, l.Append(gen, item{1, "late"}))
	assert.False(t, l.Replace(gen, []item{{2, "late"}}))
	assert.Equal(t, 0, l.Len())

	assert.True(t, l.Append(l.Generation(), item{1, "fresh"}))
	assert.Equal(t, 1, l.Len())
}

func TestList_ItemsIsACopy(t *testing.T) {
	l := newItems()
	l.Replace(l.Generation(), []item{{1, "a"}})

	items := l.Items()
	items[0].Name = "changed"

	assert.Equal(t, "a", l.Items()[0].Name)
}

func TestList_ErrorClearedBySuccess(t *testing.T) {
	l := newItems()
	l.Fail(assert.AnError)
	assert.ErrorIs(t, l.Err(), assert.AnError)

	l.Append(l.Generation(), item{1, "a"})
	assert.NoError(t, l.Err())
}

func TestList_Subscribe(t *testing.T) {
	l := newItems()
	var lens []int
	unsubscribe := l.Subscribe(func(items []item) { lens = append(lens, len(items)) })

	l.Append(l.Generation(), item{1, "a"})
	l.Append(l.Generation(), item{2, "b"})
	l.Reset()
	unsubscribe()
	l.Append(l.Generation(), item{3, "c"})

	assert.Equal(t, []int{1, 2, 0}, lens)
}
