package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rollbox/internal/dice"
	"github.com/cory-johannsen/rollbox/internal/history"
)

func entryFor(owner string, total int) history.Entry {
	return history.Entry{
		ID:         [16]byte{byte(total)},
		Owner:      owner,
		Expression: fmt.Sprintf("1d6+%d", total),
		RollType:   "normal",
		Total:      total,
		RolledAt:   time.Unix(int64(total), 0),
	}
}

func totals(entries []history.Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Total
	}
	return out
}

func TestNewEntry_FlattensBreakdown(t *testing.T) {
	result, err := dice.Evaluate(dice.MustParse("2d6+1"), dice.Disadvantage, dice.NewSequenceSource(3, 4, 2, 5))
	require.NoError(t, err)

	e := history.NewEntry("alice", result)
	assert.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	assert.Equal(t, "alice", e.Owner)
	assert.Equal(t, "2d6+1", e.Expression)
	assert.Equal(t, "disadvantage", e.RollType)
	assert.Equal(t, []history.Line{
		{Label: "2d6", Values: []int{3, 4}, Subtotal: 7},
		{Label: "disadvantage", Values: []int{2, 5}, Subtotal: -2},
	}, e.Breakdown)
	assert.Equal(t, 1, e.Modifier)
	assert.Equal(t, 6, e.Total)
	assert.Equal(t, result.Timestamp, e.RolledAt)
}

func TestMemoryStore_NewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	s := history.NewMemoryStore(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Add(ctx, entryFor("bob", i)))
	}

	got, err := s.List(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 3}, totals(got))

	got, err = s.List(ctx, "bob", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, totals(got))
}

func TestMemoryStore_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := history.NewMemoryStore(10)
	require.NoError(t, s.Add(ctx, entryFor("a", 1)))
	require.NoError(t, s.Add(ctx, entryFor("b", 2)))

	got, err := s.List(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, totals(got))

	require.NoError(t, s.Clear(ctx, "a"))
	got, err = s.List(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.List(ctx, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, totals(got))
}

func TestMemoryStore_RejectsEmptyOwner(t *testing.T) {
	ctx := context.Background()
	s := history.NewMemoryStore(1)
	assert.ErrorIs(t, s.Add(ctx, entryFor("", 1)), history.ErrInvalidOwner)
	_, err := s.List(ctx, "", 0)
	assert.ErrorIs(t, err, history.ErrInvalidOwner)
	assert.ErrorIs(t, s.Clear(ctx, ""), history.ErrInvalidOwner)
}

func TestMemoryStore_ListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := history.NewMemoryStore(2)
	require.NoError(t, s.Add(ctx, entryFor("c", 1)))
	got, err := s.List(ctx, "c", 0)
	require.NoError(t, err)
	got[0].Total = 99

	again, err := s.List(ctx, "c", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Total)
}

// TestMemoryStore_Property verifies the store always holds the last
// min(n, capacity) entries in reverse insertion order.
func TestMemoryStore_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		n := rapid.IntRange(0, 60).Draw(rt, "n")
		s := history.NewMemoryStore(capacity)
		ctx := context.Background()
		for i := 0; i < n; i++ {
			require.NoError(rt, s.Add(ctx, entryFor("p", i)))
		}
		got, err := s.List(ctx, "p", 0)
		require.NoError(rt, err)

		want := []int{}
		for i := n - 1; i >= 0 && len(want) < capacity; i-- {
			want = append(want, i)
		}
		assert.Equal(rt, want, totals(got))
	})
}
