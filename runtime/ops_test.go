package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/runtime"
)

func profiles() []runtime.Profile {
	return []runtime.Profile{
		runtime.Basic{},
		runtime.Iter{},
		runtime.NewParallel(4),
		runtime.NewChunk(4, 2),
	}
}

func TestMapPreservesOrderAcrossProfiles(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	for _, p := range profiles() {
		stats := runtime.NewStats()
		out := runtime.Map(p, stats, 0, in, func(v int) int { return v * 2 })
		assert.Equal(t, []int{2, 4, 6, 8, 10, 12, 14, 16}, out)
		assert.EqualValues(t, len(in), stats.Count(0))
	}
}

func TestMapSeqRunsSequentially(t *testing.T) {
	var order []int
	in := []int{1, 2, 3, 4}
	stats := runtime.NewStats()
	out := runtime.MapSeq(stats, 1, in, func(v int) int {
		order = append(order, v)
		return v + 1
	})
	assert.Equal(t, []int{2, 3, 4, 5}, out)
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestFilterPreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6}
	for _, p := range profiles() {
		stats := runtime.NewStats()
		out := runtime.Filter(p, stats, 0, in, func(v int) bool { return v%2 == 0 })
		assert.Equal(t, []int{2, 4, 6}, out)
	}
}

func TestAllAndIs(t *testing.T) {
	stats := runtime.NewStats()
	in := []int{2, 4, 6}
	assert.True(t, runtime.All(stats, 0, in, func(v int) bool { return v%2 == 0 }))
	assert.False(t, runtime.All(stats, 0, in, func(v int) bool { return v > 4 }))
	assert.True(t, runtime.Is(stats, 0, in, 4))
	assert.False(t, runtime.Is(stats, 0, in, 5))
}

func TestCount(t *testing.T) {
	stats := runtime.NewStats()
	assert.Equal(t, 3, runtime.Count(stats, 2, []int{1, 2, 3}))
	assert.EqualValues(t, 3, stats.Count(2))
}

func TestFold(t *testing.T) {
	stats := runtime.NewStats()
	sum := runtime.Fold(stats, 0, []int{1, 2, 3, 4}, 0, func(acc, v int) int { return acc + v })
	assert.Equal(t, 10, sum)
}

func TestCombineAcrossProfiles(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for _, p := range profiles() {
		stats := runtime.NewStats()
		sum := runtime.Combine(p, stats, 0, in, 0, func(a, b int) int { return a + b })
		assert.Equal(t, 55, sum)
	}
}

func TestCombineEmptyReturnsIdentity(t *testing.T) {
	stats := runtime.NewStats()
	sum := runtime.Combine(runtime.NewParallel(4), stats, 0, nil, 42, func(a, b int) int { return a + b })
	assert.Equal(t, 42, sum)
}

func TestSortReturnsSortedCopy(t *testing.T) {
	stats := runtime.NewStats()
	in := []int{3, 1, 2}
	out := runtime.Sort(stats, 0, in, func(a, b int) bool { return a < b })
	assert.Equal(t, []int{1, 2, 3}, out)
	assert.Equal(t, []int{3, 1, 2}, in, "Sort must not mutate its input")
}

func TestTake(t *testing.T) {
	stats := runtime.NewStats()
	assert.Equal(t, []int{1, 2}, runtime.Take(stats, 0, []int{1, 2, 3, 4}, 2))
	assert.Equal(t, []int{1, 2, 3, 4}, runtime.Take(stats, 0, []int{1, 2, 3, 4}, 10))
	assert.Equal(t, []int{}, runtime.Take(stats, 0, []int{1, 2, 3, 4}, 0))
}

func TestGroupByPreservesKeyOrder(t *testing.T) {
	stats := runtime.NewStats()
	type row struct {
		Category string
		Amount   int
	}
	rows := []row{{"a", 1}, {"b", 2}, {"a", 3}}
	groups := runtime.GroupBy(stats, 0, rows, func(r row) string { return r.Category })
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].Key)
	assert.Equal(t, []row{{"a", 1}, {"a", 3}}, groups[0].Items)
	assert.Equal(t, "b", groups[1].Key)
}

func TestCrossJoin(t *testing.T) {
	stats := runtime.NewStats()
	out := runtime.CrossJoin(stats, 0, []int{1, 2}, []string{"a", "b"})
	require.Len(t, out, 4)
	assert.Equal(t, runtime.Pair[int, string]{Left: 1, Right: "a"}, out[0])
}

func TestEquiJoin(t *testing.T) {
	stats := runtime.NewStats()
	out := runtime.EquiJoin(stats, 0, []int{1, 2, 3}, []string{"x1", "x2"},
		func(v int) string { return "x" + string(rune('0'+v)) },
		func(s string) string { return s })
	require.Len(t, out, 2)
}

func TestPredicateJoin(t *testing.T) {
	for _, p := range profiles() {
		stats := runtime.NewStats()
		out := runtime.PredicateJoin(p, stats, 0, []int{1, 2, 3}, []int{2, 3, 4}, func(l, r int) bool { return l < r })
		assert.NotEmpty(t, out)
	}
}

func TestUnion(t *testing.T) {
	stats := runtime.NewStats()
	out := runtime.Union(stats, 0, []int{1, 2}, []int{3}, []int{4, 5})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, out)
}

func TestForkAndForkSingle(t *testing.T) {
	stats := runtime.NewStats()
	forks := runtime.Fork(stats, 0, []int{1, 2, 3}, 3)
	require.Len(t, forks, 3)
	for _, f := range forks {
		assert.Equal(t, []int{1, 2, 3}, f)
	}
	single := runtime.ForkSingle(stats, 0, 7, 2)
	assert.Equal(t, []int{7, 7}, single)
}

func TestSplit(t *testing.T) {
	stats := runtime.NewStats()
	matched, rest := runtime.Split(stats, 0, []int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{2, 4}, matched)
	assert.Equal(t, []int{1, 3}, rest)
}

func TestConsumeAndExportStream(t *testing.T) {
	stats := runtime.NewStats()
	src := func(yield func(int) bool) {
		for _, v := range []int{1, 2, 3} {
			if !yield(v) {
				return
			}
		}
	}
	out := runtime.ConsumeStream(stats, 0, src)
	assert.Equal(t, []int{1, 2, 3}, out)

	var collected []int
	for v := range runtime.ExportStream(stats, 1, out) {
		collected = append(collected, v)
	}
	assert.Equal(t, out, collected)
}

func TestErrorStreamStopsAtFirstError(t *testing.T) {
	stats := runtime.NewStats()
	boom := assert.AnError
	vals, err := runtime.ErrorStream(stats, 0, []int{1, 2, 3}, []error{nil, boom, nil})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, vals)
}

func TestErrorSingle(t *testing.T) {
	stats := runtime.NewStats()
	v, err := runtime.ErrorSingle(stats, 0, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestNilStatsIsSafe(t *testing.T) {
	var stats *runtime.Stats
	out := runtime.Map(runtime.Basic{}, stats, 0, []int{1, 2}, func(v int) int { return v })
	assert.Equal(t, []int{1, 2}, out)
	assert.EqualValues(t, 0, stats.Count(0))
}
