package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		key     Key
		want    bool
	}{
		{"exact triple", Pattern{L1: "a", L2: "b", L3: "c"}, Key{L1: "a", L2: "b", L3: "c"}, true},
		{"trailing wildcard", Pattern{L1: "a"}, Key{L1: "a", L2: "b", L3: "c"}, true},
		{"different l2", Pattern{L1: "a", L2: "x"}, Key{L1: "a", L2: "b"}, false},
		{"segment required", Pattern{L1: "a", Segment: "Cá nhân"}, Key{L1: "a", Segment: "Doanh nghiệp"}, false},
		{"whitespace tolerant", Pattern{L1: " a "}, Key{L1: "a"}, true},
		{"empty key level", Pattern{L1: "a", L2: "b"}, Key{L1: "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches(tt.key))
		})
	}
}

func TestTableMatchPrefersSpecificity(t *testing.T) {
	table := NewTable([]Rule[string]{
		{Pattern: Pattern{L1: "a"}, Result: "l1-only"},
		{Pattern: Pattern{L1: "a", L2: "b", L3: "c"}, Result: "triple"},
		{Pattern: Pattern{L1: "a", L2: "b"}, Result: "pair"},
	})

	rule, ok := table.Match(Key{L1: "a", L2: "b", L3: "c"})
	require.True(t, ok)
	assert.Equal(t, "triple", rule.Result)

	rule, ok = table.Match(Key{L1: "a", L2: "b", L3: "z"})
	require.True(t, ok)
	assert.Equal(t, "pair", rule.Result)

	rule, ok = table.Match(Key{L1: "a", L2: "q"})
	require.True(t, ok)
	assert.Equal(t, "l1-only", rule.Result)

	_, ok = table.Match(Key{L1: "other"})
	assert.False(t, ok)
}

func TestTableMatchTieKeepsTableOrder(t *testing.T) {
	table := NewTable([]Rule[int]{
		{Pattern: Pattern{L1: "a", L2: "b"}, Result: 1},
		{Pattern: Pattern{L1: "a", L3: "c"}, Result: 2},
	})

	rule, ok := table.Match(Key{L1: "a", L2: "b", L3: "c"})
	require.True(t, ok)
	assert.Equal(t, 1, rule.Result)

	all := table.MatchAll(Key{L1: "a", L2: "b", L3: "c"})
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Result)
	assert.Equal(t, 2, all[1].Result)
}

func TestSegmentSpecificEntryWins(t *testing.T) {
	table := NewTable([]Rule[string]{
		{Pattern: Pattern{L1: "SPDV", L2: "Khiếu nại", L3: "Tín dụng"}, Result: "generic"},
		{Pattern: Pattern{L1: "SPDV", L2: "Khiếu nại", L3: "Tín dụng", Segment: "Cá nhân"}, Result: "individual"},
	})

	rule, ok := table.Match(Key{L1: "SPDV", L2: "Khiếu nại", L3: "Tín dụng", Segment: "Cá nhân"})
	require.True(t, ok)
	assert.Equal(t, "individual", rule.Result)

	rule, ok = table.Match(Key{L1: "SPDV", L2: "Khiếu nại", L3: "Tín dụng", Segment: "Khác"})
	require.True(t, ok)
	assert.Equal(t, "generic", rule.Result)
}

func TestNilTable(t *testing.T) {
	var table *Table[string]
	_, ok := table.Match(Key{L1: "a"})
	assert.False(t, ok)
	assert.Zero(t, table.Len())
	assert.Nil(t, table.MatchAll(Key{}))
}
