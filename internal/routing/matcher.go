// Package routing evaluates ordered (pattern, result) rule tables where the
// most specific matching pattern wins.
package routing

import "strings"

// Key is the classification a table is queried with.
type Key struct {
	L1      string
	L2      string
	L3      string
	Segment string
}

// Pattern matches a Key. Empty fields are wildcards.
type Pattern struct {
	L1      string `yaml:"l1"`
	L2      string `yaml:"l2"`
	L3      string `yaml:"l3"`
	Segment string `yaml:"segment"`
}

// Matches reports whether every concrete field equals the key's field.
func (p Pattern) Matches(k Key) bool {
	return fieldMatches(p.L1, k.L1) &&
		fieldMatches(p.L2, k.L2) &&
		fieldMatches(p.L3, k.L3) &&
		fieldMatches(p.Segment, k.Segment)
}

// Specificity is the number of concrete fields.
func (p Pattern) Specificity() int {
	n := 0
	for _, f := range []string{p.L1, p.L2, p.L3, p.Segment} {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

func fieldMatches(pattern, value string) bool {
	pattern = strings.TrimSpace(pattern)
	return pattern == "" || pattern == strings.TrimSpace(value)
}

// Rule pairs a pattern with its result.
type Rule[T any] struct {
	Pattern Pattern
	Result  T
}

// Table is an ordered rule list. Ties on specificity go to the earlier rule.
type Table[T any] struct {
	rules []Rule[T]
}

// NewTable copies rules into a table.
func NewTable[T any](rules []Rule[T]) *Table[T] {
	return &Table[T]{rules: append([]Rule[T](nil), rules...)}
}

// Len returns the number of rules.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Match returns the most specific rule matching k.
func (t *Table[T]) Match(k Key) (Rule[T], bool) {
	var (
		best  Rule[T]
		found bool
		score = -1
	)
	if t == nil {
		return best, false
	}
	for _, rule := range t.rules {
		if !rule.Pattern.Matches(k) {
			continue
		}
		if s := rule.Pattern.Specificity(); s > score {
			best, score, found = rule, s, true
		}
	}
	return best, found
}

// MatchAll returns every matching rule, most specific first, stable on ties.
func (t *Table[T]) MatchAll(k Key) []Rule[T] {
	if t == nil {
		return nil
	}
	var matches []Rule[T]
	for _, rule := range t.rules {
		if rule.Pattern.Matches(k) {
			matches = append(matches, rule)
		}
	}
	sortBySpecificity(matches)
	return matches
}

// sortBySpecificity is an insertion sort; tables are small and order must stay stable.
func sortBySpecificity[T any](rules []Rule[T]) {
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j].Pattern.Specificity() > rules[j-1].Pattern.Specificity(); j-- {
			rules[j], rules[j-1] = rules[j-1], rules[j]
		}
	}
}
