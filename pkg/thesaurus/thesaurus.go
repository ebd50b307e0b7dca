// Package thesaurus maps surface-form synonyms onto canonical normalized
// terms, and provides prefix/fuzzy autocomplete over that vocabulary.
package thesaurus

import (
	"errors"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// ErrNoResults is returned by Autocomplete when the result set is empty.
var ErrNoResults = errors.New("thesaurus: no results")

// NormalizedTerm is a unique canonical concept. Id -> Value is a bijection
// within one Thesaurus.
type NormalizedTerm struct {
	ID    uint64
	Value string
	URL   string
	Alt   string
}

// Thesaurus maps any surface form (synonym) to a NormalizedTerm. It is
// loaded at role initialization; a RoleGraph built from it copies the
// synonym keyset at construction, so later Insert calls do not reach an
// existing graph.
type Thesaurus struct {
	byKey map[string]NormalizedTerm
	keys  []string // insertion order, used for stable autocomplete iteration
}

// New returns an empty Thesaurus. Nothing freezes it: Insert stays
// callable after construction.
func New() *Thesaurus {
	return &Thesaurus{byKey: make(map[string]NormalizedTerm)}
}

// Insert records that synonym maps to term. Synonyms are matched
// case-sensitively as stored; callers wanting case-insensitive lookup
// should lower-case before Insert and Get.
func (t *Thesaurus) Insert(synonym string, term NormalizedTerm) {
	if _, exists := t.byKey[synonym]; !exists {
		t.keys = append(t.keys, synonym)
	}
	t.byKey[synonym] = term
}

// Get returns the NormalizedTerm for an exact surface form, if any.
func (t *Thesaurus) Get(value string) (NormalizedTerm, bool) {
	term, ok := t.byKey[value]
	return term, ok
}

// Len returns the number of distinct synonyms registered.
func (t *Thesaurus) Len() int {
	return len(t.byKey)
}

// Keys returns all registered synonyms in insertion order. The matcher
// package builds its automaton from this keyset.
func (t *Thesaurus) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Term  NormalizedTerm
	Score float64
	URL   string
}

const (
	scoreExactPrefix = 3.0
	scoreFuzzy       = 2.0
	scoreSubstring   = 1.0
	maxFuzzyDistance = 2
)

// Autocomplete returns up to k suggestions for prefix, ranked
// exact-prefix > fuzzy (edit distance <= 2) > substring, with
// lexicographic tie-break on the synonym string. Empty prefix or k=0
// yields ErrNoResults.
func (t *Thesaurus) Autocomplete(prefix string, k int) ([]Suggestion, error) {
	if prefix == "" || k <= 0 {
		return nil, ErrNoResults
	}

	type candidate struct {
		key   string
		score float64
	}
	var candidates []candidate
	lowerPrefix := strings.ToLower(prefix)

	for _, key := range t.keys {
		lowerKey := strings.ToLower(key)
		switch {
		case strings.HasPrefix(lowerKey, lowerPrefix):
			candidates = append(candidates, candidate{key, scoreExactPrefix})
		case levenshtein.Distance(lowerKey, lowerPrefix, nil) <= maxFuzzyDistance:
			candidates = append(candidates, candidate{key, scoreFuzzy})
		case strings.Contains(lowerKey, lowerPrefix):
			candidates = append(candidates, candidate{key, scoreSubstring})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].key < candidates[j].key
	})

	if len(candidates) == 0 {
		return nil, ErrNoResults
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Suggestion, len(candidates))
	for i, c := range candidates {
		term := t.byKey[c.key]
		out[i] = Suggestion{Term: term, Score: c.score, URL: term.URL}
	}
	return out, nil
}
