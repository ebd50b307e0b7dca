// Package matcher implements multi-pattern, ASCII-case-insensitive,
// leftmost-longest substring matching in O(N+M) over input length plus
// match count, via a hand-rolled Aho-Corasick automaton.
package matcher

import "errors"

// ErrEmptyKeyset is returned by New when given no non-empty patterns.
var ErrEmptyKeyset = errors.New("matcher: empty keyset")

// Match is one occurrence of a pattern in the scanned text.
type Match struct {
	PatternIndex int // index into the keys slice passed to New
	Start, End   int // byte offsets into the scanned text, End exclusive
}

type node struct {
	children map[byte]int // lower-cased byte -> child node index
	fail     int
	// patternEnds holds, for every pattern whose match ends at this
	// node, its index into the original keys slice and its length.
	patternEnds []patternEnd
}

type patternEnd struct {
	index  int
	length int
}

// Matcher is a compiled Aho-Corasick automaton over a fixed keyset.
type Matcher struct {
	nodes []node
	keys  []string
}

// New compiles an automaton over keys. Empty keys are ignored. Returns
// an error if keys is empty after filtering, matching the RoleGraph's
// BuildError contract at the caller.
func New(keys []string) (*Matcher, error) {
	m := &Matcher{nodes: []node{{children: make(map[byte]int)}}}
	for _, k := range keys {
		if k == "" {
			continue
		}
		m.keys = append(m.keys, k)
		m.insert(len(m.keys)-1, k)
	}
	if len(m.keys) == 0 {
		return nil, ErrEmptyKeyset
	}
	m.buildFailureLinks()
	return m, nil
}

func (m *Matcher) insert(patternIndex int, key string) {
	cur := 0
	for i := 0; i < len(key); i++ {
		b := lower(key[i])
		next, ok := m.nodes[cur].children[b]
		if !ok {
			m.nodes = append(m.nodes, node{children: make(map[byte]int)})
			next = len(m.nodes) - 1
			m.nodes[cur].children[b] = next
		}
		cur = next
	}
	m.nodes[cur].patternEnds = append(m.nodes[cur].patternEnds, patternEnd{
		index:  patternIndex,
		length: len(key),
	})
}

func (m *Matcher) buildFailureLinks() {
	queue := make([]int, 0, len(m.nodes))
	for _, child := range m.nodes[0].children {
		m.nodes[child].fail = 0
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for b, child := range m.nodes[cur].children {
			fail := m.nodes[cur].fail
			for {
				if next, ok := m.nodes[fail].children[b]; ok && next != child {
					m.nodes[child].fail = next
					break
				}
				if fail == 0 {
					m.nodes[child].fail = 0
					break
				}
				fail = m.nodes[fail].fail
			}
			// Inherit pattern ends along the failure chain so a
			// shorter suffix pattern is still reported when it ends
			// at this node via failure transition.
			m.nodes[child].patternEnds = append(m.nodes[child].patternEnds, m.nodes[m.nodes[child].fail].patternEnds...)
			queue = append(queue, child)
		}
	}
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// FindMatches returns the leftmost-longest match at each starting
// position where at least one pattern matches, ordered by start
// position then by descending length (so the longest match at a given
// position is reported first and shorter overlapping matches at the
// same start are suppressed).
func (m *Matcher) FindMatches(text string) []Match {
	// For every end position, the automaton naturally reports the
	// longest pattern ending there first via patternEnds ordering
	// (direct match appended before inherited, shorter, failure-chain
	// matches). We bucket raw hits by start position, then keep the
	// longest per start to realize "leftmost-longest".
	type hit struct {
		start, end, patternIndex int
	}
	var hits []hit

	cur := 0
	for i := 0; i < len(text); i++ {
		b := lower(text[i])
		for {
			if next, ok := m.nodes[cur].children[b]; ok {
				cur = next
				break
			}
			if cur == 0 {
				break
			}
			cur = m.nodes[cur].fail
		}
		for _, pe := range m.nodes[cur].patternEnds {
			end := i + 1
			start := end - pe.length
			hits = append(hits, hit{start: start, end: end, patternIndex: pe.index})
		}
	}

	bestByStart := make(map[int]hit)
	for _, h := range hits {
		cur, ok := bestByStart[h.start]
		if !ok || (h.end-h.start) > (cur.end-cur.start) {
			bestByStart[h.start] = h
		}
	}

	starts := make([]int, 0, len(bestByStart))
	for s := range bestByStart {
		starts = append(starts, s)
	}
	sortInts(starts)

	out := make([]Match, 0, len(starts))
	for _, s := range starts {
		h := bestByStart[s]
		out = append(out, Match{PatternIndex: h.patternIndex, Start: h.start, End: h.end})
	}
	return out
}

// Keys returns the compiled keyset, index-aligned with Match.PatternIndex.
func (m *Matcher) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
