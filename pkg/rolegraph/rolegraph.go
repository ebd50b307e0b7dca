// Package rolegraph implements the role-scoped co-occurrence knowledge
// graph: incremental document ingestion, pattern-matched term
// extraction, and the deterministic multi-factor ranking algorithm that
// the rest of the module builds on.
package rolegraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/terraphim-labs/roleforge/pkg/matcher"
	"github.com/terraphim-labs/roleforge/pkg/roleforgelog"
	"github.com/terraphim-labs/roleforge/pkg/thesaurus"
)

// Sentinel error kinds. ErrBuildFailed and ErrTermIDTooLarge are returned
// by New. ErrNodeIDNotFound and ErrEdgeIDNotFound mark internal-invariant
// violations: reachable only via a programming defect, and returned to
// the caller rather than causing a panic, so the caller can decide how
// to recover.
var (
	ErrBuildFailed    = errors.New("rolegraph: build failed")
	ErrNodeIDNotFound = errors.New("rolegraph: node id not found")
	ErrEdgeIDNotFound = errors.New("rolegraph: edge id not found")
	// ErrTermIDTooLarge guards the pairing function's implicit domain
	// cap, per the pairing-function design note: a 64-bit key can only
	// address unordered pairs drawn from a space of roughly 2^31 ids.
	ErrTermIDTooLarge = errors.New("rolegraph: term id exceeds pairing function domain")
)

const maxPairableTermID = 1<<31 - 1

// pair computes the order-independent, collision-free edge key for an
// unordered pair of node ids.
func pair(a, b uint64) uint64 {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	return hi*(hi+1) + lo
}

// Node is a graph vertex keyed by a NormalizedTerm id.
type Node struct {
	ID    uint64
	Rank  uint64
	Edges map[uint64]struct{} // incident edge ids
}

// Edge is an undirected co-occurrence relation between two nodes.
type Edge struct {
	ID           uint64
	NodeA, NodeB uint64            // endpoints; NodeA is always the larger of the pair
	Rank         uint64            // total co-occurrence count; == sum(DocFrequency)
	DocFrequency map[string]uint64 // document id -> co-occurrence count within that doc
}

// Document is ingestible input content.
type Document struct {
	ID          string
	URL         string
	Title       string
	Body        string
	Description string
	Tags        []string
	Rank        *uint64
	Summary     string
}

// IndexedDocument is the derived ranking result for a document matched
// by a query against the graph.
type IndexedDocument struct {
	DocumentID  string
	Rank        uint64
	MatchedEdges []uint64
	MatchedNodes []uint64
	Tags         []string
}

// RankedNode is one listing entry produced by RankedNodes.
type RankedNode struct {
	ID             uint64
	NormalizedTerm string
	Rank           uint64
	IncidentEdges  []uint64
	DocumentCount  uint64
	maxEdgeWeight  uint64
}

// RoleGraph is an in-memory co-occurrence knowledge graph scoped to one
// Role. Reads (Query, QueryByNodes, AreAllTermsConnected, RankedNodes,
// RankedDocuments) take the graph's read lock and InsertDocument takes
// its write lock, so reads run concurrently with each other and
// ingestion runs exclusively (shared-read, exclusive-write).
type RoleGraph struct {
	mu sync.RWMutex

	name      string
	thesaurus *thesaurus.Thesaurus
	matcher   *matcher.Matcher
	// keyTerms holds, for each thesaurus synonym key (as compiled into
	// the matcher, index-aligned with matcher.Keys()), its NormalizedTerm.
	keyTerms []thesaurus.NormalizedTerm

	nodes     map[uint64]*Node
	edges     map[uint64]*Edge
	documents map[string]*Document

	log *zap.Logger
}

// New builds the pattern matcher over the thesaurus's synonym keyset and
// returns a fresh, empty RoleGraph. Fails with ErrBuildFailed if the
// keyset is empty or the matcher fails to compile.
func New(roleName string, th *thesaurus.Thesaurus, log *zap.Logger) (*RoleGraph, error) {
	if log == nil {
		log = roleforgelog.Logger()
	}
	keys := th.Keys()
	m, err := matcher.New(keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	keyTerms := make([]thesaurus.NormalizedTerm, len(keys))
	for i, k := range keys {
		term, ok := th.Get(k)
		if !ok {
			return nil, fmt.Errorf("%w: key %q missing from thesaurus after matcher build", ErrBuildFailed, k)
		}
		if term.ID > maxPairableTermID {
			return nil, fmt.Errorf("%w: term id %d", ErrTermIDTooLarge, term.ID)
		}
		keyTerms[i] = term
	}

	return &RoleGraph{
		name:      roleName,
		thesaurus: th,
		matcher:   m,
		keyTerms:  keyTerms,
		nodes:     make(map[uint64]*Node),
		edges:     make(map[uint64]*Edge),
		documents: make(map[string]*Document),
		log:       log.Named("rolegraph").With(zap.String("role", roleName)),
	}, nil
}

// matchTermIDs runs the matcher over text and returns the sequence of
// matched NormalizedTerm ids in order of occurrence, preserving
// multiplicities (the same term can appear more than once).
func (g *RoleGraph) matchTermIDs(text string) []uint64 {
	matches := g.matcher.FindMatches(text)
	ids := make([]uint64, len(matches))
	for i, m := range matches {
		ids[i] = g.keyTerms[m.PatternIndex].ID
	}
	return ids
}

func (g *RoleGraph) canonicalValue(nodeID uint64) string {
	for _, term := range g.keyTerms {
		if term.ID == nodeID {
			return term.Value
		}
	}
	return ""
}

// InsertDocument ingests doc under id, running the matcher over
// title+" "+body and upserting nodes/edges for every adjacent pair of
// matched terms. Re-ingesting the same document id increases ranks and
// doc-counts monotonically; the caller must de-duplicate if that is
// undesired. Holds the graph's write lock for the whole ingestion, so it
// excludes concurrent reads and other inserts.
func (g *RoleGraph) InsertDocument(id string, doc Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	terms := g.matchTermIDs(doc.Title + " " + doc.Body)
	for i := 0; i+1 < len(terms); i++ {
		a, b := terms[i], terms[i+1]
		if a == b {
			// Adjacent matches resolved to the same normalized term id,
			// e.g. two synonyms of one concept appearing back to back.
			// There is no second concept here to co-occur with, so this
			// window contributes no self-loop edge and no extra rank.
			continue
		}
		edgeID := pair(a, b)

		edge, ok := g.edges[edgeID]
		if !ok {
			hi, lo := a, b
			if lo > hi {
				hi, lo = lo, hi
			}
			edge = &Edge{ID: edgeID, NodeA: hi, NodeB: lo, DocFrequency: make(map[string]uint64)}
			g.edges[edgeID] = edge
		}
		edge.DocFrequency[id]++
		edge.Rank++ // kept in lockstep with DocFrequency so invariant 2 holds by construction

		for _, n := range [2]uint64{a, b} {
			node, ok := g.nodes[n]
			if !ok {
				node = &Node{ID: n, Edges: make(map[uint64]struct{})}
				g.nodes[n] = node
			}
			node.Rank++
			node.Edges[edgeID] = struct{}{}
		}
	}

	docCopy := doc
	docCopy.ID = id
	g.documents[id] = &docCopy
	g.log.Debug("ingested document", zap.String("doc_id", id), zap.Int("matched_terms", len(terms)))
	return nil
}

func dedupeUint64(xs []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(xs))
	out := make([]uint64, 0, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	return out
}

// MatchedTerm pairs a matched node id with its canonical term text and
// current node rank.
type MatchedTerm struct {
	NodeID uint64
	Term   string
	Rank   uint64
}

// MatchTerms runs the pattern matcher over text and returns the
// deduplicated set of matched terms, ranked by node rank descending
// (node id ascending tie-break) — the "top matches" a caller like the
// agent command loop wants without doing its own ranking.
func (g *RoleGraph) MatchTerms(text string) []MatchedTerm {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := dedupeUint64(g.matchTermIDs(text))
	out := make([]MatchedTerm, 0, len(ids))
	for _, id := range ids {
		var rank uint64
		if n, ok := g.nodes[id]; ok {
			rank = n.Rank
		}
		out = append(out, MatchedTerm{NodeID: id, Term: g.canonicalValue(id), Rank: rank})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// Query matches queryString against the graph and returns ranked
// IndexedDocuments, sorted by aggregate rank descending with
// lexicographic doc_id-ascending tie-break, after applying
// skip(offset).take(limit).
func (g *RoleGraph) Query(ctx context.Context, queryString string, offset, limit int) ([]IndexedDocument, error) {
	if queryString == "" {
		return nil, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodeIDs := dedupeUint64(g.matchTermIDs(queryString))
	return g.queryNodesLocked(nodeIDs, offset, limit, false)
}

// QueryByNodes queries the graph directly from a set of already-matched
// node ids, bypassing text matching; used internally once a caller
// (e.g. the agent command loop) already holds matched node ids.
// Tie-breaks by summed incident edge weight descending before falling
// back to doc_id ascending, unlike Query's pure doc_id tie-break.
func (g *RoleGraph) QueryByNodes(ctx context.Context, nodeIDs []uint64, offset, limit int) ([]IndexedDocument, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.queryNodesLocked(dedupeUint64(nodeIDs), offset, limit, true)
}

func (g *RoleGraph) queryNodesLocked(nodeIDs []uint64, offset, limit int, edgeWeightTieBreak bool) ([]IndexedDocument, error) {
	type accum struct {
		rank         uint64
		edgeWeight   uint64
		matchedEdges map[uint64]struct{}
		matchedNodes map[uint64]struct{}
		tags         map[string]struct{}
	}
	byDoc := make(map[string]*accum)

	for _, n := range nodeIDs {
		node, ok := g.nodes[n]
		if !ok {
			continue // unmatched query term; not a graph invariant violation
		}
		for edgeID := range node.Edges {
			edge, ok := g.edges[edgeID]
			if !ok {
				return nil, fmt.Errorf("%w: %d", ErrEdgeIDNotFound, edgeID)
			}
			for docID, docCount := range edge.DocFrequency {
				a, ok := byDoc[docID]
				if !ok {
					a = &accum{
						matchedEdges: make(map[uint64]struct{}),
						matchedNodes: make(map[uint64]struct{}),
						tags:         make(map[string]struct{}),
					}
					byDoc[docID] = a
				}
				a.rank += node.Rank + edge.Rank + docCount
				a.edgeWeight += edge.Rank
				a.matchedEdges[edgeID] = struct{}{}
				a.matchedNodes[n] = struct{}{}
				if v := g.canonicalValue(n); v != "" {
					a.tags[v] = struct{}{}
				}
			}
		}
	}

	docIDs := make([]string, 0, len(byDoc))
	for id := range byDoc {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool {
		ai, aj := byDoc[docIDs[i]], byDoc[docIDs[j]]
		if ai.rank != aj.rank {
			return ai.rank > aj.rank
		}
		if edgeWeightTieBreak && ai.edgeWeight != aj.edgeWeight {
			return ai.edgeWeight > aj.edgeWeight
		}
		return docIDs[i] < docIDs[j]
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(docIDs) {
		offset = len(docIDs)
	}
	docIDs = docIDs[offset:]
	if limit >= 0 && limit < len(docIDs) {
		docIDs = docIDs[:limit]
	}

	out := make([]IndexedDocument, 0, len(docIDs))
	for _, id := range docIDs {
		a := byDoc[id]
		out = append(out, IndexedDocument{
			DocumentID:   id,
			Rank:         a.rank,
			MatchedEdges: sortedKeys(a.matchedEdges),
			MatchedNodes: sortedKeys(a.matchedNodes),
			Tags:         sortedStringKeys(a.tags),
		})
	}
	return out, nil
}

func sortedKeys(m map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedStringKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AreAllTermsConnected matches text into node ids and returns true iff
// all of them lie in a single connected component of the edge
// adjacency graph. Returns true vacuously for 0 or 1 matched nodes.
func (g *RoleGraph) AreAllTermsConnected(text string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodeIDs := dedupeUint64(g.matchTermIDs(text))
	if len(nodeIDs) <= 1 {
		return true
	}

	start := nodeIDs[0]
	visited := map[uint64]struct{}{start: {}}
	queue := []uint64{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node, ok := g.nodes[cur]
		if !ok {
			continue
		}
		for edgeID := range node.Edges {
			edge, ok := g.edges[edgeID]
			if !ok {
				continue
			}
			other := edge.NodeA
			if other == cur {
				other = edge.NodeB
			}
			if _, seen := visited[other]; !seen {
				visited[other] = struct{}{}
				queue = append(queue, other)
			}
		}
	}

	for _, n := range nodeIDs {
		if _, ok := visited[n]; !ok {
			return false
		}
	}
	return true
}

// RankedNodes lists every node with its rank, incident edges and
// aggregate document count, sorted by the node's maximum incident edge
// weight descending.
func (g *RoleGraph) RankedNodes() []RankedNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]RankedNode, 0, len(g.nodes))
	for id, node := range g.nodes {
		var maxWeight uint64
		var docCount uint64
		docsSeen := make(map[string]struct{})
		edgeIDs := make([]uint64, 0, len(node.Edges))
		for edgeID := range node.Edges {
			edgeIDs = append(edgeIDs, edgeID)
			edge := g.edges[edgeID]
			if edge == nil {
				continue
			}
			if edge.Rank > maxWeight {
				maxWeight = edge.Rank
			}
			for docID := range edge.DocFrequency {
				docsSeen[docID] = struct{}{}
			}
		}
		docCount = uint64(len(docsSeen))
		sort.Slice(edgeIDs, func(i, j int) bool { return edgeIDs[i] < edgeIDs[j] })

		out = append(out, RankedNode{
			ID:             id,
			NormalizedTerm: g.canonicalValue(id),
			Rank:           node.Rank,
			IncidentEdges:  edgeIDs,
			DocumentCount:  docCount,
			maxEdgeWeight:  maxWeight,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].maxEdgeWeight != out[j].maxEdgeWeight {
			return out[i].maxEdgeWeight > out[j].maxEdgeWeight
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RankedDocuments returns every ingested document that carries an
// explicit Document.Rank, sorted by that rank descending with
// lexicographic id-ascending tie-break. Documents with no rank supplied
// at ingestion are excluded, mirroring the source's get_ranked_documents
// view over pre-scored content rather than query-derived ranking.
func (g *RoleGraph) RankedDocuments() []Document {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Document, 0, len(g.documents))
	for _, d := range g.documents {
		if d.Rank != nil {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].Rank != *out[j].Rank {
			return *out[i].Rank > *out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SplitParagraphs segments body into trimmed, non-empty sentence-like
// chunks on '.', '!', and '?' boundaries. A pre-segmentation helper for
// haystacks that want to chunk long-form text before indexing;
// RoleGraph itself indexes title+body as a whole.
func SplitParagraphs(body string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range body {
		cur.WriteRune(r)
		switch r {
		case '.', '!', '?':
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
