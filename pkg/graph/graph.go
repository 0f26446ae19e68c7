// Package graph is a knowledge graph whose nodes and edges are identified by meaning: two
// entries are the same when their embeddings are closer than IdentityThreshold.
package graph

import (
	"encoding/json"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/utils/vector"
)

// IdentityThreshold is the cosine similarity above which two entries are the same.
const IdentityThreshold = 0.8

// Graph is not safe for concurrent mutation.
type Graph struct {
	nodes []*Node
	edges []*Edge
}

func New() *Graph {
	return &Graph{}
}

func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }
func (g *Graph) Edges() []*Edge { return slices.Clone(g.edges) }

// closestNodeIndex returns the index of the most similar node of the same type above the
// identity threshold, or -1.
func (g *Graph) closestNodeIndex(node *Node) int {
	best, bestSim := -1, IdentityThreshold
	for i, n := range g.nodes {
		if n.Type != node.Type {
			continue
		}
		if sim := vector.CosineSimilarity(node.Embedding, n.Embedding); sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best
}

func (g *Graph) HasNode(node *Node) bool {
	return g.closestNodeIndex(node) >= 0
}

// ClosestNode returns the existing node that node is identified with.
func (g *Graph) ClosestNode(node *Node) (*Node, bool) {
	i := g.closestNodeIndex(node)
	if i < 0 {
		return nil, false
	}
	return g.nodes[i], true
}

// AddNode inserts node unless an equivalent node exists. It returns the node held by the
// graph and whether it was inserted.
func (g *Graph) AddNode(node *Node) (*Node, bool) {
	if existing, ok := g.ClosestNode(node); ok {
		return existing, false
	}
	g.nodes = append(g.nodes, node)
	return node, true
}

// RemoveNode removes the node node is identified with, if any.
func (g *Graph) RemoveNode(node *Node) bool {
	i := g.closestNodeIndex(node)
	if i < 0 {
		return false
	}
	g.nodes = slices.Delete(g.nodes, i, i+1)
	return true
}

// edgeMatch returns the source×target similarity product when candidate is identified with
// edge, that is the same type with edge, source and target similarity all above threshold.
func edgeMatch(candidate, edge *Edge) (float64, bool) {
	if candidate.Type != edge.Type {
		return 0, false
	}
	if vector.CosineSimilarity(candidate.Embedding, edge.Embedding) <= IdentityThreshold {
		return 0, false
	}
	src := vector.CosineSimilarity(candidate.SourceEmbedding, edge.SourceEmbedding)
	if src <= IdentityThreshold {
		return 0, false
	}
	dst := vector.CosineSimilarity(candidate.TargetEmbedding, edge.TargetEmbedding)
	if dst <= IdentityThreshold {
		return 0, false
	}
	return src * dst, true
}

func (g *Graph) closestEdgeIndex(edge *Edge) int {
	best, bestScore := -1, 0.0
	for i, e := range g.edges {
		score, ok := edgeMatch(e, edge)
		if ok && (best < 0 || score > bestScore) {
			best, bestScore = i, score
		}
	}
	return best
}

func (g *Graph) HasEdge(edge *Edge) bool {
	return g.closestEdgeIndex(edge) >= 0
}

// ClosestEdge returns the matching edge with the highest source×target similarity.
func (g *Graph) ClosestEdge(edge *Edge) (*Edge, bool) {
	i := g.closestEdgeIndex(edge)
	if i < 0 {
		return nil, false
	}
	return g.edges[i], true
}

// AddEdge inserts edge unless an equivalent edge exists. It returns the edge held by the
// graph and whether it was inserted.
func (g *Graph) AddEdge(edge *Edge) (*Edge, bool) {
	if existing, ok := g.ClosestEdge(edge); ok {
		return existing, false
	}
	g.edges = append(g.edges, edge)
	return edge, true
}

func (g *Graph) RemoveEdge(edge *Edge) bool {
	i := g.closestEdgeIndex(edge)
	if i < 0 {
		return false
	}
	g.edges = slices.Delete(g.edges, i, i+1)
	return true
}

// Validate checks every node and edge variant.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	for _, e := range g.edges {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type graphJSON struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	nodes, edges := g.nodes, g.edges
	if nodes == nil {
		nodes = []*Node{}
	}
	if edges == nil {
		edges = []*Edge{}
	}
	return json.Marshal(graphJSON{Nodes: nodes, Edges: edges})
}

// UnmarshalJSON restores a graph as stored. Entries are taken as-is without deduplication.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var v graphJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return goerr.Wrap(err, "failed to decode graph")
	}
	g.nodes, g.edges = v.Nodes, v.Edges
	return g.Validate()
}
