package graph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Store.AddNode] and [Store.RenameNode]
	// when the node ID is empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Store.AddNode] and [Store.RenameNode]
	// when a node with the same ID already exists. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Store.AddEdge] when the From node
	// does not exist, or by rename/redirect operations when the old ID is
	// not found.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Store.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrInvalidEdgeEndpoint is returned by [Store.Validate] when an edge
	// references a node that doesn't exist. This indicates graph corruption.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrInvalidOrder is returned by [Store.SetOrder] when the supplied
	// ordering is not a permutation of the current node set.
	ErrInvalidOrder = errors.New("ordering must cover every node exactly once")
)

// Store is the in-memory resource graph. See the package documentation for
// the invariants it maintains.
//
// The zero value is not usable - use [New] to create a valid instance.
type Store struct {
	nodes map[string]*Node
	edges map[string]map[string]*Edge // from -> to -> edge
	order []string                    // final node enumeration, set by the sorter
	log   []Annotation
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		nodes: make(map[string]*Node),
		edges: make(map[string]map[string]*Edge),
	}
}

// AddNode adds a node to the graph. Returns ErrInvalidNodeID if the node ID
// is empty, or ErrDuplicateNodeID if a node with the same ID already exists.
// The node's Type defaults to the ID's type segment and its Attrs field is
// initialized to an empty map if nil.
func (s *Store) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
	}
	if n.Type == "" {
		n.Type = TypeOf(n.ID)
	}
	if n.Attrs == nil {
		n.Attrs = Attrs{}
	}
	node := &n
	s.nodes[node.ID] = node
	return nil
}

// Node returns the node with the given ID and true, or nil and false if not
// found. The returned pointer refers to the actual node in the graph, so
// attribute and flag modifications affect the graph (ID changes must go
// through RenameNode).
func (s *Store) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// HasNode reports whether a node with the given ID exists.
func (s *Store) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Nodes returns all nodes sorted by ID for deterministic iteration.
// Use [Store.NodesOrdered] for the grouped final ordering after sorting.
func (s *Store) Nodes() []*Node {
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return nodes
}

// IDs returns all node identifiers sorted lexicographically.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RemoveNode deletes a node and every edge touching it.
// Removing an unknown ID is a no-op.
func (s *Store) RemoveNode(id string) {
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	delete(s.edges, id)
	for _, targets := range s.edges {
		delete(targets, id)
	}
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
}

// AddEdge adds a directed edge between two existing nodes. Insertion is
// idempotent: adding an edge for an existing (From, To) pair merges the
// AlwaysVisible and SingleTarget flags into the present edge instead of
// duplicating it. Returns ErrUnknownSourceNode or ErrUnknownTargetNode when
// an endpoint does not exist.
func (s *Store) AddEdge(e Edge) error {
	if _, ok := s.nodes[e.From]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSourceNode, e.From)
	}
	if _, ok := s.nodes[e.To]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTargetNode, e.To)
	}
	if existing, ok := s.edges[e.From][e.To]; ok {
		existing.AlwaysVisible = existing.AlwaysVisible || e.AlwaysVisible
		existing.SingleTarget = existing.SingleTarget || e.SingleTarget
		if existing.Label == "" {
			existing.Label = e.Label
		}
		return nil
	}
	if s.edges[e.From] == nil {
		s.edges[e.From] = make(map[string]*Edge)
	}
	edge := e
	s.edges[e.From][e.To] = &edge
	return nil
}

// Edge returns the edge from→to and true, or nil and false if absent.
// The returned pointer refers to the stored edge, so flag modifications
// affect the graph (endpoint changes must go through ReverseEdge or
// RemoveEdge plus AddEdge).
func (s *Store) Edge(from, to string) (*Edge, bool) {
	e, ok := s.edges[from][to]
	return e, ok
}

// Edges returns all edges sorted by (From, To) for deterministic iteration.
// The returned slice holds copies; mutate edges through [Store.Edge].
func (s *Store) Edges() []Edge {
	var out []Edge
	for _, targets := range s.edges {
		for _, e := range targets {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if a.From != b.From {
			if a.From < b.From {
				return -1
			}
			return 1
		}
		if a.To < b.To {
			return -1
		}
		if a.To > b.To {
			return 1
		}
		return 0
	})
	return out
}

// RemoveEdge removes the edge from→to if it exists.
// No error is returned if the edge does not exist.
func (s *Store) RemoveEdge(from, to string) {
	delete(s.edges[from], to)
}

// ReverseEdge swaps the endpoints of the edge from→to, preserving its flags
// and label. If the reversed pair already exists the two edges merge per
// AddEdge semantics. A no-op for unknown edges.
func (s *Store) ReverseEdge(from, to string) {
	e, ok := s.edges[from][to]
	if !ok {
		return
	}
	delete(s.edges[from], to)
	reversed := *e
	reversed.From, reversed.To = e.To, e.From
	if existing, ok := s.edges[reversed.From][reversed.To]; ok {
		existing.AlwaysVisible = existing.AlwaysVisible || reversed.AlwaysVisible
		existing.SingleTarget = existing.SingleTarget || reversed.SingleTarget
		existing.Locked = existing.Locked || reversed.Locked
		return
	}
	if s.edges[reversed.From] == nil {
		s.edges[reversed.From] = make(map[string]*Edge)
	}
	s.edges[reversed.From][reversed.To] = &reversed
}

// Children returns the IDs this node has edges to, sorted.
// Returns nil if the node has no children or doesn't exist.
func (s *Store) Children(id string) []string {
	targets := s.edges[id]
	if len(targets) == 0 {
		return nil
	}
	out := make([]string, 0, len(targets))
	for to := range targets {
		out = append(out, to)
	}
	slices.Sort(out)
	return out
}

// Parents returns the IDs that have edges to this node, sorted.
// Returns nil if the node has no parents or doesn't exist.
func (s *Store) Parents(id string) []string {
	var out []string
	for from, targets := range s.edges {
		if _, ok := targets[id]; ok {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// NodeCount returns the number of nodes in the graph.
func (s *Store) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges in the graph.
func (s *Store) EdgeCount() int {
	n := 0
	for _, targets := range s.edges {
		n += len(targets)
	}
	return n
}

// RenameNode changes a node's ID, updating all edges. Returns
// ErrInvalidNodeID if newID is empty, ErrUnknownSourceNode if oldID doesn't
// exist, or ErrDuplicateNodeID if newID is already in use.
func (s *Store) RenameNode(oldID, newID string) error {
	if newID == "" {
		return ErrInvalidNodeID
	}
	node, ok := s.nodes[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSourceNode, oldID)
	}
	if _, exists := s.nodes[newID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeID, newID)
	}

	node.ID = newID
	delete(s.nodes, oldID)
	s.nodes[newID] = node
	s.redirect(oldID, newID)

	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
		}
	}
	return nil
}

// RedirectEdges rewrites every edge touching oldID to reference newID
// instead, deduplicating pairs that collide and dropping any self-loop the
// redirect would create. The newID node must exist; oldID's node entry is
// left alone (callers typically RemoveNode it afterwards).
func (s *Store) RedirectEdges(oldID, newID string) error {
	if _, ok := s.nodes[newID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTargetNode, newID)
	}
	s.redirect(oldID, newID)
	delete(s.edges[newID], newID)
	return nil
}

func (s *Store) redirect(oldID, newID string) {
	if targets, ok := s.edges[oldID]; ok {
		delete(s.edges, oldID)
		for to, e := range targets {
			e.From = newID
			s.mergeEdge(e, to == oldID)
		}
	}
	for from, targets := range s.edges {
		if e, ok := targets[oldID]; ok {
			delete(targets, oldID)
			e.To = newID
			_ = from
			s.mergeEdge(e, false)
		}
	}
}

// mergeEdge inserts e, merging flags into an existing pair. selfRef marks an
// edge whose To also referenced the old identifier, in which case both
// endpoints become the new one.
func (s *Store) mergeEdge(e *Edge, selfRef bool) {
	if selfRef {
		e.To = e.From
	}
	if existing, ok := s.edges[e.From][e.To]; ok {
		existing.AlwaysVisible = existing.AlwaysVisible || e.AlwaysVisible
		existing.SingleTarget = existing.SingleTarget || e.SingleTarget
		existing.Locked = existing.Locked || e.Locked
		return
	}
	if s.edges[e.From] == nil {
		s.edges[e.From] = make(map[string]*Edge)
	}
	s.edges[e.From][e.To] = e
}

// HasPath reports whether dst is reachable from src by following edges.
// The depth-first search is bounded by the node count; graphs are
// single-deployment scale so no further optimization is needed.
func (s *Store) HasPath(src, dst string) bool {
	if src == dst {
		return true
	}
	visited := make(map[string]bool, len(s.nodes))
	stack := []string{src}
	for len(stack) > 0 && len(visited) <= len(s.nodes) {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for to := range s.edges[id] {
			if to == dst {
				return true
			}
			if !visited[to] {
				stack = append(stack, to)
			}
		}
	}
	return false
}

// SetOrder fixes the node enumeration order produced by the topological
// sorter. The ordering must be a permutation of the current node set.
func (s *Store) SetOrder(ids []string) error {
	if len(ids) != len(s.nodes) {
		return ErrInvalidOrder
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok || seen[id] {
			return fmt.Errorf("%w: %s", ErrInvalidOrder, id)
		}
		seen[id] = true
	}
	s.order = slices.Clone(ids)
	return nil
}

// OrderedIDs returns the final node enumeration if set, falling back to
// lexicographic order before the sorter has run.
func (s *Store) OrderedIDs() []string {
	if s.order != nil {
		return slices.Clone(s.order)
	}
	return s.IDs()
}

// NodesOrdered returns the nodes in final enumeration order.
func (s *Store) NodesOrdered() []*Node {
	ids := s.OrderedIDs()
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, s.nodes[id])
	}
	return nodes
}

// Clone returns a deep copy of the store, including the annotation log and
// any final ordering. Attribute values are copied one level deep.
func (s *Store) Clone() *Store {
	out := New()
	for id, n := range s.nodes {
		cp := *n
		cp.Attrs = make(Attrs, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
		out.nodes[id] = &cp
	}
	for from, targets := range s.edges {
		out.edges[from] = make(map[string]*Edge, len(targets))
		for to, e := range targets {
			cp := *e
			out.edges[from][to] = &cp
		}
	}
	out.order = slices.Clone(s.order)
	out.log = slices.Clone(s.log)
	return out
}

// Validate checks graph integrity and returns nil if valid. It verifies that
// every edge references existing nodes. Use this at pipeline stage boundaries
// before applying transformations that assume a consistent graph.
func (s *Store) Validate() error {
	for from, targets := range s.edges {
		if _, ok := s.nodes[from]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidEdgeEndpoint, from)
		}
		for to := range targets {
			if _, ok := s.nodes[to]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidEdgeEndpoint, from, to)
			}
		}
	}
	return nil
}
