package graph

import "slices"

// AnnotationOp describes what a synthetic annotation did to the graph.
type AnnotationOp string

const (
	OpAddNode    AnnotationOp = "add_node"
	OpAddEdge    AnnotationOp = "add_edge"
	OpRemoveNode AnnotationOp = "remove_node"
	OpRemoveEdge AnnotationOp = "remove_edge"
)

// Annotation records a synthetic node or edge change not present in the raw
// plan, tagged with the rule that produced it. The log exists for
// traceability and for idempotent re-runs: a rule must not add the same
// annotation twice.
type Annotation struct {
	Rule string       `json:"rule"` // provenance: the rule name or prefix that fired
	Op   AnnotationOp `json:"op"`
	Node string       `json:"node,omitempty"` // for node operations
	From string       `json:"from,omitempty"` // for edge operations
	To   string       `json:"to,omitempty"`
}

// Annotate appends a record to the annotation log.
func (s *Store) Annotate(a Annotation) {
	s.log = append(s.log, a)
}

// Annotations returns a copy of the annotation log in application order.
func (s *Store) Annotations() []Annotation {
	return slices.Clone(s.log)
}

// Annotated reports whether the exact annotation is already present.
// Handlers check this before synthesizing, so repeated runs do not duplicate
// their additions.
func (s *Store) Annotated(a Annotation) bool {
	return slices.Contains(s.log, a)
}

// AnnotateEdge is a convenience for the common add-edge case: it records the
// annotation and inserts the edge, unless the same rule already added it.
// Returns the AddEdge error for unknown endpoints.
func (s *Store) AnnotateEdge(rule string, e Edge) error {
	a := Annotation{Rule: rule, Op: OpAddEdge, From: e.From, To: e.To}
	if s.Annotated(a) {
		return nil
	}
	if err := s.AddEdge(e); err != nil {
		return err
	}
	s.Annotate(a)
	return nil
}

// AnnotateNode records and adds a synthetic node, unless the same rule
// already added it. Adding a node that exists is treated as already done.
func (s *Store) AnnotateNode(rule string, n Node) error {
	a := Annotation{Rule: rule, Op: OpAddNode, Node: n.ID}
	if s.Annotated(a) || s.HasNode(n.ID) {
		return nil
	}
	if err := s.AddNode(n); err != nil {
		return err
	}
	s.Annotate(a)
	return nil
}
