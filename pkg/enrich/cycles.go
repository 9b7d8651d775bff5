package enrich

import (
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

const cycleRule = "cycle_suppression"

// BreakCycles removes edges that close a directed cycle. Self loops are
// always dropped. For every remaining edge, if a path already leads from its
// destination back to its origin the edge is redundant and goes away, unless
// the edge itself or the rule table marks the pair always-visible. Edges are
// visited in deterministic order, so the same graph always sheds the same
// edges.
func BreakCycles(s *graph.Store, t *rules.Table) error {
	for _, e := range s.Edges() {
		if e.From == e.To {
			s.RemoveEdge(e.From, e.To)
			s.Annotate(graph.Annotation{Rule: cycleRule, Op: graph.OpRemoveEdge, From: e.From, To: e.To})
			continue
		}
		if e.AlwaysVisible || t.AlwaysVisible(e.From, e.To) {
			continue
		}
		if s.HasPath(e.To, e.From) {
			s.RemoveEdge(e.From, e.To)
			s.Annotate(graph.Annotation{Rule: cycleRule, Op: graph.OpRemoveEdge, From: e.From, To: e.To})
		}
	}
	return nil
}
