package enrich

import (
	"slices"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// SortNodes fixes the rendering order: outer boundary nodes first, then
// edge services, containers, consolidated services, and finally everything
// else. Identifiers sort alphabetically inside each bucket, so equal inputs
// always produce the same ordering.
func SortNodes(s *graph.Store, t *rules.Table) error {
	var outer, edge, group, consolidated, rest []string
	for _, id := range s.IDs() {
		n, _ := s.Node(id)
		switch {
		case rules.MatchesAny(id, t.OuterNodes):
			outer = append(outer, id)
		case rules.MatchesAny(id, t.EdgeNodes):
			edge = append(edge, id)
		case n.Group || t.IsGroup(id):
			group = append(group, id)
		case n.Consolidated:
			consolidated = append(consolidated, id)
		default:
			rest = append(rest, id)
		}
	}

	order := make([]string, 0, s.NodeCount())
	for _, bucket := range [][]string{outer, edge, group, consolidated, rest} {
		slices.Sort(bucket)
		order = append(order, bucket...)
	}
	return s.SetOrder(order)
}
