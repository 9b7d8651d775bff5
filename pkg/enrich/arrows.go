package enrich

import (
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// NormalizeArrows settles edge directions against the rule table. Three
// classes apply in order to every edge: the reverse-arrow list (containers
// point at their contents), forced destinations (resources that only ever
// receive arrows) and forced origins (resources that only ever emit them).
// A later class may undo an earlier swap; whichever class touches the edge
// last wins. Every visited edge comes out locked so a second pass leaves
// the graph unchanged.
func NormalizeArrows(s *graph.Store, t *rules.Table) error {
	for _, e := range s.Edges() {
		if e.Locked {
			continue
		}
		from, to := e.From, e.To

		if t.Reversed(from, to) {
			from, to = to, from
		}
		if t.DestinationOnly(from) && !t.DestinationOnly(to) {
			from, to = to, from
		}
		if t.OriginOnly(to) && !t.OriginOnly(from) {
			from, to = to, from
		}

		if from != e.From {
			s.ReverseEdge(e.From, e.To)
		}
		if live, ok := s.Edge(from, to); ok {
			live.Locked = true
		}
	}
	return nil
}
