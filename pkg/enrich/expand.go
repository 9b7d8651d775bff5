package enrich

import (
	"maps"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
)

// Expand replaces every node whose cardinality exceeds one with numbered
// instance nodes. Each instance inherits the original's type, attributes and
// flags. Outgoing edges are duplicated per instance; incoming edges fan out
// to every instance unless the edge is single-target, in which case only the
// first instance receives it. Nodes that already carry an instance suffix
// are left alone, so re-running the stage is a no-op.
func Expand(s *graph.Store) error {
	for _, id := range s.IDs() {
		if graph.BaseID(id) != id {
			continue
		}
		n, ok := s.Node(id)
		if !ok {
			continue
		}
		count := n.Cardinality()
		if count <= 1 {
			continue
		}
		if err := expandNode(s, n, count); err != nil {
			return err
		}
	}
	return s.Validate()
}

func expandNode(s *graph.Store, n *graph.Node, count int) error {
	incoming := s.Parents(n.ID)
	outgoing := s.Children(n.ID)

	instances := make([]string, count)
	for i := range count {
		id := graph.InstanceID(n.ID, i+1)
		attrs := maps.Clone(n.Attrs)
		delete(attrs, graph.AttrCount)
		delete(attrs, graph.AttrForEach)
		if err := s.AddNode(graph.Node{
			ID:           id,
			Type:         n.Type,
			Attrs:        attrs,
			Group:        n.Group,
			Consolidated: n.Consolidated,
		}); err != nil {
			return errors.Wrap(errors.ErrCodeIdentifierCollision, err,
				"instance identifier already taken: %s", id)
		}
		instances[i] = id
	}

	for _, to := range outgoing {
		e, _ := s.Edge(n.ID, to)
		for _, inst := range instances {
			if err := s.AddEdge(graph.Edge{
				From: inst, To: to,
				Locked:        e.Locked,
				AlwaysVisible: e.AlwaysVisible,
				SingleTarget:  e.SingleTarget,
				Label:         e.Label,
			}); err != nil {
				return err
			}
		}
	}
	for _, from := range incoming {
		e, _ := s.Edge(from, n.ID)
		targets := instances
		if e.SingleTarget {
			targets = instances[:1]
		}
		for _, inst := range targets {
			if err := s.AddEdge(graph.Edge{
				From: from, To: inst,
				Locked:        e.Locked,
				AlwaysVisible: e.AlwaysVisible,
				SingleTarget:  e.SingleTarget,
				Label:         e.Label,
			}); err != nil {
				return err
			}
		}
	}

	s.RemoveNode(n.ID)
	return nil
}
