package enrich

import (
	"fmt"
	"strings"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// relationsRule is the provenance tag for implied-connection edges.
const relationsRule = "implied_connection"

// BuildRelations materializes edges implied by attribute values: for every
// node, every attribute whose name is registered in the implied-connection
// map and whose value textually names another node of the registered target
// type produces an edge from the node to that match.
//
// The stage only ever adds edges; unmatched attributes are silently skipped.
func BuildRelations(s *graph.Store, t *rules.Table) error {
	for _, n := range s.Nodes() {
		for attr, v := range n.Attrs {
			im, ok := t.ImpliedFor(attr)
			if !ok {
				continue
			}
			text := attrText(v)
			if text == "" {
				continue
			}
			for _, candidate := range s.IDs() {
				if candidate == n.ID || !strings.HasPrefix(candidate, im.Target) {
					continue
				}
				if !mentions(text, candidate) {
					continue
				}
				if err := s.AnnotateEdge(relationsRule, graph.Edge{From: n.ID, To: candidate}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// mentions reports whether the attribute text references the candidate node,
// either by full identifier or by its name segment.
func mentions(text, candidate string) bool {
	if strings.Contains(text, candidate) {
		return true
	}
	name := graph.NameOf(candidate)
	return name != "" && strings.Contains(text, name)
}

// attrText flattens an attribute value to a searchable string. Non-scalar
// values (container definitions, policy documents) are formatted verbatim so
// embedded references still match.
func attrText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
