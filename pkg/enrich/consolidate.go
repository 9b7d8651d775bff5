package enrich

import (
	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// consolidateRule is the provenance tag for consolidation merges.
const consolidateRule = "consolidation"

// Consolidate merges every node matching a consolidation rule into the
// rule's canonical target identifier, redirecting all edges that referenced
// the replaced nodes. Edge flags survive the redirect; pairs that collide
// deduplicate per the store's set semantics. A rule matching zero nodes is a
// no-op, not an error.
//
// Attributes of merged nodes are folded into the target (first writer wins)
// so cardinality and variant keywords survive the merge.
func Consolidate(s *graph.Store, t *rules.Table) error {
	for _, id := range s.IDs() {
		rule, ok := t.ConsolidationFor(id)
		if !ok || id == rule.Target {
			continue
		}

		target, exists := s.Node(rule.Target)
		if !exists {
			// First match becomes the canonical node.
			if err := s.RenameNode(id, rule.Target); err != nil {
				return errors.Wrap(errors.ErrCodeIdentifierCollision, err, "consolidate %s into %s", id, rule.Target)
			}
			n, _ := s.Node(rule.Target)
			n.Type = graph.TypeOf(rule.Target)
			n.Consolidated = true
			s.Annotate(graph.Annotation{Rule: consolidateRule, Op: graph.OpRemoveNode, Node: id})
			continue
		}

		src, _ := s.Node(id)
		for k, v := range src.Attrs {
			if _, taken := target.Attrs[k]; !taken {
				target.Attrs[k] = v
			}
		}
		if err := s.RedirectEdges(id, rule.Target); err != nil {
			return errors.Wrap(errors.ErrCodeGraphCorrupt, err, "redirect %s to %s", id, rule.Target)
		}
		s.RemoveNode(id)
		target.Consolidated = true
		s.Annotate(graph.Annotation{Rule: consolidateRule, Op: graph.OpRemoveNode, Node: id})
	}
	return s.Validate()
}
