package enrich

import (
	"strings"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// ResolveVariants specializes node types whose attributes match a variant
// keyword. Keywords are checked case-insensitively against the flattened
// attribute text, in the order the table declares them; the first hit wins.
// Only the node's display type changes, its identifier stays stable so
// edges and annotations keep pointing at it.
func ResolveVariants(s *graph.Store, t *rules.Table) error {
	for _, n := range s.Nodes() {
		variant, ok := t.VariantFor(n.Type)
		if !ok {
			continue
		}
		text := strings.ToLower(flattenAttrs(n.Attrs))
		for _, kw := range variant.Keywords {
			if strings.Contains(text, strings.ToLower(kw.Match)) {
				n.Type = kw.Variant
				break
			}
		}
	}
	return nil
}
