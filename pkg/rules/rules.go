// Package rules defines the declarative rule table driving graph enrichment.
//
// A [Table] is an immutable set of typed rule variants - consolidations,
// auto-annotations, variant keywords, direction rules, handler bindings, and
// label rewrites - each kept as an ordered list. Matching is by resource-type
// prefix against the full identifier; when several entries of the same class
// match, the longest prefix wins and ties fall back to declaration order.
// That ordering contract is what makes enrichment deterministic, so the
// accessors below all preserve it.
//
// The built-in AWS table (see aws.go) mirrors the declarative configuration
// the original toolchain shipped. User additions come in through a YAML
// overlay (see overlay.go), never by mutating a table in place.
package rules

import (
	"strings"

	"github.com/planviz/planviz/pkg/errors"
)

// Direction selects how a synthesized annotation edge points.
type Direction string

const (
	// Forward draws the edge from the matched node to the linked node.
	Forward Direction = "forward"
	// Reverse draws the edge from the linked node to the matched node.
	Reverse Direction = "reverse"
)

// Consolidation merges every node matching Prefix into the single canonical
// Target identifier.
type Consolidation struct {
	Prefix      string
	Target      string
	EdgeService bool // drawn at the cloud boundary rather than inside a VPC
}

// Annotation synthesizes edges for nodes matching Prefix: a Link edge to each
// listed identifier (creating missing link targets as synthetic nodes), and
// removal of edges to identifiers matching any Delete prefix. Arrow selects
// the direction of the synthesized edges.
type Annotation struct {
	Prefix string
	Link   []string
	Delete []string
	Arrow  Direction
}

// Keyword maps a case-insensitive substring found in a node's attribute
// values to the variant type that replaces the node's classification.
type Keyword struct {
	Match   string
	Variant string
}

// Variant rewrites the classification of nodes of type Type based on the
// first matching keyword, in declared order.
type Variant struct {
	Type     string
	Keywords []Keyword
}

// Implied materializes an edge when an attribute named Attr has a value
// textually naming a node whose type matches Target.
type Implied struct {
	Attr   string
	Target string
}

// HandlerBinding binds a resource prefix to a named special-resource handler.
// Bindings are evaluated once per pipeline run, in declared order - order
// matters because some handlers read graph state left by an earlier one.
type HandlerBinding struct {
	Prefix  string
	Handler string
}

// Replacement rewrites a phrase inside display labels.
type Replacement struct {
	From string
	To   string
}

// Table is the immutable rule configuration for one provider vocabulary.
type Table struct {
	Consolidations []Consolidation
	Annotations    []Annotation
	Variants       []Variant
	Implied        []Implied
	Handlers       []HandlerBinding

	// Draw-order classification lists, outermost first.
	OuterNodes []string // outside the cloud boundary (users, internet)
	EdgeNodes  []string // inside the cloud but outside any VPC
	GroupNodes []string // container nodes, in draw order

	// Direction rules, applied by the arrow normalizer in this order.
	ReverseArrows []string
	ForcedDest    []string
	ForcedOrigin  []string

	SharedServices []string // collected under the shared-services group
	AlwaysDraw     []string // edges touching these types survive cycle breaking

	// Label rewriting for rendering.
	Acronyms     []string
	Replacements []Replacement
}

// matchPrefix returns the longest entry in prefixes that is a prefix of id.
// Ties (equal length) resolve to the earliest declared entry. Returns false
// when nothing matches. The empty string matches everything and is used by
// catch-all entries.
func matchPrefix(id string, prefixes []string) (string, bool) {
	best := -1
	for i, p := range prefixes {
		if !strings.HasPrefix(id, p) {
			continue
		}
		if best < 0 || len(p) > len(prefixes[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return prefixes[best], true
}

// MatchesAny reports whether id matches any of the given prefixes.
func MatchesAny(id string, prefixes []string) bool {
	_, ok := matchPrefix(id, prefixes)
	return ok
}

// ConsolidationFor returns the consolidation rule whose prefix best matches
// id, honoring longest-prefix-wins with declaration-order tie-break.
func (t *Table) ConsolidationFor(id string) (Consolidation, bool) {
	prefixes := make([]string, len(t.Consolidations))
	for i, c := range t.Consolidations {
		prefixes[i] = c.Prefix
	}
	p, ok := matchPrefix(id, prefixes)
	if !ok {
		return Consolidation{}, false
	}
	for _, c := range t.Consolidations {
		if c.Prefix == p {
			return c, true
		}
	}
	return Consolidation{}, false
}

// AnnotationsFor returns every annotation rule matching id, in declared
// order. Unlike single-winner classes, all matching annotation rules apply.
func (t *Table) AnnotationsFor(id string) []Annotation {
	var out []Annotation
	for _, a := range t.Annotations {
		if strings.HasPrefix(id, a.Prefix) {
			out = append(out, a)
		}
	}
	return out
}

// VariantFor returns the variant rule whose type prefix best matches the
// node's type, honoring longest-prefix-wins with declaration-order tie-break.
// Prefix matching lets a single aws_rds rule cover aws_rds_cluster and the
// other engine-specific types.
func (t *Table) VariantFor(nodeType string) (Variant, bool) {
	prefixes := make([]string, len(t.Variants))
	for i, v := range t.Variants {
		prefixes[i] = v.Type
	}
	p, ok := matchPrefix(nodeType, prefixes)
	if !ok {
		return Variant{}, false
	}
	for _, v := range t.Variants {
		if v.Type == p {
			return v, true
		}
	}
	return Variant{}, false
}

// ImpliedFor returns the implied-connection rule registered for the
// attribute name, if any.
func (t *Table) ImpliedFor(attr string) (Implied, bool) {
	for _, im := range t.Implied {
		if im.Attr == attr {
			return im, true
		}
	}
	return Implied{}, false
}

// HandlerFor returns the handler binding whose prefix best matches id.
func (t *Table) HandlerFor(id string) (HandlerBinding, bool) {
	prefixes := make([]string, len(t.Handlers))
	for i, h := range t.Handlers {
		prefixes[i] = h.Prefix
	}
	p, ok := matchPrefix(id, prefixes)
	if !ok {
		return HandlerBinding{}, false
	}
	for _, h := range t.Handlers {
		if h.Prefix == p {
			return h, true
		}
	}
	return HandlerBinding{}, false
}

// Reversed reports whether an edge should be swapped so it points into the
// container. Only the destination is consulted; when both endpoints are
// containers the edge already runs outer to inner and stays put.
func (t *Table) Reversed(from, to string) bool {
	return MatchesAny(to, t.ReverseArrows) && !MatchesAny(from, t.ReverseArrows)
}

// DestinationOnly reports whether id names a resource forced to be an edge
// destination.
func (t *Table) DestinationOnly(id string) bool {
	return MatchesAny(id, t.ForcedDest)
}

// OriginOnly reports whether id names a resource forced to be an edge origin.
func (t *Table) OriginOnly(id string) bool {
	return MatchesAny(id, t.ForcedOrigin)
}

// AlwaysVisible reports whether an edge between the two identifiers is
// exempt from cycle suppression.
func (t *Table) AlwaysVisible(from, to string) bool {
	return MatchesAny(from, t.AlwaysDraw) || MatchesAny(to, t.AlwaysDraw)
}

// IsShared reports whether id belongs to the shared-services list.
func (t *Table) IsShared(id string) bool {
	return MatchesAny(id, t.SharedServices)
}

// IsGroup reports whether id's type is a container classification.
func (t *Table) IsGroup(id string) bool {
	return MatchesAny(id, t.GroupNodes)
}

// Validate checks the table for configuration errors before any graph
// processing begins. known is the set of registered handler names; a binding
// referencing an unknown handler is fatal per the error taxonomy.
func (t *Table) Validate(known map[string]bool) error {
	for _, h := range t.Handlers {
		if h.Prefix == "" {
			return errors.New(errors.ErrCodeInvalidRule, "handler binding with empty prefix")
		}
		if !known[h.Handler] {
			return errors.New(errors.ErrCodeUnknownHandler, "handler %q bound to prefix %q is not registered", h.Handler, h.Prefix)
		}
	}
	for _, c := range t.Consolidations {
		if c.Prefix == "" || c.Target == "" {
			return errors.New(errors.ErrCodeInvalidRule, "consolidation rule needs both prefix and target (prefix=%q target=%q)", c.Prefix, c.Target)
		}
		if err := errors.ValidateResourceID(c.Target); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRule, err, "consolidation target for prefix %q", c.Prefix)
		}
	}
	for _, a := range t.Annotations {
		if a.Prefix == "" {
			return errors.New(errors.ErrCodeInvalidRule, "annotation rule with empty prefix")
		}
		if a.Arrow != "" && a.Arrow != Forward && a.Arrow != Reverse {
			return errors.New(errors.ErrCodeInvalidRule, "annotation rule for prefix %q has invalid arrow %q", a.Prefix, a.Arrow)
		}
	}
	return nil
}
