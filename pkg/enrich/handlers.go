package enrich

import (
	"strings"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// annotateRule is the provenance tag for generic auto-annotation edges.
const annotateRule = "auto_annotation"

// HandlerFunc performs resource-specific graph surgery for the nodes
// matching its bound prefix. Handlers may reassign group membership,
// synthesize annotated nodes and edges, rewrite attributes, or delete and
// rewrite edges. They must be idempotent with respect to annotations already
// present (checked via provenance tag), so repeated runs do not duplicate
// synthetic edges.
type HandlerFunc func(s *graph.Store, t *rules.Table, matched []string) error

// Registry maps handler names to implementations. Binding order comes from
// the rule table, not the registry; the registry only resolves names.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a name to a handler, replacing any previous binding.
func (r *Registry) Register(name string, fn HandlerFunc) {
	r.handlers[name] = fn
}

// Names returns the set of registered handler names, used to validate the
// rule table's bindings at startup.
func (r *Registry) Names() map[string]bool {
	names := make(map[string]bool, len(r.handlers))
	for name := range r.handlers {
		names[name] = true
	}
	return names
}

// ApplyHandlers runs the special-resource handlers in the table's declared
// binding order, then the generic auto-annotation pass. Order matters: some
// handlers depend on graph state left by an earlier one (the security-group
// handler reads the zone assignment the subnet handler wrote).
//
// A binding referencing an unregistered handler is a configuration error;
// callers are expected to have validated the table at startup, so hitting
// one here is fatal.
func ApplyHandlers(s *graph.Store, t *rules.Table, reg *Registry) error {
	for _, binding := range t.Handlers {
		fn, ok := reg.handlers[binding.Handler]
		if !ok {
			return errors.New(errors.ErrCodeUnknownHandler, "handler %q is not registered", binding.Handler)
		}
		matched := matchNodes(s, t, binding)
		if len(matched) == 0 {
			continue
		}
		if err := fn(s, t, matched); err != nil {
			return err
		}
	}
	return autoAnnotate(s, t)
}

// matchNodes returns the nodes bound to this handler: those whose best
// binding match is exactly this binding, so a catch-all prefix never
// shadows a more specific handler.
func matchNodes(s *graph.Store, t *rules.Table, binding rules.HandlerBinding) []string {
	var matched []string
	for _, id := range s.IDs() {
		if b, ok := t.HandlerFor(id); ok && b == binding {
			matched = append(matched, id)
		}
	}
	return matched
}

// autoAnnotate is the generic default handler: attribute-driven link, delete,
// and arrow rules keyed by prefix, applied to every matching node.
func autoAnnotate(s *graph.Store, t *rules.Table) error {
	for _, id := range s.IDs() {
		for _, rule := range t.AnnotationsFor(id) {
			if err := applyAnnotation(s, id, rule); err != nil {
				return err
			}
		}
	}
	return s.Validate()
}

func applyAnnotation(s *graph.Store, id string, rule rules.Annotation) error {
	for _, target := range rule.Link {
		if wild, ok := strings.CutSuffix(target, ".*"); ok {
			// Wildcard links attach to existing nodes only.
			for _, other := range s.IDs() {
				if other != id && strings.HasPrefix(other, wild) {
					if err := linkAnnotation(s, id, other, rule.Arrow); err != nil {
						return err
					}
				}
			}
			continue
		}
		if err := s.AnnotateNode(annotateRule, graph.Node{ID: target}); err != nil {
			return err
		}
		if err := linkAnnotation(s, id, target, rule.Arrow); err != nil {
			return err
		}
	}

	for _, prefix := range rule.Delete {
		for _, to := range s.Children(id) {
			if strings.HasPrefix(to, prefix) {
				s.RemoveEdge(id, to)
				s.Annotate(graph.Annotation{Rule: annotateRule, Op: graph.OpRemoveEdge, From: id, To: to})
			}
		}
		for _, from := range s.Parents(id) {
			if strings.HasPrefix(from, prefix) {
				s.RemoveEdge(from, id)
				s.Annotate(graph.Annotation{Rule: annotateRule, Op: graph.OpRemoveEdge, From: from, To: id})
			}
		}
	}
	return nil
}

func linkAnnotation(s *graph.Store, id, target string, arrow rules.Direction) error {
	e := graph.Edge{From: id, To: target}
	if arrow == rules.Reverse {
		e.From, e.To = target, id
	}
	return s.AnnotateEdge(annotateRule, e)
}
