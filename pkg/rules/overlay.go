package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
)

// OverlayRule is the provenance tag attached to graph changes made by a user
// overlay file.
const OverlayRule = "user_annotation"

// Overlay holds user-supplied graph annotations loaded from a YAML file.
// It lets users add nodes and connections the plan extractor cannot see
// (external systems, implicit traffic) and prune noise, without touching the
// built-in rule table.
type Overlay struct {
	// Add maps new node identifiers to the identifiers they connect to.
	// Both the node and any missing link targets are created.
	Add map[string][]string `yaml:"add"`

	// Connect adds edges between identifiers already in the graph.
	Connect map[string][]string `yaml:"connect"`

	// Disconnect removes edges; keys are origin identifiers, values are
	// destination prefixes.
	Disconnect map[string][]string `yaml:"disconnect"`

	// Remove deletes every node matching one of these prefixes.
	Remove []string `yaml:"remove"`

	// Update merges attribute values into existing nodes.
	Update map[string]map[string]any `yaml:"update"`
}

// LoadOverlay reads and parses a YAML overlay file. A malformed file is a
// configuration error and fatal at startup.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read overlay %s", path)
	}
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse overlay %s", path)
	}
	return &o, nil
}

// Apply mutates the store per the overlay. Identifier problems inside the
// overlay are plan-grade data: offending entries are skipped and recorded in
// the annotation log rather than failing the run.
func (o *Overlay) Apply(s *graph.Store) error {
	if o == nil {
		return nil
	}

	for id, links := range o.Add {
		if errors.ValidateResourceID(id) != nil {
			continue
		}
		if err := s.AnnotateNode(OverlayRule, graph.Node{ID: id}); err != nil {
			return err
		}
		for _, to := range links {
			if errors.ValidateResourceID(to) != nil {
				continue
			}
			if err := s.AnnotateNode(OverlayRule, graph.Node{ID: to}); err != nil {
				return err
			}
			if err := s.AnnotateEdge(OverlayRule, graph.Edge{From: id, To: to}); err != nil {
				return err
			}
		}
	}

	for from, targets := range o.Connect {
		if !s.HasNode(from) {
			continue
		}
		for _, to := range targets {
			if !s.HasNode(to) {
				continue
			}
			if err := s.AnnotateEdge(OverlayRule, graph.Edge{From: from, To: to}); err != nil {
				return err
			}
		}
	}

	for from, prefixes := range o.Disconnect {
		for _, to := range s.Children(from) {
			if MatchesAny(to, prefixes) {
				s.RemoveEdge(from, to)
				s.Annotate(graph.Annotation{Rule: OverlayRule, Op: graph.OpRemoveEdge, From: from, To: to})
			}
		}
	}

	for _, prefix := range o.Remove {
		for _, id := range s.IDs() {
			if strings.HasPrefix(id, prefix) {
				s.RemoveNode(id)
				s.Annotate(graph.Annotation{Rule: OverlayRule, Op: graph.OpRemoveNode, Node: id})
			}
		}
	}

	for id, attrs := range o.Update {
		n, ok := s.Node(id)
		if !ok {
			continue
		}
		for k, v := range attrs {
			n.Attrs[k] = v
		}
	}

	return nil
}

// String summarizes the overlay for logging.
func (o *Overlay) String() string {
	if o == nil {
		return "overlay(empty)"
	}
	return fmt.Sprintf("overlay(add=%d connect=%d disconnect=%d remove=%d update=%d)",
		len(o.Add), len(o.Connect), len(o.Disconnect), len(o.Remove), len(o.Update))
}
