// Package plan reads the raw resource graph produced by a plan extractor.
//
// The input contract is a JSON document with two mappings: resource
// identifier to dependency list (raw adjacency), and resource identifier to
// attribute mapping. Identifiers follow the <type>.<name> convention; type
// prefixes are the vocabulary the rule table matches against.
//
//	{
//	  "graph": {
//	    "aws_instance.web": ["aws_subnet.private", "aws_security_group.web"]
//	  },
//	  "attributes": {
//	    "aws_instance.web": {"instance_type": "t3.small", "count": 2}
//	  }
//	}
//
// Plan data is external collaborator output the engine cannot trust: edges
// or attributes referencing nonexistent identifiers are dropped with a
// logged annotation, never propagated as failures.
package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
)

// ImportRule is the provenance tag for repairs made while ingesting plan
// data (dropped dangling edges, skipped malformed identifiers).
const ImportRule = "plan_import"

// document mirrors the plan extractor's output contract. A bare adjacency
// mapping (no "graph" key) is also accepted for compatibility with older
// extractors.
type document struct {
	Graph      map[string][]string       `json:"graph"`
	Attributes map[string]map[string]any `json:"attributes"`
}

// Read decodes plan-extractor output from r into a fresh graph store.
//
// Malformed identifiers and dangling edges are dropped and recorded in the
// store's annotation log under [ImportRule]; only an unreadable document is
// an error.
func Read(r io.Reader) (*graph.Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "read plan document")
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "decode plan document")
	}
	if doc.Graph == nil {
		// Bare adjacency mapping form.
		if err := json.Unmarshal(data, &doc.Graph); err != nil || len(doc.Graph) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidDocument, "plan document has no graph mapping")
		}
	}

	s := graph.New()

	for id := range doc.Graph {
		if errors.ValidateResourceID(id) != nil {
			s.Annotate(graph.Annotation{Rule: ImportRule, Op: graph.OpRemoveNode, Node: id})
			continue
		}
		n := graph.Node{ID: id}
		if attrs, ok := doc.Attributes[id]; ok {
			n.Attrs = attrs
		}
		if err := s.AddNode(n); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "add node %s", id)
		}
	}

	for from, deps := range doc.Graph {
		if !s.HasNode(from) {
			continue
		}
		for _, to := range deps {
			if !s.HasNode(to) {
				// Untrusted reference into nothing: drop, keep the trace.
				s.Annotate(graph.Annotation{Rule: ImportRule, Op: graph.OpRemoveEdge, From: from, To: to})
				continue
			}
			if err := s.AddEdge(graph.Edge{From: from, To: to}); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "add edge %s -> %s", from, to)
			}
		}
	}

	return s, nil
}

// Load reads a plan document from a file path.
func Load(path string) (*graph.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Dropped returns the count of entries the importer discarded, useful for
// surfacing a data-quality warning to the user.
func Dropped(s *graph.Store) int {
	n := 0
	for _, a := range s.Annotations() {
		if a.Rule == ImportRule {
			n++
		}
	}
	return n
}
