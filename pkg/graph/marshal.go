package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the persisted form of a Store: the adjacency mapping keyed by
// identifier (sorted keys, sorted destination lists), the attribute mapping
// side-channel, and enough detail to reproduce an equivalent Store on
// re-ingest (flags, final ordering, annotation log).
//
// The adjacency mapping alone matches the JSON dictionary the original
// toolchain exchanged with external collaborators; the remaining sections are
// optional and omitted when empty.
type Document struct {
	Graph       map[string][]string `json:"graph"`
	Attributes  map[string]Attrs    `json:"attributes,omitempty"`
	Nodes       []nodeDetail        `json:"nodes,omitempty"`
	Edges       []edgeDetail        `json:"edges,omitempty"`
	Order       []string            `json:"order,omitempty"`
	Annotations []Annotation        `json:"annotations,omitempty"`
}

// nodeDetail carries per-node state that the adjacency mapping cannot
// express. Only emitted for nodes diverging from their defaults.
type nodeDetail struct {
	ID           string `json:"id"`
	Type         string `json:"type,omitempty"` // only when rewritten by a variant
	Group        bool   `json:"group,omitempty"`
	Consolidated bool   `json:"consolidated,omitempty"`
}

// edgeDetail carries per-edge flags. Only emitted for flagged edges.
type edgeDetail struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Locked        bool   `json:"locked,omitempty"`
	AlwaysVisible bool   `json:"always_visible,omitempty"`
	SingleTarget  bool   `json:"single_target,omitempty"`
	Label         string `json:"label,omitempty"`
}

// ToDocument converts a Store to its persisted form.
func ToDocument(s *Store) Document {
	doc := Document{
		Graph:       make(map[string][]string, s.NodeCount()),
		Attributes:  make(map[string]Attrs),
		Order:       s.order,
		Annotations: s.log,
	}
	for _, n := range s.Nodes() {
		doc.Graph[n.ID] = append([]string{}, s.Children(n.ID)...)
		if len(n.Attrs) > 0 {
			doc.Attributes[n.ID] = n.Attrs
		}
		if n.Group || n.Consolidated || n.Type != TypeOf(n.ID) {
			nd := nodeDetail{ID: n.ID, Group: n.Group, Consolidated: n.Consolidated}
			if n.Type != TypeOf(n.ID) {
				nd.Type = n.Type
			}
			doc.Nodes = append(doc.Nodes, nd)
		}
	}
	for _, e := range s.Edges() {
		if e.Locked || e.AlwaysVisible || e.SingleTarget || e.Label != "" {
			doc.Edges = append(doc.Edges, edgeDetail{
				From:          e.From,
				To:            e.To,
				Locked:        e.Locked,
				AlwaysVisible: e.AlwaysVisible,
				SingleTarget:  e.SingleTarget,
				Label:         e.Label,
			})
		}
	}
	if len(doc.Attributes) == 0 {
		doc.Attributes = nil
	}
	return doc
}

// FromDocument reconstructs a Store from its persisted form.
// Returns an error if the document violates store constraints (duplicate
// identifiers, edges referencing absent nodes, an order that is not a
// permutation of the node set).
func FromDocument(doc Document) (*Store, error) {
	s := New()
	for id := range doc.Graph {
		n := Node{ID: id, Attrs: doc.Attributes[id]}
		if err := s.AddNode(n); err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
	}
	for _, nd := range doc.Nodes {
		n, ok := s.Node(nd.ID)
		if !ok {
			return nil, fmt.Errorf("node detail %s: %w", nd.ID, ErrUnknownSourceNode)
		}
		n.Group = nd.Group
		n.Consolidated = nd.Consolidated
		if nd.Type != "" {
			n.Type = nd.Type
		}
	}
	for from, targets := range doc.Graph {
		for _, to := range targets {
			if err := s.AddEdge(Edge{From: from, To: to}); err != nil {
				return nil, fmt.Errorf("edge %s->%s: %w", from, to, err)
			}
		}
	}
	for _, ed := range doc.Edges {
		e, ok := s.Edge(ed.From, ed.To)
		if !ok {
			return nil, fmt.Errorf("edge detail %s->%s: %w", ed.From, ed.To, ErrInvalidEdgeEndpoint)
		}
		e.Locked = ed.Locked
		e.AlwaysVisible = ed.AlwaysVisible
		e.SingleTarget = ed.SingleTarget
		e.Label = ed.Label
	}
	if doc.Order != nil {
		if err := s.SetOrder(doc.Order); err != nil {
			return nil, err
		}
	}
	s.log = append(s.log, doc.Annotations...)
	return s, nil
}

// Marshal encodes the store as indented JSON. Map keys and destination lists
// are sorted, so output is deterministic and diffs cleanly.
func Marshal(s *Store) ([]byte, error) {
	return json.MarshalIndent(ToDocument(s), "", "  ")
}

// Unmarshal decodes JSON produced by [Marshal] (or a bare adjacency
// document) into a Store.
func Unmarshal(data []byte) (*Store, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return FromDocument(doc)
}

// WriteJSON encodes the store as JSON and writes it to w.
// The output can be re-imported with [ReadJSON] for round-trip processing.
func WriteJSON(s *Store, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToDocument(s)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a JSON graph document from r into a Store.
func ReadJSON(r io.Reader) (*Store, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return FromDocument(doc)
}

// ExportJSON writes the store to a JSON file at path.
func ExportJSON(s *Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(s, f)
}

// ImportJSON reads a JSON file at path and returns the decoded Store.
func ImportJSON(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
