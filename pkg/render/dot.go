package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// Options configures diagram rendering.
type Options struct {
	// Title is drawn above the diagram when set.
	Title string

	// Detailed includes the resource type under each node label.
	Detailed bool
}

// ToDOT serializes an enriched graph to Graphviz DOT. Container nodes become
// clusters holding their members, nested the way the containment edges nest
// (VPC holds availability zones, zones hold subnets, and so on). Edges
// between a container and a direct member express membership and are not
// drawn as arrows; everything else becomes a regular edge. Output is
// deterministic for equal inputs.
func ToDOT(s *graph.Store, t *rules.Table, opts Options) []byte {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n  fontsize=20;\n", opts.Title)
	}
	buf.WriteString("\n")

	w := dotWriter{s: s, t: t, opts: opts, parent: membership(s)}
	w.clusterSeq = new(int)

	// Top-level clusters, then nodes that sit in no container.
	for _, id := range orderedIDs(s) {
		if w.parent[id] != "" {
			continue
		}
		n, _ := s.Node(id)
		if n.Group {
			w.writeCluster(&buf, id, 1)
		} else {
			w.writeNode(&buf, id, 1)
		}
	}

	buf.WriteString("\n")
	for _, e := range s.Edges() {
		if w.isMembership(e.From, e.To) {
			continue
		}
		attrs := ""
		if e.Label != "" {
			attrs = fmt.Sprintf(" [label=%q]", e.Label)
		}
		fmt.Fprintf(&buf, "  %q -> %q%s;\n", e.From, e.To, attrs)
	}

	buf.WriteString("}\n")
	return buf.Bytes()
}

// membership assigns every node its containing group, when one exists. A node
// with several group parents goes to the first one in sorted order; a group
// never becomes its own ancestor.
func membership(s *graph.Store) map[string]string {
	parent := make(map[string]string)
	for _, id := range s.IDs() {
		for _, p := range s.Parents(id) {
			pn, ok := s.Node(p)
			if !ok || !pn.Group {
				continue
			}
			if isAncestor(parent, id, p) {
				continue
			}
			parent[id] = p
			break
		}
	}
	return parent
}

func isAncestor(parent map[string]string, candidate, of string) bool {
	for cur := of; cur != ""; cur = parent[cur] {
		if cur == candidate {
			return true
		}
	}
	return false
}

type dotWriter struct {
	s          *graph.Store
	t          *rules.Table
	opts       Options
	parent     map[string]string
	clusterSeq *int
}

func (w dotWriter) isMembership(from, to string) bool {
	return w.parent[to] == from
}

func (w dotWriter) children(id string) []string {
	var out []string
	for _, c := range orderedIDs(w.s) {
		if w.parent[c] == id {
			out = append(out, c)
		}
	}
	return out
}

func (w dotWriter) writeCluster(buf *bytes.Buffer, id string, depth int) {
	n, _ := w.s.Node(id)
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(buf, "%ssubgraph \"cluster_%d\" {\n", indent, *w.clusterSeq)
	*w.clusterSeq++
	fmt.Fprintf(buf, "%s  label=%q;\n", indent, Label(n, w.t))
	fmt.Fprintf(buf, "%s  style=\"rounded\";\n", indent)

	// Anchor node so edges can target the container itself.
	fmt.Fprintf(buf, "%s  %q [shape=point, style=invis];\n", indent, id)

	for _, c := range w.children(id) {
		cn, _ := w.s.Node(c)
		if cn.Group {
			w.writeCluster(buf, c, depth+1)
		} else {
			w.writeNode(buf, c, depth+1)
		}
	}
	fmt.Fprintf(buf, "%s}\n", indent)
}

func (w dotWriter) writeNode(buf *bytes.Buffer, id string, depth int) {
	n, _ := w.s.Node(id)
	label := Label(n, w.t)
	if w.opts.Detailed {
		label += "\n" + TypeLabel(n.Type, w.t)
	}
	fmt.Fprintf(buf, "%s%q [label=%q];\n", strings.Repeat("  ", depth), id, label)
}

// orderedIDs prefers the engine's draw order and falls back to sorted IDs for
// stores that were never sorted.
func orderedIDs(s *graph.Store) []string {
	if ids := s.OrderedIDs(); len(ids) == s.NodeCount() {
		return ids
	}
	return s.IDs()
}
