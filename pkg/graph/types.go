package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Attrs stores the freeform attribute mapping carried from the plan extractor.
// Values are arbitrary (strings, numbers, nested maps) and are used for
// variant keyword matching, implied connections, and cardinality detection.
// Attrs maps are never nil after a node has been added to a Store.
type Attrs map[string]any

// Node is a vertex in the resource graph, identified by a resource identifier.
//
// Type is derived from the identifier's type segment and is what all
// prefix-matching rules test against. It can diverge from the identifier once
// the variant resolver rewrites the rendered classification (the identifier
// never changes for a variant, only Type does).
type Node struct {
	ID           string
	Type         string // rendered classification, initially the ID's type segment
	Attrs        Attrs
	Consolidated bool // synthetic merge target produced by consolidation
	Group        bool // container node (VPC, subnet, availability zone, ...)
}

// Edge is a directed connection between two nodes.
//
// Locked is set once the arrow normalizer has processed the edge, preventing
// double-reversal by any later pass. AlwaysVisible exempts the edge from cycle
// suppression. SingleTarget keeps the edge attached to a single representative
// instance when its endpoint fans out during multi-instance expansion.
type Edge struct {
	From          string
	To            string
	Locked        bool
	AlwaysVisible bool
	SingleTarget  bool
	Label         string
}

// Cardinality attribute keys recognized on nodes.
const (
	AttrCount   = "count"
	AttrForEach = "for_each"
)

// expandSep separates a logical identifier from its instance index.
const expandSep = "~"

// TypeOf returns the resource type segment of an identifier: everything
// before the first dot. For "aws_subnet.private~2" it returns "aws_subnet".
// Identifiers without a dot are returned unchanged.
func TypeOf(id string) string {
	if i := strings.Index(id, "."); i > 0 {
		return id[:i]
	}
	return id
}

// NameOf returns the name segment of an identifier, without any instance
// suffix. For "aws_subnet.private~2" it returns "private".
func NameOf(id string) string {
	name := id
	if i := strings.Index(id, "."); i >= 0 {
		name = id[i+1:]
	}
	if i := strings.Index(name, expandSep); i >= 0 {
		name = name[:i]
	}
	return name
}

// BaseID strips the instance suffix from an identifier.
// For "aws_subnet.private~2" it returns "aws_subnet.private".
func BaseID(id string) string {
	if i := strings.Index(id, expandSep); i >= 0 {
		return id[:i]
	}
	return id
}

// InstanceOf returns the instance index encoded in an identifier's suffix and
// true, or 0 and false when the identifier is unexpanded.
func InstanceOf(id string) (int, bool) {
	i := strings.Index(id, expandSep)
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// InstanceID builds the identifier for instance n of a logical node.
// InstanceID("aws_subnet.private", 2) returns "aws_subnet.private~2".
func InstanceID(base string, n int) string {
	return fmt.Sprintf("%s%s%d", base, expandSep, n)
}

// Cardinality reports the declared instance count of a node, derived from its
// attribute mapping: a numeric "count" value, or the length of a "for_each"
// list or map. Returns 1 when no cardinality is declared (or it is
// unparseable), so callers can treat every node uniformly.
func (n *Node) Cardinality() int {
	if v, ok := n.Attrs[AttrCount]; ok {
		if c, ok := toInt(v); ok && c > 0 {
			return c
		}
	}
	switch fe := n.Attrs[AttrForEach].(type) {
	case []any:
		if len(fe) > 0 {
			return len(fe)
		}
	case map[string]any:
		if len(fe) > 0 {
			return len(fe)
		}
	}
	return 1
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		c, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return c, true
	}
	return 0, false
}
