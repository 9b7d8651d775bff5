package render

import (
	"strconv"
	"strings"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// Label produces the display label for a node: the name segment of the
// identifier, split on underscores and hyphens, with acronyms uppercased and
// the remaining words title-cased. Phrase replacements from the table apply
// last. Expanded instances keep their ordinal so copies stay tellable apart.
func Label(n *graph.Node, t *rules.Table) string {
	base := graph.BaseID(n.ID)
	label := prettify(graph.NameOf(base), t)
	if i, ok := graph.InstanceOf(n.ID); ok {
		label = strings.TrimSpace(label) + " " + strconv.Itoa(i)
	}
	return label
}

// TypeLabel renders a resource type for display, dropping the provider
// prefix: "aws_db_instance" becomes "DB Instance".
func TypeLabel(typ string, t *rules.Table) string {
	typ = strings.TrimPrefix(typ, "aws_")
	return prettify(typ, t)
}

func prettify(raw string, t *rules.Table) string {
	// Replacements first: their patterns target the raw snake_case form.
	for _, r := range t.Replacements {
		raw = strings.ReplaceAll(raw, r.From, r.To)
	}
	words := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = titleWord(w, t)
	}
	return strings.Join(words, " ")
}

func titleWord(w string, t *rules.Table) string {
	for _, a := range t.Acronyms {
		if strings.EqualFold(w, a) {
			return strings.ToUpper(a)
		}
	}
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
