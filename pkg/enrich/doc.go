// Package enrich implements the graph enrichment engine: the ordered
// sequence of rule-driven transformations that convert a raw
// resource-reference graph plus per-resource metadata into a finished,
// deduplicated, correctly-oriented, and grouped graph ready for layout and
// narration.
//
// # Stages
//
// The pipeline applies, in fixed order:
//
//  1. Relations   - materialize edges implied by attribute values
//  2. Consolidate - merge raw nodes into canonical visual capabilities
//  3. Handlers    - resource-specific surgery plus generic auto-annotation
//  4. Variants    - classification rewrites from attribute keywords
//  5. Expand      - multi-instance fan-out of nodes carrying a cardinality
//  6. Arrows      - direction normalization (reverse, forced dest/origin)
//  7. Cycles      - suppression of edges closing a cycle
//  8. Sort        - final grouped, deterministic node ordering
//
// Each stage fully consumes the store before the next begins; the driver
// holds the single store instance and passes it by exclusive reference, so
// identifier-uniqueness invariants are checkable globally at every boundary.
// No stage performs network or disk I/O and there is no internal cancellation:
// a run either completes all stages or fails outright.
package enrich
