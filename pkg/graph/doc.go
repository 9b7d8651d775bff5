// Package graph implements the in-memory resource graph that the enrichment
// pipeline consumes and mutates.
//
// A [Store] holds three things: the node set keyed by resource identifier, a
// set-like adjacency mapping with per-edge flags, and an annotation log
// recording every synthetic addition or removal together with the rule that
// produced it. The store is created once from plan-extractor output, passed by
// exclusive reference through each pipeline stage, and becomes effectively
// read-only once the final node ordering is set.
//
// # Identifiers
//
// Resource identifiers follow the <type>.<name> convention of Terraform
// addresses, optionally suffixed with an instance index once a node has been
// expanded:
//
//	aws_instance.web        // logical node
//	aws_instance.web~2      // second instance after expansion
//
// The type segment (everything before the first dot) is the vocabulary all
// prefix-based rules match against.
//
// # Invariants
//
// The store maintains, at every pipeline boundary:
//
//   - Node identifiers are unique ([Store.AddNode] rejects duplicates).
//   - Edge insertion is idempotent: at most one edge per (from, to) pair.
//   - Every edge endpoint resolves to a present node; operations that remove
//     or rename nodes rewrite or drop the touching edges, never leaving them
//     dangling.
//
// Store is not safe for concurrent use. The pipeline driver owns it alone for
// the duration of a run, so no synchronization is needed.
package graph
