// Package searcher provides pooled search context for low-allocation queries.
//
// The Searcher struct owns all reusable resources needed for a query:
//   - a min-heap frontier for best-first head index traversal
//   - a bounded max-heap of candidate heads
//   - a bounded max-heap of top-k results
//   - a visited set over head index nodes
//
// Searchers are managed by a package-level pool for reuse across queries.
package searcher
