// Package headindex implements the in-memory head index: a navigable set of
// centroids ("heads") that routes queries and new vectors to posting lists.
//
// Two variants are supported:
//
//   - VariantTree: one or more balanced k-means trees (BKT). The first tree
//     is built over a sample of the corpus and its leaves become heads.
//     Additional trees cluster the head centroids with different seeds and
//     share the same head leaves, adding redundant routes.
//   - VariantFlat: a single k-means pass whose centroids are the heads;
//     navigation is exhaustive over all heads.
//
// An Index value is immutable. Split returns a new Index in which a leaf
// has become an internal node over two new heads; callers publish it with
// an atomic pointer swap so that readers keep a consistent snapshot.
//
// Routing distances are squared L2 between centroids and the (possibly
// normalized) vector.
package headindex
