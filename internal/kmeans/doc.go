// Package kmeans implements Lloyd's k-means clustering over flat float32
// matrices.
//
// It is used to partition samples while building the head index and to
// split oversized posting lists. Distances are always squared L2.
package kmeans
