package headindex

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/hupe1980/spfresh/internal/kmeans"
	"github.com/hupe1980/spfresh/internal/resource"
)

// BuildConfig controls head selection.
type BuildConfig struct {
	Variant Variant
	// TreeNumber is the number of navigation trees (tree variant only).
	TreeNumber int
	// K is the branching factor of each k-means split.
	K int
	// LeafSize is the maximum number of sample points under a head.
	LeafSize int
	// Iterations bounds Lloyd iterations per clustering.
	Iterations int
	Seed       int64

	Pool   *resource.Controller
	Logger *slog.Logger
}

func (c *BuildConfig) normalize() {
	if c.TreeNumber <= 0 {
		c.TreeNumber = 1
	}
	if c.K < 2 {
		c.K = 2
	}
	if c.LeafSize <= 0 {
		c.LeafSize = 1
	}
	if c.Iterations <= 0 {
		c.Iterations = 1
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// SampleSize returns how many of n vectors feed head selection:
// ceil(ratio*n) capped at limit (when limit > 0), but never below
// min(n, floor) so that small corpora keep enough points per split.
func SampleSize(n int, ratio float64, limit int, floor int) int {
	if n <= 0 {
		return 0
	}
	size := int(math.Ceil(ratio * float64(n)))
	if limit > 0 && size > limit {
		size = limit
	}
	size = max(size, min(n, floor))
	return min(max(size, 1), n)
}

// SampleRows draws size distinct row indexes from [0, n).
func SampleRows(n, size int, rng *rand.Rand) []int {
	if size >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := rng.Perm(n)[:size]
	return rows
}

// Build selects heads from points, a flattened n*dim sample matrix.
func Build(ctx context.Context, points []float32, dim int, cfg BuildConfig) (*Index, error) {
	cfg.normalize()
	if dim <= 0 || len(points) == 0 || len(points)%dim != 0 {
		return nil, ErrEmptyInput
	}
	if !cfg.Variant.Valid() {
		return nil, fmt.Errorf("headindex: invalid variant %v", cfg.Variant)
	}

	b := &builder{cfg: cfg, ix: &Index{dim: dim, variant: cfg.Variant}}

	var err error
	if cfg.Variant == VariantFlat {
		err = b.buildFlat(ctx, points)
	} else {
		err = b.buildTrees(ctx, points)
	}
	if err != nil {
		return nil, err
	}

	b.ix.indexLeaves()
	if err := b.ix.validate(); err != nil {
		return nil, fmt.Errorf("headindex: built invalid index: %w", err)
	}
	cfg.Logger.DebugContext(ctx, "head index built",
		"variant", cfg.Variant.String(),
		"heads", b.ix.NumHeads(),
		"nodes", b.ix.NumNodes(),
		"roots", b.ix.NumRoots(),
	)
	return b.ix, nil
}

type builder struct {
	cfg BuildConfig
	ix  *Index
}

func (b *builder) addNode(n Node) int32 {
	b.ix.nodes = append(b.ix.nodes, n)
	return int32(len(b.ix.nodes) - 1)
}

func (b *builder) newHead(centroid []float32) int32 {
	id := b.ix.nextHead
	b.ix.nextHead++
	return b.addNode(Node{Centroid: centroid, Head: int32(id)})
}

func (b *builder) buildFlat(ctx context.Context, points []float32) error {
	dim := b.ix.dim
	n := len(points) / dim
	k := (n + b.cfg.LeafSize - 1) / b.cfg.LeafSize

	c, err := kmeans.TrainKMeans(ctx, points, dim, k, b.cfg.Iterations, rand.New(rand.NewSource(b.cfg.Seed)))
	if err != nil {
		return err
	}
	for _, rows := range groupRows(c, nil) {
		leaf := b.newHead(kmeans.Mean(points, dim, rows))
		b.ix.roots = append(b.ix.roots, leaf)
	}
	return nil
}

func (b *builder) buildTrees(ctx context.Context, points []float32) error {
	dim := b.ix.dim

	// Tree 0 owns the heads.
	root, err := b.buildTree(ctx, points, b.cfg.Seed, func(node int32, _ []int) {
		nd := &b.ix.nodes[node]
		nd.Head = int32(b.ix.nextHead)
		b.ix.nextHead++
	})
	if err != nil {
		return err
	}
	b.ix.roots = append(b.ix.roots, root)

	if b.cfg.TreeNumber == 1 {
		return nil
	}

	// Further trees route over the head centroids and end in buckets that
	// point at the shared head leaves.
	var leaves []int32
	for i := range b.ix.nodes {
		if b.ix.nodes[i].IsLeaf() {
			leaves = append(leaves, int32(i))
		}
	}
	centroids := make([]float32, 0, len(leaves)*dim)
	for _, l := range leaves {
		centroids = append(centroids, b.ix.nodes[l].Centroid...)
	}

	for t := 1; t < b.cfg.TreeNumber; t++ {
		root, err := b.buildTree(ctx, centroids, b.cfg.Seed+int64(t)*7919, func(node int32, rows []int) {
			children := make([]int32, len(rows))
			for i, r := range rows {
				children[i] = leaves[r]
			}
			b.ix.nodes[node].Children = children
		})
		if err != nil {
			return err
		}
		b.ix.roots = append(b.ix.roots, root)
	}
	return nil
}

type buildItem struct {
	node int32
	rows []int
}

// buildTree recursively partitions points level by level. Every node that
// ends up with at most LeafSize rows, or whose clustering degenerates to a
// single cluster, is passed to leaf.
func (b *builder) buildTree(ctx context.Context, points []float32, seed int64, leaf func(node int32, rows []int)) (int32, error) {
	dim := b.ix.dim
	n := len(points) / dim
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	root := b.addNode(Node{Centroid: kmeans.Mean(points, dim, all), Head: -1})
	level := []buildItem{{node: root, rows: all}}

	for len(level) > 0 {
		parts := make([][][]int, len(level))
		err := b.cfg.Pool.ForEach(ctx, len(level), func(ctx context.Context, i int) error {
			it := level[i]
			if len(it.rows) <= b.cfg.LeafSize {
				return nil
			}
			p, err := b.partition(ctx, points, it.rows, seed+int64(it.node))
			if err != nil {
				return fmt.Errorf("headindex: partition node %d: %w", it.node, err)
			}
			parts[i] = p
			return nil
		})
		if err != nil {
			return -1, err
		}

		var next []buildItem
		for i, it := range level {
			if len(parts[i]) < 2 {
				leaf(it.node, it.rows)
				continue
			}
			children := make([]int32, 0, len(parts[i]))
			for _, rows := range parts[i] {
				c := b.addNode(Node{Centroid: kmeans.Mean(points, dim, rows), Head: -1})
				children = append(children, c)
				next = append(next, buildItem{node: c, rows: rows})
			}
			b.ix.nodes[it.node].Children = children
		}
		level = next
	}
	return root, nil
}

// partition clusters the given rows into at most K groups. It returns nil
// when the clustering collapses into a single group.
func (b *builder) partition(ctx context.Context, points []float32, rows []int, seed int64) ([][]int, error) {
	dim := b.ix.dim
	sub := make([]float32, 0, len(rows)*dim)
	for _, r := range rows {
		sub = append(sub, points[r*dim:(r+1)*dim]...)
	}
	k := min(b.cfg.K, len(rows))
	c, err := kmeans.TrainKMeans(ctx, sub, dim, k, b.cfg.Iterations, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	groups := groupRows(c, rows)
	if len(groups) < 2 {
		return nil, nil
	}
	return groups, nil
}

// groupRows turns cluster assignments into non-empty row groups, ordered by
// cluster. When rows is nil the row ids are the assignment positions.
func groupRows(c *kmeans.Clustering, rows []int) [][]int {
	groups := make([][]int, c.K)
	for i, a := range c.Assignments {
		r := i
		if rows != nil {
			r = rows[i]
		}
		groups[a] = append(groups[a], r)
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}
