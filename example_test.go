package spfresh_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/spfresh"
)

// Example_builder demonstrates configuring an index with the fluent builder.
func Example_builder() {
	idx, err := spfresh.Tree(128). // 128-dimensional vectors
					SquaredL2(). // Distance function
					KmeansK(16). // Tree fan-out
					LeafSize(8). // Leaf bucket size
					SearchHeads(64).
					SplitLimit(1000). // Split posting lists beyond 1000 vectors
					Build()
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	fmt.Println(idx.State())
	// Output: empty
}

// Example_search demonstrates building an index and querying it.
func Example_search() {
	ctx := context.Background()
	idx, err := spfresh.New(2, spfresh.WithVariant(spfresh.VariantFlat))
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	points := [][]float32{{0, 0}, {10, 0}, {0, 10}, {10, 10}}
	labels := [][]byte{[]byte("origin"), []byte("east"), []byte("north"), []byte("north-east")}
	if _, err := idx.Add(ctx, points, labels); err != nil {
		log.Fatal(err)
	}
	if err := idx.Build(ctx); err != nil {
		log.Fatal(err)
	}

	res, err := idx.Search(ctx, []float32{9, 2}, 2, spfresh.WithMetadata())
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range res {
		fmt.Printf("%d %s %.0f\n", r.ID, r.Metadata, r.Distance)
	}
	// Output:
	// 1 east 5
	// 3 north-east 65
}

// Example_persistence demonstrates saving an index and opening it again.
func Example_persistence() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "spfresh-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	idx, _ := spfresh.Flat(3).Cosine().Build()
	_, _ = idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, nil)
	if err := idx.Build(ctx); err != nil {
		log.Fatal(err)
	}
	if err := idx.Save(ctx, dir); err != nil {
		log.Fatal(err)
	}
	_ = idx.Close()

	reopened, err := spfresh.Open(ctx, dir)
	if err != nil {
		log.Fatal(err)
	}
	defer reopened.Close()

	res, _ := reopened.Search(ctx, []float32{0, 2, 0.1}, 1)
	fmt.Println(reopened.Len(), reopened.Metric(), res[0].ID)
	// Output: 3 Cosine 1
}

// Example_errors demonstrates classifying errors.
func Example_errors() {
	ctx := context.Background()
	idx, _ := spfresh.New(4)
	defer idx.Close()

	_, err := idx.Search(ctx, []float32{1, 2, 3, 4}, 5)
	fmt.Println(spfresh.StatusOf(err))
	// Output: NotReady
}
