// Package spfresh provides an embeddable approximate nearest neighbor index
// in the SPANN/SPFresh style.
//
// An index has two tiers: a compact in-memory head index (balanced k-means
// trees or a flat set of centroids) and posting lists holding the full
// vectors assigned to each head. Searches walk the head index under an
// exploration budget and scan the posting lists of the closest heads
// exactly. Inserts route each vector to its nearest head and append it.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := spfresh.New(128, spfresh.WithMetric(distance.MetricCosine))
//	defer idx.Close()
//
//	ids, _ := idx.Add(ctx, vectors, nil) // staged until Build
//	_ = idx.Build(ctx)
//
//	results, _ := idx.Search(ctx, query, 10)
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Distance)
//	}
//
// After Build, Add is immediately visible to searches:
//
//	id, _ := idx.Add(ctx, [][]float32{v}, [][]byte{[]byte("doc-42")})
//	results, _ := idx.Search(ctx, v, 1, spfresh.WithMetadata())
//
// # Tunables
//
// Build and search behavior is controlled by named parameters grouped in
// sections, set with SetBuildParam and SetSearchParam (or WithParam):
//
//	SelectHead  TreeNumber, BKTKmeansK, BKTLeafSize, SamplesNumber, Ratio,
//	            KmeansIterations, Seed
//	BuildHead   MaxCheck
//	Search      MaxCheck, SearchInternalResultNum
//	Update      PostingSplitLimit, SplitKmeansIterations
//	Persist     Compression, IOLimitBytesPerSec
//
// Names are case-insensitive; unknown names are kept and ignored.
//
// # Persistence
//
// Save writes a versioned snapshot (head index, one blob per posting list,
// a manifest and a CURRENT pointer) to a directory or any
// blobstore.BlobStore; Open and Load read it back after verifying every
// checksum:
//
//	_ = idx.Save(ctx, "./data")
//	idx2, _ := spfresh.Open(ctx, "./data")
//
//	store, _ := s3.New(ctx, "my-bucket", func(o *s3.Options) { o.Prefix = "index/" })
//	_ = idx.SaveTo(ctx, store)
//
// # Errors
//
// Every method returns errors from a small taxonomy (ErrInvalidParameter,
// ErrNotReady, ErrBuildFailed, ErrSearchFailed, ErrUnknown); StatusOf maps
// an error to its Status. Panics inside the index are recovered and
// reported as ErrUnknown.
package spfresh
