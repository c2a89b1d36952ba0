package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/spfresh"
)

type searchFlags struct {
	index    string
	query    string
	queries  string
	k        int
	maxCheck int
	maxHeads int
	metadata bool
}

func newSearchCommand(root *rootFlags) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query a saved index",
		Example: `  spfresh search --index ./index --query 0.1,0.2,0.3,0.4 -k 5
  spfresh search --index ./index --queries query.fvecs -k 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (f.query == "") == (f.queries == "") {
				return errors.New("exactly one of --query and --queries is required")
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			return runSearch(cmd, cfg.NewLogger(), f, func(ctx context.Context) (*spfresh.Index, error) {
				store, err := snapshotStore(ctx, cfg, f.index)
				if err != nil {
					return nil, err
				}
				return spfresh.OpenFrom(ctx, store, spfresh.WithThreads(cfg.Index.Threads))
			})
		},
	}
	cmd.Flags().StringVar(&f.index, "index", "", "Snapshot directory (default: configured storage)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Comma separated query vector")
	cmd.Flags().StringVar(&f.queries, "queries", "", "Query vectors in fvecs format")
	cmd.Flags().IntVarP(&f.k, "k", "k", 10, "Number of neighbors")
	cmd.Flags().IntVar(&f.maxCheck, "max-check", 0, "Head index exploration budget")
	cmd.Flags().IntVar(&f.maxHeads, "max-heads", 0, "Posting lists scanned per query")
	cmd.Flags().BoolVar(&f.metadata, "metadata", false, "Print stored metadata")
	return cmd
}

func runSearch(cmd *cobra.Command, logger *spfresh.Logger, f *searchFlags, open func(context.Context) (*spfresh.Index, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var queries [][]float32
	if f.query != "" {
		q, err := parseVector(f.query)
		if err != nil {
			return err
		}
		queries = [][]float32{q}
	} else {
		var err error
		if queries, err = readFvecsFile(f.queries, 0); err != nil {
			return fmt.Errorf("read %s: %w", f.queries, err)
		}
	}

	idx, err := open(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()
	logger.DebugContext(ctx, "index opened", "vectors", idx.Len(), "dimension", idx.Dimension())

	var opts []spfresh.SearchOption
	if f.maxCheck > 0 {
		opts = append(opts, spfresh.WithSearchMaxCheck(f.maxCheck))
	}
	if f.maxHeads > 0 {
		opts = append(opts, spfresh.WithMaxHeads(f.maxHeads))
	}
	if f.metadata {
		opts = append(opts, spfresh.WithMetadata())
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tRANK\tID\tDISTANCE\tMETADATA")
	for qi, q := range queries {
		res, err := idx.Search(ctx, q, f.k, opts...)
		if err != nil {
			return fmt.Errorf("query %d: %w", qi, err)
		}
		for rank, r := range res {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%g\t%s\n", qi, rank+1, r.ID, r.Distance, r.Metadata)
		}
	}
	return tw.Flush()
}
