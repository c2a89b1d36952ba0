package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/blobstore"
	"github.com/hupe1980/spfresh/internal/config"
)

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// snapshotStore returns a local store for dir, or the configured store.
func snapshotStore(ctx context.Context, cfg *config.Config, dir string) (blobstore.BlobStore, error) {
	if dir != "" {
		return blobstore.NewLocalStore(dir), nil
	}
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	if store == nil {
		return nil, errors.New("no snapshot store: pass a directory or configure storage")
	}
	return store, nil
}

// parseParams parses Section.Name=value assignments.
func parseParams(assignments []string) ([]spfresh.Option, error) {
	opts := make([]spfresh.Option, 0, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid param %q: want Section.Name=value", a)
		}
		section, name, ok := strings.Cut(key, ".")
		if !ok {
			section, name = "", key
		}
		opts = append(opts, spfresh.WithParam(section, name, value))
	}
	return opts, nil
}

type buildFlags struct {
	input   string
	out     string
	limit   int
	metric  string
	variant string
	threads int
	params  []string
}

func newBuildCommand(root *rootFlags) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from an fvecs file and save it",
		Example: `  spfresh build --input base.fvecs --out ./index
  spfresh build --input base.fvecs --metric cosine --param SelectHead.BKTKmeansK=16`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metric") {
				cfg.Index.Metric = f.metric
			}
			if cmd.Flags().Changed("variant") {
				cfg.Index.Variant = f.variant
			}
			if cmd.Flags().Changed("threads") {
				cfg.Index.Threads = f.threads
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBuild(cmd, cfg, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input vectors in fvecs format")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Snapshot directory (default: configured storage)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Read at most this many vectors")
	cmd.Flags().StringVar(&f.metric, "metric", "l2", "Distance metric (l2, cosine)")
	cmd.Flags().StringVar(&f.variant, "variant", "tree", "Head index variant (tree, flat)")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "Worker threads (default: GOMAXPROCS)")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "Tunable as Section.Name=value (repeatable)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runBuild(cmd *cobra.Command, cfg *config.Config, f *buildFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.NewLogger()

	vecs, err := readFvecsFile(f.input, f.limit)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.input, err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("%s holds no vectors", f.input)
	}
	params, err := parseParams(f.params)
	if err != nil {
		return err
	}
	store, err := snapshotStore(ctx, cfg, f.out)
	if err != nil {
		return err
	}

	opts := append(cfg.IndexOptions(), params...)
	opts = append(opts, spfresh.WithLogger(logger))
	idx, err := spfresh.New(len(vecs[0]), opts...)
	if err != nil {
		return err
	}
	defer idx.Close()

	start := time.Now()
	if _, err := idx.Add(ctx, vecs, nil); err != nil {
		return err
	}
	if err := idx.Build(ctx); err != nil {
		return err
	}
	built := time.Since(start)
	if err := idx.SaveTo(ctx, store); err != nil {
		return err
	}

	st, err := idx.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "built %d vectors (dim %d) into %d heads in %s\n",
		st.Vectors, st.Dimension, st.Heads, built.Round(time.Millisecond))
	return nil
}
