// Package main provides the sedann CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/fadhilkurnia/sedann/pkg/config"
	"github.com/fadhilkurnia/sedann/pkg/lineage"
	"github.com/fadhilkurnia/sedann/pkg/vecio"
	"github.com/fadhilkurnia/sedann/pkg/vecstore"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sedann",
		Short: "sedann - approximate nearest neighbor search over a lineage tree",
		Long: `sedann builds an in-memory approximate nearest neighbor index over
dense float32 vectors: a dynamically balanced tree of centroids whose
leaves cluster the raw vectors.

Features:
  • Online insertion with split-and-promote rebalancing
  • Beam-search top-k queries (tie-widening DFS as a fallback)
  • fvecs / ivecs / bvecs dataset readers
  • Optional durable vector log backed by BadgerDB`,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sedann v%s (%s)\n", version, commit)
		},
	})

	// Build command
	buildCmd := &cobra.Command{
		Use:   "build <base.fvecs>",
		Short: "Build an index from an fvecs dataset and print its shape",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
	addIndexFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)

	// Query command
	queryCmd := &cobra.Command{
		Use:   "query <base.fvecs> <query.fvecs>",
		Short: "Build an index and run top-k queries from a query file",
		Args:  cobra.ExactArgs(2),
		RunE:  runQuery,
	}
	addIndexFlags(queryCmd)
	queryCmd.Flags().Int("k", 10, "Number of neighbors per query")
	queryCmd.Flags().Int("queries", 0, "Number of query rows to run (0 = all)")
	queryCmd.Flags().Bool("tie-widen", false, "Use the DFS tie-widening traversal instead of beam search")
	rootCmd.AddCommand(queryCmd)

	// Stats command
	statsCmd := &cobra.Command{
		Use:   "stats <base.fvecs>",
		Short: "Build an index and dump its leaf fan-outs",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
	addIndexFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)

	// Bench command
	benchCmd := &cobra.Command{
		Use:   "bench <base.fvecs>",
		Short: "Page-processing insert benchmark, one worker per core",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
	addIndexFlags(benchCmd)
	benchCmd.Flags().Int("workers", 0, "Worker count (0 = one per CPU)")
	benchCmd.Flags().Int("page-rows", 0, "Rows per work page (0 = config default)")
	rootCmd.AddCommand(benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addIndexFlags registers the tree/store flags shared by every
// dataset-taking command. Zero values fall through to the config.
func addIndexFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 0, "Insert only the first N vectors (0 = all)")
	cmd.Flags().Int("max-centroids", 0, "Node fan-out C")
	cmd.Flags().Int("max-vectors", 0, "Cluster capacity M")
	cmd.Flags().Int("insert-beam-width", 0, "Beam width for insert targeting")
	cmd.Flags().Int("query-beam-width", 0, "Beam width for queries")
	cmd.Flags().String("data-dir", "", "Directory for the durable vector log (empty = in-memory only)")
	cmd.Flags().Bool("sync-writes", false, "fsync the vector log after each row")
	cmd.Flags().Float64("tie-tolerance", 0, "Tie-widening tolerance for the DFS traversal")
}

// resolveConfig layers: defaults < env < flags, or, when --config is
// given, defaults < file < flags (environment variables are then not
// read).
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.LoadFromEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		fileCfg, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if v, _ := cmd.Flags().GetInt("max-centroids"); v > 0 {
		cfg.Index.MaxCentroids = v
	}
	if v, _ := cmd.Flags().GetInt("max-vectors"); v > 0 {
		cfg.Index.MaxVectors = v
	}
	if v, _ := cmd.Flags().GetInt("insert-beam-width"); v > 0 {
		cfg.Index.InsertBeamWidth = v
	}
	if v, _ := cmd.Flags().GetInt("query-beam-width"); v > 0 {
		cfg.Index.QueryBeamWidth = v
	}
	if v, _ := cmd.Flags().GetFloat64("tie-tolerance"); v > 0 {
		cfg.Index.TieTolerance = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v, _ := cmd.Flags().GetBool("sync-writes"); v {
		cfg.Storage.SyncWrites = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore loads the dataset into a vector store, durable when a data
// dir is configured.
func openStore(cfg *config.Config, path string, limit int) (vecstore.Store, int, error) {
	dim, err := vecio.Dim(path)
	if err != nil {
		return nil, 0, err
	}

	var store vecstore.Store
	if cfg.Storage.DataDir != "" || cfg.Storage.InMemory {
		store, err = vecstore.NewBadgerStore(dim, vecstore.BadgerOptions{
			DataDir:    cfg.Storage.DataDir,
			InMemory:   cfg.Storage.InMemory,
			SyncWrites: cfg.Storage.SyncWrites,
		})
		if err != nil {
			return nil, 0, err
		}
	} else {
		store = vecstore.NewFlat(dim)
	}

	n, err := vecio.LoadFvecs(path, store, limit)
	if err != nil {
		store.Close()
		return nil, 0, err
	}
	return store, n, nil
}

func treeConfig(cfg *config.Config, dim int) lineage.Config {
	return lineage.Config{
		Dim:             dim,
		MaxCentroids:    cfg.Index.MaxCentroids,
		MaxVectors:      cfg.Index.MaxVectors,
		InsertBeamWidth: cfg.Index.InsertBeamWidth,
		QueryBeamWidth:  cfg.Index.QueryBeamWidth,
		TieTolerance:    cfg.Index.TieTolerance,
	}
}

// buildTree inserts every stored row into a fresh tree.
func buildTree(cfg *config.Config, store vecstore.Store) (*lineage.Tree, time.Duration, error) {
	tree, err := lineage.NewWithConfig(treeConfig(cfg, store.Dim()))
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	for i := 0; i < store.Len(); i++ {
		if _, err := tree.Insert(store.Vector(uint32(i))); err != nil {
			return nil, 0, err
		}
	}
	return tree, time.Since(start), nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	store, n, err := openStore(cfg, args[0], limit)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("loaded %d vectors of dimension %d from %s\n", n, store.Dim(), args[0])

	tree, elapsed, err := buildTree(cfg, store)
	if err != nil {
		return err
	}

	fmt.Printf("built index in %s (%.0f vectors/sec)\n",
		elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
	fmt.Println(tree)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	store, _, err := openStore(cfg, args[0], limit)
	if err != nil {
		return err
	}
	defer store.Close()

	tree, _, err := buildTree(cfg, store)
	if err != nil {
		return err
	}

	qdim, queries, err := vecio.ReadFvecs(args[1])
	if err != nil {
		return err
	}
	if qdim != store.Dim() {
		return fmt.Errorf("query dimension %d does not match dataset dimension %d", qdim, store.Dim())
	}

	k, _ := cmd.Flags().GetInt("k")
	numQueries, _ := cmd.Flags().GetInt("queries")
	if numQueries <= 0 || numQueries > len(queries) {
		numQueries = len(queries)
	}
	tieWiden, _ := cmd.Flags().GetBool("tie-widen")

	ctx := context.Background()
	start := time.Now()
	for qi := 0; qi < numQueries; qi++ {
		var results []lineage.SearchResult
		if tieWiden {
			results, err = tree.SearchTieWiden(ctx, queries[qi], k)
		} else {
			results, err = tree.Search(ctx, queries[qi], k)
		}
		if err != nil {
			return err
		}

		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = fmt.Sprintf("%d(%.2f)", r.ID, r.Distance)
		}
		fmt.Printf("query %d: %s\n", qi, strings.Join(ids, " "))
	}
	elapsed := time.Since(start)

	fmt.Printf("ran %d queries in %s (%.0f queries/sec)\n",
		numQueries, elapsed.Round(time.Millisecond), float64(numQueries)/elapsed.Seconds())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	store, _, err := openStore(cfg, args[0], limit)
	if err != nil {
		return err
	}
	defer store.Close()

	tree, _, err := buildTree(cfg, store)
	if err != nil {
		return err
	}

	fmt.Println(tree)
	fmt.Print(tree.DumpLeaves())
	return nil
}

// runBench measures insert throughput with one tree per worker, workers
// consuming fixed-size pages of rows from a shared channel.
func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	store, n, err := openStore(cfg, args[0], limit)
	if err != nil {
		return err
	}
	defer store.Close()

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = cfg.Bench.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pageRows, _ := cmd.Flags().GetInt("page-rows")
	if pageRows <= 0 {
		pageRows = cfg.Bench.PageRows
	}

	type page struct{ start, end int }
	pages := make(chan page, workers)
	errs := make(chan error, workers)

	fmt.Printf("launching %d workers, %d rows per page\n", workers, pageRows)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := lineage.NewWithConfig(treeConfig(cfg, store.Dim()))
			if err != nil {
				errs <- err
				return
			}
			for p := range pages {
				for i := p.start; i < p.end; i++ {
					if _, err := tree.Insert(store.Vector(uint32(i))); err != nil {
						errs <- err
						return
					}
				}
			}
		}()
	}

	for off := 0; off < n; off += pageRows {
		end := off + pageRows
		if end > n {
			end = n
		}
		pages <- page{start: off, end: end}
	}
	close(pages)
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
	}

	elapsed := time.Since(start)
	fmt.Printf("inserted %d vectors in %s (%.0f vectors/sec)\n",
		n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
	return nil
}
