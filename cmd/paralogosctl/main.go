package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"paralogos/internal/noise"
	"paralogos/internal/storage"
	api "paralogos/pkg/paralogos"
)

const artifactsDir = "artifacts"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "tree":
		return runTree(ctx, args[1:])
	case "noise":
		return runNoise(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s (commands: init, simulate, runs, show, tree, noise, delete)", msg)
}

func storeFlags(fs *flag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "paralogos.db", "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: artifactsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "scenario YAML path")
	families := fs.Int("families", 0, "gene family count (overrides config)")
	seed := fs.Uint64("seed", 0, "rng seed (overrides config)")
	workers := fs.Int("workers", 0, "worker count (overrides config)")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("simulate requires --config")
	}

	req, err := loadScenario(*configPath)
	if err != nil {
		return err
	}
	if *families > 0 {
		req.Families = *families
	}
	if *seed != 0 {
		req.Seed = *seed
	}
	if *workers > 0 {
		req.Workers = *workers
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	agg := summary.Aggregate
	fmt.Printf("run completed run_id=%s families=%d seed=%d\n", summary.RunID, agg.Families, req.Seed)
	fmt.Printf("extinct_families=%d mean_extant_leaves=%.4f mean_observable_nodes=%.4f\n",
		agg.ExtinctFamilies, agg.MeanExtantLeaves, agg.MeanObservableNodes)
	fmt.Printf("duplications=%d losses=%d transfers=%d gene_conversions=%d\n",
		agg.TotalDuplications, agg.TotalLosses, agg.TotalTransfers, agg.TotalGeneConversions)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s seed=%d families=%d species_leaves=%d extinct=%d mean_extant_leaves=%.4f\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Seed,
			item.Families,
			item.SpeciesLeafN,
			item.ExtinctFamilies,
			item.MeanExtantLeaves,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	jsonOut := fs.Bool("json", false, "emit the run record as JSON")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("show requires --run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	run, err := client.GetRun(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	fmt.Printf("run_id=%s created_at=%s seed=%d families=%d species_leaves=%d\n",
		run.ID, run.CreatedAtUTC, run.Seed, run.Families, run.SpeciesLeafN)
	for _, s := range run.Summaries {
		fmt.Printf("family=%d nodes=%d extant_leaves=%d losses=%d duplications=%d transfers=%d gene_conversions=%d observable_nodes=%d extinct=%t\n",
			s.Index,
			s.Nodes,
			s.ExtantLeaves,
			s.Losses,
			s.Duplications,
			s.Transfers,
			s.GeneConversions,
			s.ObservableNodes,
			s.Extinct,
		)
	}
	return nil
}

func runTree(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	family := fs.Int("family", 0, "family index")
	stage := fs.String("stage", storage.StageObservable, "tree stage: raw|observable")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("tree requires --run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	t, err := client.Tree(ctx, api.TreeRequest{RunID: *runID, Family: *family, Stage: *stage})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func runNoise(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("noise", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	family := fs.Int("family", 0, "family index")
	sd := fs.Float64("sd", 0, "noise standard deviation (0 prints the clean matrix)")
	repair := fs.String("repair", string(noise.RepairGeneral), "metric repair: reject|domr|general")
	seed := fs.Uint64("seed", 0, "rng seed (0 uses the clock)")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("noise requires --run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	labels, d, err := client.NoisyMatrix(ctx, api.NoiseRequest{
		RunID:  *runID,
		Family: *family,
		SD:     *sd,
		Repair: noise.Repair(*repair),
		Seed:   *seed,
	})
	if err != nil {
		return err
	}
	n := d.SymmetricDim()
	for i := 0; i < n; i++ {
		fmt.Printf("%s", labels[i])
		for j := 0; j < n; j++ {
			fmt.Printf("\t%.6f", d.At(i, j))
		}
		fmt.Println()
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("delete requires --run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.DeleteRun(ctx, *runID); err != nil {
		return err
	}
	fmt.Printf("deleted run_id=%s\n", *runID)
	return nil
}
