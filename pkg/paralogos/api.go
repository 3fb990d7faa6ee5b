// Package paralogos is the embedding API: it wires the simulation engine,
// persistence, and artifact writing into one client.
package paralogos

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"paralogos/internal/model"
	"paralogos/internal/noise"
	"paralogos/internal/rates"
	"paralogos/internal/scenario"
	"paralogos/internal/sim"
	"paralogos/internal/species"
	"paralogos/internal/stats"
	"paralogos/internal/storage"
	"paralogos/internal/tree"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "paralogos.db"
	defaultFamilies     = 10
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
}

// RunRequest describes one batch of gene families over a species tree.
// ContractionProbability and ContractionProportion pick the two edge
// contraction strategies; at most one may be nonzero.
type RunRequest struct {
	Species  []species.Record
	Families int
	Seed     uint64
	Workers  int
	Sim      sim.Config
	Rates    *rates.Config

	ContractionProbability float64
	ContractionProportion  float64
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Aggregate    stats.RunAggregate
	Summaries    []model.FamilySummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             uint64
	Families         int
	SpeciesLeafN     int
	ExtinctFamilies  int
	MeanExtantLeaves float64
}

// TreeRequest fetches one persisted gene tree. Stage is storage.StageRaw or
// storage.StageObservable.
type TreeRequest struct {
	RunID  string
	Family int
	Stage  string
}

// NoiseRequest perturbs the leaf distance matrix of a persisted observable
// tree.
type NoiseRequest struct {
	RunID  string
	Family int
	SD     float64
	Repair noise.Repair
	Seed   uint64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if len(req.Species) == 0 {
		return RunSummary{}, errors.New("species records are required")
	}
	if req.Families <= 0 {
		req.Families = defaultFamilies
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}

	st, err := species.FromRecords(req.Species)
	if err != nil {
		return RunSummary{}, err
	}
	if req.ContractionProbability > 0 || req.ContractionProportion > 0 {
		st, err = species.ContractEdges(st,
			req.ContractionProbability, req.ContractionProportion,
			rand.New(rand.NewSource(req.Seed)))
		if err != nil {
			return RunSummary{}, err
		}
	}
	view, err := species.NewView(st)
	if err != nil {
		return RunSummary{}, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	result, err := scenario.Run(ctx, scenario.Scenario{
		Species:  view,
		Sim:      req.Sim,
		Rates:    req.Rates,
		Families: req.Families,
		Seed:     req.Seed,
		Workers:  req.Workers,
	})
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	run := model.Run{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           runID,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
		Seed:         req.Seed,
		Families:     req.Families,
		SpeciesLeafN: len(view.Tree().ExtantLeaves()),
	}
	for _, fam := range result.Families {
		run.Summaries = append(run.Summaries, fam.Summary)
		if err := c.store.SaveTree(ctx, runID, fam.Index, storage.StageRaw, fam.Raw); err != nil {
			return RunSummary{}, err
		}
		if err := c.store.SaveTree(ctx, runID, fam.Index, storage.StageObservable, fam.Observable); err != nil {
			return RunSummary{}, err
		}
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}

	aggregate := stats.Aggregate(run.Summaries)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:           runID,
			CreatedAtUTC:    run.CreatedAtUTC,
			Seed:            req.Seed,
			Families:        req.Families,
			Workers:         req.Workers,
			SpeciesLeafN:    run.SpeciesLeafN,
			DuplicationRate: req.Sim.DuplicationRate,
			LossRate:        req.Sim.LossRate,
			TransferRate:    req.Sim.TransferRate,
			ConversionRate:  req.Sim.ConversionRate,
			ReplaceProb:     req.Sim.ReplaceProb,
			Bias:            string(req.Sim.Bias),
			BiasStrength:    req.Sim.BiasStrength,
			Extinction:      string(req.Sim.Extinction),
		},
		Summaries: run.Summaries,
		Aggregate: aggregate,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		CreatedAtUTC:     run.CreatedAtUTC,
		Seed:             req.Seed,
		Families:         req.Families,
		SpeciesLeafN:     run.SpeciesLeafN,
		ExtinctFamilies:  aggregate.ExtinctFamilies,
		MeanExtantLeaves: aggregate.MeanExtantLeaves,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Aggregate:    aggregate,
		Summaries:    run.Summaries,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	// Newest first.
	out := make([]RunItem, 0, len(runs))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := runs[i]
		agg := stats.Aggregate(r.Summaries)
		out = append(out, RunItem{
			RunID:            r.ID,
			CreatedAtUTC:     r.CreatedAtUTC,
			Seed:             r.Seed,
			Families:         r.Families,
			SpeciesLeafN:     r.SpeciesLeafN,
			ExtinctFamilies:  agg.ExtinctFamilies,
			MeanExtantLeaves: agg.MeanExtantLeaves,
		})
	}
	return out, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (model.Run, error) {
	if runID == "" {
		return model.Run{}, errors.New("run id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.Run{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, err
	}
	if !ok {
		return model.Run{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) Tree(ctx context.Context, req TreeRequest) (*tree.Tree, error) {
	if req.RunID == "" {
		return nil, errors.New("run id is required")
	}
	stage := req.Stage
	if stage == "" {
		stage = storage.StageObservable
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	t, ok, err := c.store.GetTree(ctx, req.RunID, req.Family, stage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tree not found: %s/%d/%s", req.RunID, req.Family, stage)
	}
	return t, nil
}

func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	return c.store.DeleteRun(ctx, runID)
}

// NoisyMatrix loads the observable tree of one family and returns its leaf
// labels alongside a perturbed distance matrix.
func (c *Client) NoisyMatrix(ctx context.Context, req NoiseRequest) ([]string, *mat.SymDense, error) {
	t, err := c.Tree(ctx, TreeRequest{RunID: req.RunID, Family: req.Family, Stage: storage.StageObservable})
	if err != nil {
		return nil, nil, err
	}
	labels, d, err := noise.DistanceMatrix(t)
	if err != nil {
		return nil, nil, err
	}
	if req.SD == 0 {
		return labels, d, nil
	}
	seed := req.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	repair := req.Repair
	if repair == "" {
		repair = noise.RepairGeneral
	}
	noisy, err := noise.Noisy(d, req.SD, repair, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, nil, err
	}
	return labels, noisy, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}
