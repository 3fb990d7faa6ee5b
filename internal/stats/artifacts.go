package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"paralogos/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig records the parameters a run was executed with, for later
// inspection without reloading the scenario file.
type RunConfig struct {
	RunID           string  `json:"run_id"`
	CreatedAtUTC    string  `json:"created_at_utc"`
	Seed            uint64  `json:"seed"`
	Families        int     `json:"families"`
	Workers         int     `json:"workers"`
	SpeciesLeafN    int     `json:"species_leaf_n"`
	DuplicationRate float64 `json:"duplication_rate"`
	LossRate        float64 `json:"loss_rate"`
	TransferRate    float64 `json:"transfer_rate"`
	ConversionRate  float64 `json:"conversion_rate"`
	ReplaceProb     float64 `json:"replace_prob"`
	Bias            string  `json:"bias"`
	BiasStrength    float64 `json:"bias_strength"`
	Extinction      string  `json:"extinction"`
}

// RunAggregate condenses all family summaries of one run.
type RunAggregate struct {
	Families             int     `json:"families"`
	ExtinctFamilies      int     `json:"extinct_families"`
	MeanExtantLeaves     float64 `json:"mean_extant_leaves"`
	StdExtantLeaves      float64 `json:"std_extant_leaves"`
	MeanObservableNodes  float64 `json:"mean_observable_nodes"`
	TotalDuplications    int     `json:"total_duplications"`
	TotalLosses          int     `json:"total_losses"`
	TotalTransfers       int     `json:"total_transfers"`
	TotalGeneConversions int     `json:"total_gene_conversions"`
}

// Aggregate computes the run-level aggregate from per-family summaries.
func Aggregate(summaries []model.FamilySummary) RunAggregate {
	agg := RunAggregate{Families: len(summaries)}
	if len(summaries) == 0 {
		return agg
	}

	leaves := make([]float64, len(summaries))
	nodes := make([]float64, len(summaries))
	for i, s := range summaries {
		leaves[i] = float64(s.ExtantLeaves)
		nodes[i] = float64(s.ObservableNodes)
		if s.Extinct {
			agg.ExtinctFamilies++
		}
		agg.TotalDuplications += s.Duplications
		agg.TotalLosses += s.Losses
		agg.TotalTransfers += s.Transfers
		agg.TotalGeneConversions += s.GeneConversions
	}

	agg.MeanExtantLeaves = stat.Mean(leaves, nil)
	agg.MeanObservableNodes = stat.Mean(nodes, nil)
	if len(leaves) > 1 {
		sd := stat.StdDev(leaves, nil)
		if !math.IsNaN(sd) {
			agg.StdExtantLeaves = sd
		}
	}
	return agg
}

// RunArtifacts is everything WriteRunArtifacts materializes for one run.
type RunArtifacts struct {
	Config    RunConfig             `json:"config"`
	Summaries []model.FamilySummary `json:"summaries"`
	Aggregate RunAggregate          `json:"aggregate"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Seed             uint64  `json:"seed"`
	Families         int     `json:"families"`
	SpeciesLeafN     int     `json:"species_leaf_n"`
	ExtinctFamilies  int     `json:"extinct_families"`
	MeanExtantLeaves float64 `json:"mean_extant_leaves"`
}

// WriteRunArtifacts writes the run directory under baseDir and returns its
// path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "family_summaries.json"), artifacts.Summaries); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "aggregate.json"), artifacts.Aggregate); err != nil {
		return "", err
	}
	if err := writeFamilyCSV(filepath.Join(runDir, "family_summaries.csv"), artifacts.Summaries); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAtUTC != entries[j].CreatedAtUTC {
			return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
		}
		return entries[i].RunID < entries[j].RunID
	})
	return entries, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadFamilySummaries(baseDir, runID string) ([]model.FamilySummary, bool, error) {
	path := filepath.Join(baseDir, runID, "family_summaries.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var summaries []model.FamilySummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, false, err
	}
	return summaries, true, nil
}

func writeFamilyCSV(path string, summaries []model.FamilySummary) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"family", "nodes", "extant_leaves", "losses", "duplications",
		"transfers", "gene_conversions", "observable_nodes", "extinct",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range summaries {
		row := []string{
			strconv.Itoa(s.Index),
			strconv.Itoa(s.Nodes),
			strconv.Itoa(s.ExtantLeaves),
			strconv.Itoa(s.Losses),
			strconv.Itoa(s.Duplications),
			strconv.Itoa(s.Transfers),
			strconv.Itoa(s.GeneConversions),
			strconv.Itoa(s.ObservableNodes),
			strconv.FormatBool(s.Extinct),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFamilyCSV reads back the per-family table. Only the columns needed by
// downstream tooling are decoded.
func ReadFamilyCSV(baseDir, runID string) ([]model.FamilySummary, bool, error) {
	path := filepath.Join(baseDir, runID, "family_summaries.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.FamilySummary{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 9 {
		return nil, false, fmt.Errorf("family table header must have 9 columns")
	}

	var out []model.FamilySummary
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 9 {
			return nil, false, fmt.Errorf("family table row must have 9 columns")
		}
		ints := make([]int, 8)
		for i := 0; i < 8; i++ {
			v, err := strconv.Atoi(record[i])
			if err != nil {
				return nil, false, err
			}
			ints[i] = v
		}
		extinct, err := strconv.ParseBool(record[8])
		if err != nil {
			return nil, false, err
		}
		out = append(out, model.FamilySummary{
			Index:           ints[0],
			Nodes:           ints[1],
			ExtantLeaves:    ints[2],
			Losses:          ints[3],
			Duplications:    ints[4],
			Transfers:       ints[5],
			GeneConversions: ints[6],
			ObservableNodes: ints[7],
			Extinct:         extinct,
		})
	}
	return out, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
