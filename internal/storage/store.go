package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
	configFile   = "config.yaml"
)

var sampleHeader = []string{"time", "kinetic_energy", "max_penetration", "contacts", "iterations"}

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID                string             `json:"id"`
	Scene             string             `json:"scene"`
	Timestamp         time.Time          `json:"timestamp"`
	Seed              int64              `json:"seed"`
	Dt                float64            `json:"dt"`
	Duration          float64            `json:"duration"`
	Steps             int                `json:"steps"`
	Iterations        int                `json:"iterations"`
	PushOutIterations int                `json:"push_out_iterations"`
	Manifolds         bool               `json:"manifolds"`
	Metrics           map[string]float64 `json:"metrics"`
}

// Save writes a run directory holding the metadata, the config used and
// the per-step samples. It returns the run ID.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	now := s.now()
	runID := fmt.Sprintf("%s_%d", cfg.Scene, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:                runID,
		Scene:             cfg.Scene,
		Timestamp:         now,
		Seed:              cfg.Seed,
		Dt:                cfg.Dt,
		Duration:          cfg.Duration,
		Steps:             result.StepsTaken,
		Iterations:        cfg.Solver.Iterations,
		PushOutIterations: cfg.Solver.PushOutIterations,
		Manifolds:         cfg.Collision.UseManifolds,
		Metrics:           result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteSamples(csvFile, result.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteSamples writes samples as CSV with a header row.
func WriteSamples(out io.Writer, samples []sim.Sample) error {
	w := csv.NewWriter(out)
	if err := w.Write(sampleHeader); err != nil {
		return err
	}
	for _, smp := range samples {
		row := []string{
			strconv.FormatFloat(smp.Time, 'f', 6, 64),
			strconv.FormatFloat(smp.KineticEnergy, 'f', 6, 64),
			strconv.FormatFloat(smp.MaxPenetration, 'f', 6, 64),
			strconv.Itoa(smp.Contacts),
			strconv.Itoa(smp.Iterations),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns saved runs, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadSamples(file)
}

// ReadSamples parses CSV written by WriteSamples.
func ReadSamples(in io.Reader) ([]sim.Sample, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = len(sampleHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		var smp sim.Sample
		var perr error
		parse := func(s string) float64 {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil && perr == nil {
				perr = err
			}
			return v
		}
		smp.Time = parse(record[0])
		smp.KineticEnergy = parse(record[1])
		smp.MaxPenetration = parse(record[2])
		smp.Contacts = int(parse(record[3]))
		smp.Iterations = int(parse(record[4]))
		if perr != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, perr)
		}
		samples = append(samples, smp)
	}
	return samples, nil
}
