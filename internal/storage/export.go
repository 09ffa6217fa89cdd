package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/sim"
)

type ExportData struct {
	Scene    string             `json:"scene"`
	Seed     int64              `json:"seed"`
	Dt       float64            `json:"dt"`
	Duration float64            `json:"duration"`
	Steps    int                `json:"steps"`
	Samples  []sim.Sample       `json:"samples"`
	Metrics  map[string]float64 `json:"metrics"`
}

func newExport(cfg *config.Config, result *sim.Result) ExportData {
	return ExportData{
		Scene:    cfg.Scene,
		Seed:     cfg.Seed,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
		Steps:    result.StepsTaken,
		Samples:  result.Samples,
		Metrics:  result.Metrics,
	}
}

func ExportJSON(path string, cfg *config.Config, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, cfg, result)
}

func WriteJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(cfg, result))
}
