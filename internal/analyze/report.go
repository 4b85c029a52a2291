// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// Report is the on-disk record of one analysis run. A run can be saved to a
// file and reloaded later without re-querying the model.
// Implements: prd004-analysis R7.1.
type Report struct {
	Run     RunParams              `yaml:"run"`
	Results []types.AnalysisResult `yaml:"results"`
	Stats   types.RunStats         `yaml:"stats"`
}

// RunParams stores the run parameters in a serializable form.
type RunParams struct {
	Date      string    `yaml:"date,omitempty"`
	Field     string    `yaml:"field"`
	Audience  string    `yaml:"audience"`
	Model     string    `yaml:"model,omitempty"`
	BatchSize int       `yaml:"batch_size"`
	Delay     string    `yaml:"delay,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteReport saves run parameters, per-paper results, and stats to a YAML file.
func WriteReport(path string, params RunParams, results []types.AnalysisResult, stats types.RunStats) error {
	if params.Timestamp.IsZero() {
		params.Timestamp = time.Now()
	}
	rep := Report{
		Run:     params,
		Results: results,
		Stats:   stats,
	}

	data, err := yaml.Marshal(&rep)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a previously saved analysis report from disk.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var rep Report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &rep, nil
}
