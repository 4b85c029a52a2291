// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AnalysisStatus is the terminal state of one paper within an analysis run.
// Per prd004-analysis R4.1.
type AnalysisStatus string

const (
	StatusSuccess AnalysisStatus = "success"
	StatusFailed  AnalysisStatus = "failed"
	StatusSkipped AnalysisStatus = "skipped"
)

// AnalysisResult is the structured outcome of analyzing one paper for one
// (field, audience) pair. Results are keyed by that triple; re-running a
// pair overwrites the stored result for each paper.
// Per prd004-analysis R4.1-R4.4.
type AnalysisResult struct {
	// PaperID identifies the analyzed paper.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Field is the practitioner field the analysis was framed for (e.g. "ml").
	Field string `json:"field" yaml:"field"`

	// Audience is the audience register (e.g. "technical", "general").
	Audience string `json:"audience" yaml:"audience"`

	// Status is success, failed, or skipped.
	Status AnalysisStatus `json:"status" yaml:"status"`

	// Title is the model's restatement of the paper title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors is the model's author line.
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// KeyContributions summarizes the main contributions.
	KeyContributions string `json:"key_contributions,omitempty" yaml:"key_contributions,omitempty"`

	// Importance explains why the work matters to the field.
	Importance string `json:"importance,omitempty" yaml:"importance,omitempty"`

	// Citation is a formatted reference for the paper.
	Citation string `json:"citation,omitempty" yaml:"citation,omitempty"`

	// ReasonChosen explains why the paper was worth the audience's time.
	ReasonChosen string `json:"reason_chosen,omitempty" yaml:"reason_chosen,omitempty"`

	// Category is the paper's primary category at analysis time.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Error records the failure message for failed or skipped results.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Raw preserves the model response verbatim when it could not be
	// parsed. Per R4.4: never discard model output on parse failure.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`

	// CreatedAt is when the result was produced.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RunStats summarizes one analysis run.
// Per prd004-analysis R6.1-R6.3.
type RunStats struct {
	// Attempted counts papers that were dispatched in a batch.
	Attempted int `json:"attempted" yaml:"attempted"`

	// Succeeded counts papers with a parsed analysis.
	Succeeded int `json:"succeeded" yaml:"succeeded"`

	// Failed counts papers whose batch or block failed after retries.
	Failed int `json:"failed" yaml:"failed"`

	// Skipped counts papers never dispatched because the run aborted or
	// was canceled.
	Skipped int `json:"skipped" yaml:"skipped"`

	// Batches counts dispatched API calls.
	Batches int `json:"batches" yaml:"batches"`

	// FirstFatal records the cause that aborted the run early. Empty for
	// runs that reached the end of the paper set.
	FirstFatal string `json:"first_fatal,omitempty" yaml:"first_fatal,omitempty"`
}

// Total returns the number of papers the run was asked to analyze.
func (s RunStats) Total() int {
	return s.Attempted + s.Skipped
}

// HasFailures reports whether any paper failed or was skipped.
func (s RunStats) HasFailures() bool {
	return s.Failed > 0 || s.Skipped > 0
}

// SuccessRate returns the fraction of attempted papers that succeeded,
// in [0, 1]. Zero attempts yield 0.
func (s RunStats) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Attempted)
}
