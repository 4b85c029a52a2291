// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze turns batches of papers into structured analyses by way
// of a text-completion backend. Papers are dispatched in fixed-size batches
// with a configurable pause between calls, and every input paper ends the
// run with exactly one result: success, failed, or skipped.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/digestkit/arxiv-digest/internal/retry"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

// timeNow returns the current time. Package-level var for test substitution.
var timeNow = time.Now

// Options configure one analysis run.
type Options struct {
	// Field is the practitioner field the analysis is framed for.
	Field string

	// Audience is the audience register, e.g. "technical".
	Audience string

	// BatchSize is the number of papers per completion call. Zero or less
	// means one paper per call.
	BatchSize int

	// Delay is the pause between successive batch dispatches.
	Delay time.Duration

	// ContinueOnError keeps the run going after a batch fails; the batch's
	// papers are reported failed. When false the run aborts at the first
	// failed batch.
	ContinueOnError bool

	// MaxRetries overrides the retry policy's budget when positive.
	MaxRetries int
}

// Analyzer runs batched paper analyses against a completion backend.
// Batches within one run execute sequentially; an Analyzer holds no mutable
// state, so separate runs may execute concurrently.
type Analyzer struct {
	Backend  Backend
	Retry    retry.Policy
	Log      *slog.Logger
	Progress io.Writer
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}

// Run analyzes papers in batches of opts.BatchSize, one completion call per
// batch, pausing opts.Delay between dispatches. Unless the run aborts, the
// returned slice holds exactly one result per input paper in input order.
// Per prd004-analysis R2.1-R2.4.
func (a *Analyzer) Run(ctx context.Context, papers []types.Paper, opts Options) ([]types.AnalysisResult, types.RunStats, error) {
	var stats types.RunStats
	if len(papers) == 0 {
		return nil, stats, nil
	}

	log := a.logger()
	progress := a.Progress
	if progress == nil {
		progress = io.Discard
	}
	policy := a.Retry
	if opts.MaxRetries > 0 {
		policy.MaxRetries = opts.MaxRetries
	}

	batches := partition(papers, opts.BatchSize)
	results := make([]types.AnalysisResult, 0, len(papers))

	for i, batch := range batches {
		if i > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return skipRemaining(results, stats, batches[i:], opts, err)
		}

		stats.Batches++
		fmt.Fprintf(progress, "batch %d/%d: analyzing %d papers\n", i+1, len(batches), len(batch))

		batchResults, err := a.runBatch(ctx, batch, opts, policy, log)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return skipRemaining(results, stats, batches[i:], opts, cerr)
			}

			stats.Attempted += len(batch)
			stats.Failed += len(batch)
			raw := ""
			var perr *ParseError
			if errors.As(err, &perr) {
				raw = perr.Raw
			}
			for _, p := range batch {
				results = append(results, failedResult(p, opts, err.Error(), raw))
			}
			fmt.Fprintf(progress, "failed  batch %d/%d: %v\n", i+1, len(batches), err)

			if !opts.ContinueOnError {
				stats.FirstFatal = err.Error()
				return skipRemaining(results, stats, batches[i+1:], opts, err)
			}
			log.Warn("batch failed, continuing", "batch", i+1, "papers", len(batch), "error", err)
			continue
		}

		stats.Attempted += len(batch)
		for _, r := range batchResults {
			switch r.Status {
			case types.StatusSuccess:
				stats.Succeeded++
				fmt.Fprintf(progress, "analyzed %s: %s\n", r.PaperID, r.Title)
			case types.StatusFailed:
				stats.Failed++
				fmt.Fprintf(progress, "failed  %s: %s\n", r.PaperID, r.Error)
			}
		}
		results = append(results, batchResults...)
	}

	return results, stats, nil
}

// runBatch renders the prompt, calls the backend with retries, and maps the
// parsed blocks onto the batch's papers by position.
func (a *Analyzer) runBatch(ctx context.Context, batch []types.Paper, opts Options, policy retry.Policy, log *slog.Logger) ([]types.AnalysisResult, error) {
	prompt, err := renderPrompt(opts.Field, opts.Audience, batch)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	var blocks []block
	var raw string
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		reply, err := a.Backend.Complete(ctx, prompt)
		if err != nil {
			err = classify(err)
			if retry.IsTransient(err) {
				log.Warn("analysis call failed", "papers", len(batch), "error", err)
			}
			return err
		}
		raw = reply
		parsed, perr := parseReply(reply)
		if perr != nil {
			// A garbled reply may come back well-formed on another attempt.
			log.Warn("analysis reply unparseable", "papers", len(batch), "error", perr)
			return retry.Transient(perr)
		}
		blocks = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(blocks) > len(batch) {
		log.Warn("reply contained extra blocks", "want", len(batch), "got", len(blocks))
	}
	return matchResults(batch, blocks, raw, opts), nil
}

// classify marks retryable backend failures for the retry loop. Network
// hiccups, rate limits, and server errors may clear on a later attempt;
// authentication and quota failures will not, and cancellation ends the
// loop outright.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return err
	}
	return retry.Transient(err)
}

// partition splits papers into consecutive batches of at most size,
// preserving order. A size of zero or less means one paper per batch.
func partition(papers []types.Paper, size int) [][]types.Paper {
	if size <= 0 {
		size = 1
	}
	var batches [][]types.Paper
	for start := 0; start < len(papers); start += size {
		end := min(start+size, len(papers))
		batches = append(batches, papers[start:end:end])
	}
	return batches
}

// matchResults pairs parsed blocks with papers by position. Papers beyond
// the parsed blocks, and papers whose block failed validation, get failed
// results carrying the raw reply.
func matchResults(batch []types.Paper, blocks []block, raw string, opts Options) []types.AnalysisResult {
	results := make([]types.AnalysisResult, 0, len(batch))
	for i, p := range batch {
		if i >= len(blocks) {
			results = append(results, failedResult(p, opts, "no analysis block in reply", raw))
			continue
		}
		b := blocks[i]
		if !b.valid() {
			results = append(results, failedResult(p, opts, b.Problem, raw))
			continue
		}
		results = append(results, types.AnalysisResult{
			PaperID:          p.ID,
			Field:            opts.Field,
			Audience:         opts.Audience,
			Status:           types.StatusSuccess,
			Title:            b.Title,
			Authors:          b.Authors,
			KeyContributions: b.KeyContributions,
			Importance:       b.Importance,
			Citation:         b.Citation,
			ReasonChosen:     b.ReasonChosen,
			Category:         p.PrimaryCategory(),
			CreatedAt:        timeNow().UTC(),
		})
	}
	return results
}

func failedResult(p types.Paper, opts Options, cause, raw string) types.AnalysisResult {
	return types.AnalysisResult{
		PaperID:   p.ID,
		Field:     opts.Field,
		Audience:  opts.Audience,
		Status:    types.StatusFailed,
		Title:     p.Title,
		Category:  p.PrimaryCategory(),
		Error:     cause,
		Raw:       raw,
		CreatedAt: timeNow().UTC(),
	}
}

func skippedResult(p types.Paper, opts Options, cause string) types.AnalysisResult {
	return types.AnalysisResult{
		PaperID:   p.ID,
		Field:     opts.Field,
		Audience:  opts.Audience,
		Status:    types.StatusSkipped,
		Title:     p.Title,
		Category:  p.PrimaryCategory(),
		Error:     cause,
		CreatedAt: timeNow().UTC(),
	}
}

// skipRemaining records skipped results for every paper in the remaining
// batches and ends the run with the given cause.
func skipRemaining(results []types.AnalysisResult, stats types.RunStats, rest [][]types.Paper, opts Options, cause error) ([]types.AnalysisResult, types.RunStats, error) {
	for _, batch := range rest {
		for _, p := range batch {
			results = append(results, skippedResult(p, opts, cause.Error()))
			stats.Skipped++
		}
	}
	return results, stats, cause
}
