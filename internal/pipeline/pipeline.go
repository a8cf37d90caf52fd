// Package pipeline ingests candidate files in bulk. Files are decoded
// concurrently; the decoded candidates are then applied to the repository
// one at a time in a deterministic order.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ppiankov/claimstore/internal/logger"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/store"
	"github.com/ppiankov/claimstore/internal/worker"
)

// Ingester applies one candidate
type Ingester interface {
	Ingest(ctx context.Context, c *model.Candidate) (*store.IngestResult, error)
}

// Pipeline orchestrates a batch ingestion
type Pipeline struct {
	repo  Ingester
	batch *worker.BatchProcessor
	log   *logger.Logger
}

// NewPipeline creates a pipeline decoding with the given number of workers
func NewPipeline(repo Ingester, workers int, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		repo:  repo,
		batch: worker.NewBatchProcessor(DecodeFile, workers),
		log:   log,
	}
}

// Status is the outcome of one candidate or one undecodable file
type Status string

const (
	StatusCreated   Status = "created"
	StatusDuplicate Status = "duplicate"
	StatusRejected  Status = "rejected" // Invalid, or refers to an unknown entry
	StatusFailed    Status = "failed"   // File could not be decoded
)

// Outcome describes what happened to one candidate
type Outcome struct {
	Path          string `json:"path"`
	Position      int    `json:"position"` // Index within the file, -1 for file errors
	Source        string `json:"source,omitempty"`
	Date          string `json:"date,omitempty"`
	Status        Status `json:"status"`
	EntryID       string `json:"entry_id,omitempty"`
	Relationships int    `json:"relationships,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Summary reports a batch ingestion
type Summary struct {
	Files         int           `json:"files"`
	Candidates    int           `json:"candidates"`
	Created       int           `json:"created"`
	Duplicates    int           `json:"duplicates"`
	Rejected      int           `json:"rejected"`
	Failed        int           `json:"failed"`
	Relationships int           `json:"relationships"`
	Outcomes      []Outcome     `json:"outcomes"`
	Duration      time.Duration `json:"duration"`
}

// pending is a decoded candidate waiting to be applied
type pending struct {
	candidate *model.Candidate
	path      string
	position  int
}

// Run ingests every candidate found under args (files, directories and
// manifests). Candidates are applied ordered by date, then source, then
// file path and position. Invalid candidates and undecodable files are
// reported and skipped; a storage failure or a cancelled context stops the
// run and is returned with the partial summary.
func (p *Pipeline) Run(ctx context.Context, args []string) (*Summary, error) {
	start := time.Now()

	paths, err := Expand(args)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Files: len(paths), Outcomes: []Outcome{}}
	defer func() { sum.Duration = time.Since(start) }()

	var queue []pending
	for _, res := range p.batch.DecodeFiles(ctx, paths) {
		if res.Error != nil {
			sum.Failed++
			sum.Outcomes = append(sum.Outcomes, Outcome{
				Path:     res.Path,
				Position: -1,
				Status:   StatusFailed,
				Error:    res.Error.Error(),
			})
			p.log.Warn("candidate file skipped", "path", res.Path, "error", res.Error)
			continue
		}
		for i, c := range res.Candidates {
			queue = append(queue, pending{candidate: c, path: res.Path, position: i})
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("decode candidates: %w", err)
	}

	slices.SortStableFunc(queue, func(a, b pending) int {
		return cmp.Or(
			cmp.Compare(a.candidate.Date, b.candidate.Date),
			cmp.Compare(a.candidate.Source, b.candidate.Source),
			cmp.Compare(a.path, b.path),
			cmp.Compare(a.position, b.position),
		)
	})
	sum.Candidates = len(queue)

	for _, item := range queue {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("ingest candidates: %w", err)
		}

		out := Outcome{
			Path:     item.path,
			Position: item.position,
			Source:   item.candidate.Source,
			Date:     item.candidate.Date,
		}
		res, err := p.repo.Ingest(ctx, item.candidate)
		switch {
		case err == nil && res.Duplicate:
			out.Status = StatusDuplicate
			out.EntryID = res.Entry.ID
			sum.Duplicates++
		case err == nil:
			out.Status = StatusCreated
			out.EntryID = res.Entry.ID
			out.Relationships = len(res.Relationships)
			sum.Created++
			sum.Relationships += len(res.Relationships)
		case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrNotFound):
			out.Status = StatusRejected
			out.Error = err.Error()
			sum.Rejected++
			p.log.Warn("candidate rejected", "path", item.path, "position", item.position, "error", err)
		default:
			return sum, fmt.Errorf("ingest %s #%d: %w", item.path, item.position, err)
		}
		sum.Outcomes = append(sum.Outcomes, out)
	}

	p.log.Info("batch ingested",
		"files", sum.Files,
		"candidates", sum.Candidates,
		"created", sum.Created,
		"duplicates", sum.Duplicates,
		"rejected", sum.Rejected,
		"failed", sum.Failed,
	)
	return sum, nil
}
