package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/metrics"
	"github.com/ppiankov/claimstore/internal/timeline"
)

// RebuildReport summarizes one rebuild
type RebuildReport struct {
	Entries   int           `json:"entries"`
	Keys      int           `json:"keys"`      // Persisted index records
	Replayed  int           `json:"replayed"`  // Entries committed while the rebuild ran
	Repaired  []string      `json:"repaired"`  // Keys whose posting lists changed
	Timelines int           `json:"timelines"` // Recomputed timelines
	Duration  time.Duration `json:"duration"`
}

// Rebuild recomputes every index from the entries alone and swaps it in.
// The bulk of the work runs on a snapshot without blocking ingestion;
// entries committed meanwhile are replayed under the writer lock before the
// swap. Concurrent calls share one rebuild.
func (r *Repository) Rebuild(ctx context.Context) (*RebuildReport, error) {
	v, err, _ := r.rebuild.Do("rebuild", func() (interface{}, error) {
		return r.doRebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RebuildReport), nil
}

func (r *Repository) doRebuild(ctx context.Context) (*RebuildReport, error) {
	start := time.Now()

	base := r.Snapshot()
	ix := index.Build(base.Entries())
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebuild cancelled: %w", err)
	}
	if r.afterIndexBuild != nil {
		r.afterIndexBuild()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	replayed := 0
	for _, id := range cur.order[len(base.order):] {
		ix = ix.With(cur.entries[id])
		replayed++
	}

	next := cur.stage()
	next.index = ix
	next.timelines = timeline.Build(next, next.allTimelineKeys())

	records := ix.Records()
	ws := &writeSet{records: records, wipe: true}
	if err := commit(ctx, r.db, ws); err != nil {
		return nil, fmt.Errorf("commit rebuilt indices: %w", err)
	}
	r.current.Store(next)

	report := &RebuildReport{
		Entries:   next.Len(),
		Keys:      len(records),
		Replayed:  replayed,
		Repaired:  cur.index.Diff(ix),
		Timelines: next.TimelineCount(),
		Duration:  time.Since(start),
	}
	metrics.RecordRebuild(report.Duration.Seconds())
	r.log.Info("indices rebuilt",
		"entries", report.Entries,
		"keys", report.Keys,
		"replayed", report.Replayed,
		"repaired", len(report.Repaired),
		"duration", report.Duration,
	)
	return report, nil
}

// Verify checks the live and the persisted indices against a fresh build
// from the entries. Any difference is an *InconsistencyError.
func (r *Repository) Verify(ctx context.Context) error {
	// Hold off commits so the snapshot and the persisted records agree
	r.mu.Lock()
	snap := r.current.Load()
	records, err := loadIndexRecords(ctx, r.db)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("read persisted indices: %w", err)
	}

	details := inconsistencies(snap)
	fresh := index.Build(snap.Entries())
	stored := index.FromRecords(records, snap.dateOf)
	for _, d := range fresh.Diff(stored) {
		details = append(details, "persisted "+d)
	}

	if len(details) == 0 {
		return nil
	}
	metrics.RecordInconsistency()
	r.log.Error("index verification failed", "problems", len(details), "first", details[0])
	return &InconsistencyError{Details: details}
}

// inconsistencies lists index ids without a backing entry and keys whose
// posting lists differ from a fresh build.
func inconsistencies(snap *Snapshot) []string {
	var out []string
	for _, id := range slices.Sorted(maps.Keys(snap.index.IDs())) {
		if _, ok := snap.entries[id]; !ok {
			out = append(out, fmt.Sprintf("index references unknown entry %s", id))
		}
	}
	fresh := index.Build(snap.Entries())
	out = append(out, fresh.Diff(snap.index)...)
	return out
}
