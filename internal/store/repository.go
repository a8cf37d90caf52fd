// Package store is the entry repository: the single source of truth for
// entries and relationships, and the owner of the derived indices and
// timelines that are committed together with them.
//
// One writer at a time stages a commit on a copy of the current Snapshot,
// persists it in a single badger transaction and then publishes it. Readers
// load the published Snapshot without locking and never observe a commit
// halfway through.
package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/logger"
	"github.com/ppiankov/claimstore/internal/metrics"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/relate"
	sbadger "github.com/ppiankov/claimstore/internal/storage/badger"
	"github.com/ppiankov/claimstore/internal/timeline"
	"github.com/ppiankov/claimstore/internal/validate"
)

// Repository stores entries and relationships and keeps derived state in step
type Repository struct {
	db        *sbadger.DB
	detector  *relate.Detector
	validator *validate.Validator
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex // serializes commits
	current atomic.Pointer[Snapshot]
	rebuild singleflight.Group

	// Called by Rebuild between building the index and taking the lock
	afterIndexBuild func()
}

// Option configures a Repository
type Option func(*Repository)

// WithClock overrides the clock used for creation and detection timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(r *Repository) { r.log = log }
}

// IngestResult describes the outcome of one ingestion
type IngestResult struct {
	Entry         *model.Entry         `json:"entry"`
	Duplicate     bool                 `json:"duplicate"`
	Relationships []model.Relationship `json:"relationships,omitempty"`
}

// Open loads the repository from db. Persisted index records are loaded as
// they are; a mismatch with the entries is logged and reported by Verify.
func Open(ctx context.Context, db *sbadger.DB, cfg model.DetectorConfig, opts ...Option) (*Repository, error) {
	r := &Repository{
		db:        db,
		validator: validate.NewValidator(),
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	det, err := relate.New(cfg, relate.WithClock(func() time.Time { return r.now() }))
	if err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}
	r.detector = det

	p, err := load(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	snap := emptySnapshot()
	for _, e := range p.entries {
		snap.addEntry(e)
	}
	if p.seq > snap.seq {
		snap.seq = p.seq
	}
	for _, rel := range p.edges {
		if _, _, ok := snap.Claim(rel.From); !ok {
			r.log.Warn("dropping relationship with unknown source claim", "from", rel.From.String(), "to", rel.To.String())
			continue
		}
		if _, _, ok := snap.Claim(rel.To); !ok {
			r.log.Warn("dropping relationship with unknown target claim", "from", rel.From.String(), "to", rel.To.String())
			continue
		}
		snap.putEdge(rel)
	}
	snap.index = index.FromRecords(p.records, snap.dateOf)
	snap.timelines = timeline.Build(snap, snap.allTimelineKeys())
	r.current.Store(snap)
	metrics.SetEntries(snap.Len())

	if details := inconsistencies(snap); len(details) > 0 {
		metrics.RecordInconsistency()
		r.log.Error("persisted indices disagree with entries, run rebuild", "problems", len(details), "first", details[0])
	}
	r.log.Debug("repository opened", "entries", snap.Len(), "relationships", len(snap.edges), "timelines", snap.TimelineCount())
	return r, nil
}

// Snapshot returns the latest committed state
func (r *Repository) Snapshot() *Snapshot {
	return r.current.Load()
}

// Detector returns the relationship detector in use
func (r *Repository) Detector() *relate.Detector {
	return r.detector
}

// Get returns a committed entry
func (r *Repository) Get(id string) (*model.Entry, error) {
	if e, ok := r.Snapshot().Entry(id); ok {
		return e, nil
	}
	return nil, &NotFoundError{Kind: "entry", Key: id}
}

// Create ingests a candidate and returns its id. An identical candidate
// returns the id of the stored entry together with a *DuplicateError.
func (r *Repository) Create(ctx context.Context, c *model.Candidate) (string, error) {
	res, err := r.Ingest(ctx, c)
	if err != nil {
		return "", err
	}
	if res.Duplicate {
		return res.Entry.ID, &DuplicateError{ExistingID: res.Entry.ID}
	}
	return res.Entry.ID, nil
}

// Ingest validates a candidate, stores it, registers it in the indices,
// detects and attaches its relationships and recomputes the affected
// timelines, all in one commit. Re-submitting an identical candidate is a
// successful no-op reported through Duplicate.
func (r *Repository) Ingest(ctx context.Context, c *model.Candidate) (*IngestResult, error) {
	start := time.Now()

	if vs := r.validator.Candidate(c); len(vs) > 0 {
		metrics.RecordIngestion(metrics.OutcomeInvalid, 0)
		return nil, &ValidationError{Violations: vs}
	}
	e, err := newEntry(c)
	if err != nil {
		metrics.RecordIngestion(metrics.OutcomeInvalid, 0)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	if id, ok := cur.ByFingerprint(e.Fingerprint); ok {
		existing, _ := cur.Entry(id)
		metrics.RecordIngestion(metrics.OutcomeDuplicate, 0)
		r.log.Debug("duplicate candidate", "id", id, "source", e.Source)
		return &IngestResult{Entry: existing, Duplicate: true}, nil
	}
	if e.Updates != "" {
		if _, ok := cur.Entry(e.Updates); !ok {
			metrics.RecordIngestion(metrics.OutcomeInvalid, 0)
			return nil, &NotFoundError{Kind: "entry", Key: e.Updates}
		}
	}

	e.Seq = cur.seq + 1
	e.CreatedAt = r.now().UTC()

	next := cur.stage()
	next.addEntry(e)
	next.index = cur.index.With(e)

	detected := r.detector.Detect(e, next, next)
	var rels []model.Relationship
	for _, rel := range detected {
		if next.putEdge(rel) {
			rels = append(rels, rel)
		}
	}
	next.timelines = cur.timelines.Recompute(next, timeline.KeysFor(e))

	ws := &writeSet{entries: []*model.Entry{e}, edges: rels, seq: e.Seq}
	ws.touch(next.index, e)
	if err := commit(ctx, r.db, ws); err != nil {
		metrics.RecordIngestion(metrics.OutcomeFailed, 0)
		return nil, fmt.Errorf("commit entry %s: %w", e.ID, err)
	}
	r.current.Store(next)

	metrics.RecordIngestion(metrics.OutcomeCreated, time.Since(start).Seconds())
	metrics.SetEntries(next.Len())
	for _, rel := range rels {
		metrics.RecordRelationship(string(rel.Kind), "detected")
	}
	r.log.Info("entry ingested",
		"id", e.ID,
		"date", e.Date.Format(model.DateLayout),
		"claims", len(e.Claims),
		"relationships", len(rels),
	)
	return &IngestResult{Entry: e, Relationships: rels}, nil
}

// AttachResult describes the outcome of an attach
type AttachResult struct {
	Relationship model.Relationship `json:"relationship"` // The edge as stored
	Changed      bool               `json:"changed"`      // False when the identical edge existed
}

// AttachRelationship stores an edge from one claim to another. Attaching an
// identical edge is a no-op; attaching a different kind to the same ordered
// pair replaces the edge and its inverse view.
func (r *Repository) AttachRelationship(ctx context.Context, from model.ClaimRef, kind model.RelationKind, to model.ClaimRef) error {
	_, err := r.Attach(ctx, from, kind, to)
	return err
}

// Attach is AttachRelationship reporting the stored edge and whether the
// call changed anything.
func (r *Repository) Attach(ctx context.Context, from model.ClaimRef, kind model.RelationKind, to model.ClaimRef) (*AttachResult, error) {
	if !slices.Contains(model.RelationKinds, kind) {
		return nil, invalid("kind", "relation_kind", fmt.Sprintf("%q is not a relationship kind", kind))
	}
	if from == to {
		return nil, invalid("to", "distinct", "a claim cannot relate to itself")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	fromEntry, _, ok := cur.Claim(from)
	if !ok {
		return nil, &NotFoundError{Kind: "claim", Key: from.String()}
	}
	toEntry, _, ok := cur.Claim(to)
	if !ok {
		return nil, &NotFoundError{Kind: "claim", Key: to.String()}
	}
	if old, ok := cur.Edge(from, to); ok && old.Kind == kind {
		return &AttachResult{Relationship: old}, nil
	}

	rel := model.Relationship{From: from, Kind: kind, To: to, DetectedAt: r.now().UTC()}
	next := cur.stage()
	next.putEdge(rel)
	keys := append(timeline.KeysFor(fromEntry), timeline.KeysFor(toEntry)...)
	next.timelines = cur.timelines.Recompute(next, keys)

	if err := commit(ctx, r.db, &writeSet{edges: []model.Relationship{rel}}); err != nil {
		return nil, fmt.Errorf("commit relationship %s -> %s: %w", from, to, err)
	}
	r.current.Store(next)

	metrics.RecordRelationship(string(kind), "attached")
	r.log.Info("relationship attached", "from", from.String(), "kind", string(kind), "to", to.String())
	return &AttachResult{Relationship: rel, Changed: true}, nil
}

// AllEntries yields every entry of the snapshot current at the call, in
// commit order. Commits made during iteration are not observed. Iteration
// stops with the context's error if ctx is cancelled.
func (r *Repository) AllEntries(ctx context.Context) iter.Seq2[*model.Entry, error] {
	snap := r.Snapshot()
	return func(yield func(*model.Entry, error) bool) {
		for _, id := range snap.order {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(snap.entries[id], nil) {
				return
			}
		}
	}
}
