package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/model"
	sbadger "github.com/ppiankov/claimstore/internal/storage/badger"
)

var clock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func openRepo(t *testing.T, cfg sbadger.Config) (*Repository, *sbadger.DB) {
	t.Helper()
	db, err := sbadger.OpenDB(cfg)
	require.NoError(t, err)
	repo, err := Open(context.Background(), db, model.DefaultConfig().Detector, WithClock(clock))
	require.NoError(t, err)
	return repo, db
}

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, db := openRepo(t, sbadger.InMemoryConfig())
	t.Cleanup(func() { _ = db.Close() })
	return repo
}

func candidate(source, date string, texts ...string) *model.Candidate {
	c := &model.Candidate{
		Source:      source,
		Date:        date,
		ContentType: "podcast",
		Topics:      []string{"Housing"},
		Speakers:    []string{"S"},
	}
	for _, text := range texts {
		c.Claims = append(c.Claims, model.CandidateClaim{Kind: "prediction", Text: text})
	}
	return c
}

func mustCreate(t *testing.T, repo *Repository, c *model.Candidate) string {
	t.Helper()
	id, err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	return id
}

func TestCreate_Idempotent(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id := mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))

	again, err := repo.Create(ctx, candidate("show/1", "2025-01-01", "Prices will rise."))
	assert.Equal(t, id, again)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, id, dup.ExistingID)
	assert.ErrorIs(t, err, ErrDuplicate)

	res, err := repo.Ingest(ctx, candidate("show/1", "2025-01-01", "prices will rise"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, id, res.Entry.ID)

	assert.Equal(t, 1, repo.Snapshot().Len())
}

func TestCreate_StableIDs(t *testing.T) {
	a := newRepo(t)
	b := newRepo(t)

	c := candidate("show/1", "2025-01-01", "prices will rise", "rates will fall")
	reordered := candidate("show/1", "2025-01-01", "rates will fall", "prices will rise")
	assert.Equal(t, mustCreate(t, a, c), mustCreate(t, b, reordered))
}

func TestCreate_MalformedLeavesStateUnchanged(t *testing.T) {
	repo := newRepo(t)
	mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	before := repo.Snapshot()

	tests := []struct {
		name string
		c    *model.Candidate
	}{
		{"empty claims", candidate("show/2", "2025-02-01")},
		{"bad date", candidate("show/2", "2025-02-30", "x")},
		{"no topics", func() *model.Candidate {
			c := candidate("show/2", "2025-02-01", "x")
			c.Topics = nil
			return c
		}()},
		{"blank source", candidate("   ", "2025-02-01", "x")},
		{"mixed-case confidence", func() *model.Candidate {
			c := candidate("show/2", "2025-02-01", "x")
			c.Claims[0].Confidence = "High"
			return c
		}()},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(context.Background(), tt.c)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Violations)

			after := repo.Snapshot()
			assert.Same(t, before, after)
			assert.Equal(t, 1, after.Len())
			assert.Equal(t, []string{after.order[0]}, after.EntriesForTopic("housing"))
		})
	}
}

func TestCreate_UnknownBackReference(t *testing.T) {
	repo := newRepo(t)
	c := candidate("show/1", "2025-01-01", "prices will rise")
	c.UpdatesEntryID = "missing"

	_, err := repo.Create(context.Background(), c)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, repo.Snapshot().Len())
}

func TestGet(t *testing.T) {
	repo := newRepo(t)
	id := mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))

	e, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"housing"}, e.Topics)
	assert.Equal(t, []string{"s"}, e.Speakers)
	assert.Equal(t, "c1", e.Claims[0].ID)
	assert.Equal(t, uint64(1), e.Seq)
	assert.Equal(t, clock(), e.CreatedAt)

	_, err = repo.Get("nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "entry", nf.Kind)
}

func TestScenario_ConfirmationAndContradiction(t *testing.T) {
	repo := newRepo(t)

	e1 := mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	e2 := mustCreate(t, repo, candidate("show/2", "2025-06-01", "prices will rise"))

	snap := repo.Snapshot()
	rel, ok := snap.Edge(model.ClaimRef{EntryID: e2, ClaimID: "c1"}, model.ClaimRef{EntryID: e1, ClaimID: "c1"})
	require.True(t, ok)
	assert.Equal(t, model.RelConfirms, rel.Kind)

	tl, ok := snap.Timeline("S", "housing")
	require.True(t, ok)
	require.Len(t, tl.Points, 2)
	assert.Equal(t, e1, tl.Points[0].Ref.EntryID)
	assert.Empty(t, tl.Points[0].Relation)
	assert.Equal(t, model.LabelConfirms, tl.Points[1].Relation)

	c3 := candidate("show/3", "2025-09-01", "prices will fall")
	c3.Claims[0].Polarity = "negative"
	res, err := repo.Ingest(context.Background(), c3)
	require.NoError(t, err)
	require.Len(t, res.Relationships, 1)
	assert.Equal(t, model.RelContradicts, res.Relationships[0].Kind)
	assert.Equal(t, e2, res.Relationships[0].To.EntryID, "e1 lies outside the window")

	snap = repo.Snapshot()
	assert.Equal(t, []string{e1, e2, res.Entry.ID}, snap.EntriesForSpeaker("s"))
	tl, _ = snap.Timeline("s", "housing")
	require.Len(t, tl.Points, 3)
	assert.Equal(t, model.LabelContradicts, tl.Points[2].Relation)
}

func TestRelationshipSymmetry(t *testing.T) {
	repo := newRepo(t)
	mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	mustCreate(t, repo, candidate("show/2", "2025-03-01", "prices will rise", "prices will rise sharply"))
	c := candidate("show/3", "2025-04-01", "prices will fall")
	mustCreate(t, repo, c)

	snap := repo.Snapshot()
	rels := snap.Relationships()
	require.NotEmpty(t, rels)
	for _, rel := range rels {
		forward, inverse := rel.Views()
		assert.Contains(t, snap.EdgesOf(rel.From.EntryID), forward)
		assert.Contains(t, snap.EdgesOf(rel.To.EntryID), inverse)
	}
}

func TestAttachRelationship(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	a := mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	b := mustCreate(t, repo, candidate("show/2", "2025-02-01", "rates are sticky"))
	ra := model.ClaimRef{EntryID: a, ClaimID: "c1"}
	rb := model.ClaimRef{EntryID: b, ClaimID: "c1"}

	require.NoError(t, repo.AttachRelationship(ctx, rb, model.RelExtends, ra))
	version := repo.Snapshot().Version()

	t.Run("identical edge is a no-op", func(t *testing.T) {
		res, err := repo.Attach(ctx, rb, model.RelExtends, ra)
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, model.RelExtends, res.Relationship.Kind)
		assert.Equal(t, clock(), res.Relationship.DetectedAt, "stored edge is returned")
		assert.Equal(t, version, repo.Snapshot().Version())
	})

	t.Run("inverse view is visible", func(t *testing.T) {
		views := repo.Snapshot().EdgesOf(a)
		require.Len(t, views, 1)
		assert.Equal(t, model.LabelExtendedBy, views[0].Label)
		assert.Equal(t, rb, views[0].Other)
	})

	t.Run("new kind replaces the edge and its inverse", func(t *testing.T) {
		res, err := repo.Attach(ctx, rb, model.RelUpdates, ra)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		views := repo.Snapshot().EdgesOf(a)
		require.Len(t, views, 1)
		assert.Equal(t, model.LabelUpdatedBy, views[0].Label)

		tl, _ := repo.Snapshot().Timeline("s", "housing")
		assert.Equal(t, model.LabelUpdates, tl.Points[1].Relation)
	})

	t.Run("unknown claim", func(t *testing.T) {
		err := repo.AttachRelationship(ctx, model.ClaimRef{EntryID: a, ClaimID: "c9"}, model.RelConfirms, rb)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "claim", nf.Kind)
	})

	t.Run("self edge", func(t *testing.T) {
		assert.ErrorIs(t, repo.AttachRelationship(ctx, ra, model.RelConfirms, ra), ErrValidation)
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.ErrorIs(t, repo.AttachRelationship(ctx, ra, "agrees", rb), ErrValidation)
	})
}

func TestRebuildEquivalence(t *testing.T) {
	cands := []*model.Candidate{
		candidate("show/1", "2025-01-01", "prices will rise"),
		candidate("show/2", "2025-06-01", "prices will rise"),
		candidate("show/3", "2025-09-01", "prices will fall"),
		candidate("show/4", "2025-06-01", "rates will hold"),
		candidate("show/5", "2024-12-31", "inventory is low"),
	}
	cands[3].Topics = []string{"rates", "housing"}
	cands[4].Speakers = []string{"T"}

	reference := newRepo(t)
	for _, c := range cands {
		mustCreate(t, reference, c)
	}
	want := string(reference.Snapshot().Index().Encode())

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		repo := newRepo(t)
		for _, j := range rng.Perm(len(cands)) {
			mustCreate(t, repo, cands[j])
		}
		require.Equal(t, want, string(repo.Snapshot().Index().Encode()), "order %d", i)

		report, err := repo.Rebuild(context.Background())
		require.NoError(t, err)
		assert.Empty(t, report.Repaired)
		assert.Equal(t, want, string(repo.Snapshot().Index().Encode()))
		require.NoError(t, repo.Verify(context.Background()))
	}
}

func TestRebuildReplaysConcurrentCommits(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	mustCreate(t, repo, candidate("show/2", "2025-02-01", "rates will hold"))

	// Commits landing after the index was built from the old snapshot
	var late []string
	repo.afterIndexBuild = func() {
		late = append(late,
			mustCreate(t, repo, candidate("show/3", "2025-03-01", "prices will rise")),
			mustCreate(t, repo, candidate("show/4", "2024-12-01", "inventory is low")),
		)
	}

	report, err := repo.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Replayed)
	assert.Equal(t, 4, report.Entries)
	assert.Empty(t, report.Repaired)

	snap := repo.Snapshot()
	for _, id := range late {
		_, ok := snap.Entry(id)
		assert.True(t, ok, "entry %s lost by rebuild", id)
	}
	assert.Equal(t, string(index.Build(snap.Entries()).Encode()), string(snap.Index().Encode()))
	require.NoError(t, repo.Verify(ctx))

	tl, ok := snap.Timeline("s", "housing")
	require.True(t, ok)
	assert.Len(t, tl.Points, 4)
}

func TestVerifyAndRebuildRepairPersistedIndex(t *testing.T) {
	repo, db := openRepo(t, sbadger.InMemoryConfig())
	defer func() { _ = db.Close() }()
	ctx := context.Background()
	mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	require.NoError(t, repo.Verify(ctx))

	// A stray record that no entry backs
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("idx/topic/crypto"), []byte(`["ghost"]`))
	}))

	err := repo.Verify(ctx)
	var inc *InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.ErrorIs(t, err, ErrInconsistent)
	assert.NotEmpty(t, inc.Details)

	_, err = repo.Rebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Verify(ctx))
}

func TestReopen(t *testing.T) {
	cfg := sbadger.Config{Path: t.TempDir()}
	repo, db := openRepo(t, cfg)
	e1 := mustCreate(t, repo, candidate("show/1", "2025-01-01", "prices will rise"))
	mustCreate(t, repo, candidate("show/2", "2025-06-01", "prices will rise"))
	want := repo.Snapshot()
	require.NoError(t, db.Close())

	repo, db = openRepo(t, cfg)
	defer func() { _ = db.Close() }()
	got := repo.Snapshot()

	assert.Equal(t, want.Len(), got.Len())
	assert.Equal(t, want.Relationships(), got.Relationships())
	assert.Equal(t, string(want.Index().Encode()), string(got.Index().Encode()))
	require.NoError(t, repo.Verify(context.Background()))

	tl, ok := got.Timeline("s", "housing")
	require.True(t, ok)
	assert.Equal(t, model.LabelConfirms, tl.Points[1].Relation)

	// Sequence numbers continue after reopen
	res, err := repo.Ingest(context.Background(), candidate("show/3", "2025-07-01", "x"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Entry.Seq)

	e, err := repo.Get(e1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Seq)
}

func TestConcurrentIngestAndRead(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	const writers = 8
	const perWriter = 10

	stop := make(chan struct{})
	var readers sync.WaitGroup
	var readErr error
	var once sync.Once
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := repo.Snapshot()
				if details := inconsistencies(snap); len(details) > 0 {
					once.Do(func() { readErr = errors.New(details[0]) })
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				day := fmt.Sprintf("2025-%02d-%02d", i%12+1, w+1)
				_, err := repo.Create(ctx, candidate(fmt.Sprintf("show/%d", w), day, fmt.Sprintf("claim %d", i)))
				assert.NoError(t, err)
			}
		}(w)
	}

	// A rebuild racing with ingestion must not lose entries
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := repo.Rebuild(ctx)
		assert.NoError(t, err)
	}()

	wg.Wait()
	close(stop)
	readers.Wait()

	require.NoError(t, readErr)
	assert.Equal(t, writers*perWriter, repo.Snapshot().Len())
	require.NoError(t, repo.Verify(ctx))
}

func TestAllEntries(t *testing.T) {
	repo := newRepo(t)
	for i := 1; i <= 3; i++ {
		mustCreate(t, repo, candidate("show", fmt.Sprintf("2025-0%d-01", i), "x"))
	}

	t.Run("snapshot consistent", func(t *testing.T) {
		var n int
		for e, err := range repo.AllEntries(context.Background()) {
			require.NoError(t, err)
			require.NotNil(t, e)
			if n == 0 {
				mustCreate(t, repo, candidate("show", "2025-09-01", "late"))
			}
			n++
		}
		assert.Equal(t, 3, n)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var seen int
		var gotErr error
		for e, err := range repo.AllEntries(ctx) {
			if err != nil {
				gotErr = err
				break
			}
			_ = e
			seen++
			cancel()
		}
		assert.Equal(t, 1, seen)
		assert.ErrorIs(t, gotErr, context.Canceled)
	})
}
