// Package query is the read-only facade over the committed store state.
// Every call reads exactly one Snapshot, so a result never mixes two commits.
package query

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/claimstore/internal/cache"
	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/metrics"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/score"
	"github.com/ppiankov/claimstore/internal/store"
	"github.com/ppiankov/claimstore/internal/timeline"
	"github.com/ppiankov/claimstore/internal/validate"
)

// Source publishes committed snapshots
type Source interface {
	Snapshot() *store.Snapshot
}

// Filter is a conjunction of optional predicates. The zero Filter matches
// every entry.
type Filter struct {
	Topic      string          `json:"topic,omitempty"`
	Speaker    string          `json:"speaker,omitempty"`
	From       time.Time       `json:"from,omitempty"` // Inclusive
	To         time.Time       `json:"to,omitempty"`   // Inclusive
	Kind       model.ClaimKind `json:"kind,omitempty"` // Some claim has this kind
	Text       string          `json:"text,omitempty"` // Some claim contains this, case-insensitive
	Descending bool            `json:"descending,omitempty"`
	Limit      int             `json:"limit,omitempty"` // 0 means no limit
}

func (f Filter) cacheParts() []string {
	return []string{
		model.NormalizeKey(f.Topic),
		model.NormalizeKey(f.Speaker),
		f.From.Format(model.DateLayout),
		f.To.Format(model.DateLayout),
		string(f.Kind),
		strings.ToLower(f.Text),
		strconv.FormatBool(f.Descending),
		strconv.Itoa(f.Limit),
	}
}

// Evolution is a speaker's timeline on a topic with its consistency summary
type Evolution struct {
	Speaker string           `json:"speaker"`
	Topic   string           `json:"topic"`
	Points  []timeline.Point `json:"points"`
	Score   model.Score      `json:"score"`
}

// Engine answers searches, relationship and evolution queries
type Engine struct {
	src    Source
	cache  cache.Cache
	scorer *score.Scorer
}

// New creates an engine. A nil cache disables result caching.
func New(src Source, c cache.Cache) *Engine {
	if c == nil {
		c = cache.Nop{}
	}
	return &Engine{src: src, cache: c, scorer: score.NewScorer()}
}

// cached runs compute on a cache miss and remembers its result for the
// snapshot version it was computed on
func cached[T any](e *Engine, op string, version uint64, parts []string, compute func() (T, error)) (T, error) {
	key := cache.Key(version, op, parts...)
	if v, ok := e.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			metrics.RecordQuery(op, true)
			return t, nil
		}
	}
	metrics.RecordQuery(op, false)
	t, err := compute()
	if err != nil {
		return t, err
	}
	e.cache.Set(key, t, 0)
	return t, nil
}

// Find returns the entries matching every predicate of f, ordered by date
// ascending (descending when requested), ties broken by id
func (e *Engine) Find(ctx context.Context, f Filter) ([]*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkFilter(f); err != nil {
		return nil, err
	}

	snap := e.src.Snapshot()
	res, err := cached(e, "find", snap.Version(), f.cacheParts(), func() ([]*model.Entry, error) {
		return find(snap, f)
	})
	return slices.Clone(res), err
}

func checkFilter(f Filter) error {
	var vs []validate.Violation
	if f.Kind != "" && !slices.Contains(model.ClaimKinds, f.Kind) {
		vs = append(vs, validate.Violation{Field: "kind", Rule: "claim_kind", Message: "unknown claim kind " + strconv.Quote(string(f.Kind))})
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		vs = append(vs, validate.Violation{Field: "from", Rule: "ltefield", Message: "must not be after to"})
	}
	if f.Limit < 0 {
		vs = append(vs, validate.Violation{Field: "limit", Rule: "min", Message: "must not be negative"})
	}
	if len(vs) > 0 {
		return &store.ValidationError{Violations: vs}
	}
	return nil
}

func find(snap *store.Snapshot, f Filter) ([]*model.Entry, error) {
	ix := snap.Index()
	topic, speaker := model.NormalizeKey(f.Topic), model.NormalizeKey(f.Speaker)
	text := strings.ToLower(strings.TrimSpace(f.Text))

	if topic != "" && !ix.Has(index.KindTopic, topic) {
		return nil, &store.NotFoundError{Kind: "topic", Key: topic, Suggestions: ix.Suggest(index.KindTopic, topic)}
	}
	if speaker != "" && !ix.Has(index.KindSpeaker, speaker) {
		return nil, &store.NotFoundError{Kind: "speaker", Key: speaker, Suggestions: ix.Suggest(index.KindSpeaker, speaker)}
	}

	// Start from the narrowest index list available
	var ids []string
	switch {
	case topic != "":
		ids = ix.Lookup(index.KindTopic, topic)
	case speaker != "":
		ids = ix.Lookup(index.KindSpeaker, speaker)
	default:
		for en := range snap.Entries() {
			ids = append(ids, en.ID)
		}
	}

	var out []*model.Entry
	for _, id := range ids {
		en, ok := snap.Entry(id)
		if !ok {
			continue
		}
		if topic != "" && !en.HasTopic(topic) {
			continue
		}
		if speaker != "" && !en.HasSpeaker(speaker) {
			continue
		}
		if !f.From.IsZero() && en.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && en.Date.After(f.To) {
			continue
		}
		if (f.Kind != "" || text != "") && !hasClaim(en, f.Kind, text) {
			continue
		}
		out = append(out, en)
	}

	slices.SortFunc(out, func(a, b *model.Entry) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
	if f.Descending {
		slices.Reverse(out)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// hasClaim reports whether one claim satisfies both the kind and the text
// predicate
func hasClaim(en *model.Entry, kind model.ClaimKind, text string) bool {
	for _, c := range en.Claims {
		if kind != "" && c.Kind != kind {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(c.Text), text) {
			continue
		}
		return true
	}
	return false
}

// RelationshipsOf returns every edge view touching the entry's claims
func (e *Engine) RelationshipsOf(ctx context.Context, entryID string) ([]model.EdgeView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.src.Snapshot()
	if _, ok := snap.Entry(entryID); !ok {
		return nil, &store.NotFoundError{Kind: "entry", Key: entryID}
	}
	metrics.RecordQuery("relationships", false)
	return snap.EdgesOf(entryID), nil
}

// Evolution returns the speaker's timeline on the topic, oldest first,
// with a consistency summary. A known speaker and topic that never
// co-occur yield an empty timeline.
func (e *Engine) Evolution(ctx context.Context, speaker, topic string) (*Evolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := timeline.NewKey(speaker, topic)
	snap := e.src.Snapshot()
	ix := snap.Index()
	if !ix.Has(index.KindSpeaker, key.Speaker) {
		return nil, &store.NotFoundError{Kind: "speaker", Key: key.Speaker, Suggestions: ix.Suggest(index.KindSpeaker, key.Speaker)}
	}
	if !ix.Has(index.KindTopic, key.Topic) {
		return nil, &store.NotFoundError{Kind: "topic", Key: key.Topic, Suggestions: ix.Suggest(index.KindTopic, key.Topic)}
	}

	return cached(e, "evolution", snap.Version(), []string{key.Speaker, key.Topic}, func() (*Evolution, error) {
		ev := &Evolution{Speaker: key.Speaker, Topic: key.Topic, Points: []timeline.Point{}}
		tl, ok := snap.Timeline(key.Speaker, key.Topic)
		if ok {
			ev.Points = tl.Points
		}
		ev.Score = e.scorer.Calculate(tl)
		return ev, nil
	})
}

// ListTopics returns every topic with its entry count
func (e *Engine) ListTopics(ctx context.Context) ([]index.KeyCount, error) {
	return e.list(ctx, "topics", index.KindTopic)
}

// ListSpeakers returns every speaker with its entry count
func (e *Engine) ListSpeakers(ctx context.Context) ([]index.KeyCount, error) {
	return e.list(ctx, "speakers", index.KindSpeaker)
}

func (e *Engine) list(ctx context.Context, op string, kind index.Kind) ([]index.KeyCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.src.Snapshot()
	return cached(e, op, snap.Version(), nil, func() ([]index.KeyCount, error) {
		return snap.Index().Keys(kind), nil
	})
}
