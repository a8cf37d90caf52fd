package store

import (
	"iter"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/timeline"
)

// edgeKey identifies the single physical edge of an ordered claim pair
type edgeKey struct {
	from, to model.ClaimRef
}

// Snapshot is one committed, immutable state of the store. Readers obtain it
// from Repository.Snapshot and may hold it as long as they like; commits
// publish a new Snapshot instead of changing this one.
type Snapshot struct {
	version uint64
	seq     uint64

	entries map[string]*model.Entry
	order   []string          // entry ids in commit order
	byPrint map[string]string // fingerprint -> entry id

	index *index.Index

	edges   map[edgeKey]model.Relationship
	byEntry map[string][]edgeKey // entry id -> edges touching its claims

	timelines *timeline.Set
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		entries:   make(map[string]*model.Entry),
		byPrint:   make(map[string]string),
		index:     index.New(),
		edges:     make(map[edgeKey]model.Relationship),
		byEntry:   make(map[string][]edgeKey),
		timelines: timeline.NewSet(),
	}
}

// stage returns a copy to apply one commit to. Maps are cloned; slices are
// clipped so appends never write into arrays the receiver can see.
func (s *Snapshot) stage() *Snapshot {
	return &Snapshot{
		version:   s.version + 1,
		seq:       s.seq,
		entries:   maps.Clone(s.entries),
		order:     slices.Clip(s.order),
		byPrint:   maps.Clone(s.byPrint),
		index:     s.index,
		edges:     maps.Clone(s.edges),
		byEntry:   maps.Clone(s.byEntry),
		timelines: s.timelines,
	}
}

func (s *Snapshot) addEntry(e *model.Entry) {
	s.entries[e.ID] = e
	s.order = append(s.order, e.ID)
	s.byPrint[e.Fingerprint] = e.ID
	if e.Seq > s.seq {
		s.seq = e.Seq
	}
}

// putEdge stores rel as the edge of its claim pair. It reports false when an
// identical edge already exists. A different kind replaces the old edge and,
// with it, the inverse view.
func (s *Snapshot) putEdge(rel model.Relationship) bool {
	k := edgeKey{from: rel.From, to: rel.To}
	if old, ok := s.edges[k]; ok {
		if old.Kind == rel.Kind {
			return false
		}
		s.edges[k] = rel
		return true
	}
	s.edges[k] = rel
	s.byEntry[rel.From.EntryID] = append(slices.Clip(s.byEntry[rel.From.EntryID]), k)
	if rel.To.EntryID != rel.From.EntryID {
		s.byEntry[rel.To.EntryID] = append(slices.Clip(s.byEntry[rel.To.EntryID]), k)
	}
	return true
}

// Version increases with every commit, including attaches and rebuilds
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of entries
func (s *Snapshot) Len() int { return len(s.entries) }

// Entry returns a committed entry
func (s *Snapshot) Entry(id string) (*model.Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Claim resolves a claim reference
func (s *Snapshot) Claim(ref model.ClaimRef) (*model.Entry, model.Claim, bool) {
	e, ok := s.entries[ref.EntryID]
	if !ok {
		return nil, model.Claim{}, false
	}
	c, ok := e.Claim(ref.ClaimID)
	return e, c, ok
}

// ByFingerprint returns the id of the entry with the given fingerprint
func (s *Snapshot) ByFingerprint(fp string) (string, bool) {
	id, ok := s.byPrint[fp]
	return id, ok
}

// Entries yields entries in commit order
func (s *Snapshot) Entries() iter.Seq[*model.Entry] {
	return func(yield func(*model.Entry) bool) {
		for _, id := range s.order {
			if !yield(s.entries[id]) {
				return
			}
		}
	}
}

// Index returns the derived indices of this snapshot
func (s *Snapshot) Index() *index.Index { return s.index }

// EntriesForTopic returns entry ids declaring the topic, ordered by date
func (s *Snapshot) EntriesForTopic(topic string) []string {
	return s.index.EntriesForTopic(topic)
}

// EntriesForSpeaker returns entry ids declaring the speaker, ordered by date
func (s *Snapshot) EntriesForSpeaker(speaker string) []string {
	return s.index.EntriesForSpeaker(speaker)
}

// EntriesNear returns entry ids inside the window around date
func (s *Snapshot) EntriesNear(date time.Time, w model.Window) []string {
	return s.index.EntriesNear(date, w)
}

// Edge returns the stored edge from one claim to another
func (s *Snapshot) Edge(from, to model.ClaimRef) (model.Relationship, bool) {
	r, ok := s.edges[edgeKey{from: from, to: to}]
	return r, ok
}

// Relationships returns every stored edge, ordered by source then target
func (s *Snapshot) Relationships() []model.Relationship {
	out := slices.Collect(maps.Values(s.edges))
	slices.SortFunc(out, func(a, b model.Relationship) int {
		if c := strings.Compare(a.From.String(), b.From.String()); c != 0 {
			return c
		}
		return strings.Compare(a.To.String(), b.To.String())
	})
	return out
}

// EdgesOf returns the views of every edge touching the entry's claims: the
// forward view where one of its claims is the source and the inverse view
// where one is the target.
func (s *Snapshot) EdgesOf(entryID string) []model.EdgeView {
	var out []model.EdgeView
	for _, k := range s.byEntry[entryID] {
		rel := s.edges[k]
		forward, inverse := rel.Views()
		if rel.From.EntryID == entryID {
			out = append(out, forward)
		}
		if rel.To.EntryID == entryID {
			out = append(out, inverse)
		}
	}
	slices.SortFunc(out, func(a, b model.EdgeView) int {
		if c := strings.Compare(a.Claim.String(), b.Claim.String()); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Label), string(b.Label)); c != 0 {
			return c
		}
		return strings.Compare(a.Other.String(), b.Other.String())
	})
	return out
}

// Timeline returns the position timeline of a speaker on a topic
func (s *Snapshot) Timeline(speaker, topic string) (*timeline.Timeline, bool) {
	return s.timelines.Get(timeline.NewKey(speaker, topic))
}

// TimelineCount returns the number of (speaker, topic) timelines
func (s *Snapshot) TimelineCount() int { return s.timelines.Len() }

// allTimelineKeys lists every (speaker, topic) pair declared by any entry
func (s *Snapshot) allTimelineKeys() []timeline.Key {
	seen := make(map[timeline.Key]bool)
	var keys []timeline.Key
	for _, id := range s.order {
		for _, k := range timeline.KeysFor(s.entries[id]) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// dateOf resolves an entry id to its date for loading persisted indices
func (s *Snapshot) dateOf(id string) (time.Time, bool) {
	if e, ok := s.entries[id]; ok {
		return e.Date, true
	}
	return time.Time{}, false
}
