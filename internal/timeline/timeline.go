// Package timeline derives per-speaker, per-topic position timelines from
// entries and the relationships between their claims.
package timeline

import (
	"maps"
	"slices"
	"strings"

	"github.com/ppiankov/claimstore/internal/model"
)

// Key identifies one timeline by normalized speaker and topic
type Key struct {
	Speaker string `json:"speaker"`
	Topic   string `json:"topic"`
}

// NewKey normalizes a speaker and topic pair
func NewKey(speaker, topic string) Key {
	return Key{Speaker: model.NormalizeKey(speaker), Topic: model.NormalizeKey(topic)}
}

func (k Key) String() string {
	return k.Speaker + "/" + k.Topic
}

func (k Key) compare(o Key) int {
	if c := strings.Compare(k.Speaker, o.Speaker); c != 0 {
		return c
	}
	return strings.Compare(k.Topic, o.Topic)
}

// KeysFor returns every (speaker, topic) pair an entry declares
func KeysFor(e *model.Entry) []Key {
	keys := make([]Key, 0, len(e.Speakers)*len(e.Topics))
	for _, s := range e.Speakers {
		for _, t := range e.Topics {
			keys = append(keys, Key{Speaker: s, Topic: t})
		}
	}
	return keys
}

// Point is one claim on a timeline with its relationship to the previous
// point. Relation is empty when the two are unconnected.
type Point struct {
	model.ClaimPoint
	Relation model.Label `json:"relation,omitempty"`
}

// Timeline is the date-ordered sequence of one speaker's claims on one topic
type Timeline struct {
	Key    Key     `json:"key"`
	Points []Point `json:"points"`
}

// Source is the committed or staged state a timeline is derived from
type Source interface {
	EntriesForSpeaker(speaker string) []string
	Entry(id string) (*model.Entry, bool)
	Edge(from, to model.ClaimRef) (model.Relationship, bool)
}

// Compute derives one timeline. Entries come from the speaker index in
// date order; claims within an entry keep their declared order.
func Compute(src Source, key Key) *Timeline {
	tl := &Timeline{Key: key}
	for _, id := range src.EntriesForSpeaker(key.Speaker) {
		e, ok := src.Entry(id)
		if !ok || !e.HasTopic(key.Topic) {
			continue
		}
		for _, c := range e.Claims {
			tl.Points = append(tl.Points, Point{
				ClaimPoint: model.ClaimPoint{Ref: e.Ref(c), Date: e.Date, Claim: c},
			})
		}
	}

	for i := 1; i < len(tl.Points); i++ {
		prev, cur := tl.Points[i-1].Ref, tl.Points[i].Ref
		if r, ok := src.Edge(cur, prev); ok {
			tl.Points[i].Relation = r.Kind.Forward()
		} else if r, ok := src.Edge(prev, cur); ok {
			tl.Points[i].Relation = r.Kind.Inverse()
		}
	}
	return tl
}

// Set is an immutable collection of timelines
type Set struct {
	timelines map[Key]*Timeline
}

// NewSet returns an empty set
func NewSet() *Set {
	return &Set{timelines: make(map[Key]*Timeline)}
}

// Build derives the timelines for the given keys
func Build(src Source, keys []Key) *Set {
	return NewSet().Recompute(src, keys)
}

// Recompute returns a copy of the set with the given timelines re-derived.
// Untouched timelines are shared with the receiver.
func (s *Set) Recompute(src Source, keys []Key) *Set {
	next := &Set{timelines: maps.Clone(s.timelines)}
	if next.timelines == nil {
		next.timelines = make(map[Key]*Timeline)
	}
	for _, k := range keys {
		tl := Compute(src, k)
		if len(tl.Points) == 0 {
			delete(next.timelines, k)
			continue
		}
		next.timelines[k] = tl
	}
	return next
}

// Get returns the timeline for a key
func (s *Set) Get(k Key) (*Timeline, bool) {
	tl, ok := s.timelines[k]
	return tl, ok
}

// Len returns the number of timelines
func (s *Set) Len() int {
	return len(s.timelines)
}

// Keys returns every key in speaker, topic order
func (s *Set) Keys() []Key {
	keys := slices.Collect(maps.Keys(s.timelines))
	slices.SortFunc(keys, Key.compare)
	return keys
}
