// Package index maintains the derived topic, speaker and year-month indices.
//
// An Index is immutable once published: With returns a copy that shares
// every posting list it did not touch, so readers holding the old value
// never observe a partial update.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/claimstore/internal/model"
)

// Kind names one of the three index families
type Kind string

const (
	KindTopic   Kind = "topic"
	KindSpeaker Kind = "speaker"
	KindMonth   Kind = "month"
)

// Kinds lists the families in encoding order
var Kinds = []Kind{KindTopic, KindSpeaker, KindMonth}

// posting is one entry id with the date used for ordering
type posting struct {
	id   string
	date time.Time
}

func (p posting) before(o posting) bool {
	if !p.date.Equal(o.date) {
		return p.date.Before(o.date)
	}
	return p.id < o.id
}

// Index maps normalized keys to date-ordered entry ids
type Index struct {
	families map[Kind]map[string][]posting
}

// New returns an empty index
func New() *Index {
	ix := &Index{families: make(map[Kind]map[string][]posting, len(Kinds))}
	for _, k := range Kinds {
		ix.families[k] = make(map[string][]posting)
	}
	return ix
}

// Build recomputes an index from a sequence of entries
func Build(entries iter.Seq[*model.Entry]) *Index {
	ix := New()
	for e := range entries {
		ix.insert(e)
	}
	return ix
}

// With returns a copy of the index with the entry registered under every
// declared topic, speaker and its month bucket.
func (ix *Index) With(e *model.Entry) *Index {
	next := &Index{families: make(map[Kind]map[string][]posting, len(Kinds))}
	for _, k := range Kinds {
		next.families[k] = maps.Clone(ix.families[k])
	}
	next.insert(e)
	return next
}

// insert adds the entry in place. Touched posting lists are always
// reallocated so copies made by With stay independent.
func (ix *Index) insert(e *model.Entry) {
	p := posting{id: e.ID, date: e.Date}
	for _, t := range e.Topics {
		ix.add(KindTopic, t, p)
	}
	for _, s := range e.Speakers {
		ix.add(KindSpeaker, s, p)
	}
	ix.add(KindMonth, e.Month(), p)
}

func (ix *Index) add(kind Kind, key string, p posting) {
	old := ix.families[kind][key]
	i := sort.Search(len(old), func(i int) bool { return !old[i].before(p) })
	if i < len(old) && old[i].id == p.id {
		return
	}
	list := make([]posting, 0, len(old)+1)
	list = append(list, old[:i]...)
	list = append(list, p)
	list = append(list, old[i:]...)
	ix.families[kind][key] = list
}

// Touched returns the keys an entry is registered under, per family
func Touched(e *model.Entry) map[Kind][]string {
	return map[Kind][]string{
		KindTopic:   e.Topics,
		KindSpeaker: e.Speakers,
		KindMonth:   {e.Month()},
	}
}

func ids(list []posting) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.id
	}
	return out
}

// Lookup returns the date-ordered ids under a key, or nil
func (ix *Index) Lookup(kind Kind, key string) []string {
	return ids(ix.families[kind][key])
}

// Has reports whether any entry is registered under the key
func (ix *Index) Has(kind Kind, key string) bool {
	return len(ix.families[kind][key]) > 0
}

// EntriesForTopic returns entry ids declaring the topic, ordered by date
func (ix *Index) EntriesForTopic(topic string) []string {
	return ix.Lookup(KindTopic, model.NormalizeKey(topic))
}

// EntriesForSpeaker returns entry ids declaring the speaker, ordered by date
func (ix *Index) EntriesForSpeaker(speaker string) []string {
	return ix.Lookup(KindSpeaker, model.NormalizeKey(speaker))
}

// EntriesNear returns the ids whose date lies inside the window around date,
// ordered by date. Only the month buckets overlapping the window are scanned.
func (ix *Index) EntriesNear(date time.Time, w model.Window) []string {
	lo, hi := w.Bounds(date)
	var out []string
	for m := monthStart(lo); !m.After(hi); m = m.AddDate(0, 1, 0) {
		for _, p := range ix.families[KindMonth][m.Format(model.MonthLayout)] {
			if !p.date.Before(lo) && !p.date.After(hi) {
				out = append(out, p.id)
			}
		}
	}
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// KeyCount is an index key with the number of entries under it
type KeyCount struct {
	Key     string `json:"key"`
	Entries int    `json:"entries"`
}

// Keys lists every key of a family, sorted
func (ix *Index) Keys(kind Kind) []KeyCount {
	fam := ix.families[kind]
	out := make([]KeyCount, 0, len(fam))
	for k, list := range fam {
		if len(list) > 0 {
			out = append(out, KeyCount{Key: k, Entries: len(list)})
		}
	}
	slices.SortFunc(out, func(a, b KeyCount) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Suggest returns keys of the family containing the query as a substring
func (ix *Index) Suggest(kind Kind, query string) []string {
	q := model.NormalizeKey(query)
	if q == "" {
		return nil
	}
	var out []string
	for _, kc := range ix.Keys(kind) {
		if strings.Contains(kc.Key, q) || strings.Contains(q, kc.Key) {
			out = append(out, kc.Key)
		}
	}
	return out
}

// Record is the persisted form of one posting list
type Record struct {
	Kind Kind     `json:"kind"`
	Key  string   `json:"key"`
	IDs  []string `json:"ids"`
}

// StorageKey is the record's key in the persisted layout
func (r Record) StorageKey() string {
	return "idx/" + string(r.Kind) + "/" + r.Key
}

// ParseStorageKey splits a persisted index key into family and key
func ParseStorageKey(k string) (Kind, string, error) {
	rest, ok := strings.CutPrefix(k, "idx/")
	if !ok {
		return "", "", fmt.Errorf("not an index key: %q", k)
	}
	kind, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", "", fmt.Errorf("malformed index key: %q", k)
	}
	switch Kind(kind) {
	case KindTopic, KindSpeaker, KindMonth:
		return Kind(kind), key, nil
	default:
		return "", "", fmt.Errorf("unknown index family %q", kind)
	}
}

// Record returns the persisted form of one key
func (ix *Index) Record(kind Kind, key string) Record {
	return Record{Kind: kind, Key: key, IDs: ix.Lookup(kind, key)}
}

// Records returns every non-empty posting list in family, then key order
func (ix *Index) Records() []Record {
	var out []Record
	for _, kind := range Kinds {
		for _, kc := range ix.Keys(kind) {
			out = append(out, ix.Record(kind, kc.Key))
		}
	}
	return out
}

// Encode renders the whole index deterministically. Two indices holding
// the same postings encode to identical bytes.
func (ix *Index) Encode() []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range ix.Records() {
		// Records only hold strings; encoding cannot fail
		_ = enc.Encode(r)
	}
	return buf.Bytes()
}

// Equal reports whether two indices hold the same postings
func (ix *Index) Equal(other *Index) bool {
	return bytes.Equal(ix.Encode(), other.Encode())
}

// Diff describes the keys whose posting lists differ
func (ix *Index) Diff(other *Index) []string {
	var out []string
	for _, kind := range Kinds {
		seen := make(map[string]bool)
		for k := range ix.families[kind] {
			seen[k] = true
		}
		for k := range other.families[kind] {
			seen[k] = true
		}
		keys := slices.Sorted(maps.Keys(seen))
		for _, k := range keys {
			a, b := ix.Lookup(kind, k), other.Lookup(kind, k)
			if !slices.Equal(a, b) {
				out = append(out, fmt.Sprintf("%s %q: %v != %v", kind, k, a, b))
			}
		}
	}
	return out
}

// IDs returns every distinct id referenced by any posting list
func (ix *Index) IDs() map[string]struct{} {
	out := make(map[string]struct{})
	for _, fam := range ix.families {
		for _, list := range fam {
			for _, p := range list {
				out[p.id] = struct{}{}
			}
		}
	}
	return out
}

// FromRecords loads persisted posting lists. dateOf resolves ids to dates;
// ids it cannot resolve are kept with a zero date so that verification can
// report them instead of hiding them.
func FromRecords(records []Record, dateOf func(id string) (time.Time, bool)) *Index {
	ix := New()
	for _, r := range records {
		fam, ok := ix.families[r.Kind]
		if !ok {
			continue
		}
		list := make([]posting, 0, len(r.IDs))
		for _, id := range r.IDs {
			d, _ := dateOf(id)
			list = append(list, posting{id: id, date: d})
		}
		slices.SortStableFunc(list, func(a, b posting) int {
			switch {
			case a.before(b):
				return -1
			case b.before(a):
				return 1
			default:
				return 0
			}
		})
		fam[r.Key] = list
	}
	return ix
}
