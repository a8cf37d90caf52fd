// Package relate classifies structural relationships between the claims of a
// new entry and the claims of overlapping prior entries.
package relate

import (
	"fmt"
	"slices"
	"time"

	"github.com/ppiankov/claimstore/internal/model"
)

// Fanout controls how many candidate claims one new claim may relate to
type Fanout string

const (
	// FanoutEarliest keeps, per new claim and kind, only the earliest match
	FanoutEarliest Fanout = "earliest"
	// FanoutAll keeps every match
	FanoutAll Fanout = "all"
)

// ParseFanout accepts "earliest" (also the empty string) and "all"
func ParseFanout(s string) (Fanout, error) {
	switch s {
	case "", string(FanoutEarliest):
		return FanoutEarliest, nil
	case string(FanoutAll):
		return FanoutAll, nil
	default:
		return "", fmt.Errorf("unknown fanout %q (want earliest or all)", s)
	}
}

// Index is the part of the index manager the detector reads
type Index interface {
	EntriesForTopic(topic string) []string
	EntriesForSpeaker(speaker string) []string
	EntriesNear(date time.Time, w model.Window) []string
}

// Entries resolves entry ids against the state being committed
type Entries interface {
	Entry(id string) (*model.Entry, bool)
}

// Detector finds relationships for newly created entries
type Detector struct {
	window  model.Window
	fanout  Fanout
	compat  map[model.ClaimKind]map[model.ClaimKind]bool
	lexicon *Lexicon
	now     func() time.Time
}

// Option configures a Detector
type Option func(*Detector)

// WithClock overrides the clock used for detection timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// New builds a detector from the detector section of the config
func New(cfg model.DetectorConfig, opts ...Option) (*Detector, error) {
	fanout, err := ParseFanout(cfg.Fanout)
	if err != nil {
		return nil, err
	}

	table := cfg.Compatibility
	if len(table) == 0 {
		table = model.DefaultCompatibility()
	}
	compat := make(map[model.ClaimKind]map[model.ClaimKind]bool, len(table))
	for from, tos := range table {
		fk, err := model.ParseClaimKind(from)
		if err != nil {
			return nil, fmt.Errorf("compatibility table: %w", err)
		}
		if compat[fk] == nil {
			compat[fk] = make(map[model.ClaimKind]bool)
		}
		for _, to := range tos {
			tk, err := model.ParseClaimKind(to)
			if err != nil {
				return nil, fmt.Errorf("compatibility table %s: %w", from, err)
			}
			compat[fk][tk] = true
		}
	}

	window := cfg.Window
	if window.IsZero() {
		window = model.DefaultWindow
	}
	if window.Months < 0 || window.Days < 0 {
		return nil, fmt.Errorf("window must not be negative: %+v", window)
	}

	d := &Detector{
		window:  window,
		fanout:  fanout,
		compat:  compat,
		lexicon: NewLexicon(cfg.NegationMarkers, cfg.PositiveTerms, cfg.NegativeTerms),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Window returns the temporal proximity window in use
func (d *Detector) Window() model.Window {
	return d.window
}

// Lexicon returns the word lists used for derived polarity and subjects
func (d *Detector) Lexicon() *Lexicon {
	return d.lexicon
}

// Compatible reports whether a new claim of kind a is compared against a
// prior claim of kind b.
func (d *Detector) Compatible(a, b model.ClaimKind) bool {
	return d.compat[a][b]
}

// Candidates returns the entries a new entry is compared against, ordered by
// date then id: entries sharing a topic or speaker inside the window, plus
// the entry it back-references.
func (d *Detector) Candidates(e *model.Entry, ix Index, entries Entries) []*model.Entry {
	overlap := make(map[string]bool)
	for _, t := range e.Topics {
		for _, id := range ix.EntriesForTopic(t) {
			overlap[id] = true
		}
	}
	for _, s := range e.Speakers {
		for _, id := range ix.EntriesForSpeaker(s) {
			overlap[id] = true
		}
	}

	picked := make(map[string]bool)
	var out []*model.Entry
	add := func(id string) {
		if id == e.ID || picked[id] {
			return
		}
		if c, ok := entries.Entry(id); ok {
			picked[id] = true
			out = append(out, c)
		}
	}
	for _, id := range ix.EntriesNear(e.Date, d.window) {
		if overlap[id] {
			add(id)
		}
	}
	if e.Updates != "" {
		add(e.Updates)
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
	return out
}

// Classify applies the rules in precedence order to one claim pair and
// returns the kind of the edge from the new claim to the prior one.
func (d *Detector) Classify(newEntry *model.Entry, newClaim model.Claim, oldEntry *model.Entry, oldClaim model.Claim) (model.RelationKind, bool) {
	if !d.Compatible(newClaim.Kind, oldClaim.Kind) {
		return "", false
	}

	pNew, pOld := d.lexicon.Polarity(newClaim), d.lexicon.Polarity(oldClaim)
	sNew, sOld := d.lexicon.Subject(newClaim), d.lexicon.Subject(oldClaim)

	if model.NormalizeText(newClaim.Text) == model.NormalizeText(oldClaim.Text) && pNew == pOld {
		return model.RelConfirms, true
	}
	if sNew != "" && sNew == sOld && pNew != pOld {
		return model.RelContradicts, true
	}
	if extendsText(newClaim.Text, oldClaim.Text) && (!declaredSubjects(newClaim, oldClaim) || sNew == sOld) {
		return model.RelExtends, true
	}
	if newEntry.Updates != "" && newEntry.Updates == oldEntry.ID {
		return model.RelUpdates, true
	}
	return "", false
}

// Detect classifies every claim pair between e and its candidates. Edges
// point from the new claim to the candidate claim and are returned in new
// claim order, then candidate order.
func (d *Detector) Detect(e *model.Entry, ix Index, entries Entries) []model.Relationship {
	candidates := d.Candidates(e, ix, entries)
	if len(candidates) == 0 {
		return nil
	}

	at := d.now().UTC()
	var out []model.Relationship
	for _, nc := range e.Claims {
		taken := make(map[model.RelationKind]bool)
		for _, cand := range candidates {
			for _, oc := range cand.Claims {
				kind, ok := d.Classify(e, nc, cand, oc)
				if !ok {
					continue
				}
				if d.fanout == FanoutEarliest && taken[kind] {
					continue
				}
				taken[kind] = true
				out = append(out, model.Relationship{
					From:       e.Ref(nc),
					Kind:       kind,
					To:         cand.Ref(oc),
					DetectedAt: at,
				})
			}
		}
	}
	return out
}
