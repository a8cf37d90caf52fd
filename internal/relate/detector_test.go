package relate

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/model"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type entrySet map[string]*model.Entry

func (s entrySet) Entry(id string) (*model.Entry, bool) {
	e, ok := s[id]
	return e, ok
}

func newEntry(id, day string, texts ...string) *model.Entry {
	d, err := model.ParseDate(day)
	if err != nil {
		panic(err)
	}
	e := &model.Entry{
		ID:       id,
		Date:     d,
		Topics:   []string{"housing"},
		Speakers: []string{"s"},
	}
	for i, text := range texts {
		e.Claims = append(e.Claims, model.Claim{
			ID:   "c" + string(rune('1'+i)),
			Kind: model.KindPrediction,
			Text: text,
		})
	}
	return e
}

func newDetector(t *testing.T, mutate func(*model.DetectorConfig)) *Detector {
	t.Helper()
	cfg := model.DefaultConfig().Detector
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return d
}

func build(entries ...*model.Entry) (*index.Index, entrySet) {
	set := make(entrySet)
	for _, e := range entries {
		set[e.ID] = e
	}
	return index.Build(slices.Values(entries)), set
}

func TestNew_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.DetectorConfig)
	}{
		{"unknown fanout", func(c *model.DetectorConfig) { c.Fanout = "newest" }},
		{"unknown kind key", func(c *model.DetectorConfig) { c.Compatibility = map[string][]string{"rumor": {"opinion"}} }},
		{"unknown kind value", func(c *model.DetectorConfig) { c.Compatibility = map[string][]string{"opinion": {"rumor"}} }},
		{"negative window", func(c *model.DetectorConfig) { c.Window = model.Window{Months: -1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultConfig().Detector
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	d, err := New(model.DetectorConfig{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultWindow, d.Window())
	assert.True(t, d.Compatible(model.KindPrediction, model.KindOpinion))
	assert.False(t, d.Compatible(model.KindRecommendation, model.KindFactual))
}

func TestLexicon_Polarity(t *testing.T) {
	lex := NewLexicon([]string{"not", "never"}, []string{"rise"}, []string{"fall"})

	tests := []struct {
		name  string
		claim model.Claim
		want  model.Polarity
	}{
		{"plain", model.Claim{Text: "prices will rise"}, model.PolarityPositive},
		{"negative term", model.Claim{Text: "prices will fall"}, model.PolarityNegative},
		{"negated", model.Claim{Text: "prices will not rise"}, model.PolarityNegative},
		{"double flip", model.Claim{Text: "prices will not fall"}, model.PolarityPositive},
		{"declared wins", model.Claim{Text: "prices will rise", Polarity: model.PolarityNegative}, model.PolarityNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lex.Polarity(tt.claim); got != tt.want {
				t.Errorf("Polarity(%q) = %s, want %s", tt.claim.Text, got, tt.want)
			}
		})
	}
}

func TestLexicon_Subject(t *testing.T) {
	lex := NewLexicon([]string{"not"}, []string{"rise"}, []string{"fall"})

	assert.Equal(t, "prices will", lex.Subject(model.Claim{Text: "Prices will rise."}))
	assert.Equal(t, "prices will", lex.Subject(model.Claim{Text: "prices will NOT fall"}))
	assert.Equal(t, "home prices", lex.Subject(model.Claim{Text: "anything", Subject: " Home  Prices "}))
}

func TestExtendsText(t *testing.T) {
	tests := []struct {
		newText, oldText string
		want             bool
	}{
		{"prices will rise sharply", "prices will rise", true},
		{"in 2026 prices will rise", "prices will rise", true},
		{"prices will rise", "prices will rise", false},
		{"prices will rise.", "prices will rise", false},
		{"prices will rise", "prices will rise sharply", false},
		{"rates will fall", "prices will rise", false},
		{"rates will cutback", "rates will cut", false},
		{"the price is right", "the pri", false},
		{"rates will cut back", "rates will cut", true},
	}
	for _, tt := range tests {
		if got := extendsText(tt.newText, tt.oldText); got != tt.want {
			t.Errorf("extendsText(%q, %q) = %v, want %v", tt.newText, tt.oldText, got, tt.want)
		}
	}
}

func TestClassify_Precedence(t *testing.T) {
	d := newDetector(t, nil)
	old := newEntry("old", "2025-01-01", "prices will rise")
	oc := old.Claims[0]

	tests := []struct {
		name    string
		claim   model.Claim
		updates string
		want    model.RelationKind
		ok      bool
	}{
		{"equal text confirms", model.Claim{Kind: model.KindPrediction, Text: "Prices  will rise."}, "", model.RelConfirms, true},
		{"confirm beats update", model.Claim{Kind: model.KindPrediction, Text: "prices will rise"}, "old", model.RelConfirms, true},
		{"opposite polarity contradicts", model.Claim{Kind: model.KindPrediction, Text: "prices will fall"}, "", model.RelContradicts, true},
		{"declared polarity contradicts", model.Claim{Kind: model.KindPrediction, Text: "prices will rise", Polarity: model.PolarityNegative}, "", model.RelContradicts, true},
		{"prefix extends", model.Claim{Kind: model.KindPrediction, Text: "prices will rise sharply"}, "", model.RelExtends, true},
		{"back-reference updates", model.Claim{Kind: model.KindPrediction, Text: "rates will stay flat"}, "old", model.RelUpdates, true},
		{"unrelated", model.Claim{Kind: model.KindPrediction, Text: "rates will stay flat"}, "", "", false},
		{"incompatible kinds", model.Claim{Kind: model.KindFactual, Text: "prices will rise"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := newEntry("new", "2025-02-01")
			ne.Updates = tt.updates
			got, ok := d.Classify(ne, tt.claim, old, oc)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_ExtendsRequiresSameDeclaredSubject(t *testing.T) {
	d := newDetector(t, nil)
	old := newEntry("old", "2025-01-01")
	oc := model.Claim{ID: "c1", Kind: model.KindPrediction, Text: "prices will rise", Subject: "rent"}
	nc := model.Claim{ID: "c1", Kind: model.KindPrediction, Text: "prices will rise sharply", Subject: "sales"}

	_, ok := d.Classify(newEntry("new", "2025-02-01"), nc, old, oc)
	assert.False(t, ok)

	nc.Subject = "rent"
	kind, ok := d.Classify(newEntry("new", "2025-02-01"), nc, old, oc)
	assert.True(t, ok)
	assert.Equal(t, model.RelExtends, kind)
}

func TestCandidates_WindowAndOverlap(t *testing.T) {
	d := newDetector(t, nil)

	e1 := newEntry("e1", "2025-01-01", "prices will rise")
	e2 := newEntry("e2", "2025-06-01", "prices will rise")
	other := newEntry("x", "2025-07-01", "prices will rise")
	other.Topics, other.Speakers = []string{"crypto"}, []string{"t"}
	e3 := newEntry("e3", "2025-09-01", "prices will fall")
	ix, set := build(e1, e2, other, e3)

	got := d.Candidates(e3, ix, set)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"e2"}, ids, "e1 is outside the window, x shares nothing, e3 is itself")
}

func TestCandidates_BackReferenceOutsideWindow(t *testing.T) {
	d := newDetector(t, nil)

	e1 := newEntry("e1", "2020-01-01", "prices will rise")
	e2 := newEntry("e2", "2025-06-01", "retracting")
	e2.Updates = "e1"
	ix, set := build(e1, e2)

	got := d.Candidates(e2, ix, set)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)

	rels := d.Detect(e2, ix, set)
	require.Len(t, rels, 1)
	assert.Equal(t, model.RelUpdates, rels[0].Kind)
}

func TestDetect_ConfirmationScenario(t *testing.T) {
	d := newDetector(t, nil)
	e1 := newEntry("e1", "2025-01-01", "prices will rise")
	e2 := newEntry("e2", "2025-06-01", "prices will rise")
	ix, set := build(e1, e2)

	rels := d.Detect(e2, ix, set)
	require.Len(t, rels, 1)
	assert.Equal(t, model.Relationship{
		From:       model.ClaimRef{EntryID: "e2", ClaimID: "c1"},
		Kind:       model.RelConfirms,
		To:         model.ClaimRef{EntryID: "e1", ClaimID: "c1"},
		DetectedAt: fixedNow,
	}, rels[0])
}

func TestDetect_ContradictionScenario(t *testing.T) {
	d := newDetector(t, nil)
	e1 := newEntry("e1", "2025-01-01", "prices will rise")
	e2 := newEntry("e2", "2025-06-01", "prices will rise")
	e3 := newEntry("e3", "2025-09-01", "prices will fall")
	e3.Claims[0].Polarity = model.PolarityNegative
	ix, set := build(e1, e2, e3)

	rels := d.Detect(e3, ix, set)
	require.Len(t, rels, 1)
	assert.Equal(t, model.RelContradicts, rels[0].Kind)
	assert.Equal(t, "e2", rels[0].To.EntryID)
}

func TestDetect_Fanout(t *testing.T) {
	entries := []*model.Entry{
		newEntry("a", "2025-01-01", "prices will rise"),
		newEntry("b", "2025-02-01", "prices will rise"),
		newEntry("c", "2025-03-01", "prices will rise"),
	}
	ne := newEntry("n", "2025-04-01", "prices will rise")
	ix, set := build(append(entries, ne)...)

	earliest := newDetector(t, nil).Detect(ne, ix, set)
	require.Len(t, earliest, 1)
	assert.Equal(t, "a", earliest[0].To.EntryID)

	all := newDetector(t, func(c *model.DetectorConfig) { c.Fanout = "all" }).Detect(ne, ix, set)
	require.Len(t, all, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, all[i].To.EntryID)
	}
}

func TestDetect_NoCandidates(t *testing.T) {
	d := newDetector(t, nil)
	e := newEntry("solo", "2025-01-01", "prices will rise")
	ix, set := build(e)
	assert.Empty(t, d.Detect(e, ix, set))
}
