package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Housing", "housing"},
		{"  Dave   Meyer ", "dave meyer"},
		{"INTEREST\trates", "interest rates"},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeKeys(t *testing.T) {
	got := NormalizeKeys([]string{"Rates", "housing", " rates ", "", "  "})
	assert.Equal(t, []string{"housing", "rates"}, got)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rates will rise.", "rates will rise"},
		{"Rates  WILL rise!?", "rates will rise"},
		{"no punctuation", "no punctuation"},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens(`Prices "won't" fall, (soon).`)
	assert.Equal(t, []string{"prices", "won't", "fall", "soon"}, got)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-15 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("15/03/2024")
	assert.Error(t, err)
}

func TestWindowBounds(t *testing.T) {
	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	lo, hi := DefaultWindow.Bounds(d)
	assert.Equal(t, time.Date(2023, 9, 15, 0, 0, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC), hi)

	lo, hi = Window{Days: 10}.Bounds(d)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), hi)

	assert.True(t, Window{}.IsZero())
	assert.False(t, DefaultWindow.IsZero())
}

func TestParseClaimKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ClaimKind
		wantErr bool
	}{
		{"prediction", KindPrediction, false},
		{" Opinion ", KindOpinion, false},
		{"data", KindFactual, false},
		{"fact", KindFactual, false},
		{"recommendation", KindRecommendation, false},
		{"rumor", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseClaimKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClaimKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClaimKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPolarityOpposite(t *testing.T) {
	assert.Equal(t, PolarityNegative, PolarityPositive.Opposite())
	assert.Equal(t, PolarityPositive, PolarityNegative.Opposite())
	assert.Equal(t, PolarityNegative, PolarityUnset.Opposite())
}

func TestParseClaimRef(t *testing.T) {
	ref, err := ParseClaimRef("abc#c2")
	require.NoError(t, err)
	assert.Equal(t, ClaimRef{EntryID: "abc", ClaimID: "c2"}, ref)
	assert.Equal(t, "abc#c2", ref.String())
	assert.False(t, ref.IsZero())
	assert.True(t, ClaimRef{}.IsZero())

	for _, bad := range []string{"", "abc", "#c1", "abc#", "#"} {
		if _, err := ParseClaimRef(bad); err == nil {
			t.Errorf("ParseClaimRef(%q) expected error", bad)
		}
	}
}

func TestParseRelationKind(t *testing.T) {
	for _, k := range RelationKinds {
		got, err := ParseRelationKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseRelationKind("confirmed-by")
	assert.Error(t, err, "inverse labels are not stored kinds")
}

func TestRelationKindInverse(t *testing.T) {
	tests := []struct {
		kind RelationKind
		want Label
	}{
		{RelConfirms, LabelConfirmedBy},
		{RelContradicts, LabelContradictedBy},
		{RelExtends, LabelExtendedBy},
		{RelUpdates, LabelUpdatedBy},
	}

	for _, tt := range tests {
		if got := tt.kind.Inverse(); got != tt.want {
			t.Errorf("%s.Inverse() = %q, want %q", tt.kind, got, tt.want)
		}
		if got := tt.kind.Forward(); got != Label(tt.kind) {
			t.Errorf("%s.Forward() = %q", tt.kind, got)
		}
	}
}

func TestRelationshipViews(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rel := Relationship{
		From:       ClaimRef{EntryID: "e2", ClaimID: "c1"},
		Kind:       RelContradicts,
		To:         ClaimRef{EntryID: "e1", ClaimID: "c1"},
		DetectedAt: at,
	}

	forward, inverse := rel.Views()
	assert.Equal(t, EdgeView{Claim: rel.From, Label: LabelContradicts, Other: rel.To, DetectedAt: at}, forward)
	assert.Equal(t, EdgeView{Claim: rel.To, Label: LabelContradictedBy, Other: rel.From, DetectedAt: at}, inverse)

	v, ok := rel.ViewFrom(rel.To)
	require.True(t, ok)
	assert.Equal(t, inverse, v)

	_, ok = rel.ViewFrom(ClaimRef{EntryID: "e3", ClaimID: "c1"})
	assert.False(t, ok)
}

func TestEntryHelpers(t *testing.T) {
	e := &Entry{
		ID:       "e1",
		Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Claims:   []Claim{{ID: "c1", Kind: KindOpinion, Text: "x"}, {ID: "c2", Kind: KindFactual, Text: "y"}},
		Topics:   []string{"housing", "rates"},
		Speakers: []string{"dave meyer"},
	}

	c, ok := e.Claim("c2")
	require.True(t, ok)
	assert.Equal(t, KindFactual, c.Kind)
	_, ok = e.Claim("c9")
	assert.False(t, ok)

	assert.Equal(t, ClaimRef{EntryID: "e1", ClaimID: "c2"}, e.Ref(c))
	assert.True(t, e.HasTopic("rates"))
	assert.False(t, e.HasTopic("stocks"))
	assert.True(t, e.HasSpeaker("dave meyer"))
	assert.Equal(t, "2024-03", e.Month())

	sameDay := &Entry{ID: "e0", Date: e.Date}
	later := &Entry{ID: "a", Date: e.Date.AddDate(0, 0, 1)}
	assert.True(t, sameDay.Before(e), "same date orders by id")
	assert.True(t, e.Before(later))
	assert.False(t, later.Before(e))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "earliest", cfg.Detector.Fanout)
	assert.Equal(t, DefaultWindow, cfg.Detector.Window)
	assert.NotContains(t, cfg.Detector.Compatibility[string(KindRecommendation)], string(KindFactual))
	assert.Positive(t, cfg.Ingest.Workers)

	// Each call returns an independent table
	cfg.Detector.Compatibility[string(KindFactual)] = nil
	assert.NotEmpty(t, DefaultConfig().Detector.Compatibility[string(KindFactual)])
}
