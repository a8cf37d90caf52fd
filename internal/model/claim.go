package model

import (
	"fmt"
	"strings"
	"time"
)

// Claim is one discrete assertion inside an Entry
type Claim struct {
	ID         string     `json:"id"`                   // Local id, unique within the entry (c1, c2, ...)
	Kind       ClaimKind  `json:"kind"`                 // prediction, factual, opinion, recommendation
	Text       string     `json:"text"`                 // The claim text itself
	Confidence Confidence `json:"confidence,omitempty"` // high, medium, low or absent
	Timestamp  string     `json:"timestamp,omitempty"`  // Position within the source (e.g. "00:14:32")
	Subject    string     `json:"subject,omitempty"`    // Caller-declared subject key
	Polarity   Polarity   `json:"polarity,omitempty"`   // Caller-declared polarity
}

// ClaimKind categorizes the nature of the claim
type ClaimKind string

const (
	KindPrediction     ClaimKind = "prediction"
	KindFactual        ClaimKind = "factual"
	KindOpinion        ClaimKind = "opinion"
	KindRecommendation ClaimKind = "recommendation"
)

// ClaimKinds lists every valid kind in display order
var ClaimKinds = []ClaimKind{KindPrediction, KindFactual, KindOpinion, KindRecommendation}

// ParseClaimKind accepts the canonical kinds plus "data", which older
// knowledge entries used for factual claims.
func ParseClaimKind(s string) (ClaimKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prediction":
		return KindPrediction, nil
	case "factual", "fact", "data":
		return KindFactual, nil
	case "opinion":
		return KindOpinion, nil
	case "recommendation":
		return KindRecommendation, nil
	default:
		return "", fmt.Errorf("unknown claim kind %q", s)
	}
}

// Confidence is the speaker's stated certainty
type Confidence string

const (
	ConfidenceNone   Confidence = ""
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Polarity is the declared or derived direction of a claim
type Polarity string

const (
	PolarityUnset    Polarity = ""
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// Opposite returns the other polarity. Unset counts as positive.
func (p Polarity) Opposite() Polarity {
	if p == PolarityNegative {
		return PolarityPositive
	}
	return PolarityNegative
}

// ClaimRef addresses a claim globally: entry id plus local claim id
type ClaimRef struct {
	EntryID string `json:"entry_id"`
	ClaimID string `json:"claim_id"`
}

// String renders the ref as "<entry>#<claim>"
func (r ClaimRef) String() string {
	return r.EntryID + "#" + r.ClaimID
}

// IsZero reports whether the ref is empty
func (r ClaimRef) IsZero() bool {
	return r.EntryID == "" && r.ClaimID == ""
}

// ParseClaimRef parses the "<entry>#<claim>" form
func ParseClaimRef(s string) (ClaimRef, error) {
	entryID, claimID, ok := strings.Cut(strings.TrimSpace(s), "#")
	if !ok || entryID == "" || claimID == "" {
		return ClaimRef{}, fmt.Errorf("invalid claim reference %q (want <entry-id>#<claim-id>)", s)
	}
	return ClaimRef{EntryID: entryID, ClaimID: claimID}, nil
}

// ClaimPoint is a claim located in time, used by timelines and query results
type ClaimPoint struct {
	Ref   ClaimRef  `json:"ref"`
	Date  time.Time `json:"date"`
	Claim Claim     `json:"claim"`
}
