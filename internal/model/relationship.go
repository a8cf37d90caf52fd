package model

import (
	"fmt"
	"time"
)

// RelationKind is the type of a stored, directed edge between two claims
type RelationKind string

const (
	RelConfirms    RelationKind = "confirms"
	RelContradicts RelationKind = "contradicts"
	RelExtends     RelationKind = "extends"
	RelUpdates     RelationKind = "updates"
)

// RelationKinds lists the kinds in detection precedence order
var RelationKinds = []RelationKind{RelConfirms, RelContradicts, RelExtends, RelUpdates}

// ParseRelationKind parses a forward relationship kind
func ParseRelationKind(s string) (RelationKind, error) {
	for _, k := range RelationKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown relationship kind %q", s)
}

// Label is how an edge reads from one of its ends: the forward kind from the
// source claim, or the inverse label from the target claim.
type Label string

const (
	LabelConfirms       Label = "confirms"
	LabelContradicts    Label = "contradicts"
	LabelExtends        Label = "extends"
	LabelUpdates        Label = "updates"
	LabelConfirmedBy    Label = "confirmed-by"
	LabelContradictedBy Label = "contradicted-by"
	LabelExtendedBy     Label = "extended-by"
	LabelUpdatedBy      Label = "updated-by"
)

// Forward returns the label seen from the edge's source claim
func (k RelationKind) Forward() Label {
	return Label(k)
}

// Inverse returns the label seen from the edge's target claim
func (k RelationKind) Inverse() Label {
	switch k {
	case RelConfirms:
		return LabelConfirmedBy
	case RelContradicts:
		return LabelContradictedBy
	case RelExtends:
		return LabelExtendedBy
	case RelUpdates:
		return LabelUpdatedBy
	default:
		return Label(string(k) + "-by")
	}
}

// Relationship is a directed, typed edge between two claims.
// Exactly one physical record exists per ordered claim pair.
type Relationship struct {
	From       ClaimRef     `json:"from"`
	Kind       RelationKind `json:"kind"`
	To         ClaimRef     `json:"to"`
	DetectedAt time.Time    `json:"detected_at"`
}

// EdgeView is one end's view of a relationship
type EdgeView struct {
	Claim      ClaimRef  `json:"claim"`       // The claim the view is read from
	Label      Label     `json:"label"`       // Forward kind or inverse label
	Other      ClaimRef  `json:"other"`       // The claim at the other end
	DetectedAt time.Time `json:"detected_at"`
}

// Views returns the forward view (from the source) and the inverse view
// (from the target) of the relationship.
func (r Relationship) Views() (forward EdgeView, inverse EdgeView) {
	forward = EdgeView{Claim: r.From, Label: r.Kind.Forward(), Other: r.To, DetectedAt: r.DetectedAt}
	inverse = EdgeView{Claim: r.To, Label: r.Kind.Inverse(), Other: r.From, DetectedAt: r.DetectedAt}
	return forward, inverse
}

// ViewFrom returns the relationship as read from the given end
func (r Relationship) ViewFrom(ref ClaimRef) (EdgeView, bool) {
	forward, inverse := r.Views()
	switch ref {
	case r.From:
		return forward, true
	case r.To:
		return inverse, true
	default:
		return EdgeView{}, false
	}
}
