package model

import (
	"slices"
	"time"
)

// DateLayout is the calendar date format used on the wire and in keys
const DateLayout = "2006-01-02"

// MonthLayout is the layout of time-bucket keys
const MonthLayout = "2006-01"

// Entry is one ingested unit of claims from a single source and date.
// Fields never change after creation; relationships are stored beside it.
type Entry struct {
	ID          string    `json:"id"`
	Seq         uint64    `json:"seq"`                 // Commit sequence, monotonic per store
	Date        time.Time `json:"date"`                // Calendar date, UTC midnight
	Source      string    `json:"source"`              // Opaque source descriptor
	ContentType string    `json:"content_type"`        // e.g. podcast, article, video
	Claims      []Claim   `json:"claims"`              // Ordered, non-empty
	Topics      []string  `json:"topics"`              // Normalized, sorted, non-empty
	Speakers    []string  `json:"speakers"`            // Normalized, sorted, non-empty
	Updates     string    `json:"updates,omitempty"`   // Back-reference to an earlier entry
	Fingerprint string    `json:"fingerprint"`         // Hash of (source, date, claim set)
	CreatedAt   time.Time `json:"created_at"`          // When the entry was committed
}

// Claim returns the claim with the given local id
func (e *Entry) Claim(id string) (Claim, bool) {
	for _, c := range e.Claims {
		if c.ID == id {
			return c, true
		}
	}
	return Claim{}, false
}

// Ref builds the global reference of one of the entry's claims
func (e *Entry) Ref(c Claim) ClaimRef {
	return ClaimRef{EntryID: e.ID, ClaimID: c.ID}
}

// HasTopic reports whether the entry declares the normalized topic
func (e *Entry) HasTopic(key string) bool {
	_, found := slices.BinarySearch(e.Topics, key)
	return found
}

// HasSpeaker reports whether the entry declares the normalized speaker
func (e *Entry) HasSpeaker(key string) bool {
	_, found := slices.BinarySearch(e.Speakers, key)
	return found
}

// Month returns the entry's year-month bucket key
func (e *Entry) Month() string {
	return e.Date.Format(MonthLayout)
}

// Before orders entries by date, then id. Every date-ordered list in the
// store uses this order so that results are deterministic.
func (e *Entry) Before(other *Entry) bool {
	if !e.Date.Equal(other.Date) {
		return e.Date.Before(other.Date)
	}
	return e.ID < other.ID
}

// Candidate is the input record produced by the claim-extraction collaborator
type Candidate struct {
	Source         string           `json:"source" yaml:"source" validate:"required,notblank"`
	Date           string           `json:"date" yaml:"date" validate:"required,calendar_date"`
	ContentType    string           `json:"content_type" yaml:"content_type" validate:"required,notblank"`
	Claims         []CandidateClaim `json:"claims" yaml:"claims" validate:"required,min=1,dive"`
	Topics         []string         `json:"topics" yaml:"topics" validate:"required,min=1,dive,required,notblank"`
	Speakers       []string         `json:"speakers" yaml:"speakers" validate:"required,min=1,dive,required,notblank"`
	UpdatesEntryID string           `json:"updates_entry_id,omitempty" yaml:"updates_entry_id,omitempty"`
}

// CandidateClaim is a claim as submitted, before ids are assigned
type CandidateClaim struct {
	Kind       string `json:"kind" yaml:"kind" validate:"required,claim_kind"`
	Text       string `json:"text" yaml:"text" validate:"required,notblank"`
	Confidence string `json:"confidence,omitempty" yaml:"confidence,omitempty" validate:"omitempty,oneof=high medium low"`
	Timestamp  string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Subject    string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Polarity   string `json:"polarity,omitempty" yaml:"polarity,omitempty" validate:"omitempty,oneof=positive negative"`
}
