package model

// Score is the transparent consistency breakdown of one speaker timeline
type Score struct {
	Index      int           `json:"index"`      // Consistency index (0-100)
	Confidence string        `json:"confidence"` // "low", "medium", "high"
	Conflict   bool          `json:"conflict"`   // Whether the speaker contradicted themselves
	Counts     map[Label]int `json:"counts"`     // Annotated steps per label
	Signals    []Signal      `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalLinkage       SignalType = "linkage"       // Share of steps connected to their predecessor
	SignalReversal      SignalType = "reversal"      // Contradictions between consecutive claims
	SignalReaffirmation SignalType = "reaffirmation" // Confirmations of earlier positions
	SignalRevision      SignalType = "revision"      // Explicit updates or retractions
	SignalSparse        SignalType = "sparse"        // Too few claims to judge
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
