package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/timeline"
)

// Scorer summarizes how consistent a speaker's timeline is and explains
// the number with signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// steps tallies the annotated steps of a timeline
type steps struct {
	points     int
	total      int // points after the first
	linked     int
	agreeing   int // confirms, extends and their inverses
	reversals  int // contradicts and its inverse
	revisions  int // updates and its inverse
	counts     map[model.Label]int
	firstDate  string
	latestDate string
}

func tally(tl *timeline.Timeline) steps {
	st := steps{counts: make(map[model.Label]int)}
	if tl == nil || len(tl.Points) == 0 {
		return st
	}
	st.points = len(tl.Points)
	st.total = st.points - 1
	st.firstDate = tl.Points[0].Date.Format(model.DateLayout)
	st.latestDate = tl.Points[len(tl.Points)-1].Date.Format(model.DateLayout)

	for _, p := range tl.Points[1:] {
		if p.Relation == "" {
			continue
		}
		st.linked++
		st.counts[p.Relation]++
		switch p.Relation {
		case model.LabelConfirms, model.LabelConfirmedBy, model.LabelExtends, model.LabelExtendedBy:
			st.agreeing++
		case model.LabelContradicts, model.LabelContradictedBy:
			st.reversals++
		case model.LabelUpdates, model.LabelUpdatedBy:
			st.revisions++
		}
	}
	return st
}

// Calculate scores one timeline
func (s *Scorer) Calculate(tl *timeline.Timeline) model.Score {
	st := tally(tl)
	var signals []model.Signal

	// 1. Linkage (0-40 points)
	linkageScore, linkageSignal := s.calculateLinkage(st)
	signals = append(signals, linkageSignal)

	// 2. Reaffirmation (0-30 points)
	reaffirmScore, reaffirmSignal := s.calculateReaffirmation(st)
	signals = append(signals, reaffirmSignal)

	// 3. Stability (0-30 points)
	stabilityScore, reversalSignal := s.calculateStability(st)
	if reversalSignal.Type != "" {
		signals = append(signals, reversalSignal)
	}

	// 4. Revisions are reported, not scored
	if st.revisions > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalRevision,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d explicit update(s) of earlier positions", st.revisions),
			Data:        map[string]interface{}{"revisions": st.revisions},
		})
	}

	// 5. Sparse timelines
	if st.total < 2 {
		signals = append(signals, model.Signal{
			Type:        model.SignalSparse,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Only %d claim(s) on this timeline", st.points),
			Data:        map[string]interface{}{"points": st.points},
		})
	}

	totalScore := linkageScore + reaffirmScore + stabilityScore
	conflict := st.reversals > 0
	if conflict {
		totalScore -= 10
		if totalScore < 0 {
			totalScore = 0
		}
	}

	return model.Score{
		Index:      totalScore,
		Confidence: s.determineConfidence(totalScore, st.total, conflict),
		Conflict:   conflict,
		Counts:     st.counts,
		Signals:    signals,
	}
}

// calculateLinkage scores the share of steps connected to their predecessor
func (s *Scorer) calculateLinkage(st steps) (int, model.Signal) {
	if st.total == 0 {
		return 0, model.Signal{
			Type:        model.SignalLinkage,
			Severity:    model.SeverityWarning,
			Description: "No consecutive claims to link",
			Data:        map[string]interface{}{"steps": 0},
		}
	}

	ratio := float64(st.linked) / float64(st.total)
	score := int(math.Round(ratio * 40))

	severity := model.SeverityInfo
	if ratio < 0.25 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalLinkage,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d steps linked to the previous claim", st.linked, st.total),
		Data: map[string]interface{}{
			"steps":   st.total,
			"linked":  st.linked,
			"ratio":   ratio,
			"score":   score,
			"formula": "linked_steps / steps * 40",
			"first":   st.firstDate,
			"latest":  st.latestDate,
		},
	}
}

// calculateReaffirmation scores steps that confirm or extend the previous claim
func (s *Scorer) calculateReaffirmation(st steps) (int, model.Signal) {
	if st.total == 0 {
		return 0, model.Signal{
			Type:        model.SignalReaffirmation,
			Severity:    model.SeverityInfo,
			Description: "No reaffirmations possible",
			Data:        map[string]interface{}{"steps": 0},
		}
	}

	ratio := float64(st.agreeing) / float64(st.total)
	score := int(math.Round(ratio * 30))

	return score, model.Signal{
		Type:        model.SignalReaffirmation,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d step(s) confirm or extend the previous claim", st.agreeing),
		Data: map[string]interface{}{
			"agreeing": st.agreeing,
			"steps":    st.total,
			"score":    score,
			"formula":  "agreeing_steps / steps * 30",
		},
	}
}

// calculateStability scores the absence of reversals. The signal is empty
// when there are none.
func (s *Scorer) calculateStability(st steps) (int, model.Signal) {
	if st.total == 0 {
		return 0, model.Signal{}
	}

	ratio := float64(st.reversals) / float64(st.total)
	score := int(math.Round((1 - ratio) * 30))
	if st.reversals == 0 {
		return score, model.Signal{}
	}

	severity := model.SeverityWarning
	if ratio >= 0.5 {
		severity = model.SeverityCritical
	}

	return score, model.Signal{
		Type:        model.SignalReversal,
		Severity:    severity,
		Description: fmt.Sprintf("Position reversed %d time(s)", st.reversals),
		Data: map[string]interface{}{
			"reversals": st.reversals,
			"steps":     st.total,
			"score":     score,
			"penalty":   10,
			"formula":   "(1 - reversals / steps) * 30",
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, stepCount int, conflict bool) string {
	if conflict {
		return "low-medium"
	}

	if stepCount < 2 {
		return "low"
	}

	if score >= 80 {
		return "high"
	} else if score >= 60 {
		return "medium"
	} else {
		return "low"
	}
}
