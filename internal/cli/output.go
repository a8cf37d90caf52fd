package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/claimstore/internal/index"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/pipeline"
	"github.com/ppiankov/claimstore/internal/query"
	"github.com/ppiankov/claimstore/internal/store"
)

const rule = "═══════════════════════════════════════════════════════════"

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func banner(w io.Writer, title string) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

func renderEntry(w io.Writer, e *model.Entry) {
	fmt.Fprintf(w, "%s  %s  %s\n", e.Date.Format(model.DateLayout), e.ID, e.Source)
	fmt.Fprintf(w, "  speakers: %s | topics: %s | %s\n",
		strings.Join(e.Speakers, ", "), strings.Join(e.Topics, ", "), e.ContentType)
	if e.Updates != "" {
		fmt.Fprintf(w, "  updates: %s\n", e.Updates)
	}
	for _, c := range e.Claims {
		fmt.Fprintf(w, "  [%s] %-14s %s%s\n", c.ID, c.Kind, c.Text, claimNotes(c))
	}
}

func claimNotes(c model.Claim) string {
	var notes []string
	if c.Confidence != model.ConfidenceNone {
		notes = append(notes, "confidence "+string(c.Confidence))
	}
	if c.Polarity != model.PolarityUnset {
		notes = append(notes, string(c.Polarity))
	}
	if c.Subject != "" {
		notes = append(notes, "subject "+c.Subject)
	}
	if c.Timestamp != "" {
		notes = append(notes, "@"+c.Timestamp)
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ", ") + ")"
}

func renderEntries(w io.Writer, entries []*model.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching entries.")
		return
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderEntry(w, e)
	}
	fmt.Fprintf(w, "\n%d entr%s\n", len(entries), plural(len(entries), "y", "ies"))
}

func renderViews(w io.Writer, entryID string, views []model.EdgeView) {
	if len(views) == 0 {
		fmt.Fprintf(w, "No relationships for %s.\n", entryID)
		return
	}
	for _, v := range views {
		fmt.Fprintf(w, "%-5s %-16s %s  (%s)\n",
			v.Claim.ClaimID, v.Label, v.Other, v.DetectedAt.Format(model.DateLayout))
	}
}

func renderEvolution(w io.Writer, ev *query.Evolution) {
	banner(w, fmt.Sprintf("Evolution: %s on %s", ev.Speaker, ev.Topic))
	if len(ev.Points) == 0 {
		fmt.Fprintln(w, "No claims by this speaker on this topic.")
		return
	}
	for _, p := range ev.Points {
		relation := "·"
		if p.Relation != "" {
			relation = string(p.Relation)
		}
		fmt.Fprintf(w, "%s  %-16s %s\n", p.Date.Format(model.DateLayout), relation, p.Claim.Text)
		fmt.Fprintf(w, "            %s\n", p.Ref)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Consistency index: %d/100 (confidence %s)\n", ev.Score.Index, ev.Score.Confidence)
	if ev.Score.Conflict {
		fmt.Fprintln(w, "⚠ The speaker contradicted an earlier position")
	}
	for _, s := range ev.Score.Signals {
		fmt.Fprintf(w, "  %s %-13s %s\n", severityMark(s.Severity), s.Type, s.Description)
	}
}

func severityMark(s model.SignalSeverity) string {
	switch s {
	case model.SeverityCritical:
		return "✗"
	case model.SeverityWarning:
		return "⚠"
	default:
		return "✓"
	}
}

func renderKeyCounts(w io.Writer, label string, keys []index.KeyCount) {
	if len(keys) == 0 {
		fmt.Fprintf(w, "No %s yet.\n", label)
		return
	}
	for _, k := range keys {
		fmt.Fprintf(w, "%6d  %s\n", k.Entries, k.Key)
	}
	fmt.Fprintf(w, "\n%d %s\n", len(keys), label)
}

func renderIngest(w io.Writer, res *store.IngestResult) {
	if res.Duplicate {
		fmt.Fprintf(w, "= Already stored as %s\n", res.Entry.ID)
		return
	}
	fmt.Fprintf(w, "✓ Stored %s\n", res.Entry.ID)
	for _, rel := range res.Relationships {
		fmt.Fprintf(w, "  %s %s %s\n", rel.From, rel.Kind, rel.To)
	}
}

func renderSummary(w io.Writer, sum *pipeline.Summary) {
	for _, o := range sum.Outcomes {
		switch o.Status {
		case pipeline.StatusCreated:
			fmt.Fprintf(w, "✓ %s  %s  %s", o.Date, o.EntryID, o.Source)
			if o.Relationships > 0 {
				fmt.Fprintf(w, "  (+%d relationship%s)", o.Relationships, plural(o.Relationships, "", "s"))
			}
			fmt.Fprintln(w)
		case pipeline.StatusDuplicate:
			fmt.Fprintf(w, "= %s  %s  %s (duplicate)\n", o.Date, o.EntryID, o.Source)
		case pipeline.StatusRejected:
			fmt.Fprintf(w, "✗ %s #%d: %s\n", o.Path, o.Position, o.Error)
		case pipeline.StatusFailed:
			fmt.Fprintf(w, "✗ %s: %s\n", o.Path, o.Error)
		}
	}

	fmt.Fprintln(w)
	banner(w, "Ingestion Summary")
	fmt.Fprintf(w, "  Files:          %d\n", sum.Files)
	fmt.Fprintf(w, "  Candidates:     %d\n", sum.Candidates)
	fmt.Fprintf(w, "  Created:        %d\n", sum.Created)
	fmt.Fprintf(w, "  Duplicates:     %d\n", sum.Duplicates)
	fmt.Fprintf(w, "  Rejected:       %d\n", sum.Rejected)
	fmt.Fprintf(w, "  Unreadable:     %d\n", sum.Failed)
	fmt.Fprintf(w, "  Relationships:  %d\n", sum.Relationships)
	fmt.Fprintf(w, "  Duration:       %v\n", sum.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
}

func renderRebuild(w io.Writer, r *store.RebuildReport) {
	banner(w, "Index Rebuild")
	fmt.Fprintf(w, "  Entries:    %d\n", r.Entries)
	fmt.Fprintf(w, "  Keys:       %d\n", r.Keys)
	fmt.Fprintf(w, "  Replayed:   %d\n", r.Replayed)
	fmt.Fprintf(w, "  Timelines:  %d\n", r.Timelines)
	fmt.Fprintf(w, "  Duration:   %v\n", r.Duration.Round(time.Millisecond))
	if len(r.Repaired) > 0 {
		fmt.Fprintf(w, "\n  Repaired %d key%s:\n", len(r.Repaired), plural(len(r.Repaired), "", "s"))
		for _, k := range r.Repaired {
			fmt.Fprintf(w, "    %s\n", k)
		}
	}
	fmt.Fprintln(w)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
