package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/claimstore/internal/model"
)

// entryNamespace scopes the name-based UUIDs of entries
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/claimstore/entry"))

// Fingerprint hashes the identity of a candidate: source, date and the set
// of (kind, normalized text) claims. Claim order, confidence, topics and
// speakers do not contribute.
func Fingerprint(source string, date time.Time, claims []model.Claim) string {
	lines := make([]string, len(claims))
	for i, c := range claims {
		lines[i] = string(c.Kind) + "\x1f" + model.NormalizeText(c.Text)
	}
	slices.Sort(lines)
	lines = slices.Compact(lines)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(source)))
	h.Write([]byte{0})
	h.Write([]byte(date.Format(model.DateLayout)))
	for _, l := range lines {
		h.Write([]byte{0})
		h.Write([]byte(l))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EntryID derives the stable entry id from a fingerprint
func EntryID(fingerprint string) string {
	return uuid.NewSHA1(entryNamespace, []byte(fingerprint)).String()
}

// newEntry converts a validated candidate into an entry. Confidence and
// polarity are already canonical after validation. Seq and CreatedAt are
// assigned at commit.
func newEntry(c *model.Candidate) (*model.Entry, error) {
	date, err := model.ParseDate(c.Date)
	if err != nil {
		return nil, invalid("date", "calendar_date", err.Error())
	}

	claims := make([]model.Claim, len(c.Claims))
	for i, cc := range c.Claims {
		kind, err := model.ParseClaimKind(cc.Kind)
		if err != nil {
			return nil, invalid(fmt.Sprintf("claims[%d].kind", i), "claim_kind", err.Error())
		}
		claims[i] = model.Claim{
			ID:         fmt.Sprintf("c%d", i+1),
			Kind:       kind,
			Text:       strings.TrimSpace(cc.Text),
			Confidence: model.Confidence(cc.Confidence),
			Timestamp:  strings.TrimSpace(cc.Timestamp),
			Subject:    strings.TrimSpace(cc.Subject),
			Polarity:   model.Polarity(cc.Polarity),
		}
	}

	fp := Fingerprint(c.Source, date, claims)
	return &model.Entry{
		ID:          EntryID(fp),
		Date:        date,
		Source:      strings.TrimSpace(c.Source),
		ContentType: strings.TrimSpace(c.ContentType),
		Claims:      claims,
		Topics:      model.NormalizeKeys(c.Topics),
		Speakers:    model.NormalizeKeys(c.Speakers),
		Updates:     c.UpdatesEntryID,
		Fingerprint: fp,
	}, nil
}
