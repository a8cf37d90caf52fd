package relate

import (
	"slices"
	"strings"

	"github.com/ppiankov/claimstore/internal/model"
)

// Lexicon holds the caller-supplied marker words used to read polarity and
// subject off a claim when the caller did not declare them. Nothing here
// interprets meaning: a word either is on a list or it is not.
type Lexicon struct {
	negation map[string]bool
	positive map[string]bool
	negative map[string]bool
}

// NewLexicon builds a lexicon from word lists
func NewLexicon(negation, positive, negative []string) *Lexicon {
	return &Lexicon{
		negation: wordSet(negation),
		positive: wordSet(positive),
		negative: wordSet(negative),
	}
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if k := model.NormalizeKey(w); k != "" {
			set[k] = true
		}
	}
	return set
}

// marker reports whether a token carries polarity
func (l *Lexicon) marker(tok string) bool {
	return l.negation[tok] || l.positive[tok] || l.negative[tok]
}

// Polarity returns the declared polarity, or derives it: each negation
// marker and each negative directional term flips the sign.
func (l *Lexicon) Polarity(c model.Claim) model.Polarity {
	if c.Polarity != model.PolarityUnset {
		return c.Polarity
	}
	positive := true
	for _, tok := range model.Tokens(c.Text) {
		if l.negation[tok] || l.negative[tok] {
			positive = !positive
		}
	}
	if positive {
		return model.PolarityPositive
	}
	return model.PolarityNegative
}

// Subject returns the declared subject key, or the claim's tokens with
// every marker word removed.
func (l *Lexicon) Subject(c model.Claim) string {
	if c.Subject != "" {
		return model.NormalizeKey(c.Subject)
	}
	toks := slices.DeleteFunc(model.Tokens(c.Text), l.marker)
	return strings.Join(toks, " ")
}

// declaredSubjects reports whether both claims carry an explicit subject
func declaredSubjects(a, b model.Claim) bool {
	return strings.TrimSpace(a.Subject) != "" && strings.TrimSpace(b.Subject) != ""
}

// extendsText reports whether old is a strict prefix of new ending on a
// word boundary, or a strict token subset of new.
func extendsText(newText, oldText string) bool {
	n, o := model.NormalizeText(newText), model.NormalizeText(oldText)
	if o == "" || n == o {
		return false
	}
	if strings.HasPrefix(n, o) && n[len(o)] == ' ' {
		return true
	}

	newToks := make(map[string]bool)
	for _, t := range model.Tokens(newText) {
		newToks[t] = true
	}
	oldToks := model.Tokens(oldText)
	if len(oldToks) == 0 {
		return false
	}
	distinctOld := make(map[string]bool)
	for _, t := range oldToks {
		if !newToks[t] {
			return false
		}
		distinctOld[t] = true
	}
	return len(distinctOld) < len(newToks)
}
