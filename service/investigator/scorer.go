package investigator

import (
	"math"
	"strings"
	"unicode"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/model"
)

// Scorer assigns the relevance score used for ranking. Higher scores are
// considered first; the formula is a strategy.
type Scorer interface {
	Score(brief *model.Brief, finding *model.Finding) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(brief *model.Brief, finding *model.Finding) float64

func (f ScorerFunc) Score(brief *model.Brief, finding *model.Finding) float64 {
	return f(brief, finding)
}

// DefaultScorer blends token overlap with the topic and focus points, the
// provider's own score, and type signals: recency and citations for papers,
// activity for repositories. finding.Score holds the provider score on entry.
type DefaultScorer struct{}

func (DefaultScorer) Score(brief *model.Brief, f *model.Finding) float64 {
	query := Tokens(brief.Topic + " " + strings.Join(brief.FocusPoints, " "))
	relevance := Overlap(query, Tokens(f.Title+" "+f.Snippet))
	provider := clamp(f.Score)
	score := 0.6*relevance + 0.2*provider
	switch f.Type {
	case model.SourceAcademic:
		if f.Year > 0 {
			age := float64(clock.Now().Year() - f.Year)
			score += 0.1 * clamp(1-age/10)
		}
		if f.Citations > 0 {
			score += 0.1 * clamp(math.Log1p(float64(f.Citations))/math.Log1p(1000))
		}
	case model.SourceCode:
		if f.Activity > 0 {
			score += 0.2 * clamp(math.Log1p(f.Activity)/math.Log1p(10000))
		}
	default:
		score += 0.2 * provider
	}
	return math.Round(score*10000) / 10000
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true, "from": true,
	"are": true, "was": true, "how": true, "what": true, "why": true, "into": true, "its": true,
	"vs": true, "of": true, "in": true, "on": true, "to": true, "an": true, "is": true, "or": true,
	"by": true, "as": true, "at": true, "be": true, "it": true, "about": true, "using": true,
}

// Tokens lowercases text and returns its distinct content words.
func Tokens(text string) map[string]bool {
	ret := map[string]bool{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 2 || stopWords[word] {
			continue
		}
		ret[word] = true
	}
	return ret
}

// Overlap is the fraction of query tokens present in candidate.
func Overlap(query, candidate map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for token := range query {
		if candidate[token] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
