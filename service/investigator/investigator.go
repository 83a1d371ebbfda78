// Package investigator gathers findings from web, academic and code sources.
// Each Investigator returns a finite, score ordered slice deduplicated by
// normalized id and capped at its sub-budget. A Pool runs the three
// concurrently under per-investigator timeouts and an overall ceiling,
// isolating their failures.
package investigator

import (
	"context"
	"strings"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/model"
)

// Investigator is one capability-typed source searcher.
type Investigator interface {
	Type() model.SourceType
	Investigate(ctx context.Context, brief *model.Brief, budget int) ([]model.Finding, error)
}

type searchFunc func(ctx context.Context, text string, query *model.SourceQuery) ([]model.Finding, error)

// searcher runs one query per focus point (plus the bare topic), retries
// transient errors and merges the streams.
type searcher struct {
	sourceType model.SourceType
	search     searchFunc
	scorer     Scorer
	backoff    Backoff
	maxQueries int
}

func (s *searcher) Type() model.SourceType { return s.sourceType }

func (s *searcher) Investigate(ctx context.Context, brief *model.Brief, budget int) ([]model.Finding, error) {
	if budget <= 0 {
		return nil, nil
	}
	var (
		byID    = map[string]model.Finding{}
		lastErr error
		success bool
	)
	query := NewQuery(s.sourceType, brief, budget, s.maxQueries)
	for _, text := range query.Texts {
		hits, err := retry(ctx, s.backoff, func(ctx context.Context) ([]model.Finding, error) {
			return s.search(ctx, text, &query)
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		success = true
		for _, hit := range hits {
			if hit.ID == "" {
				continue
			}
			hit.Type = s.sourceType
			hit.AddOrigin(s.sourceType)
			if hit.RetrievedAt.IsZero() {
				hit.RetrievedAt = clock.Now()
			}
			hit.Score = s.scorer.Score(brief, &hit)
			if prev, ok := byID[hit.ID]; ok && prev.Score >= hit.Score {
				continue
			}
			byID[hit.ID] = hit
		}
	}
	findings := make([]model.Finding, 0, len(byID))
	for _, f := range byID {
		findings = append(findings, f)
	}
	model.SortFindings(findings)
	if len(findings) > budget {
		findings = findings[:budget]
	}
	if !success || ctx.Err() != nil {
		return findings, lastErr
	}
	return findings, nil
}

// NewQuery derives the search texts for one source type from the brief: the
// topic itself, then the topic combined with each focus point, up to max
// texts. Only web queries carry the brief's date filter.
func NewQuery(sourceType model.SourceType, brief *model.Brief, limit, max int) model.SourceQuery {
	topic := strings.TrimSpace(brief.Topic)
	ret := model.SourceQuery{Type: sourceType, Texts: []string{topic}, Limit: limit}
	if sourceType == model.SourceWeb {
		ret.DateFilter = brief.DateFilter
	}
	seen := map[string]bool{strings.ToLower(topic): true}
	for _, focus := range brief.FocusPoints {
		if max > 0 && len(ret.Texts) >= max {
			break
		}
		text := strings.TrimSpace(topic + " " + strings.TrimSpace(focus))
		if seen[strings.ToLower(text)] {
			continue
		}
		seen[strings.ToLower(text)] = true
		ret.Texts = append(ret.Texts, text)
	}
	return ret
}

// Option customises an investigator.
type Option func(s *searcher)

// WithScorer overrides the scoring strategy.
func WithScorer(scorer Scorer) Option {
	return func(s *searcher) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithBackoff overrides the retry policy.
func WithBackoff(backoff Backoff) Option {
	return func(s *searcher) { s.backoff = backoff }
}

// WithMaxQueries caps the number of provider calls per investigation.
func WithMaxQueries(n int) Option {
	return func(s *searcher) { s.maxQueries = n }
}

func newSearcher(sourceType model.SourceType, search searchFunc, opts []Option) *searcher {
	s := &searcher{
		sourceType: sourceType,
		search:     search,
		scorer:     DefaultScorer{},
		backoff:    DefaultBackoff(),
		maxQueries: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWeb creates the web investigator.
func NewWeb(provider WebSearchProvider, opts ...Option) Investigator {
	return newSearcher(model.SourceWeb, func(ctx context.Context, text string, query *model.SourceQuery) ([]model.Finding, error) {
		hits, err := provider.SearchWeb(ctx, text, query.Limit, query.DateFilter)
		if err != nil {
			return nil, err
		}
		ret := make([]model.Finding, 0, len(hits))
		for _, hit := range hits {
			ret = append(ret, model.Finding{
				ID:      CanonicalID(hit.URL),
				Locator: hit.URL,
				Title:   strings.TrimSpace(hit.Title),
				Snippet: strings.TrimSpace(hit.Snippet),
				Score:   hit.Score,
			})
		}
		return ret, nil
	}, opts)
}

// NewAcademic creates the academic investigator.
func NewAcademic(provider AcademicPaperProvider, opts ...Option) Investigator {
	return newSearcher(model.SourceAcademic, func(ctx context.Context, text string, query *model.SourceQuery) ([]model.Finding, error) {
		hits, err := provider.SearchPapers(ctx, text, query.Limit)
		if err != nil {
			return nil, err
		}
		ret := make([]model.Finding, 0, len(hits))
		for _, hit := range hits {
			locator := hit.URL
			if locator == "" {
				locator = hit.ID
			}
			citations := hit.CitationCount
			if citations < 0 {
				citations = 0
			}
			ret = append(ret, model.Finding{
				ID:        NormalizePaperID(hit.ID, hit.URL),
				Locator:   locator,
				Title:     strings.TrimSpace(hit.Title),
				Snippet:   strings.TrimSpace(hit.Abstract),
				Score:     hit.Score,
				Year:      hit.Year,
				Citations: citations,
			})
		}
		return ret, nil
	}, opts)
}

// NewCode creates the code repository investigator.
func NewCode(provider CodeRepoProvider, opts ...Option) Investigator {
	return newSearcher(model.SourceCode, func(ctx context.Context, text string, query *model.SourceQuery) ([]model.Finding, error) {
		hits, err := provider.SearchRepos(ctx, text, query.Limit)
		if err != nil {
			return nil, err
		}
		ret := make([]model.Finding, 0, len(hits))
		for _, hit := range hits {
			locator := hit.URL
			if locator == "" {
				locator = "https://github.com/" + strings.TrimPrefix(hit.RepoPath, "/")
			}
			ret = append(ret, model.Finding{
				ID:       NormalizeRepo(hit.RepoPath, hit.URL),
				Locator:  locator,
				Title:    hit.RepoPath,
				Snippet:  strings.TrimSpace(hit.Description),
				Score:    hit.Score,
				Activity: hit.Activity,
			})
		}
		return ret, nil
	}, opts)
}
