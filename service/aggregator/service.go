// Package aggregator merges the per-type finding sets into one ranked,
// budget-capped list and clusters it into themes. The cap is applied before
// clustering so the clustered set is exactly the set handed to synthesis.
package aggregator

import (
	"errors"

	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/investigator"
	"go.uber.org/zap"
)

// ErrNoFindings is returned when there is nothing to aggregate.
var ErrNoFindings = errors.New("aggregator: no findings")

// Result is the deduplicated, capped and clustered evidence.
type Result struct {
	Findings    []model.Finding
	Clusters    []model.EvidenceCluster
	Duplicates  int
	Dropped     int
	MultiOrigin int
}

// Finding returns the finding with id.
func (r *Result) Finding(id string) (*model.Finding, bool) {
	for i := range r.Findings {
		if r.Findings[i].ID == id {
			return &r.Findings[i], true
		}
	}
	return nil, false
}

type Service struct {
	budget    int
	clusterer Clusterer
	logger    *zap.Logger
}

type Option func(s *Service)

// WithClusterer replaces the clustering strategy.
func WithClusterer(clusterer Clusterer) Option {
	return func(s *Service) {
		if clusterer != nil {
			s.clusterer = clusterer
		}
	}
}

// New creates an aggregator capping at budget findings.
func New(budget int, opts ...Option) *Service {
	s := &Service{
		budget:    budget,
		clusterer: DefaultClusterer(),
		logger:    logging.Named("aggregator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregate dedupes across investigators by normalized id, keeping the higher
// scoring instance and recording every origin, ranks the union, drops the
// lowest ranked findings beyond the budget and clusters what remains.
func (s *Service) Aggregate(brief *model.Brief, outcome *investigator.Outcome) (*Result, error) {
	if outcome == nil {
		return nil, ErrNoFindings
	}
	result := &Result{}
	byID := map[string]*model.Finding{}
	var order []string
	for _, t := range model.SourceTypes {
		for _, f := range outcome.Findings[t] {
			f := f
			f.Origins = append([]model.SourceType(nil), f.Origins...)
			if len(f.Origins) == 0 {
				f.AddOrigin(f.Type)
			}
			existing, ok := byID[f.ID]
			if !ok {
				byID[f.ID] = &f
				order = append(order, f.ID)
				continue
			}
			result.Duplicates++
			if f.Score > existing.Score {
				origins := existing.Origins
				*existing = f
				for _, origin := range origins {
					existing.AddOrigin(origin)
				}
				continue
			}
			for _, origin := range f.Origins {
				existing.AddOrigin(origin)
			}
		}
	}
	if len(order) == 0 {
		return nil, ErrNoFindings
	}
	merged := make([]model.Finding, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}
	model.SortFindings(merged)
	if s.budget > 0 && len(merged) > s.budget {
		result.Dropped = len(merged) - s.budget
		merged = merged[:s.budget]
	}
	for i := range merged {
		if merged[i].MultiOrigin() {
			result.MultiOrigin++
		}
	}
	result.Findings = merged
	result.Clusters = s.clusterer.Cluster(brief, merged)
	s.logger.Info("findings aggregated",
		zap.Int("kept", len(merged)),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("dropped", result.Dropped),
		zap.Int("clusters", len(result.Clusters)))
	return result, nil
}
