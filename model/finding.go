package model

import (
	"sort"
	"time"
)

// Finding is a single retrieved source with its relevance score.
type Finding struct {
	// ID is the normalized identifier used for deduplication.
	ID          string       `json:"id"`
	Type        SourceType   `json:"type"`
	Locator     string       `json:"locator"`
	Title       string       `json:"title"`
	Snippet     string       `json:"snippet,omitempty"`
	Score       float64      `json:"score"`
	RetrievedAt time.Time    `json:"retrievedAt"`
	Origins     []SourceType `json:"origins,omitempty"`
	Year        int          `json:"year,omitempty"`
	Citations   int          `json:"citations,omitempty"`
	Activity    float64      `json:"activity,omitempty"`
}

// MultiOrigin reports whether more than one investigator returned the source.
func (f *Finding) MultiOrigin() bool {
	return len(f.Origins) > 1
}

// AddOrigin records an investigator type once.
func (f *Finding) AddOrigin(t SourceType) {
	for _, candidate := range f.Origins {
		if candidate == t {
			return
		}
	}
	f.Origins = append(f.Origins, t)
	sort.Slice(f.Origins, func(i, j int) bool { return f.Origins[i].Rank() < f.Origins[j].Rank() })
}

// SortFindings orders by descending score; ties fall back to source type and
// identifier so that ranking is deterministic.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Type != b.Type {
			return a.Type.Rank() < b.Type.Rank()
		}
		return a.ID < b.ID
	})
}

// SourceQuery is the per-investigator query derived from a Brief.
type SourceQuery struct {
	Type       SourceType `json:"type"`
	Texts      []string   `json:"texts"`
	Limit      int        `json:"limit"`
	DateFilter DateFilter `json:"dateFilter,omitempty"`
}

// EvidenceCluster groups findings under a theme; it references findings by
// normalized identifier only.
type EvidenceCluster struct {
	Theme      string   `json:"theme"`
	FindingIDs []string `json:"findingIds"`
	Summary    string   `json:"summary,omitempty"`
}
