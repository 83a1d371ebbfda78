package investigator

import (
	"context"

	"github.com/viant/deepresearch/model"
)

// WebHit is a web search result.
type WebHit struct {
	URL     string
	Title   string
	Snippet string
	Score   float64
}

// PaperHit is an academic search result. CitationCount is -1 when unknown.
type PaperHit struct {
	ID            string
	URL           string
	Title         string
	Abstract      string
	Score         float64
	Year          int
	CitationCount int
}

// RepoHit is a code repository search result.
type RepoHit struct {
	RepoPath    string
	URL         string
	Description string
	Score       float64
	Activity    float64
}

// WebSearchProvider queries a general web search backend.
type WebSearchProvider interface {
	SearchWeb(ctx context.Context, text string, limit int, filter model.DateFilter) ([]WebHit, error)
}

// AcademicPaperProvider queries a scholarly index.
type AcademicPaperProvider interface {
	SearchPapers(ctx context.Context, text string, limit int) ([]PaperHit, error)
}

// CodeRepoProvider queries a code hosting service.
type CodeRepoProvider interface {
	SearchRepos(ctx context.Context, text string, limit int) ([]RepoHit, error)
}
