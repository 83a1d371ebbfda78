// Package semanticscholar implements investigator.AcademicPaperProvider over
// the Semantic Scholar graph API.
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/viant/deepresearch/service/investigator"
)

const (
	providerName   = "semanticscholar"
	defaultBaseURL = "https://api.semanticscholar.org/graph/v1"
	fields         = "title,abstract,year,citationCount,url,externalIds"
	maxLimit       = 100
)

// Provider queries the paper search endpoint. The API key is optional; the
// public rate limit applies without it.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func New(client *http.Client, baseURL, apiKey string) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{client: client, baseURL: baseURL, apiKey: apiKey}
}

type searchResponse struct {
	Total int     `json:"total"`
	Data  []paper `json:"data"`
}

type paper struct {
	PaperID       string            `json:"paperId"`
	Title         string            `json:"title"`
	Abstract      string            `json:"abstract"`
	Year          int               `json:"year"`
	CitationCount *int              `json:"citationCount"`
	URL           string            `json:"url"`
	ExternalIDs   map[string]string `json:"externalIds"`
}

func (p *Provider) SearchPapers(ctx context.Context, text string, limit int) ([]investigator.PaperHit, error) {
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	params := url.Values{"query": {text}, "limit": {strconv.Itoa(limit)}, "fields": {fields}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/paper/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", providerName, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-api-key", p.apiKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, investigator.TransportError(ctx, providerName, err)
	}
	defer resp.Body.Close()
	if err := investigator.StatusError(providerName, resp.StatusCode); err != nil {
		return nil, err
	}
	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", providerName, err)
	}
	hits := make([]investigator.PaperHit, 0, len(payload.Data))
	for i, item := range payload.Data {
		if item.Title == "" {
			continue
		}
		citations := -1
		if item.CitationCount != nil {
			citations = *item.CitationCount
		}
		hits = append(hits, investigator.PaperHit{
			ID:            paperID(item),
			URL:           item.URL,
			Title:         item.Title,
			Abstract:      item.Abstract,
			Score:         investigator.RankScore(i, len(payload.Data)),
			Year:          item.Year,
			CitationCount: citations,
		})
	}
	return hits, nil
}

func paperID(item paper) string {
	if doi := item.ExternalIDs["DOI"]; doi != "" {
		return doi
	}
	if arxiv := item.ExternalIDs["ArXiv"]; arxiv != "" {
		return "arXiv:" + arxiv
	}
	return item.PaperID
}
