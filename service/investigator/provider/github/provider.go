// Package github implements investigator.CodeRepoProvider over the GitHub
// repository search API. A token raises the rate limit and is attached with
// an oauth2 static token source.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/service/investigator"
	"golang.org/x/oauth2"
)

const (
	providerName   = "github"
	defaultBaseURL = "https://api.github.com"
	maxPerPage     = 100
)

type Provider struct {
	client  *http.Client
	baseURL string
}

// New creates a provider. With a token the client authenticates every
// request; without one base (or http.DefaultClient) is used as is.
func New(ctx context.Context, base *http.Client, baseURL, token string) *Provider {
	client := base
	if client == nil {
		client = http.DefaultClient
	}
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{client: client, baseURL: baseURL}
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []repository `json:"items"`
}

type repository struct {
	FullName        string    `json:"full_name"`
	HTMLURL         string    `json:"html_url"`
	Description     string    `json:"description"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	PushedAt        time.Time `json:"pushed_at"`
	Archived        bool      `json:"archived"`
}

func (p *Provider) SearchRepos(ctx context.Context, text string, limit int) ([]investigator.RepoHit, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}
	params := url.Values{"q": {text + " archived:false"}, "per_page": {strconv.Itoa(limit)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search/repositories?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", providerName, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, investigator.TransportError(ctx, providerName, err)
	}
	defer resp.Body.Close()
	status := resp.StatusCode
	if status == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		status = http.StatusTooManyRequests
	}
	if err := investigator.StatusError(providerName, status); err != nil {
		return nil, err
	}
	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", providerName, err)
	}
	hits := make([]investigator.RepoHit, 0, len(payload.Items))
	for i, item := range payload.Items {
		if item.Archived {
			continue
		}
		hits = append(hits, investigator.RepoHit{
			RepoPath:    item.FullName,
			URL:         item.HTMLURL,
			Description: item.Description,
			Score:       investigator.RankScore(i, len(payload.Items)),
			Activity:    Activity(item.StargazersCount, item.ForksCount, item.PushedAt),
		})
	}
	return hits, nil
}

// Activity combines popularity with a decay on time since the last push:
// a repository untouched for a year keeps about a third of its weight.
func Activity(stars, forks int, pushedAt time.Time) float64 {
	popularity := float64(stars + 2*forks)
	if pushedAt.IsZero() {
		return popularity / 2
	}
	days := clock.Since(pushedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Round(popularity * math.Exp(-days/365))
}
