// Package duckduckgo implements investigator.WebSearchProvider over the
// DuckDuckGo HTML endpoint, which needs no API key.
package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/investigator"
	"golang.org/x/net/html"
)

const (
	providerName   = "duckduckgo"
	defaultBaseURL = "https://html.duckduckgo.com/html/"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 deepresearch"
)

// Provider queries DuckDuckGo.
type Provider struct {
	client  *http.Client
	baseURL string
}

// New creates a provider. A nil client uses http.DefaultClient.
func New(client *http.Client, baseURL string) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{client: client, baseURL: baseURL}
}

var dateFilters = map[model.DateFilter]string{
	model.DateWeek:  "w",
	model.DateMonth: "m",
	model.DateYear:  "y",
}

func (p *Provider) SearchWeb(ctx context.Context, text string, limit int, filter model.DateFilter) ([]investigator.WebHit, error) {
	params := url.Values{"q": {text}}
	if df, ok := dateFilters[filter]; ok {
		params.Set("df", df)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", providerName, err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, investigator.TransportError(ctx, providerName, err)
	}
	defer resp.Body.Close()
	if err := investigator.StatusError(providerName, resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, investigator.TransportError(ctx, providerName, err)
	}
	return Parse(string(body), limit)
}

// Parse extracts results from a DuckDuckGo HTML page.
func Parse(content string, limit int) ([]investigator.WebHit, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse HTML: %w", providerName, err)
	}
	var hits []investigator.WebHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if limit > 0 && len(hits) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if hit, ok := extract(n); ok {
				hits = append(hits, hit)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	for i := range hits {
		hits[i].Score = investigator.RankScore(i, len(hits))
	}
	return hits, nil
}

func extract(n *html.Node) (investigator.WebHit, bool) {
	var hit investigator.WebHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				hit.URL = attr(n, "href")
				hit.Title = text(n)
			case hasClass(n, "result__snippet"):
				hit.Snippet = text(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	hit.URL = unwrapRedirect(hit.URL)
	return hit, hit.URL != "" && hit.Title != ""
}

// unwrapRedirect resolves //duckduckgo.com/l/?uddg=<target> links.
func unwrapRedirect(link string) string {
	if !strings.Contains(link, "duckduckgo.com/l/") {
		return link
	}
	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
