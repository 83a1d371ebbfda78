package investigator

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	doiExpr       = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/\S+)`)
	arxivExpr     = regexp.MustCompile(`(?i)arxiv(?:\.org/(?:abs|pdf)/|:)\s*(\d{4}\.\d{4,5})(?:v\d+)?`)
	trackingParam = regexp.MustCompile(`^(utm_|fbclid$|gclid$|ref$|ref_src$)`)
)

// NormalizeURL produces a dedupe key for a web locator: scheme, "www.",
// fragment, tracking parameters and trailing slashes are dropped; host is
// lowercased and remaining query parameters are sorted.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	query := u.Query()
	var keys []string
	for key := range query {
		if trackingParam.MatchString(strings.ToLower(key)) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(host)
	sb.WriteString(strings.TrimRight(u.EscapedPath(), "/"))
	for i, key := range keys {
		if i == 0 {
			sb.WriteString("?")
		} else {
			sb.WriteString("&")
		}
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(query.Get(key))
	}
	return sb.String()
}

// NormalizePaperID prefers a DOI, then an arXiv id without version, and falls
// back to the provider id or locator.
func NormalizePaperID(id, locator string) string {
	for _, candidate := range []string{id, locator} {
		if m := doiExpr.FindStringSubmatch(candidate); m != nil {
			return "doi:" + strings.ToLower(strings.TrimRight(m[1], ".,;"))
		}
		if m := arxivExpr.FindStringSubmatch(candidate); m != nil {
			return "arxiv:" + m[1]
		}
	}
	if id != "" {
		return "paper:" + strings.ToLower(strings.TrimSpace(id))
	}
	return NormalizeURL(locator)
}

// NormalizeRepo maps owner/repo paths and repository URLs to the same key.
func NormalizeRepo(repoPath, locator string) string {
	candidate := strings.TrimSpace(repoPath)
	if candidate == "" {
		candidate = locator
	}
	candidate = strings.TrimSuffix(strings.ToLower(candidate), ".git")
	if u, err := url.Parse(candidate); err == nil && u.Host != "" {
		candidate = strings.TrimPrefix(u.Hostname(), "www.") + u.Path
	} else if !strings.Contains(strings.SplitN(candidate, "/", 2)[0], ".") {
		candidate = "github.com/" + candidate
	}
	return strings.TrimRight(candidate, "/")
}

// CanonicalID picks the most specific key for a locator of any type so that
// a web hit on a paper or a repository collides with the academic or code
// finding for the same source.
func CanonicalID(locator string) string {
	if id := NormalizePaperID("", locator); strings.HasPrefix(id, "doi:") || strings.HasPrefix(id, "arxiv:") {
		return id
	}
	if u, err := url.Parse(strings.TrimSpace(locator)); err == nil && strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") == "github.com" {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return NormalizeRepo(parts[0]+"/"+parts[1], "")
		}
	}
	return NormalizeURL(locator)
}
