// Package policy filters findings before they count against a source budget.
// A policy combines operator configured host allow/block lists with the
// blocked terms a requester asked for in the brief. A nil *Policy allows
// everything.
package policy

import (
	"context"
	"net/url"
	"strings"

	"github.com/viant/deepresearch/model"
)

// Policy decides which findings are admissible.
type Policy struct {
	AllowHosts   []string // empty => all hosts
	BlockHosts   []string
	BlockedTerms []string // matched case-insensitively against title and snippet
}

// Config is the serialisable form of a Policy.
type Config struct {
	AllowHosts   []string `json:"allowHosts,omitempty" yaml:"allowHosts,omitempty"`
	BlockHosts   []string `json:"blockHosts,omitempty" yaml:"blockHosts,omitempty"`
	BlockedTerms []string `json:"blockedTerms,omitempty" yaml:"blockedTerms,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		AllowHosts:   append([]string(nil), p.AllowHosts...),
		BlockHosts:   append([]string(nil), p.BlockHosts...),
		BlockedTerms: append([]string(nil), p.BlockedTerms...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		AllowHosts:   append([]string(nil), c.AllowHosts...),
		BlockHosts:   append([]string(nil), c.BlockHosts...),
		BlockedTerms: append([]string(nil), c.BlockedTerms...),
	}
}

// ForBrief returns a copy of p extended with the brief's blocked terms.
func (p *Policy) ForBrief(brief *model.Brief) *Policy {
	ret := &Policy{}
	if p != nil {
		ret = FromConfig(ToConfig(p))
	}
	if brief != nil {
		ret.BlockedTerms = append(ret.BlockedTerms, brief.BlockedTerms...)
	}
	return ret
}

// IsAllowed evaluates the host lists and blocked terms. Block lists have
// priority; a host matches itself and any subdomain.
func (p *Policy) IsAllowed(f *model.Finding) bool {
	if p == nil || f == nil {
		return true
	}
	text := strings.ToLower(f.Title + " " + f.Snippet)
	for _, term := range p.BlockedTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(text, term) {
			return false
		}
	}
	host := hostOf(f.Locator)
	for _, b := range p.BlockHosts {
		if matchHost(host, b) {
			return false
		}
	}
	if len(p.AllowHosts) == 0 || host == "" {
		return true
	}
	for _, a := range p.AllowHosts {
		if matchHost(host, a) {
			return true
		}
	}
	return false
}

// Filter returns the admissible findings, preserving order.
func (p *Policy) Filter(findings []model.Finding) []model.Finding {
	if p == nil {
		return findings
	}
	ret := findings[:0:0]
	for i := range findings {
		if p.IsAllowed(&findings[i]) {
			ret = append(ret, findings[i])
		}
	}
	return ret
}

func hostOf(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func matchHost(host, pattern string) bool {
	pattern = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(pattern)), "www.")
	if host == "" || pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
