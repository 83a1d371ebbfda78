package model

import "strings"

// SourceType identifies the investigator capability that produced a finding.
type SourceType string

const (
	SourceWeb      SourceType = "web"
	SourceAcademic SourceType = "academic"
	SourceCode     SourceType = "code"
)

// SourceTypes lists every investigator type in dispatch order.
var SourceTypes = []SourceType{SourceWeb, SourceAcademic, SourceCode}

// ParseSourceType maps free text such as "papers" or "GitHub" onto a source
// type.
func ParseSourceType(text string) (SourceType, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "web", "website", "websites", "news", "blog", "blogs", "articles", "internet":
		return SourceWeb, true
	case "academic", "paper", "papers", "research", "journal", "journals", "scholar", "arxiv", "studies":
		return SourceAcademic, true
	case "code", "repo", "repos", "repository", "repositories", "github", "source code", "open source":
		return SourceCode, true
	}
	return "", false
}

// Rank returns the position of the type in SourceTypes; unknown types sort last.
func (s SourceType) Rank() int {
	for i, candidate := range SourceTypes {
		if candidate == s {
			return i
		}
	}
	return len(SourceTypes)
}
