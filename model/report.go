package model

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Confidence summarises how well the evidence supports the conclusions.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source is one numbered entry of the report's Sources list.
type Source struct {
	Number    int        `json:"number"`
	FindingID string     `json:"findingId"`
	Type      SourceType `json:"type"`
	Title     string     `json:"title"`
	Locator   string     `json:"locator"`
}

// Section is a Key Findings block built from one evidence cluster.
type Section struct {
	Theme     string `json:"theme"`
	Body      string `json:"body"`
	Citations []int  `json:"citations"`
}

// Metadata is appended to every report.
type Metadata struct {
	TaskID              string        `json:"taskId"`
	Topic               string        `json:"topic"`
	ResearchDate        time.Time     `json:"researchDate"`
	SourceCount         int           `json:"sourceCount"`
	Elapsed             time.Duration `json:"elapsed"`
	Degraded            bool          `json:"degraded,omitempty"`
	FailedInvestigators []SourceType  `json:"failedInvestigators,omitempty"`
	Digest              string        `json:"digest,omitempty"`
}

// ReportDocument is the only externally observable artifact.
type ReportDocument struct {
	Title             string     `json:"title"`
	ExecutiveSummary  string     `json:"executiveSummary"`
	ResearchQuestions []string   `json:"researchQuestions"`
	Sections          []Section  `json:"sections"`
	Sources           []Source   `json:"sources"`
	Conclusions       string     `json:"conclusions"`
	Confidence        Confidence `json:"confidence"`
	Metadata          Metadata   `json:"metadata"`
}

// MaxSources bounds the source list so citation markers stay within three
// digits; bracketed years such as [2023] are plain text.
const MaxSources = 999

var citationPattern = regexp.MustCompile(`\[([1-9]\d{0,2}(?:\s*,\s*[1-9]\d{0,2})*)\]`)

// Citations extracts every citation number referenced as [n] or [n, m].
func Citations(text string) []int {
	var ret []int
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(match[1], ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				ret = append(ret, n)
			}
		}
	}
	return ret
}

// StripCitations removes citation markers whose numbers fail keep and
// returns the cleaned text with the removed numbers.
func StripCitations(text string, keep func(n int) bool) (string, []int) {
	var dropped []int
	cleaned := citationPattern.ReplaceAllStringFunc(text, func(marker string) string {
		var kept []string
		for _, n := range Citations(marker) {
			if keep(n) {
				kept = append(kept, strconv.Itoa(n))
				continue
			}
			dropped = append(dropped, n)
		}
		if len(kept) == 0 {
			return ""
		}
		return "[" + strings.Join(kept, ", ") + "]"
	})
	return strings.TrimSpace(strings.ReplaceAll(cleaned, " .", ".")), dropped
}

// SourceByNumber returns the numbered source entry.
func (r *ReportDocument) SourceByNumber(n int) (*Source, bool) {
	if n < 1 || n > len(r.Sources) {
		return nil, false
	}
	return &r.Sources[n-1], true
}

// CitedNumbers returns the sorted, distinct citation numbers used anywhere in
// Key Findings or Conclusions.
func (r *ReportDocument) CitedNumbers() []int {
	seen := map[int]bool{}
	collect := func(numbers []int) {
		for _, n := range numbers {
			seen[n] = true
		}
	}
	for _, section := range r.Sections {
		collect(section.Citations)
		collect(Citations(section.Body))
	}
	collect(Citations(r.Conclusions))
	collect(Citations(r.ExecutiveSummary))
	ret := make([]int, 0, len(seen))
	for n := range seen {
		ret = append(ret, n)
	}
	sort.Ints(ret)
	return ret
}

// Validate enforces referential integrity: sources are numbered 1..n in order
// and every citation resolves to one of them. Unused sources are allowed.
func (r *ReportDocument) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("report: title is required")
	}
	if len(r.Sources) > MaxSources {
		return fmt.Errorf("report: %d sources, at most %d", len(r.Sources), MaxSources)
	}
	ids := map[string]bool{}
	for i, source := range r.Sources {
		if source.Number != i+1 {
			return fmt.Errorf("report: source %d is numbered %d", i+1, source.Number)
		}
		if ids[source.FindingID] {
			return fmt.Errorf("report: source %q listed twice", source.FindingID)
		}
		ids[source.FindingID] = true
	}
	for _, n := range r.CitedNumbers() {
		if _, ok := r.SourceByNumber(n); !ok {
			return fmt.Errorf("report: dangling citation [%d]", n)
		}
	}
	if r.Metadata.SourceCount != len(r.Sources) {
		return fmt.Errorf("report: metadata counts %d sources, list has %d", r.Metadata.SourceCount, len(r.Sources))
	}
	return nil
}
