package model

import (
	"errors"
	"strings"
	"time"
)

// GoalType is the primary purpose of a research request.
type GoalType string

const (
	GoalOverview            GoalType = "overview"
	GoalComparison          GoalType = "comparison"
	GoalImplementationGuide GoalType = "implementation_guide"
	GoalLiteratureReview    GoalType = "literature_review"
	GoalDecisionSupport     GoalType = "decision_support"
)

// ParseGoal recognises a goal from a clarification answer.
func ParseGoal(text string) (GoalType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	switch {
	case normalized == "":
		return "", false
	case strings.Contains(normalized, "implement"), strings.Contains(normalized, "how to"),
		strings.Contains(normalized, "guide"), strings.Contains(normalized, "tutorial"):
		return GoalImplementationGuide, true
	case strings.Contains(normalized, "compar"), strings.Contains(normalized, " vs"):
		return GoalComparison, true
	case strings.Contains(normalized, "literature"), strings.Contains(normalized, "survey"),
		strings.Contains(normalized, "state of the art"):
		return GoalLiteratureReview, true
	case strings.Contains(normalized, "decid"), strings.Contains(normalized, "decision"), strings.Contains(normalized, "choose"),
		strings.Contains(normalized, "recommend"):
		return GoalDecisionSupport, true
	case strings.Contains(normalized, "overview"), strings.Contains(normalized, "summary"),
		strings.Contains(normalized, "understand"), strings.Contains(normalized, "learn"):
		return GoalOverview, true
	}
	return "", false
}

// DateFilter restricts web results to a recent window.
type DateFilter string

const (
	DateAny   DateFilter = "any"
	DateWeek  DateFilter = "week"
	DateMonth DateFilter = "month"
	DateYear  DateFilter = "year"
)

// Brief is the finalized, clarified description of a research request. It
// is created once at intake finalization and then only copied.
type Brief struct {
	ID           string       `json:"id" yaml:"id"`
	SessionID    string       `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	SenderID     string       `json:"senderId,omitempty" yaml:"senderId,omitempty"`
	Channel      string       `json:"channel,omitempty" yaml:"channel,omitempty"`
	Topic        string       `json:"topic" yaml:"topic"`
	FocusPoints  []string     `json:"focusPoints,omitempty" yaml:"focusPoints,omitempty"`
	Goal         GoalType     `json:"goal" yaml:"goal"`
	Priorities   []SourceType `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	Exclusions   []SourceType `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	BlockedTerms []string     `json:"blockedTerms,omitempty" yaml:"blockedTerms,omitempty"`
	Audience     string       `json:"audience,omitempty" yaml:"audience,omitempty"`
	DateFilter   DateFilter   `json:"dateFilter,omitempty" yaml:"dateFilter,omitempty"`
	CreatedAt    time.Time    `json:"createdAt" yaml:"createdAt"`
}

// Validate checks the fields every downstream component relies on.
func (b *Brief) Validate() error {
	if b == nil {
		return errors.New("brief: nil")
	}
	if strings.TrimSpace(b.Topic) == "" {
		return errors.New("brief: topic is required")
	}
	if b.Goal == "" {
		return errors.New("brief: goal is required")
	}
	excluded := 0
	for _, t := range SourceTypes {
		if b.Excludes(t) {
			excluded++
		}
	}
	if excluded == len(SourceTypes) {
		return errors.New("brief: every source type is excluded")
	}
	return nil
}

// Clone returns a deep copy.
func (b Brief) Clone() Brief {
	b.FocusPoints = append([]string(nil), b.FocusPoints...)
	b.Priorities = append([]SourceType(nil), b.Priorities...)
	b.Exclusions = append([]SourceType(nil), b.Exclusions...)
	b.BlockedTerms = append([]string(nil), b.BlockedTerms...)
	return b
}

// Excludes reports whether the requester asked to skip a source type.
func (b *Brief) Excludes(t SourceType) bool {
	for _, candidate := range b.Exclusions {
		if candidate == t {
			return true
		}
	}
	return false
}

// Prioritizes reports whether the requester asked to favour a source type.
func (b *Brief) Prioritizes(t SourceType) bool {
	for _, candidate := range b.Priorities {
		if candidate == t {
			return true
		}
	}
	return false
}
