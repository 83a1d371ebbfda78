// Package llm is the language generation boundary. Intake uses it to phrase
// clarifying questions and the synthesizer uses it for report prose.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when a generator produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Kind tells a generator what the prompt is for.
type Kind string

const (
	KindQuestions        Kind = "questions"
	KindSectionSummary   Kind = "section_summary"
	KindExecutiveSummary Kind = "executive_summary"
	KindConclusions      Kind = "conclusions"
)

// Prompt is a structured generation request. Context lines are evidence the
// answer must be grounded in; each may start with a "[n]" citation marker.
type Prompt struct {
	Kind        Kind
	Instruction string
	Context     []string
	MaxWords    int
}

// String renders the prompt as plain text for remote models.
func (p Prompt) String() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Instruction))
	if len(p.Context) > 0 {
		sb.WriteString("\n\nContext:\n")
		for _, line := range p.Context {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt Prompt) (string, error)

func (f Func) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// WithFallback tries primary first and falls back on error or empty output.
func WithFallback(primary, fallback Generator) Generator {
	if primary == nil {
		return fallback
	}
	return Func(func(ctx context.Context, prompt Prompt) (string, error) {
		text, err := primary.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fallback.Generate(ctx, prompt)
	})
}
