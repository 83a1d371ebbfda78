package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/aggregator"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/llm"
)

func testInput(count int) Input {
	brief := &model.Brief{Topic: "raft consensus", Goal: model.GoalOverview, FocusPoints: []string{"leader election", "log replication"}}
	var findings []model.Finding
	for i := 0; i < count; i++ {
		t := model.SourceTypes[i%3]
		theme := []string{"leader election", "log replication", "history"}[i%3]
		findings = append(findings, model.Finding{
			ID:      fmt.Sprintf("https://example.com/%02d", i),
			Type:    t,
			Locator: fmt.Sprintf("https://example.com/%02d", i),
			Title:   fmt.Sprintf("Notes on %s %d", theme, i),
			Snippet: fmt.Sprintf("Finding %d explains %s. More detail follows.", i, theme),
			Score:   float64(100-i) / 100,
			Origins: []model.SourceType{t},
		})
	}
	result, err := aggregator.New(25).Aggregate(brief, &investigator.Outcome{Findings: map[model.SourceType][]model.Finding{
		model.SourceWeb: findings,
	}})
	if err != nil {
		panic(err)
	}
	return Input{
		Task:      &model.Task{ID: "task-1"},
		Brief:     brief,
		Aggregate: result,
		Outcome:   &investigator.Outcome{},
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestService_Synthesize(t *testing.T) {
	restore := clock.Freeze(time.Date(2026, 3, 1, 10, 12, 0, 0, time.UTC))
	defer restore()

	input := testInput(22)
	doc, err := New(nil).Synthesize(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	assert.Equal(t, "Research Report: raft consensus", doc.Title)
	assert.Len(t, doc.Sources, 22)
	for i, source := range doc.Sources {
		assert.Equal(t, i+1, source.Number)
		assert.Equal(t, input.Aggregate.Findings[i].ID, source.FindingID)
	}
	assert.Len(t, doc.Sections, len(input.Aggregate.Clusters))
	for _, section := range doc.Sections {
		assert.NotEmpty(t, section.Citations)
		for _, n := range section.Citations {
			assert.True(t, n >= 1 && n <= len(doc.Sources))
		}
	}
	assert.Equal(t, []string{
		"What are the key aspects of raft consensus?",
		"What is known about leader election in the context of raft consensus?",
		"What is known about log replication in the context of raft consensus?",
	}, doc.ResearchQuestions)
	assert.NotEmpty(t, doc.ExecutiveSummary)
	assert.NotEmpty(t, doc.Conclusions)
	assert.Equal(t, model.ConfidenceHigh, doc.Confidence)
	assert.Equal(t, "task-1", doc.Metadata.TaskID)
	assert.Equal(t, 22, doc.Metadata.SourceCount)
	assert.Equal(t, 12*time.Minute, doc.Metadata.Elapsed)
}

func TestService_Synthesize_Citations(t *testing.T) {
	generator := llm.Func(func(ctx context.Context, prompt llm.Prompt) (string, error) {
		return "Leaders are elected by majority [1] as shown in [99, 2].", nil
	})
	doc, err := New(generator).Synthesize(context.Background(), testInput(12))
	require.NoError(t, err)
	for _, section := range doc.Sections {
		assert.NotContains(t, section.Body, "99")
		assert.Contains(t, section.Body, "[1]")
		assert.Contains(t, section.Body, "[2]")
		assert.Equal(t, []int{1, 2}, section.Citations)
	}
	assert.NotContains(t, doc.Conclusions, "99")
	assert.Equal(t, []int{1, 2}, doc.CitedNumbers())
	assert.Equal(t, model.ConfidenceMedium, doc.Confidence)
}

func TestService_Synthesize_Failure(t *testing.T) {
	testCases := []struct {
		description string
		generator   llm.Generator
		input       func() Input
	}{
		{
			description: "generator error",
			generator: llm.Func(func(ctx context.Context, prompt llm.Prompt) (string, error) {
				return "", errors.New("quota")
			}),
			input: func() Input { return testInput(10) },
		},
		{
			description: "only fabricated citations",
			generator: llm.Func(func(ctx context.Context, prompt llm.Prompt) (string, error) {
				return "[42]", nil
			}),
			input: func() Input { return testInput(10) },
		},
		{
			description: "no findings",
			input: func() Input {
				input := testInput(10)
				input.Aggregate = &aggregator.Result{}
				return input
			},
		},
		{
			description: "missing brief",
			input: func() Input {
				input := testInput(10)
				input.Brief = nil
				return input
			},
		},
	}
	for _, testCase := range testCases {
		_, err := New(testCase.generator).Synthesize(context.Background(), testCase.input())
		assert.ErrorIs(t, err, ErrSynthesisFailure, testCase.description)
	}
}

func TestService_Synthesize_Timeout(t *testing.T) {
	generator := llm.Func(func(ctx context.Context, prompt llm.Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := New(generator, WithTimeout(20*time.Millisecond)).Synthesize(context.Background(), testInput(10))
	assert.ErrorIs(t, err, ErrSynthesisFailure)
}

func TestConfidence(t *testing.T) {
	testCases := []struct {
		description string
		sources     int
		degraded    bool
		expect      model.Confidence
	}{
		{description: "full budget", sources: 25, expect: model.ConfidenceHigh},
		{description: "full but degraded", sources: 22, degraded: true, expect: model.ConfidenceMedium},
		{description: "viable", sources: 10, expect: model.ConfidenceMedium},
		{description: "thin", sources: 4, expect: model.ConfidenceLow},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Confidence(testCase.sources, testCase.degraded), testCase.description)
	}
}

func TestQuestions(t *testing.T) {
	testCases := []struct {
		description string
		brief       *model.Brief
		expect      string
	}{
		{description: "comparison", brief: &model.Brief{Topic: "queues", Goal: model.GoalComparison}, expect: "How do the main approaches to queues compare?"},
		{description: "guide", brief: &model.Brief{Topic: "queues", Goal: model.GoalImplementationGuide}, expect: "How can queues be implemented in practice?"},
		{description: "review", brief: &model.Brief{Topic: "queues", Goal: model.GoalLiteratureReview}, expect: "What does current research say about queues?"},
		{description: "decision", brief: &model.Brief{Topic: "queues", Goal: model.GoalDecisionSupport}, expect: "Which option for queues best fits the stated needs?"},
	}
	for _, testCase := range testCases {
		questions := Questions(testCase.brief)
		require.Len(t, questions, 1, testCase.description)
		assert.Equal(t, testCase.expect, questions[0], testCase.description)
	}
	many := &model.Brief{Topic: "x", FocusPoints: []string{"a", "b", "c", "d", "e", "f", "g"}}
	assert.Len(t, Questions(many), maxQuestions)
}

func TestService_Render(t *testing.T) {
	restore := clock.Freeze(time.Date(2026, 3, 1, 10, 12, 0, 0, time.UTC))
	defer restore()
	input := testInput(10)
	input.Outcome = &investigator.Outcome{Degraded: true, Failed: map[model.SourceType]string{model.SourceCode: "timeout"}}
	srv := New(nil)
	doc, err := srv.Synthesize(context.Background(), input)
	require.NoError(t, err)
	text, err := srv.Render(doc)
	require.NoError(t, err)
	assert.Contains(t, text, "# Research Report: raft consensus")
	assert.Contains(t, text, "## Executive Summary")
	assert.Contains(t, text, "## Key Findings")
	assert.Contains(t, text, "1. [Notes on leader election 0](https://example.com/00) (web)")
	assert.Contains(t, text, "researched 2026-03-01, 10 sources in 12m0s.")
	assert.Contains(t, text, "failed investigators: code")

	custom, err := ParseTemplate("{{.Title}} ({{len .Sources}})")
	require.NoError(t, err)
	text, err = New(nil, WithTemplate(custom)).Render(doc)
	require.NoError(t, err)
	assert.Equal(t, "Research Report: raft consensus (10)", text)

	_, err = ParseTemplate("{{.Title")
	assert.Error(t, err)
}
