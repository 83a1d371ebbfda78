package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/deepresearch/model"
)

func TestSubmittedBrief(t *testing.T) {
	var testCases = []struct {
		description string
		goal        string
		since       string
		prefer      []string
		exclude     []string
		expect      model.Brief
		expectErr   bool
	}{
		{
			description: "defaults",
			goal:        "overview",
			since:       "any",
			expect:      model.Brief{Topic: "edge inference", Goal: model.GoalOverview, DateFilter: model.DateAny, SenderID: "cli"},
		},
		{
			description: "decision support with sources",
			goal:        "decision_support",
			since:       "month",
			prefer:      []string{"papers"},
			exclude:     []string{"web"},
			expect: model.Brief{Topic: "edge inference", Goal: model.GoalDecisionSupport, DateFilter: model.DateMonth, SenderID: "cli",
				Priorities: []model.SourceType{model.SourceAcademic}, Exclusions: []model.SourceType{model.SourceWeb}},
		},
		{description: "unknown goal", goal: "poem", since: "any", expectErr: true},
		{description: "unknown recency", goal: "overview", since: "decade", expectErr: true},
		{description: "unknown source", goal: "overview", since: "any", exclude: []string{"video"}, expectErr: true},
		{description: "everything excluded", goal: "overview", since: "any", exclude: []string{"web", "academic", "code"}, expectErr: true},
	}
	for _, testCase := range testCases {
		submitFlags.goal = testCase.goal
		submitFlags.since = testCase.since
		submitFlags.prefer = testCase.prefer
		submitFlags.exclude = testCase.exclude
		submitFlags.focus, submitFlags.blocked, submitFlags.audience = nil, nil, ""
		actual, err := submittedBrief(" edge inference ")
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		if diff := cmp.Diff(testCase.expect, actual); diff != "" {
			t.Errorf("%s: brief mismatch (-want +got):\n%s", testCase.description, diff)
		}
	}
}

func execute(t *testing.T, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	location := "mem://localhost/deepresearch-cli/config.yaml"
	config := `store:
  kind: fs
  path: mem://localhost/deepresearch-cli/tasks
reports:
  baseURL: mem://localhost/deepresearch-cli/reports
logging:
  level: error
`
	require.NoError(t, afs.New().Upload(ctx, location, 0644, strings.NewReader(config)))

	submitted := execute(t, "--config", location, "submit", "--goal", "comparison", "--focus", "latency,cost", "vector", "databases")
	assert.Contains(t, submitted, "Topic:    vector databases")
	assert.Contains(t, submitted, "Stage:    inbox")
	assert.Contains(t, submitted, "Focus:    latency, cost")

	listed := execute(t, "--config", location, "list", "--stage", "inbox")
	lines := strings.Split(strings.TrimSpace(listed), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "vector databases")

	id := strings.Fields(lines[1])[0]
	rootCmd.SetArgs([]string{"--config", location, "abort", id})
	assert.Error(t, rootCmd.ExecuteContext(ctx), "inbox tasks cannot be aborted")

	reports := execute(t, "--config", location, "show")
	assert.Empty(t, strings.TrimSpace(reports))
}
