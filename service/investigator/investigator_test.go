package investigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/model"
)

var fastBackoff = Backoff{Attempts: 3, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func testBrief(goal model.GoalType) *model.Brief {
	return &model.Brief{Topic: "consensus algorithms", FocusPoints: []string{"raft", "paxos"}, Goal: goal}
}

func TestInvestigator_Retries(t *testing.T) {
	testCases := []struct {
		description string
		provider    *fakeProvider
		expectErr   error
		expectCalls int32
		expectCount int
	}{
		{description: "transient then success", provider: &fakeProvider{count: -1, failures: 2}, expectCalls: 5, expectCount: 5},
		{description: "retries exhausted", provider: &fakeProvider{count: -1, failures: 100}, expectErr: ErrInvestigatorFailure, expectCalls: 9},
		{description: "permanent error not retried", provider: &fakeProvider{count: -1, err: errors.New("bad request")}, expectErr: ErrInvestigatorFailure, expectCalls: 3},
	}
	for _, testCase := range testCases {
		inv := NewWeb(testCase.provider, WithBackoff(fastBackoff))
		findings, err := inv.Investigate(context.Background(), testBrief(model.GoalOverview), 5)
		if testCase.expectErr != nil {
			assert.ErrorIs(t, err, testCase.expectErr, testCase.description)
		} else {
			assert.NoError(t, err, testCase.description)
		}
		assert.Len(t, findings, testCase.expectCount, testCase.description)
		assert.Equal(t, testCase.expectCalls, testCase.provider.calls.Load(), testCase.description)
	}
}

func TestInvestigator_Contract(t *testing.T) {
	ctx := context.Background()
	brief := testBrief(model.GoalOverview)
	for _, inv := range []Investigator{
		NewWeb(&fakeProvider{count: 12}),
		NewAcademic(&fakeProvider{count: 12}),
		NewCode(&fakeProvider{count: 12}),
	} {
		findings, err := inv.Investigate(ctx, brief, 7)
		require.NoError(t, err)
		assert.Len(t, findings, 7, inv.Type())
		seen := map[string]bool{}
		for i, f := range findings {
			assert.Equal(t, inv.Type(), f.Type)
			assert.Equal(t, []model.SourceType{inv.Type()}, f.Origins)
			assert.False(t, seen[f.ID], "duplicate %s", f.ID)
			seen[f.ID] = true
			if i > 0 {
				assert.GreaterOrEqual(t, findings[i-1].Score, f.Score)
			}
		}
		again, err := inv.Investigate(ctx, brief, 7)
		require.NoError(t, err)
		assert.Equal(t, ids(findings), ids(again), "restartable")
	}

	none, err := NewWeb(&fakeProvider{count: 3}).Investigate(ctx, brief, 0)
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestInvestigator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	findings, err := NewCode(&fakeProvider{block: true}).Investigate(ctx, testBrief(model.GoalOverview), 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, findings)
}

func TestNewQuery(t *testing.T) {
	brief := &model.Brief{Topic: "raft", FocusPoints: []string{"leader election", "", "log replication", "snapshots"}, DateFilter: model.DateMonth}
	var testCases = []struct {
		description string
		sourceType  model.SourceType
		max         int
		expect      model.SourceQuery
	}{
		{
			description: "web carries date filter",
			sourceType:  model.SourceWeb,
			max:         3,
			expect:      model.SourceQuery{Type: model.SourceWeb, Texts: []string{"raft", "raft leader election", "raft log replication"}, Limit: 8, DateFilter: model.DateMonth},
		},
		{
			description: "academic ignores date filter",
			sourceType:  model.SourceAcademic,
			max:         2,
			expect:      model.SourceQuery{Type: model.SourceAcademic, Texts: []string{"raft", "raft leader election"}, Limit: 8},
		},
		{
			description: "unbounded",
			sourceType:  model.SourceCode,
			expect:      model.SourceQuery{Type: model.SourceCode, Texts: []string{"raft", "raft leader election", "raft log replication", "raft snapshots"}, Limit: 8},
		},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, NewQuery(testCase.sourceType, brief, 8, testCase.max), testCase.description)
	}
}

func TestDefaultScorer(t *testing.T) {
	brief := testBrief(model.GoalOverview)
	relevant := &model.Finding{Type: model.SourceWeb, Title: "Raft vs Paxos consensus algorithms", Score: 0.5}
	unrelated := &model.Finding{Type: model.SourceWeb, Title: "Cooking pasta", Score: 0.5}
	assert.Greater(t, DefaultScorer{}.Score(brief, relevant), DefaultScorer{}.Score(brief, unrelated))

	cited := &model.Finding{Type: model.SourceAcademic, Title: "raft", Citations: 900}
	uncited := &model.Finding{Type: model.SourceAcademic, Title: "raft"}
	assert.Greater(t, DefaultScorer{}.Score(brief, cited), DefaultScorer{}.Score(brief, uncited))
}

func ids(findings []model.Finding) []string {
	var ret []string
	for _, f := range findings {
		ret = append(ret, f.ID)
	}
	return ret
}
