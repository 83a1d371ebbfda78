package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStage_CanTransition(t *testing.T) {
	testCases := []struct {
		from   Stage
		to     Stage
		expect bool
	}{
		{StageInbox, StageTodo, true},
		{StageTodo, StageInProgress, true},
		{StageInProgress, StageDone, true},
		{StageInProgress, StageFailed, true},
		{StageFailed, StageTodo, true},
		{StageFailed, StageRejected, true},
		{StageTodo, StageInbox, false},
		{StageDone, StageTodo, false},
		{StageInProgress, StageTodo, false},
		{StageRejected, StageTodo, false},
		{StageInbox, StageInProgress, false},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, testCase.from.CanTransition(testCase.to), "%s -> %s", testCase.from, testCase.to)
	}
}

func TestTask_Before(t *testing.T) {
	now := time.Now()
	first := &Task{ID: "a", CreatedAt: now, Seq: 2}
	second := &Task{ID: "b", CreatedAt: now, Seq: 3}
	older := &Task{ID: "c", CreatedAt: now.Add(-time.Second), Seq: 9}
	assert.True(t, first.Before(second))
	assert.False(t, second.Before(first))
	assert.True(t, older.Before(first))
}

func TestTask_Clone(t *testing.T) {
	started := time.Now()
	task := &Task{ID: "a", Brief: Brief{Topic: "x", FocusPoints: []string{"one"}}, StartedAt: &started}
	clone := task.Clone()
	clone.Brief.FocusPoints[0] = "two"
	*clone.StartedAt = started.Add(time.Hour)
	assert.Equal(t, "one", task.Brief.FocusPoints[0])
	assert.Equal(t, started, *task.StartedAt)
}
