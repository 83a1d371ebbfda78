package kanban

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao/task/memory"
)

func brief(topic string) model.Brief {
	return model.Brief{Topic: topic, Goal: model.GoalOverview, FocusPoints: []string{"basics"}}
}

func enqueueTodo(t *testing.T, srv *Service, topic string) *model.Task {
	ctx := context.Background()
	created, err := srv.Enqueue(ctx, brief(topic))
	require.NoError(t, err)
	triaged, err := srv.Triage(ctx, created.ID)
	require.NoError(t, err)
	return triaged
}

func TestService_FIFOPromotion(t *testing.T) {
	ctx := context.Background()
	srv := New(memory.New())
	first := enqueueTodo(t, srv, "first")
	second := enqueueTodo(t, srv, "second")

	promoted, err := srv.PromoteNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, promoted.ID)
	assert.Equal(t, model.StageInProgress, promoted.Stage)
	assert.NotNil(t, promoted.StartedAt)

	_, err = srv.PromoteNext(ctx)
	assert.ErrorIs(t, err, ErrConcurrencyViolation)
	_, err = srv.Promote(ctx, second.ID)
	assert.ErrorIs(t, err, ErrConcurrencyViolation)

	done, err := srv.Complete(ctx, first.ID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.StageDone, done.Stage)
	assert.Equal(t, "doc-1", done.DocumentID)

	active, err := srv.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	promoted, err = srv.PromoteNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, promoted.ID)

	promoted, err = srv.PromoteNext(ctx)
	assert.ErrorIs(t, err, ErrConcurrencyViolation)
	assert.Nil(t, promoted)
}

func TestService_PromoteNextEmpty(t *testing.T) {
	srv := New(memory.New())
	promoted, err := srv.PromoteNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestService_SingleInProgressUnderContention(t *testing.T) {
	ctx := context.Background()
	srv := New(memory.New())
	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, enqueueTodo(t, srv, "topic").ID)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := srv.Promote(ctx, id)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrConcurrencyViolation)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
	running, err := srv.List(ctx, model.StageInProgress)
	require.NoError(t, err)
	assert.Len(t, running, 1)
}

func TestService_RequeuePolicy(t *testing.T) {
	ctx := context.Background()
	srv := New(memory.New(), WithMaxRetries(1))
	older := enqueueTodo(t, srv, "older")
	_, err := srv.PromoteNext(ctx)
	require.NoError(t, err)
	newer := enqueueTodo(t, srv, "newer")

	failed, err := srv.Fail(ctx, older.ID, model.FailureInsufficientSources, errors.New("3 sources"))
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, failed.Stage)
	assert.Equal(t, model.FailureInsufficientSources, failed.Failure)
	assert.Equal(t, "3 sources", failed.Error)

	requeued, err := srv.Requeue(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageTodo, requeued.Stage)
	assert.Equal(t, 1, requeued.RetryCount)

	promoted, err := srv.PromoteNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ID, promoted.ID, "requeued task keeps its queue position")

	_, err = srv.Fail(ctx, older.ID, model.FailureInsufficientSources, errors.New("again"))
	require.NoError(t, err)
	rejected, err := srv.Requeue(ctx, older.ID)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	require.NotNil(t, rejected)
	assert.Equal(t, model.StageRejected, rejected.Stage)

	_, err = srv.Requeue(ctx, older.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	promoted, err = srv.PromoteNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, promoted.ID)
}

func TestService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	srv := New(memory.New())
	created, err := srv.Enqueue(ctx, brief("x"))
	require.NoError(t, err)

	testCases := []struct {
		description string
		run         func() error
	}{
		{description: "promote from inbox", run: func() error { _, err := srv.Promote(ctx, created.ID); return err }},
		{description: "complete from inbox", run: func() error { _, err := srv.Complete(ctx, created.ID, "d"); return err }},
		{description: "fail from inbox", run: func() error {
			_, err := srv.Fail(ctx, created.ID, model.FailureInternal, nil)
			return err
		}},
		{description: "requeue from inbox", run: func() error { _, err := srv.Requeue(ctx, created.ID); return err }},
		{description: "abort from inbox", run: func() error { _, err := srv.Abort(ctx, created.ID, ""); return err }},
		{description: "checkpoint from inbox", run: func() error { return srv.Checkpoint(ctx, created.ID, model.PhaseSaving) }},
	}
	for _, testCase := range testCases {
		assert.ErrorIs(t, testCase.run(), ErrInvalidTransition, testCase.description)
	}
	_, ok := srv.ActiveID()
	assert.False(t, ok)

	_, err = srv.Enqueue(ctx, model.Brief{Goal: model.GoalOverview})
	assert.Error(t, err)
}

func TestService_Abort(t *testing.T) {
	ctx := context.Background()
	srv := New(memory.New())
	queued := enqueueTodo(t, srv, "queued")
	aborted, err := srv.Abort(ctx, queued.ID, "requester cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, aborted.Stage)
	assert.Equal(t, model.FailureAborted, aborted.Failure)

	running := enqueueTodo(t, srv, "running")
	_, err = srv.Promote(ctx, running.ID)
	require.NoError(t, err)
	_, err = srv.Abort(ctx, running.ID, "")
	require.NoError(t, err)
	_, ok := srv.ActiveID()
	assert.False(t, ok, "abort releases the token")

	_, err = srv.Complete(ctx, running.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = srv.Abort(ctx, running.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_RecoverStale(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	restore := clock.Freeze(start)
	defer restore()

	srv := New(memory.New(), WithMaxRetries(1))
	stale := enqueueTodo(t, srv, "stale")
	_, err := srv.Promote(ctx, stale.ID)
	require.NoError(t, err)
	require.NoError(t, srv.Checkpoint(ctx, stale.ID, model.PhaseSynthesizing))

	clock.Freeze(start.Add(30 * time.Minute))
	recovered, err := srv.RecoverStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, recovered)

	clock.Freeze(start.Add(61 * time.Minute))
	recovered, err = srv.RecoverStale(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, model.StageTodo, recovered[0].Stage)
	assert.Equal(t, model.FailureStaleLock, recovered[0].Failure)
	assert.Equal(t, 1, recovered[0].RetryCount)
	_, ok := srv.ActiveID()
	assert.False(t, ok)

	_, err = srv.Promote(ctx, stale.ID)
	require.NoError(t, err)
	clock.Freeze(start.Add(3 * time.Hour))
	recovered, err = srv.RecoverStale(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, model.StageRejected, recovered[0].Stage)
}

func TestService_LoadRebuildsToken(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	srv := New(store)
	running := enqueueTodo(t, srv, "running")
	_, err := srv.Promote(ctx, running.ID)
	require.NoError(t, err)
	waiting := enqueueTodo(t, srv, "waiting")

	restarted := New(store)
	require.NoError(t, restarted.Load(ctx))
	id, ok := restarted.ActiveID()
	assert.True(t, ok)
	assert.Equal(t, running.ID, id)
	_, err = restarted.Promote(ctx, waiting.ID)
	assert.ErrorIs(t, err, ErrConcurrencyViolation)

	next, err := restarted.Enqueue(ctx, brief("after restart"))
	require.NoError(t, err)
	assert.Greater(t, next.Seq, waiting.Seq)
}

func TestService_Listener(t *testing.T) {
	ctx := context.Background()
	var moves []string
	srv := New(memory.New(), WithListener(func(_ context.Context, from model.Stage, t *model.Task) {
		moves = append(moves, string(from)+">"+string(t.Stage))
	}))
	queued := enqueueTodo(t, srv, "listened")
	_, err := srv.Promote(ctx, queued.ID)
	require.NoError(t, err)
	_, err = srv.Complete(ctx, queued.ID, "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{">inbox", "inbox>todo", "todo>in_progress", "in_progress>done"}, moves)
}
