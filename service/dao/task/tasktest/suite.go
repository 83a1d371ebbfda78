// Package tasktest holds the behavioural suite every task.Service
// implementation must pass.
package tasktest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
	"github.com/viant/deepresearch/service/dao/criteria"
	"github.com/viant/deepresearch/service/dao/task"
)

// Run exercises srv against the task.Service contract.
func Run(t *testing.T, srv task.Service) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	newTask := func(id string, stage model.Stage, offset time.Duration, seq int64) *model.Task {
		return &model.Task{
			ID:        id,
			Stage:     stage,
			Seq:       seq,
			Brief:     model.Brief{Topic: "topic " + id, Goal: model.GoalOverview, FocusPoints: []string{"a"}},
			CreatedAt: base.Add(offset),
			UpdatedAt: base.Add(offset),
		}
	}

	assert.ErrorIs(t, srv.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, srv.Save(ctx, &model.Task{}), dao.ErrInvalidID)

	require.NoError(t, srv.Save(ctx, newTask("c", model.StageTodo, 2*time.Minute, 3)))
	require.NoError(t, srv.Save(ctx, newTask("b", model.StageTodo, time.Minute, 2)))
	require.NoError(t, srv.Save(ctx, newTask("a", model.StageTodo, time.Minute, 1)))
	require.NoError(t, srv.Save(ctx, newTask("d", model.StageInbox, 0, 4)))

	loaded, err := srv.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "topic a", loaded.Brief.Topic)
	assert.True(t, base.Add(time.Minute).Equal(loaded.CreatedAt))

	_, err = srv.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	todo, err := srv.List(ctx, criteria.Stages(model.StageTodo))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(todo))

	all, err := srv.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(all))

	promoted := loaded.Clone()
	promoted.Stage = model.StageInProgress
	require.NoError(t, srv.Swap(ctx, promoted, model.StageTodo))

	stale := loaded.Clone()
	stale.Stage = model.StageFailed
	assert.ErrorIs(t, srv.Swap(ctx, stale, model.StageTodo), dao.ErrConflict)
	assert.ErrorIs(t, srv.Swap(ctx, newTask("zz", model.StageTodo, 0, 9), model.StageInbox), dao.ErrNotFound)

	loaded, err = srv.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StageInProgress, loaded.Stage)

	active, err := srv.List(ctx, criteria.Stages(model.StageInProgress))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(active))

	require.NoError(t, srv.Delete(ctx, "d"))
	assert.ErrorIs(t, srv.Delete(ctx, "d"), dao.ErrNotFound)
}

func ids(tasks []*model.Task) []string {
	ret := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ret = append(ret, t.ID)
	}
	return ret
}
