package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao/task/tasktest"
)

func TestService(t *testing.T) {
	tasktest.Run(t, New())
}

func TestService_Isolation(t *testing.T) {
	ctx := context.Background()
	srv := New()
	in := &model.Task{ID: "x", Stage: model.StageInbox, Brief: model.Brief{FocusPoints: []string{"one"}}}
	require.NoError(t, srv.Save(ctx, in))
	in.Brief.FocusPoints[0] = "mutated"
	in.Stage = model.StageDone

	out, err := srv.Load(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, model.StageInbox, out.Stage)
	assert.Equal(t, "one", out.Brief.FocusPoints[0])
}
