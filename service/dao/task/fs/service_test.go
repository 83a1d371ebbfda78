package fs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao/criteria"
	"github.com/viant/deepresearch/service/dao/task/tasktest"
)

func TestService(t *testing.T) {
	srv, err := New(t.TempDir())
	require.NoError(t, err)
	tasktest.Run(t, srv)
}

func TestService_SkipsMalformed(t *testing.T) {
	ctx := context.Background()
	baseURL := "mem://localhost/tasks-malformed"
	srv, err := New(baseURL)
	require.NoError(t, err)
	require.NoError(t, srv.Save(ctx, &model.Task{ID: "ok", Stage: model.StageTodo}))
	require.NoError(t, afs.New().Upload(ctx, baseURL+"/broken.json", 0644, strings.NewReader("{not json")))

	tasks, err := srv.List(ctx, criteria.Stages(model.StageTodo))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ok", tasks[0].ID)
}
