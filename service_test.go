package deepresearch_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/deepresearch"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/document"
	"github.com/viant/deepresearch/service/intake"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/kanban"
	"go.uber.org/goleak"
)

type provider struct{}

func (provider) SearchWeb(ctx context.Context, text string, limit int, _ model.DateFilter) ([]investigator.WebHit, error) {
	var ret []investigator.WebHit
	for i := 0; i < limit; i++ {
		ret = append(ret, investigator.WebHit{URL: fmt.Sprintf("https://news%d.example.com/%d", i, len(text)), Title: text + " coverage", Snippet: "Reporting on " + text + ".", Score: 1 - float64(i)/100})
	}
	return ret, nil
}

func (provider) SearchPapers(ctx context.Context, text string, limit int) ([]investigator.PaperHit, error) {
	var ret []investigator.PaperHit
	for i := 0; i < limit; i++ {
		ret = append(ret, investigator.PaperHit{ID: fmt.Sprintf("10.5555/p%d.%d", i, len(text)), Title: text + " survey", Abstract: "We survey " + text + ".", Score: 1 - float64(i)/100, Year: 2024, CitationCount: i})
	}
	return ret, nil
}

func (provider) SearchRepos(ctx context.Context, text string, limit int) ([]investigator.RepoHit, error) {
	var ret []investigator.RepoHit
	for i := 0; i < limit; i++ {
		ret = append(ret, investigator.RepoHit{RepoPath: fmt.Sprintf("lab/tool%d-%d", i, len(text)), Description: text + " toolkit", Score: 1 - float64(i)/100, Activity: 10})
	}
	return ret, nil
}

type recorder struct {
	mu    sync.Mutex
	notes []string
	posts []string
}

func (r *recorder) Notify(ctx context.Context, taskID, documentID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, summary)
	return nil
}

func (r *recorder) PostToChannel(ctx context.Context, channelID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, channelID+": "+summary)
	return nil
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes), len(r.posts)
}

func newService(t *testing.T, name string, channel *recorder, mutate ...func(c *deepresearch.Config)) *deepresearch.Service {
	cfg := deepresearch.DefaultConfig()
	cfg.Reports.BaseURL = "mem://localhost/deepresearch/" + name
	cfg.NotificationChannelID = "research"
	for _, fn := range mutate {
		fn(cfg)
	}
	var p provider
	srv, err := deepresearch.New(
		deepresearch.WithConfig(cfg),
		deepresearch.WithWebSearchProvider(p),
		deepresearch.WithAcademicPaperProvider(p),
		deepresearch.WithCodeRepoProvider(p),
		deepresearch.WithNotifier(channel),
	)
	require.NoError(t, err)
	return srv
}

func TestService_Research(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	channel := &recorder{}
	srv := newService(t, "research", channel)
	rt := srv.Runtime()

	task, err := rt.Submit(ctx, model.Brief{Topic: "solid state batteries", Goal: model.GoalOverview, FocusPoints: []string{"safety"}})
	require.NoError(t, err)
	require.NoError(t, rt.Start(ctx))

	require.Eventually(t, func() bool {
		current, err := rt.Task(ctx, task.ID)
		return err == nil && current.Stage == model.StageDone
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		notes, posts := channel.counts()
		return notes == 1 && posts == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, rt.Shutdown(ctx))

	done, err := rt.Task(ctx, task.ID)
	require.NoError(t, err)
	orphan := &model.ReportDocument{
		Title:    "Research Report: abandoned run",
		Sources:  []model.Source{{Number: 1, FindingID: "https://example.com/a", Type: model.SourceWeb, Title: "a", Locator: "https://example.com/a"}},
		Metadata: model.Metadata{TaskID: "task-never-completed", Topic: "abandoned run", ResearchDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), SourceCount: 1},
	}
	_, err = document.New("mem://localhost/deepresearch/research", nil).Save(ctx, orphan)
	require.NoError(t, err)
	ids, err := rt.Reports(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{done.DocumentID}, ids)
	assert.True(t, strings.HasSuffix(done.DocumentID, "--solid-state-batteries"))

	doc, markdown, err := rt.Report(ctx, done.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "solid state batteries", doc.Metadata.Topic)
	assert.Equal(t, 25, doc.Metadata.SourceCount)
	assert.Equal(t, model.ConfidenceHigh, doc.Confidence)
	assert.Contains(t, markdown, "# Research Report: solid state batteries")
	assert.Contains(t, channel.notes[0], rt.ReportLocation(done.DocumentID))
	assert.True(t, strings.HasPrefix(channel.posts[0], "research: "))
}

func TestService_Clarification(t *testing.T) {
	ctx := context.Background()
	srv := newService(t, "clarification", &recorder{})
	rt := srv.Runtime()

	session, err := rt.Receive(ctx, intake.Message{SenderID: "u1", Text: "/research compare rust and go for cli tools"})
	require.NoError(t, err)
	assert.Equal(t, intake.StateAwaitingClarification, session.State)
	assert.NotEmpty(t, session.Questions)

	session, err = rt.Reply(ctx, session.ID, "focus: startup time, binary size\nsources: code, no papers")
	require.NoError(t, err)
	session, err = rt.Reply(ctx, session.ID, "proceed")
	require.NoError(t, err)
	require.Equal(t, intake.StateFinalized, session.State)

	task, err := rt.Task(ctx, session.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StageInbox, task.Stage)
	assert.Equal(t, model.GoalComparison, task.Brief.Goal)
	assert.Equal(t, []string{"startup time", "binary size"}, task.Brief.FocusPoints)
	assert.Equal(t, []model.SourceType{model.SourceAcademic}, task.Brief.Exclusions)

	promoted, err := rt.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, task.ID, promoted.ID)

	aborted, err := rt.Abort(ctx, task.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.StageFailed, aborted.Stage)
	require.NoError(t, rt.Shutdown(ctx))
}

func TestService_RequeueExhausted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	channel := &recorder{}
	srv := newService(t, "requeue", channel, func(c *deepresearch.Config) { c.MaxRetries = 0 })
	rt := srv.Runtime()

	task, err := rt.Submit(ctx, model.Brief{Topic: "quantum error correction", Goal: model.GoalOverview})
	require.NoError(t, err)
	promoted, err := rt.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	_, err = rt.Abort(ctx, task.ID, "operator stop")
	require.NoError(t, err)
	require.NoError(t, rt.Start(ctx))

	rejected, err := rt.Requeue(ctx, task.ID)
	assert.ErrorIs(t, err, kanban.ErrRetriesExhausted)
	require.NotNil(t, rejected)
	assert.Equal(t, model.StageRejected, rejected.Stage)
	require.Eventually(t, func() bool {
		notes, _ := channel.counts()
		return notes == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = rt.Requeue(ctx, task.ID)
	assert.ErrorIs(t, err, kanban.ErrInvalidTransition)
	require.NoError(t, rt.Shutdown(ctx))

	notes, posts := channel.counts()
	assert.Equal(t, 1, notes)
	assert.Equal(t, 0, posts)
	assert.Contains(t, channel.notes[0], "could not be completed")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := deepresearch.DefaultConfig()
	cfg.Store.Kind = "redis"
	_, err := deepresearch.New(deepresearch.WithConfig(cfg))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		mutate      func(c *deepresearch.Config)
		expectErr   bool
	}{
		{description: "defaults", mutate: func(c *deepresearch.Config) {}},
		{description: "sqlite without path", mutate: func(c *deepresearch.Config) { c.Store.Kind = deepresearch.StoreSqlite }, expectErr: true},
		{description: "sqlite with path", mutate: func(c *deepresearch.Config) {
			c.Store = deepresearch.StoreConfig{Kind: deepresearch.StoreSqlite, Path: "/tmp/deepresearch/tasks.db"}
		}},
		{description: "min viable above budget", mutate: func(c *deepresearch.Config) { c.MinViableSources = 30 }, expectErr: true},
		{description: "negative retries", mutate: func(c *deepresearch.Config) { c.MaxRetries = -1 }, expectErr: true},
		{description: "zero retries", mutate: func(c *deepresearch.Config) { c.MaxRetries = 0 }},
		{description: "unknown source type", mutate: func(c *deepresearch.Config) {
			c.PerSourceTypeSplit = map[model.SourceType]float64{"video": 1}
		}, expectErr: true},
		{description: "stale threshold below run timeout", mutate: func(c *deepresearch.Config) { c.Timeouts.StaleFactor = 1 }, expectErr: true},
		{description: "fs queue without path", mutate: func(c *deepresearch.Config) { c.Queue.Kind = "fs" }, expectErr: true},
		{description: "budget above citation range", mutate: func(c *deepresearch.Config) { c.SourceBudget = 1000 }, expectErr: true},
		{description: "zero tick interval", mutate: func(c *deepresearch.Config) { c.TickIntervalMinutes = 0 }, expectErr: true},
	}
	for _, testCase := range testCases {
		cfg := deepresearch.DefaultConfig()
		testCase.mutate(cfg)
		err := cfg.Validate()
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}

func TestLoadConfig(t *testing.T) {
	ctx := context.Background()
	location := "mem://localhost/deepresearch/config/deepresearch.yaml"
	yaml := `sourceBudget: 40
minViableSources: 12
notificationChannelId: C042
botToken: ${env.DEEPRESEARCH_TEST_BOT}
perSourceTypeSplit:
  web: 0.2
  academic: 0.5
  code: 0.3
store:
  kind: fs
  path: /tmp/deepresearch/tasks
clarification:
  maxTurns: 2
`
	require.NoError(t, afs.New().Upload(ctx, location, 0644, strings.NewReader(yaml)))
	t.Setenv("DEEPRESEARCH_CODE_REPO_TOKEN", "ghp_test")
	t.Setenv("DEEPRESEARCH_TEST_BOT", "xoxb-test")
	t.Setenv("DEEPRESEARCH_MAX_RETRIES", "2")

	cfg, err := deepresearch.LoadConfig(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.SourceBudget)
	assert.Equal(t, 12, cfg.MinViableSources)
	assert.Equal(t, "C042", cfg.NotificationChannelID)
	assert.Equal(t, 0.5, cfg.PerSourceTypeSplit[model.SourceAcademic])
	assert.Equal(t, deepresearch.StoreConfig{Kind: "fs", Path: "/tmp/deepresearch/tasks"}, cfg.Store)
	assert.Equal(t, 2, cfg.Clarification.MaxTurns)
	assert.Equal(t, 30, cfg.Clarification.WindowMinutes)
	assert.Equal(t, 30, cfg.TickIntervalMinutes)
	assert.Equal(t, "ghp_test", cfg.CodeRepoToken)
	assert.Equal(t, "xoxb-test", cfg.BotToken)
	assert.Equal(t, 2, cfg.MaxRetries)

	t.Setenv("DEEPRESEARCH_SOURCE_BUDGET", "many")
	_, err = deepresearch.LoadConfig(ctx, location)
	assert.Error(t, err)
}
