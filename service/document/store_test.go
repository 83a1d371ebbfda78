package document

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/deepresearch/model"
)

func testReport(taskID string) *model.ReportDocument {
	return &model.ReportDocument{
		Title:            "Research Report: Raft Consensus",
		ExecutiveSummary: "Raft elects a leader [1].",
		Sources:          []model.Source{{Number: 1, FindingID: "arxiv:1", Type: model.SourceAcademic, Title: "Raft", Locator: "https://arxiv.org/abs/1"}},
		Confidence:       model.ConfidenceLow,
		Metadata: model.Metadata{
			TaskID:       taskID,
			Topic:        "Raft Consensus",
			ResearchDate: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			SourceCount:  1,
		},
	}
}

func TestFsStore_Save(t *testing.T) {
	ctx := context.Background()
	baseURL := "mem://localhost/reports/save"
	store := New(baseURL, nil)

	id, err := store.Save(ctx, testReport("task-1"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01--raft-consensus", id)
	assert.Equal(t, baseURL+"/2026-03-01--raft-consensus/report.md", store.Location(id))

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "task-1", loaded.Metadata.TaskID)
	assert.Len(t, loaded.Metadata.Digest, 64)

	markdown, err := store.Markdown(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(markdown, "# Research Report: Raft Consensus"))

	again, err := store.Save(ctx, testReport("task-1"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := store.Save(ctx, testReport("task-2"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01--raft-consensus-2", other)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01--raft-consensus-2", "2026-03-01--raft-consensus"}, ids)
}

func TestFsStore_Save_Invalid(t *testing.T) {
	store := New("mem://localhost/reports/invalid", nil)
	doc := testReport("task-1")
	doc.ExecutiveSummary = "Unbacked claim [7]."
	_, err := store.Save(context.Background(), doc)
	assert.Error(t, err)
	_, err = store.Save(context.Background(), nil)
	assert.Error(t, err)
}

func TestFsStore_Tampered(t *testing.T) {
	ctx := context.Background()
	baseURL := "mem://localhost/reports/tampered"
	store := New(baseURL, nil)
	id, err := store.Save(ctx, testReport("task-1"))
	require.NoError(t, err)

	fs := afs.New()
	require.NoError(t, fs.Upload(ctx, store.Location(id), file.DefaultFileOsMode, strings.NewReader("# edited")))
	_, err = store.Markdown(ctx, id)
	assert.ErrorIs(t, err, ErrTampered)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(ctx, "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFsStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := New("mem://localhost/reports/delete", nil)
	kept, err := store.Save(ctx, testReport("task-1"))
	require.NoError(t, err)
	withdrawn, err := store.Save(ctx, testReport("task-2"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, withdrawn))
	require.NoError(t, store.Delete(ctx, withdrawn))
	_, err = store.Load(ctx, withdrawn)
	assert.ErrorIs(t, err, ErrNotFound)
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{kept}, ids)
	assert.ErrorIs(t, store.Delete(ctx, "../escape"), ErrNotFound)
}

func TestSlug(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		expect      string
	}{
		{description: "words", text: "OAuth2 in Microservices!", expect: "oauth2-in-microservices"},
		{description: "punctuation only", text: "???", expect: "report"},
		{description: "trimmed", text: "  a -- b  ", expect: "a-b"},
		{description: "long", text: strings.Repeat("ab ", 40), expect: strings.TrimRight(strings.Repeat("ab-", 20), "-")},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Slug(testCase.text), testCase.description)
	}
}
