package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/service/investigator"
)

const response = `{"total_count": 3, "items": [
 {"full_name": "hashicorp/raft", "html_url": "https://github.com/hashicorp/raft", "description": "Golang implementation of Raft", "stargazers_count": 8000, "forks_count": 900, "pushed_at": "2025-01-01T00:00:00Z"},
 {"full_name": "old/raft", "html_url": "https://github.com/old/raft", "archived": true},
 {"full_name": "etcd-io/raft", "html_url": "https://github.com/etcd-io/raft", "description": "Raft library", "stargazers_count": 600, "pushed_at": "2024-01-01T00:00:00Z"}
]}`

func TestProvider_SearchRepos(t *testing.T) {
	restore := clock.Freeze(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	defer restore()

	var auth, query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, query = r.Header.Get("Authorization"), r.URL.Query().Get("q")
		if query == "limited archived:false" {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	provider := New(context.Background(), server.Client(), server.URL, "tok")
	hits, err := provider.SearchRepos(context.Background(), "raft", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "raft archived:false", query)
	assert.Equal(t, "hashicorp/raft", hits[0].RepoPath)
	assert.Equal(t, float64(9800), hits[0].Activity)
	assert.Less(t, hits[1].Activity, float64(600))

	_, err = provider.SearchRepos(context.Background(), "limited", 10)
	assert.ErrorIs(t, err, investigator.ErrProviderUnavailable)

	anonymous := New(context.Background(), server.Client(), server.URL, "")
	_, err = anonymous.SearchRepos(context.Background(), "raft", 10)
	require.NoError(t, err)
	assert.Equal(t, "", auth)
}
