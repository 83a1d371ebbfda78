package semanticscholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/deepresearch/service/investigator"
)

const response = `{"total": 3, "data": [
 {"paperId": "p1", "title": "In Search of an Understandable Consensus Algorithm", "abstract": "Raft is ...", "year": 2014, "citationCount": 4000, "url": "https://www.semanticscholar.org/paper/p1", "externalIds": {"DOI": "10.5555/2643634.2643666"}},
 {"paperId": "p2", "title": "Paxos Made Live", "year": 2007, "citationCount": null, "externalIds": {"ArXiv": "0704.0001"}},
 {"paperId": "p3", "title": "", "year": 2001}
]}`

func TestProvider_SearchPapers(t *testing.T) {
	var apiKey, limit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, limit = r.Header.Get("x-api-key"), r.URL.Query().Get("limit")
		assert.Equal(t, "/paper/search", r.URL.Path)
		switch r.URL.Query().Get("query") {
		case "throttled":
			w.WriteHeader(http.StatusTooManyRequests)
		case "bad":
			w.WriteHeader(http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte(response))
		}
	}))
	defer server.Close()

	provider := New(server.Client(), server.URL, "secret")
	hits, err := provider.SearchPapers(context.Background(), "raft", 7)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "7", limit)
	assert.Equal(t, "10.5555/2643634.2643666", hits[0].ID)
	assert.Equal(t, 4000, hits[0].CitationCount)
	assert.Equal(t, "arXiv:0704.0001", hits[1].ID)
	assert.Equal(t, -1, hits[1].CitationCount)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	_, err = provider.SearchPapers(context.Background(), "throttled", 5)
	assert.ErrorIs(t, err, investigator.ErrProviderUnavailable)
	_, err = provider.SearchPapers(context.Background(), "bad", 5)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, investigator.ErrProviderUnavailable)
}
