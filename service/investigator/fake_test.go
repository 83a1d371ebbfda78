package investigator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/viant/deepresearch/model"
)

// fakeProvider serves deterministic hits and can fail or block on demand.
type fakeProvider struct {
	count    int // hits per call; -1 means use limit
	failures int32
	err      error
	block    bool
	calls    atomic.Int32
}

func (f *fakeProvider) before(ctx context.Context) error {
	call := f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if call <= f.failures {
		return fmt.Errorf("http 503: %w", ErrProviderUnavailable)
	}
	return f.err
}

func (f *fakeProvider) size(limit int) int {
	if f.count < 0 {
		return limit
	}
	return f.count
}

func (f *fakeProvider) SearchWeb(ctx context.Context, text string, limit int, _ model.DateFilter) ([]WebHit, error) {
	if err := f.before(ctx); err != nil {
		return nil, err
	}
	var ret []WebHit
	for i := 0; i < f.size(limit); i++ {
		ret = append(ret, WebHit{URL: fmt.Sprintf("https://web%d.example.com/page?utm_source=x", i), Title: text + " article", Snippet: "about " + text, Score: 1 - float64(i)/100})
	}
	return ret, nil
}

func (f *fakeProvider) SearchPapers(ctx context.Context, text string, limit int) ([]PaperHit, error) {
	if err := f.before(ctx); err != nil {
		return nil, err
	}
	var ret []PaperHit
	for i := 0; i < f.size(limit); i++ {
		ret = append(ret, PaperHit{ID: fmt.Sprintf("10.1000/paper%d", i), Title: text + " study", Abstract: "we study " + text, Score: 1 - float64(i)/100, Year: 2023, CitationCount: 10 * i})
	}
	return ret, nil
}

func (f *fakeProvider) SearchRepos(ctx context.Context, text string, limit int) ([]RepoHit, error) {
	if err := f.before(ctx); err != nil {
		return nil, err
	}
	var ret []RepoHit
	for i := 0; i < f.size(limit); i++ {
		ret = append(ret, RepoHit{RepoPath: fmt.Sprintf("org/repo%d", i), Description: text + " library", Score: 1 - float64(i)/100, Activity: float64(100 * i)})
	}
	return ret, nil
}
