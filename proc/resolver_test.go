package proc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, p MetadataProvider, opts ResolverOptions) *Resolver {
	t.Helper()
	pool := NewWorkerPool(8)
	t.Cleanup(pool.Close)
	return NewResolver(p, pool, opts)
}

func TestResolver_SearchReturnsFirstHit(t *testing.T) {
	p := newFakeProvider()
	p.search["lofi beats"] = []Metadata{
		{URL: "https://youtu.be/lofi", Title: "lofi hip hop radio", Uploader: "Lofi Girl"},
		{URL: "https://youtu.be/other", Title: "other"},
	}
	r := newTestResolver(t, p, ResolverOptions{})

	track, err := r.Search(context.Background(), "lofi beats")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/lofi", track.URL)
	assert.Equal(t, "lofi hip hop radio", track.Title)
	assert.Equal(t, "Lofi Girl", track.Uploader)
}

func TestResolver_SearchCachesHits(t *testing.T) {
	p := newFakeProvider()
	p.search["q"] = []Metadata{{URL: "https://youtu.be/q", Title: "Q"}}
	r := newTestResolver(t, p, ResolverOptions{})

	first, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	second, err := r.Search(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, first.URL, second.URL)
	assert.NotEqual(t, first.ID, second.ID, "each search yields a distinct queue item")
}

func TestResolver_SearchFailuresAreNoResults(t *testing.T) {
	p := newFakeProvider()
	p.errs["broken"] = errors.New("HTTP Error 429")
	r := newTestResolver(t, p, ResolverOptions{})

	_, err := r.Search(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrNoResultsFound)

	_, err = r.Search(context.Background(), "nothing matches")
	assert.ErrorIs(t, err, ErrNoResultsFound)

	// failures are not cached
	_, _ = r.Search(context.Background(), "broken")
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestResolver_ResolveCacheKeyIncludesExpansion(t *testing.T) {
	p := newFakeProvider()
	r := newTestResolver(t, p, ResolverOptions{})
	ctx := context.Background()
	u := "https://youtu.be/abc"

	_, err := r.Resolve(ctx, u, true)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, u, false)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, u, true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), p.calls.Load())
	assert.Equal(t, 2, r.Cache().Len())
}

func TestResolver_ResolveWrapsFailures(t *testing.T) {
	p := newFakeProvider()
	p.errs["https://youtu.be/gone"] = errors.New("Video unavailable")
	r := newTestResolver(t, p, ResolverOptions{})

	_, err := r.Resolve(context.Background(), "https://youtu.be/gone", false)
	require.ErrorIs(t, err, ErrResolutionFailure)
	assert.Contains(t, err.Error(), "Video unavailable")
	assert.Equal(t, 0, r.Cache().Len())
}

func TestResolver_ResolveTimesOut(t *testing.T) {
	p := newFakeProvider()
	p.delay = func(string) time.Duration { return time.Second }
	r := newTestResolver(t, p, ResolverOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := r.Resolve(context.Background(), "https://youtu.be/slow", false)
	assert.ErrorIs(t, err, ErrResolutionFailure)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestResolver_ResolveManyKeepsInputOrder(t *testing.T) {
	p := newFakeProvider()
	urls := make([]string, 6)
	delays := make(map[string]time.Duration)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://youtu.be/%d", i)
		// later entries finish first
		delays[urls[i]] = time.Duration(len(urls)-i) * 5 * time.Millisecond
	}
	p.delay = func(k string) time.Duration { return delays[k] }
	r := newTestResolver(t, p, ResolverOptions{MaxConcurrent: 6})

	results := r.ResolveMany(context.Background(), urls)
	require.Len(t, results, len(urls))
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, urls[i], res.URL)
		assert.Equal(t, urls[i], res.Metadata.URL)
	}
}

func TestResolver_ResolveManyBoundsInFlightCalls(t *testing.T) {
	p := newFakeProvider()
	p.delay = func(string) time.Duration { return 30 * time.Millisecond }
	r := newTestResolver(t, p, ResolverOptions{MaxConcurrent: 5})

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://youtu.be/bound%d", i)
	}

	results := r.ResolveMany(context.Background(), urls)
	require.Len(t, results, 8)
	assert.LessOrEqual(t, p.maxInFlight.Load(), int32(5))
	assert.Greater(t, p.maxInFlight.Load(), int32(1))
}

func TestResolver_ResolveManyIsolatesFailures(t *testing.T) {
	p := newFakeProvider()
	p.errs["https://youtu.be/bad"] = errors.New("private video")
	r := newTestResolver(t, p, ResolverOptions{})

	results := r.ResolveMany(context.Background(), []string{
		"https://youtu.be/a",
		"https://youtu.be/bad",
		"https://youtu.be/c",
	})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrResolutionFailure)
	assert.Nil(t, results[1].Metadata)
	assert.NoError(t, results[2].Err)
}

func TestResolver_ProviderPanicIsAnError(t *testing.T) {
	r := newTestResolver(t, panicProvider{}, ResolverOptions{})

	_, err := r.Resolve(context.Background(), "https://youtu.be/x", false)
	assert.ErrorIs(t, err, ErrResolutionFailure)

	// the limiter slot was released
	_, err = r.Resolve(context.Background(), "https://youtu.be/y", false)
	assert.ErrorIs(t, err, ErrResolutionFailure)
}

type panicProvider struct{}

func (panicProvider) Search(context.Context, string) ([]Metadata, error) { panic("search") }

func (panicProvider) Extract(context.Context, string, bool) (*Metadata, error) { panic("extract") }
