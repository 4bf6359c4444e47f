package proc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leeineian/cadence/sys"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type ResolverOptions struct {
	CacheTTL      time.Duration
	MaxConcurrent int
	// RatePerSecond caps provider calls per second; zero means unlimited.
	RatePerSecond float64
	Timeout       time.Duration
}

// Resolver fronts a MetadataProvider with a TTL cache and a process-wide
// limit on in-flight provider calls.
type Resolver struct {
	provider MetadataProvider
	pool     *WorkerPool
	cache    *TTLCache[string, *Metadata]
	limiter  *semaphore.Weighted
	rate     *rate.Limiter
	capacity int
	timeout  time.Duration
}

// ResolveResult is the outcome for one URL of a ResolveMany batch.
type ResolveResult struct {
	URL      string
	Metadata *Metadata
	Err      error
}

func NewResolver(provider MetadataProvider, pool *WorkerPool, opts ResolverOptions) *Resolver {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Resolver{
		provider: provider,
		pool:     pool,
		cache:    NewTTLCache[string, *Metadata](opts.CacheTTL),
		limiter:  semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		rate:     rate.NewLimiter(limit, opts.MaxConcurrent),
		capacity: opts.MaxConcurrent,
		timeout:  opts.Timeout,
	}
}

func (r *Resolver) Capacity() int { return r.capacity }

func (r *Resolver) Cache() *TTLCache[string, *Metadata] { return r.cache }

// Search returns the first hit for query as a Track. Provider failures are
// logged and reported as ErrNoResultsFound.
func (r *Resolver) Search(ctx context.Context, query string) (*Track, error) {
	key := "search:" + query
	if meta, ok := r.cache.Get(key); ok {
		if t := FormatTrack(meta); t != nil {
			return t, nil
		}
	}

	meta, err := r.call(ctx, func(ctx context.Context) (*Metadata, error) {
		results, err := r.provider.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return &results[0], nil
	})
	if err != nil {
		sys.LogResolver(sys.MsgResolverSearchFail, query, err)
		return nil, ErrNoResultsFound
	}

	t := FormatTrack(meta)
	if t == nil {
		sys.LogResolver(sys.MsgResolverNoResults, query)
		return nil, ErrNoResultsFound
	}
	r.cache.Set(key, meta)
	return t, nil
}

// Resolve extracts metadata for url, expanding playlists into Entries when
// asked to.
func (r *Resolver) Resolve(ctx context.Context, url string, expandPlaylist bool) (*Metadata, error) {
	key := "info:" + url + ":" + strconv.FormatBool(expandPlaylist)
	if meta, ok := r.cache.Get(key); ok {
		return meta, nil
	}

	meta, err := r.call(ctx, func(ctx context.Context) (*Metadata, error) {
		return r.provider.Extract(ctx, url, expandPlaylist)
	})
	if err == nil && meta == nil {
		err = errors.New("empty metadata")
	}
	if err != nil {
		sys.LogResolver(sys.MsgResolverExtractFail, url, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrResolutionFailure, url, err)
	}

	r.cache.Set(key, meta)
	return meta, nil
}

// ResolveMany resolves every URL independently. The result at index i always
// belongs to urls[i], whatever order the calls complete in.
func (r *Resolver) ResolveMany(ctx context.Context, urls []string) []ResolveResult {
	results := make([]ResolveResult, len(urls))

	var g errgroup.Group
	g.SetLimit(r.capacity)
	for i, u := range urls {
		g.Go(func() error {
			meta, err := r.Resolve(ctx, u, false)
			results[i] = ResolveResult{URL: u, Metadata: meta, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// call runs fn on the worker pool while holding one limiter slot. The slot is
// held until fn returns, even if the caller gave up waiting.
func (r *Resolver) call(ctx context.Context, fn func(context.Context) (*Metadata, error)) (*Metadata, error) {
	if err := r.limiter.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := r.rate.Wait(ctx); err != nil {
		r.limiter.Release(1)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		meta *Metadata
		err  error
	}
	out := make(chan result, 1)

	err := r.pool.Submit(callCtx, func() {
		defer r.limiter.Release(1)
		defer func() {
			if p := recover(); p != nil {
				out <- result{err: fmt.Errorf("provider panic: %v", p)}
			}
		}()
		meta, err := fn(callCtx)
		out <- result{meta: meta, err: err}
	})
	if err != nil {
		r.limiter.Release(1)
		return nil, err
	}

	select {
	case res := <-out:
		return res.meta, res.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}
