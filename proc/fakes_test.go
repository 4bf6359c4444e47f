package proc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// --- Metadata provider ---

type fakeProvider struct {
	mu      sync.Mutex
	search  map[string][]Metadata
	extract map[string]*Metadata
	errs    map[string]error
	delay   func(key string) time.Duration
	gate    func(key string) <-chan struct{}

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		search:  make(map[string][]Metadata),
		extract: make(map[string]*Metadata),
		errs:    make(map[string]error),
	}
}

func (f *fakeProvider) enter(ctx context.Context, key string) error {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.delay != nil {
		select {
		case <-time.After(f.delay(key)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if f.gate != nil {
		if ch := f.gate(key); ch != nil {
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[key]
}

func (f *fakeProvider) Search(ctx context.Context, query string) ([]Metadata, error) {
	if err := f.enter(ctx, query); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.search[query], nil
}

// Extract returns the registered metadata for url, or a plain single track
// titled after the URL.
func (f *fakeProvider) Extract(ctx context.Context, url string, _ bool) (*Metadata, error) {
	if err := f.enter(ctx, url); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.extract[url]; ok {
		c := *m
		return &c, nil
	}
	return &Metadata{URL: url, Title: "title " + url, Duration: 3 * time.Minute}, nil
}

// --- Voice engine ---

type fakePlay struct {
	Source string
	Offset time.Duration
}

// fakeConn simulates an engine with no completion event: a source becomes
// "playing" after startDelay and stops after its length of unpaused time.
type fakeConn struct {
	mu          sync.Mutex
	plays       []fakePlay
	active      bool
	playing     bool
	paused      bool
	seq         int
	stops       int
	disconnects int

	startDelay time.Duration
	length     time.Duration
	lengths    map[string]time.Duration
	fail       map[string]error
	neverStart map[string]bool
	explode    atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		startDelay: 5 * time.Millisecond,
		length:     30 * time.Millisecond,
		lengths:    make(map[string]time.Duration),
		fail:       make(map[string]error),
		neverStart: make(map[string]bool),
	}
}

func (c *fakeConn) Play(source string, offset time.Duration, onAfter func(error)) error {
	c.mu.Lock()
	c.plays = append(c.plays, fakePlay{Source: source, Offset: offset})
	c.seq++
	seq := c.seq
	c.active, c.playing, c.paused = true, false, false
	failErr := c.fail[source]
	never := c.neverStart[source]
	remaining := c.length
	if l, ok := c.lengths[source]; ok {
		remaining = l
	}
	startDelay := c.startDelay
	c.mu.Unlock()

	go func() {
		time.Sleep(startDelay)
		if failErr != nil {
			c.mu.Lock()
			if c.seq == seq {
				c.active = false
			}
			c.mu.Unlock()
			onAfter(failErr)
			return
		}
		if never {
			return
		}

		c.mu.Lock()
		if c.seq != seq {
			c.mu.Unlock()
			return
		}
		c.playing = true
		c.mu.Unlock()

		last := time.Now()
		for remaining > 0 {
			time.Sleep(time.Millisecond)
			now := time.Now()
			c.mu.Lock()
			if c.seq != seq {
				c.mu.Unlock()
				return
			}
			if !c.paused {
				remaining -= now.Sub(last)
			}
			c.mu.Unlock()
			last = now
		}

		c.mu.Lock()
		if c.seq == seq {
			c.active, c.playing, c.paused = false, false, false
		}
		c.mu.Unlock()
		onAfter(nil)
	}()
	return nil
}

func (c *fakeConn) IsPlaying() bool {
	if c.explode.Load() {
		panic("engine state unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}

func (c *fakeConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && c.paused
}

// Pause follows the engine contract: a starting source is held, no source
// means no-op.
func (c *fakeConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.paused = true
	}
}

func (c *fakeConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *fakeConn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.stops++
	c.active, c.playing, c.paused = false, false, false
}

func (c *fakeConn) Disconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return nil
}

func (c *fakeConn) Plays() []fakePlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakePlay(nil), c.plays...)
}

func (c *fakeConn) Sources() []string {
	var out []string
	for _, p := range c.Plays() {
		out = append(out, p.Source)
	}
	return out
}

func (c *fakeConn) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeConnector struct {
	mu       sync.Mutex
	conn     *fakeConn
	connects int
	err      error
	// during runs inside Connect before it returns, once per connect.
	during func(attempt int)
}

func (f *fakeConnector) Connect(context.Context, snowflake.ID, snowflake.ID) (VoiceConn, error) {
	f.mu.Lock()
	f.connects++
	attempt, during, err := f.connects, f.during, f.err
	f.mu.Unlock()

	if during != nil {
		during(attempt)
	}
	if err != nil {
		return nil, err
	}
	return f.conn, nil
}

func (f *fakeConnector) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// --- Harness ---

const (
	testGuild   = snowflake.ID(111111111111111111)
	testChannel = snowflake.ID(222222222222222222)
)

var errEngine = errors.New("decoder exploded")

type harness struct {
	vs        *VoiceSystem
	provider  *fakeProvider
	conn      *fakeConn
	connector *fakeConnector
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	provider := newFakeProvider()
	conn := newFakeConn()
	connector := &fakeConnector{conn: conn}

	pool := NewWorkerPool(8)
	resolver := NewResolver(provider, pool, ResolverOptions{MaxConcurrent: 5, Timeout: time.Second})

	if opts.PollInterval == 0 {
		opts.PollInterval = 2 * time.Millisecond
	}
	if opts.IdleDisconnectDelay == 0 {
		opts.IdleDisconnectDelay = time.Hour
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = 5 * time.Second
	}
	vs := NewVoiceSystem(context.Background(), resolver, connector, opts)

	t.Cleanup(func() {
		vs.Shutdown(context.Background())
		pool.Close()
	})
	return &harness{vs: vs, provider: provider, conn: conn, connector: connector}
}

func (h *harness) play(t *testing.T, query string) PlayResult {
	t.Helper()
	res, err := h.vs.Play(context.Background(), testGuild, testChannel, query)
	if err != nil {
		t.Fatalf("play %q: %v", query, err)
	}
	return res
}

// settable clock for the reaper and playhead tests
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
