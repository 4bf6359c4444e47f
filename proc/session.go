package proc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Session is one guild's playback state. Every field below mu is guarded by
// it; the orchestrator and reaper drive all mutation.
type Session struct {
	GuildID snowflake.ID

	// joinMu serializes voice connects for this guild.
	joinMu sync.Mutex

	mu           sync.Mutex
	channelID    snowflake.ID
	conn         VoiceConn
	queue        []*Track
	backlog      []string
	current      *Track
	completion   completion
	playhead     Playhead
	lastActivity time.Time

	// gen changes on every reset; loops started under an older gen exit.
	gen uint64
	// epoch changes on clear so in-flight pump batches are discarded.
	epoch uint64
	// drainSeq identifies the latest drain; only that one may disconnect.
	drainSeq      uint64
	pumpRunning   bool
	playerRunning bool
	interrupting  bool

	now func() time.Time
}

func newSession(guildID, channelID snowflake.ID, now func() time.Time) *Session {
	return &Session{
		GuildID:      guildID,
		channelID:    channelID,
		lastActivity: now(),
		now:          now,
	}
}

// Reset clears the queue, backlog, current track and playback flags.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.gen++
	s.epoch++
	s.drainSeq++
	s.queue = nil
	s.backlog = nil
	s.current = nil
	s.completion = completion{}
	s.playhead = Playhead{}
	s.pumpRunning = false
	s.playerRunning = false
	s.interrupting = false
}

// Touch marks user activity.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
}

func (s *Session) touchLocked() {
	s.lastActivity = s.now()
}

func (s *Session) idleLocked() bool {
	if s.current != nil || s.interrupting || s.pumpRunning || len(s.queue) > 0 || len(s.backlog) > 0 {
		return false
	}
	return s.conn == nil || (!s.conn.IsPlaying() && !s.conn.IsPaused())
}

// --- Completion detection ---

// afterSignal records an engine-reported failure from a Play onAfter hook.
type afterSignal struct {
	err atomic.Pointer[error]
}

func (a *afterSignal) report(err error) {
	if err != nil {
		a.err.CompareAndSwap(nil, &err)
	}
}

func (a *afterSignal) Err() error {
	if a == nil {
		return nil
	}
	if p := a.err.Load(); p != nil {
		return *p
	}
	return nil
}

// completion is the armed/observed pair. The engine only offers an
// "is playing" probe, so a track counts as finished once it has been seen
// active and then goes quiet.
type completion struct {
	armed    bool
	observed bool
	skipped  bool
	armedAt  time.Time
	after    *afterSignal
}

func (c *completion) arm(now time.Time) *afterSignal {
	sig := &afterSignal{}
	*c = completion{armed: true, armedAt: now, after: sig}
	return sig
}

// check reports whether the armed source is done, and the failure if it
// ended badly. Paused counts as active.
func (c *completion) check(playing, paused bool, now time.Time, startTimeout time.Duration) (bool, error) {
	if err := c.after.Err(); err != nil {
		return true, err
	}
	if c.skipped {
		return true, nil
	}
	active := playing || paused
	if c.armed {
		if active {
			c.armed = false
			c.observed = true
			return false, nil
		}
		if startTimeout > 0 && now.Sub(c.armedAt) > startTimeout {
			return true, errStartTimeout
		}
		return false, nil
	}
	return c.observed && !active, nil
}

// --- Playhead ---

// Playhead accumulates played time as a duration. It never subtracts wall
// clock timestamps from each other except for one running segment, which
// uses the monotonic reading carried by time.Now.
type Playhead struct {
	offset    time.Duration
	segmentAt time.Time
	running   bool
}

func (p *Playhead) Start(offset time.Duration, now time.Time) {
	p.offset = offset
	p.segmentAt = now
	p.running = true
}

func (p *Playhead) Pause(now time.Time) {
	if !p.running {
		return
	}
	p.offset += now.Sub(p.segmentAt)
	p.running = false
}

func (p *Playhead) Resume(now time.Time) {
	if p.running {
		return
	}
	p.segmentAt = now
	p.running = true
}

func (p *Playhead) Position(now time.Time) time.Duration {
	if !p.running {
		return p.offset
	}
	return p.offset + now.Sub(p.segmentAt)
}
