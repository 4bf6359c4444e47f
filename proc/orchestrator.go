package proc

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/cadence/sys"
	"github.com/samber/lo"
)

type Options struct {
	QueueLoadLimit      int
	IdleDisconnectDelay time.Duration
	PollInterval        time.Duration
	StartTimeout        time.Duration
	BackpressureDelay   time.Duration
	QueueDisplayLimit   int
	InterruptClip       string

	// OnTrackStart runs in its own goroutine each time a track begins.
	OnTrackStart func(guildID snowflake.ID, t *Track)

	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.QueueLoadLimit <= 0 {
		o.QueueLoadLimit = 20
	}
	if o.IdleDisconnectDelay <= 0 {
		o.IdleDisconnectDelay = 240 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = 30 * time.Second
	}
	if o.BackpressureDelay <= 0 {
		o.BackpressureDelay = 2 * o.PollInterval
	}
	if o.QueueDisplayLimit <= 0 {
		o.QueueDisplayLimit = 10
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// PlayResult acknowledges a play request.
type PlayResult struct {
	Track    *Track
	Position int
	Playlist bool
	Count    int
}

// QueueSummary is a snapshot of a session for display.
type QueueSummary struct {
	Current  *Track
	Elapsed  time.Duration
	Paused   bool
	Upcoming []*Track
	// Hidden counts queued tracks past the display limit.
	Hidden  int
	Pending int
}

// VoiceSystem owns every guild session and the loops that drive them.
type VoiceSystem struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*Session

	resolver  *Resolver
	connector VoiceConnector
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
}

func NewVoiceSystem(ctx context.Context, resolver *Resolver, connector VoiceConnector, opts Options) *VoiceSystem {
	ctx, cancel := context.WithCancel(ctx)
	return &VoiceSystem{
		sessions:  make(map[snowflake.ID]*Session),
		resolver:  resolver,
		connector: connector,
		opts:      opts.withDefaults(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (vs *VoiceSystem) Resolver() *Resolver { return vs.resolver }

func (vs *VoiceSystem) now() time.Time { return vs.opts.Now() }

// Session returns the guild's session, if one exists.
func (vs *VoiceSystem) Session(guildID snowflake.ID) *Session {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.sessions[guildID]
}

func (vs *VoiceSystem) Sessions() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.sessions)
}

// Playing counts sessions with a current track.
func (vs *VoiceSystem) Playing() int {
	vs.mu.Lock()
	sessions := lo.Values(vs.sessions)
	vs.mu.Unlock()

	return lo.CountBy(sessions, func(s *Session) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.current != nil
	})
}

// --- Commands ---

// Play resolves query (a URL, playlist URL or search text) and queues the
// result. It returns once the request is queued, not when playback starts.
func (vs *VoiceSystem) Play(ctx context.Context, guildID, channelID snowflake.ID, query string) (PlayResult, error) {
	if channelID == 0 {
		return PlayResult{}, ErrNotInVoiceChannel
	}

	if !isURL(query) {
		track, err := vs.resolver.Search(ctx, query)
		if err != nil {
			return PlayResult{}, err
		}
		return vs.enqueue(ctx, guildID, channelID, track)
	}

	meta, err := vs.resolver.Resolve(ctx, query, true)
	if err != nil {
		return PlayResult{}, err
	}

	if len(meta.Entries) == 0 {
		track := FormatTrack(meta)
		if track == nil {
			sys.LogVoice(sys.MsgVoiceMalformedEntry, query, guildID)
			return PlayResult{}, ErrResolutionFailure
		}
		return vs.enqueue(ctx, guildID, channelID, track)
	}

	urls, dropped := playlistURLs(meta)
	if len(urls) == 0 {
		return PlayResult{}, ErrNoResultsFound
	}
	if dropped > 0 {
		sys.LogVoice(sys.MsgVoicePlaylistDropped, dropped, query, guildID)
	}

	err = vs.withSession(ctx, guildID, channelID, func(sess *Session) {
		sess.backlog = append(sess.backlog, urls...)
		sess.drainSeq++
		if !sess.pumpRunning {
			sess.pumpRunning = true
			gen := sess.gen
			sys.SafeGo(func() { vs.pump(sess, gen) })
		}
	})
	if err != nil {
		return PlayResult{}, err
	}

	sys.LogVoice(sys.MsgVoiceBacklogQueued, len(urls), guildID)
	return PlayResult{Playlist: true, Count: len(urls)}, nil
}

func (vs *VoiceSystem) enqueue(ctx context.Context, guildID, channelID snowflake.ID, track *Track) (PlayResult, error) {
	var pos int
	err := vs.withSession(ctx, guildID, channelID, func(sess *Session) {
		sess.queue = append(sess.queue, track)
		pos = len(sess.queue)
		vs.startPlayerLocked(sess)
	})
	if err != nil {
		return PlayResult{}, err
	}

	sys.LogVoice(sys.MsgVoiceQueued, track.Title, guildID, pos)
	return PlayResult{Track: track, Position: pos}, nil
}

// Stop clears the session and disconnects from voice.
func (vs *VoiceSystem) Stop(ctx context.Context, guildID snowflake.ID) error {
	if !vs.teardown(ctx, guildID) {
		return ErrNoActiveSession
	}
	sys.LogVoice(sys.MsgVoiceStopped, guildID)
	return nil
}

// Disconnected handles the platform reporting that the bot left voice.
func (vs *VoiceSystem) Disconnected(ctx context.Context, guildID snowflake.ID) {
	if vs.teardown(ctx, guildID) {
		sys.LogVoice(sys.MsgVoiceDeparted, guildID)
	}
}

func (vs *VoiceSystem) Skip(guildID snowflake.ID) error {
	sess := vs.Session(guildID)
	if sess == nil {
		return ErrNoActiveSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.interrupting {
		return ErrInterruptInProgress
	}
	if sess.current == nil || sess.conn == nil {
		return ErrNothingPlaying
	}
	sess.touchLocked()
	sess.completion.skipped = true
	sess.conn.Stop()
	return nil
}

// Clear empties the queue and backlog but leaves the current track playing.
func (vs *VoiceSystem) Clear(guildID snowflake.ID) error {
	sess := vs.Session(guildID)
	if sess == nil {
		return ErrNoActiveSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.touchLocked()
	sess.epoch++
	sess.queue = nil
	sess.backlog = nil
	return nil
}

func (vs *VoiceSystem) Pause(guildID snowflake.ID) error {
	sess := vs.Session(guildID)
	if sess == nil {
		return ErrNothingPlaying
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.interrupting {
		return ErrInterruptInProgress
	}
	if sess.conn == nil || sess.current == nil || !sess.conn.IsPlaying() {
		return ErrNothingPlaying
	}
	sess.touchLocked()
	sess.conn.Pause()
	sess.playhead.Pause(vs.now())
	return nil
}

func (vs *VoiceSystem) Resume(guildID snowflake.ID) error {
	sess := vs.Session(guildID)
	if sess == nil {
		return ErrNothingPaused
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.interrupting {
		return ErrInterruptInProgress
	}
	if sess.conn == nil || !sess.conn.IsPaused() {
		return ErrNothingPaused
	}
	sess.touchLocked()
	sess.conn.Resume()
	sess.playhead.Resume(vs.now())
	return nil
}

// Queue summarizes the session. A guild without a session has an empty queue.
func (vs *VoiceSystem) Queue(guildID snowflake.ID) QueueSummary {
	sess := vs.Session(guildID)
	if sess == nil {
		return QueueSummary{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.touchLocked()
	limit := vs.opts.QueueDisplayLimit
	sum := QueueSummary{
		Current:  sess.current,
		Elapsed:  sess.playhead.Position(vs.now()),
		Upcoming: slices.Clone(lo.Slice(sess.queue, 0, limit)),
		Hidden:   max(len(sess.queue)-limit, 0),
		Pending:  len(sess.backlog),
	}
	if sess.conn != nil {
		sum.Paused = sess.conn.IsPaused()
	}
	return sum
}

// Shutdown stops every loop and disconnects all sessions.
func (vs *VoiceSystem) Shutdown(ctx context.Context) {
	sys.LogVoice(sys.MsgVoiceShutdown)
	vs.cancel()

	vs.mu.Lock()
	ids := lo.Keys(vs.sessions)
	vs.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vs.teardown(ctx, id)
		}()
	}
	wg.Wait()
}

// --- Session lifecycle ---

// withSession runs fn under the session lock once the guild has a live voice
// connection, connecting first if needed.
func (vs *VoiceSystem) withSession(ctx context.Context, guildID, channelID snowflake.ID, fn func(sess *Session)) error {
	var err error
	for range 2 {
		var sess *Session
		sess, err = vs.ensureSession(ctx, guildID, channelID)
		if err != nil {
			return err
		}

		sess.mu.Lock()
		if sess.conn == nil {
			// Reset between connect and now; try again with a fresh session.
			sess.mu.Unlock()
			err = ErrNoActiveSession
			continue
		}
		sess.touchLocked()
		fn(sess)
		sess.mu.Unlock()
		return nil
	}
	return err
}

func (vs *VoiceSystem) ensureSession(ctx context.Context, guildID, channelID snowflake.ID) (*Session, error) {
	vs.mu.Lock()
	sess, ok := vs.sessions[guildID]
	if !ok {
		sess = newSession(guildID, channelID, vs.now)
		vs.sessions[guildID] = sess
	}
	vs.mu.Unlock()

	sess.joinMu.Lock()
	defer sess.joinMu.Unlock()

	sess.mu.Lock()
	connected := sess.conn != nil
	sess.mu.Unlock()
	if connected {
		return sess, nil
	}

	sys.LogVoice(sys.MsgVoiceJoining, channelID, guildID)
	conn, err := vs.connector.Connect(ctx, guildID, channelID)
	if err != nil {
		sys.LogVoice(sys.MsgVoiceJoinFail, guildID, err)
		vs.removeSession(guildID, sess)
		return nil, err
	}

	vs.mu.Lock()
	sess.mu.Lock()
	attached := vs.sessions[guildID] == sess
	if attached {
		sess.conn = conn
		sess.channelID = channelID
	}
	sess.mu.Unlock()
	vs.mu.Unlock()

	if !attached {
		// Stopped while connecting.
		_ = conn.Disconnect(ctx)
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

func (vs *VoiceSystem) removeSession(guildID snowflake.ID, sess *Session) {
	vs.mu.Lock()
	if vs.sessions[guildID] == sess {
		delete(vs.sessions, guildID)
	}
	vs.mu.Unlock()
}

// teardown resets and removes the guild's session and disconnects its voice
// connection. It reports whether a session existed.
func (vs *VoiceSystem) teardown(ctx context.Context, guildID snowflake.ID) bool {
	sess := vs.Session(guildID)
	if sess == nil {
		return false
	}

	conn, _ := vs.detach(sess, nil)
	if conn != nil {
		conn.Stop()
		if err := conn.Disconnect(ctx); err != nil {
			sys.LogVoice(sys.MsgVoiceDisconnectFail, guildID, err)
		}
	}
	return true
}

// detach resets sess, removes it from the arena and returns the connection it
// held. With a keep func it only acts on a session still in the arena, and
// keep (called with the session lock held) can veto. Lock order is vs.mu then
// sess.mu, as in ensureSession.
func (vs *VoiceSystem) detach(sess *Session, keep func() bool) (VoiceConn, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	attached := vs.sessions[sess.GuildID] == sess
	if keep != nil && (!attached || keep()) {
		return nil, false
	}
	conn := sess.conn
	sess.resetLocked()
	sess.conn = nil
	if attached {
		delete(vs.sessions, sess.GuildID)
	}
	return conn, true
}

// --- Resolution pump ---

func (vs *VoiceSystem) pump(sess *Session, gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogError(sys.MsgVoiceLoopPanic, "pump", sess.GuildID, r)
			sess.mu.Lock()
			if sess.gen == gen {
				sess.pumpRunning = false
			}
			sess.mu.Unlock()
		}
	}()

	batchSize := vs.resolver.Capacity()
	for {
		sess.mu.Lock()
		if sess.gen != gen || sess.conn == nil || len(sess.backlog) == 0 {
			if sess.gen == gen {
				sess.pumpRunning = false
			}
			sess.mu.Unlock()
			return
		}

		if queued := len(sess.queue); queued > vs.opts.QueueLoadLimit {
			vs.startPlayerLocked(sess)
			sess.mu.Unlock()
			sys.LogDebug(sys.MsgVoiceBackpressure, sess.GuildID, queued)
			if !vs.sleep(vs.opts.BackpressureDelay) {
				return
			}
			continue
		}

		n := min(batchSize, len(sess.backlog))
		urls := slices.Clone(sess.backlog[:n])
		sess.backlog = sess.backlog[n:]
		epoch := sess.epoch
		sess.mu.Unlock()

		results := vs.resolver.ResolveMany(vs.ctx, urls)

		tracks := make([]*Track, 0, len(results))
		for _, res := range results {
			if res.Err != nil {
				sys.LogVoice(sys.MsgVoiceResolutionFail, res.URL, sess.GuildID, res.Err)
				continue
			}
			t := FormatTrack(res.Metadata)
			if t == nil {
				sys.LogVoice(sys.MsgVoiceMalformedEntry, res.URL, sess.GuildID)
				continue
			}
			tracks = append(tracks, t)
		}

		sess.mu.Lock()
		if sess.gen == gen && sess.epoch == epoch {
			sess.queue = append(sess.queue, tracks...)
			vs.startPlayerLocked(sess)
		}
		sess.mu.Unlock()
	}
}

// --- Player loop ---

// startPlayerLocked starts the player loop unless one is already running.
func (vs *VoiceSystem) startPlayerLocked(sess *Session) {
	if sess.playerRunning || sess.conn == nil || len(sess.queue) == 0 {
		return
	}
	sess.playerRunning = true
	sess.drainSeq++
	gen := sess.gen
	sys.SafeGo(func() { vs.playerLoop(sess, gen) })
}

func (vs *VoiceSystem) playerLoop(sess *Session, gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogError(sys.MsgVoiceLoopPanic, "player", sess.GuildID, r)
			sess.mu.Lock()
			if sess.gen == gen {
				sess.playerRunning = false
			}
			sess.mu.Unlock()
		}
	}()

	for {
		sess.mu.Lock()
		if sess.gen != gen || sess.conn == nil {
			sess.mu.Unlock()
			return
		}

		if !sess.interrupting {
			if sess.current != nil {
				vs.checkCurrentLocked(sess)
			}

			if sess.current == nil {
				if len(sess.queue) == 0 {
					sess.playerRunning = false
					sess.drainSeq++
					seq := sess.drainSeq
					sess.mu.Unlock()
					vs.drain(sess, gen, seq)
					return
				}
				if !sess.conn.IsPlaying() && !sess.conn.IsPaused() {
					next := sess.queue[0]
					sess.queue = sess.queue[1:]
					vs.startTrackLocked(sess, next)
				}
			}
		}
		sess.mu.Unlock()

		if !vs.sleep(vs.opts.PollInterval) {
			return
		}
	}
}

func (vs *VoiceSystem) checkCurrentLocked(sess *Session) {
	done, err := sess.completion.check(sess.conn.IsPlaying(), sess.conn.IsPaused(), vs.now(), vs.opts.StartTimeout)
	if !done {
		return
	}

	t := sess.current
	switch {
	case err == errStartTimeout:
		sys.LogVoice(sys.MsgVoiceStartTimeout, t.Title, sess.GuildID)
		sess.conn.Stop()
	case err != nil:
		sys.LogVoice(sys.MsgVoiceEngineError, t.Title, sess.GuildID, err)
	default:
		sys.LogVoice(sys.MsgVoiceFinished, t.Title)
	}
	sess.current = nil
	sess.completion = completion{}
	sess.playhead = Playhead{}
}

func (vs *VoiceSystem) startTrackLocked(sess *Session, t *Track) {
	now := vs.now()
	sig := sess.completion.arm(now)
	sess.current = t
	sess.playhead.Start(0, now)

	if err := sess.conn.Play(t.URL, 0, sig.report); err != nil {
		sys.LogVoice(sys.MsgVoicePlayFail, t.Title, sess.GuildID, err)
		sess.current = nil
		sess.completion = completion{}
		sess.playhead = Playhead{}
		return
	}

	sys.LogVoice(sys.MsgVoicePlaying, t.Title, t.Uploader, t.URL)
	if s, ok := sess.conn.(statusSetter); ok {
		s.SetStatus(statusText(t))
	}
	if hook := vs.opts.OnTrackStart; hook != nil {
		guildID := sess.GuildID
		sys.SafeGo(func() { hook(guildID, t) })
	}
}

// drain waits out the idle delay and disconnects if nothing happened since.
func (vs *VoiceSystem) drain(sess *Session, gen, seq uint64) {
	sys.LogVoice(sys.MsgVoiceDraining, sess.GuildID, vs.opts.IdleDisconnectDelay)
	if !vs.sleep(vs.opts.IdleDisconnectDelay) {
		return
	}

	conn, ok := vs.detach(sess, func() bool {
		return sess.gen != gen || sess.drainSeq != seq || sess.playerRunning || !sess.idleLocked()
	})
	if !ok {
		return
	}

	sys.LogVoice(sys.MsgVoiceIdleDisconnect, sess.GuildID)
	if conn != nil {
		if err := conn.Disconnect(vs.ctx); err != nil {
			sys.LogVoice(sys.MsgVoiceDisconnectFail, sess.GuildID, err)
		}
	}
}

// sleep waits for d and reports false if the system shut down meanwhile.
func (vs *VoiceSystem) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-vs.ctx.Done():
		return false
	}
}

func statusText(t *Track) string {
	if t.Uploader == "" {
		return t.Title
	}
	return t.Title + " · " + t.Uploader
}
