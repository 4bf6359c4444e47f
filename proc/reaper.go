package proc

import (
	"context"
	"fmt"
	"time"

	"github.com/leeineian/cadence/sys"
)

// Sweeper is anything holding expirable entries.
type Sweeper interface {
	SweepExpired() int
}

// Reaper periodically sweeps the resolver cache and evicts idle sessions.
type Reaper struct {
	vs           *VoiceSystem
	cache        Sweeper
	period       time.Duration
	idle         time.Duration
	restartDelay time.Duration
}

func NewReaper(vs *VoiceSystem, cache Sweeper, period, idle time.Duration) *Reaper {
	if period <= 0 {
		period = 300 * time.Second
	}
	if idle <= 0 {
		idle = 900 * time.Second
	}
	return &Reaper{
		vs:           vs,
		cache:        cache,
		period:       period,
		idle:         idle,
		restartDelay: time.Second,
	}
}

// Run supervises the sweep loop, restarting it after a failed tick, until
// ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	for {
		err := r.loop(ctx)
		if err == nil {
			sys.LogReaper(sys.MsgReaperStopped)
			return
		}
		sys.LogError(sys.MsgReaperTickFailed, err)

		select {
		case <-ctx.Done():
			sys.LogReaper(sys.MsgReaperStopped)
			return
		case <-time.After(r.restartDelay):
		}
	}
}

func (r *Reaper) loop(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one sweep and reports what it removed.
func (r *Reaper) Tick(ctx context.Context) (swept, evicted int) {
	if r.cache != nil {
		swept = r.cache.SweepExpired()
	}
	evicted = r.vs.evictIdle(ctx, r.idle)
	if swept > 0 || evicted > 0 {
		sys.LogReaper(sys.MsgReaperSwept, swept, evicted)
	}
	return swept, evicted
}

// evictIdle removes sessions with no activity for longer than idle that have
// nothing playing or waiting.
func (vs *VoiceSystem) evictIdle(ctx context.Context, idle time.Duration) int {
	vs.mu.Lock()
	candidates := make([]*Session, 0, len(vs.sessions))
	for _, sess := range vs.sessions {
		candidates = append(candidates, sess)
	}
	vs.mu.Unlock()

	now := vs.now()
	evicted := 0
	for _, sess := range candidates {
		var idleFor time.Duration
		conn, ok := vs.detach(sess, func() bool {
			idleFor = now.Sub(sess.lastActivity)
			return idleFor <= idle || !sess.idleLocked()
		})
		if !ok {
			continue
		}

		evicted++
		sys.LogReaper(sys.MsgReaperEvicted, sess.GuildID, idleFor.Round(time.Second))

		if conn != nil {
			if err := conn.Disconnect(ctx); err != nil {
				sys.LogVoice(sys.MsgVoiceDisconnectFail, sess.GuildID, err)
			}
		}
	}
	return evicted
}
