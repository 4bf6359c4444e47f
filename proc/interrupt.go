package proc

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/cadence/sys"
)

// Interrupt pauses the current track, plays clip to completion and then
// resumes the track from where it was paused. An empty clip falls back to
// the configured one.
func (vs *VoiceSystem) Interrupt(ctx context.Context, guildID snowflake.ID, clip string) error {
	if clip == "" {
		clip = vs.opts.InterruptClip
	}
	if clip == "" {
		return ErrNoInterruptClip
	}

	sess := vs.Session(guildID)
	if sess == nil {
		return ErrNoActiveSession
	}

	sess.mu.Lock()
	if sess.interrupting {
		sess.mu.Unlock()
		return ErrInterruptInProgress
	}
	if sess.conn == nil || sess.current == nil || (!sess.conn.IsPlaying() && !sess.conn.IsPaused()) {
		sess.mu.Unlock()
		return ErrNothingPlaying
	}

	conn := sess.conn
	track := sess.current
	gen := sess.gen
	wasPaused := conn.IsPaused()

	now := vs.now()
	sess.interrupting = true
	sess.touchLocked()
	if !wasPaused {
		conn.Pause()
	}
	sess.playhead.Pause(now)
	offset := sess.playhead.Position(now)
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		if sess.gen == gen {
			sess.interrupting = false
		}
		sess.mu.Unlock()
	}()

	sys.LogVoice(sys.MsgVoiceInterruptStart, track.Title, guildID, offset)

	conn.Stop()
	clipErr := vs.playToEnd(ctx, conn, clip)
	if clipErr != nil {
		sys.LogVoice(sys.MsgVoiceInterruptFail, guildID, clipErr)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.gen != gen || sess.conn != conn || sess.current != track {
		// Stopped or skipped while the clip played.
		return clipErr
	}

	now = vs.now()
	sig := sess.completion.arm(now)
	sess.playhead.Start(offset, now)
	if err := conn.Play(track.URL, offset, sig.report); err != nil {
		sys.LogVoice(sys.MsgVoicePlayFail, track.Title, guildID, err)
		sess.current = nil
		sess.completion = completion{}
		sess.playhead = Playhead{}
		return err
	}
	if wasPaused {
		conn.Pause()
		sess.playhead.Pause(now)
	}
	sys.LogVoice(sys.MsgVoiceInterruptResume, track.Title, guildID, offset)
	return clipErr
}

// playToEnd plays source and polls until it finishes, using the same
// armed/observed detection as the player loop.
func (vs *VoiceSystem) playToEnd(ctx context.Context, conn VoiceConn, source string) error {
	var c completion
	sig := c.arm(vs.now())
	if err := conn.Play(source, 0, sig.report); err != nil {
		return err
	}

	for {
		if !vs.sleepCtx(ctx, vs.opts.PollInterval) {
			conn.Stop()
			if err := ctx.Err(); err != nil {
				return err
			}
			return vs.ctx.Err()
		}
		done, err := c.check(conn.IsPlaying(), conn.IsPaused(), vs.now(), vs.opts.StartTimeout)
		if done {
			if err == errStartTimeout {
				conn.Stop()
			}
			return err
		}
	}
}

func (vs *VoiceSystem) sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-vs.ctx.Done():
		return false
	}
}
