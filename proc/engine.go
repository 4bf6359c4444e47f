package proc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/cadence/sys"
)

// StreamResolver turns a page URL into something the transcoder can open.
type StreamResolver interface {
	StreamURL(ctx context.Context, page string) (string, error)
}

// DiscordConnector opens disgo voice connections and plays audio through
// them with the astiav transcoder.
type DiscordConnector struct {
	client  *bot.Client
	streams StreamResolver
}

func NewDiscordConnector(client *bot.Client, streams StreamResolver) *DiscordConnector {
	return &DiscordConnector{client: client, streams: streams}
}

func (d *DiscordConnector) Connect(ctx context.Context, guildID, channelID snowflake.ID) (VoiceConn, error) {
	conn := d.client.VoiceManager.CreateConn(guildID)
	if err := conn.Open(ctx, channelID, false, false); err != nil {
		conn.Close(ctx)
		return nil, err
	}

	c := &discordConn{
		client:    d.client,
		conn:      conn,
		streams:   d.streams,
		channelID: channelID,
		status:    make(chan string, 10),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	sys.SafeGo(c.statusManager)
	return c, nil
}

type discordConn struct {
	client    *bot.Client
	conn      voice.Conn
	streams   StreamResolver
	channelID snowflake.ID

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	seq          uint64
	streamCancel context.CancelFunc

	playing atomic.Bool
	paused  atomic.Bool

	status chan string
}

func (c *discordConn) IsPlaying() bool { return c.playing.Load() && !c.paused.Load() }
func (c *discordConn) IsPaused() bool  { return c.playing.Load() && c.paused.Load() }

// Pause also holds a source that has not produced its first frame yet; it
// starts paused.
func (c *discordConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamCancel != nil {
		c.paused.Store(true)
	}
}

func (c *discordConn) Resume() { c.paused.Store(false) }

func (c *discordConn) Play(source string, offset time.Duration, onAfter func(error)) error {
	if c.ctx.Err() != nil {
		return errors.New("voice connection closed")
	}

	c.mu.Lock()
	if c.streamCancel != nil {
		c.streamCancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.streamCancel = cancel
	c.seq++
	seq := c.seq
	c.playing.Store(false)
	c.paused.Store(false)
	c.mu.Unlock()

	sys.SafeGo(func() {
		err := c.stream(ctx, seq, source, offset)
		cancel()
		c.mu.Lock()
		if c.seq == seq {
			c.streamCancel = nil
		}
		c.mu.Unlock()
		if onAfter != nil {
			onAfter(err)
		}
	})
	return nil
}

func (c *discordConn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.seq++
	c.playing.Store(false)
	c.paused.Store(false)
}

func (c *discordConn) Disconnect(ctx context.Context) error {
	c.Stop()
	c.setStatusNow("")
	c.cancel()
	c.conn.Close(ctx)
	return nil
}

func (c *discordConn) current(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq == seq
}

// stream resolves source, transcodes it and feeds the frames to the voice
// connection until it ends. Cancellation is not an error.
func (c *discordConn) stream(ctx context.Context, seq uint64, source string, offset time.Duration) error {
	input := source
	if c.streams != nil {
		u, err := c.streams.StreamURL(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Join(ErrPlaybackEngine, err)
		}
		input = u
	}

	t := NewTranscoder()
	defer t.Close()
	if err := t.OpenInput(input); err != nil {
		sys.LogVoice(sys.MsgVoiceTranscoderFail, "OpenInput", err)
		return errors.Join(ErrPlaybackEngine, err)
	}
	if err := t.SetupDecoder(); err != nil {
		sys.LogVoice(sys.MsgVoiceTranscoderFail, "SetupDecoder", err)
		return errors.Join(ErrPlaybackEngine, err)
	}
	if err := t.SetupEncoder(); err != nil {
		sys.LogVoice(sys.MsgVoiceTranscoderFail, "SetupEncoder", err)
		return errors.Join(ErrPlaybackEngine, err)
	}
	if err := t.SeekTo(offset); err != nil {
		sys.LogVoice(sys.MsgVoiceTranscoderFail, "SeekFrame", err)
	}

	p := newFrameProvider(ctx, &c.paused)
	c.setOpusFrameProviderSafe(p)
	c.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone)

	first := true
	err := t.Transcode(ctx, func(f []byte) {
		if first && f != nil && c.current(seq) {
			first = false
			c.playing.Store(true)
		}
		p.PushFrame(f)
	})

	select {
	case <-p.done:
	case <-ctx.Done():
	}

	if c.current(seq) {
		c.playing.Store(false)
		c.paused.Store(false)
		c.setOpusFrameProviderSafe(nil)
		c.conn.SetSpeaking(context.Background(), 0)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(ErrPlaybackEngine, err)
	}
	return nil
}

func (c *discordConn) setOpusFrameProviderSafe(provider voice.OpusFrameProvider) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogVoice(sys.MsgVoiceLoopPanic, "frame provider", c.channelID, r)
		}
	}()
	c.conn.SetOpusFrameProvider(provider)
}

// --- Voice channel status ---

// SetStatus queues a voice channel status update. Bursts are coalesced.
func (c *discordConn) SetStatus(status string) {
	select {
	case c.status <- status:
	default:
	}
}

func (c *discordConn) statusManager() {
	var cur string
	for {
		select {
		case <-c.ctx.Done():
			return
		case next := <-c.status:
		drain:
			for {
				select {
				case n := <-c.status:
					next = n
				default:
					break drain
				}
			}
			if next == cur {
				continue
			}
			if err := c.setStatusNow(next); err == nil {
				cur = next
			}
		}
	}
}

func (c *discordConn) setStatusNow(status string) error {
	if len([]rune(status)) > 128 {
		status = sys.TruncateCenter(status, 128)
	}
	route := rest.NewEndpoint(http.MethodPut, "/channels/"+c.channelID.String()+"/voice-status")
	err := c.client.Rest.Do(route.Compile(nil), map[string]string{"status": status}, nil)
	if err != nil {
		sys.LogVoice(sys.MsgVoiceStatusFail, c.channelID, err)
	}
	return err
}

// --- Opus frame provider ---

type frameProvider struct {
	ctx    context.Context
	frames chan []byte
	paused *atomic.Bool
	done   chan struct{}
	once   sync.Once
}

func newFrameProvider(ctx context.Context, paused *atomic.Bool) *frameProvider {
	return &frameProvider{
		ctx:    ctx,
		frames: make(chan []byte, 100),
		paused: paused,
		done:   make(chan struct{}),
	}
}

func (p *frameProvider) PushFrame(f []byte) {
	select {
	case p.frames <- f:
	case <-p.ctx.Done():
	}
}

// ProvideOpusFrame returns nil frames while paused or starved so the sender
// emits silence instead of blocking.
func (p *frameProvider) ProvideOpusFrame() ([]byte, error) {
	if p.paused.Load() {
		select {
		case <-p.ctx.Done():
			p.Close()
			return nil, io.EOF
		case <-time.After(20 * time.Millisecond):
			return nil, nil
		}
	}

	select {
	case f := <-p.frames:
		if f == nil {
			p.Close()
			return nil, io.EOF
		}
		return f, nil
	case <-p.ctx.Done():
		p.Close()
		return nil, io.EOF
	case <-time.After(100 * time.Millisecond):
		return nil, nil
	}
}

func (p *frameProvider) Close() {
	p.once.Do(func() {
		close(p.done)
	})
}
