package proc

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/cadence/sys"
)

var (
	VoiceManager *VoiceSystem
	OnceVoice    sync.Once
	voiceMu      sync.RWMutex
)

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		OnceVoice.Do(func() {
			initVoiceSystem(ctx, client)
		})
	})
	sys.RegisterVoiceStateUpdateHandler(onVoiceStateUpdate)
}

// GetVoiceManager returns the process voice system, or nil before the
// client is ready.
func GetVoiceManager() *VoiceSystem {
	voiceMu.RLock()
	defer voiceMu.RUnlock()
	return VoiceManager
}

func initVoiceSystem(ctx context.Context, client *bot.Client) {
	cfg := sys.DefaultVoiceConfig()
	if sys.GlobalConfig != nil {
		cfg = sys.GlobalConfig.Voice
	}

	pool := NewWorkerPool(cfg.Workers)
	provider := NewYtdlpProvider(YtdlpOptions{
		SocketTimeout: cfg.YtdlpSocketTimeout,
		Retries:       cfg.YtdlpRetries,
	})
	resolver := NewResolver(provider, pool, ResolverOptions{
		CacheTTL:      cfg.CacheTTL,
		MaxConcurrent: cfg.MaxResolutions,
		RatePerSecond: cfg.ProviderRate,
		Timeout:       cfg.ResolveTimeout,
	})
	vs := NewVoiceSystem(ctx, resolver, NewDiscordConnector(client, provider), Options{
		QueueLoadLimit:      cfg.QueueLoadLimit,
		IdleDisconnectDelay: cfg.IdleDisconnectDelay,
		PollInterval:        cfg.PollInterval,
		QueueDisplayLimit:   cfg.QueueDisplayLimit,
		InterruptClip:       cfg.InterruptClip,
		OnTrackStart:        recordHistory,
	})

	voiceMu.Lock()
	VoiceManager = vs
	voiceMu.Unlock()

	reaper := NewReaper(vs, resolver.Cache(), cfg.ReaperPeriod, cfg.SessionIdleThreshold)
	sys.RegisterDaemon(sys.LogReaper, func(ctx context.Context) (bool, func(), func()) {
		ctx, cancel := context.WithCancel(ctx)
		run := func() { reaper.Run(ctx) }
		shutdown := func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			vs.Shutdown(shutdownCtx)
			pool.Close()
		}
		return true, run, shutdown
	})
}

func recordHistory(guildID snowflake.ID, t *Track) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sys.RecordTrackPlayed(ctx, &sys.HistoryEntry{
		GuildID:  guildID,
		URL:      t.URL,
		Title:    t.Title,
		Uploader: t.Uploader,
		Duration: t.Duration,
	})
	if err != nil {
		sys.LogWarn(sys.MsgVoiceHistoryFail, guildID, err)
	}
}

// onVoiceStateUpdate tears the session down when the bot is disconnected
// from voice by anything other than its own commands.
func onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	if event.VoiceState.UserID != event.Client().ID() || event.VoiceState.ChannelID != nil {
		return
	}
	vs := GetVoiceManager()
	if vs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	vs.Disconnected(ctx, event.VoiceState.GuildID)
}
