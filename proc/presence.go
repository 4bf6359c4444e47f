package proc

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/leeineian/cadence/sys"
	"github.com/samber/lo"
)

const presenceHint = "/voice play"

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		sys.RegisterDaemon(sys.LogVoice, func(ctx context.Context) (bool, func(), func()) {
			ctx, cancel := context.WithCancel(ctx)
			return true, func() { runPresence(ctx, client) }, cancel
		})
	})
}

func presenceInterval() time.Duration {
	return time.Duration(15+rand.IntN(46)) * time.Second
}

// runPresence rotates the bot activity until ctx is done.
func runPresence(ctx context.Context, client *bot.Client) {
	last := ""
	for {
		texts := presenceTexts(GetVoiceManager(), time.Since(sys.StartupTime))
		if ping := client.Gateway.Latency(); ping > 0 {
			texts = append(texts, fmt.Sprintf("Ping: %dms", ping.Milliseconds()))
		}
		last = pickPresence(texts, last, rand.IntN)

		next := presenceInterval()
		if err := client.SetPresence(ctx,
			gateway.WithOnlineStatus(discord.OnlineStatusOnline),
			gateway.WithListeningActivity(last),
		); err != nil {
			sys.LogWarn(sys.MsgPresenceUpdateFail, err)
		} else {
			sys.LogDebug(sys.MsgPresenceRotated, last, next)
		}

		select {
		case <-time.After(next):
		case <-ctx.Done():
			return
		}
	}
}

// presenceTexts lists the candidate activities. The play hint is always
// present.
func presenceTexts(vs *VoiceSystem, uptime time.Duration) []string {
	texts := []string{presenceHint}
	if vs != nil {
		if n := vs.Playing(); n > 0 {
			texts = append(texts, fmt.Sprintf("music in %d %s", n, lo.Ternary(n == 1, "server", "servers")))
		}
	}
	return append(texts, fmt.Sprintf("Uptime: %dh %dm", int(uptime.Hours()), int(uptime.Minutes())%60))
}

// pickPresence chooses a text other than last when there is one.
func pickPresence(texts []string, last string, intn func(int) int) string {
	choices := lo.Without(texts, last)
	if len(choices) == 0 {
		return texts[0]
	}
	return choices[intn(len(choices))]
}
