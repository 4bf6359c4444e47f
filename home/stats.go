package home

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/cadence/proc"
	"github.com/leeineian/cadence/sys"
)

const (
	statsAnsiReset    = "\u001b[0m"
	statsAnsiPink     = "\u001b[35m"
	statsAnsiPinkBold = "\u001b[35;1m"
)

// statsSnapshot is everything /stats shows, gathered once per request.
type statsSnapshot struct {
	Memory      float64
	SysMemory   float64
	Goroutines  int
	Uptime      time.Duration
	GatewayPing time.Duration
	APILatency  time.Duration
	DBLatency   time.Duration

	VoiceReady bool
	Sessions   int
	Playing    int
	Cached     int
}

func statsTitle(text string) string {
	return statsAnsiPink + text + statsAnsiReset
}

func statsLine(key, val string) string {
	return fmt.Sprintf("%s> %s:%s %s%s%s", statsAnsiPink, key, statsAnsiReset, statsAnsiPinkBold, val, statsAnsiReset)
}

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "stats",
		Description:              "Display system and playback statistics (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "ephemeral",
				Description: "Whether the message should be ephemeral (default: true)",
				Required:    false,
			},
		},
	}, handleStats)
}

func handleStats(event *events.ApplicationCommandInteractionCreate) {
	ephemeral := true
	if eph, ok := event.SlashCommandInteractionData().OptBool("ephemeral"); ok {
		ephemeral = eph
	}

	snap := collectStats(proc.GetVoiceManager())
	snap.GatewayPing = event.Client().Gateway.Latency()
	snap.APILatency = time.Since(snowflake.ID(event.ID()).Time())

	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		SetEphemeral(ephemeral).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(renderStats(snap)),
			),
		).
		Build())
	if err != nil {
		sys.LogDebug("Failed to send stats: %v", err)
	}
}

func collectStats(vs *proc.VoiceSystem) statsSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := statsSnapshot{
		Memory:     float64(m.HeapAlloc) / 1024 / 1024,
		SysMemory:  float64(m.Sys) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(sys.StartupTime),
	}

	if sys.DB != nil {
		start := time.Now()
		_, _ = sys.GetBotConfig(sys.AppContext, "ping_test")
		snap.DBLatency = time.Since(start)
	}

	if vs != nil {
		snap.VoiceReady = true
		snap.Sessions = vs.Sessions()
		snap.Playing = vs.Playing()
		snap.Cached = vs.Resolver().Cache().Len()
	}
	return snap
}

func renderStats(s statsSnapshot) string {
	days := int(s.Uptime.Hours()) / 24
	hours := int(s.Uptime.Hours()) % 24
	minutes := int(s.Uptime.Minutes()) % 60

	lines := []string{
		statsTitle("System"),
		statsLine("Platform", runtime.GOOS+" "+runtime.GOARCH),
		statsLine("Go Version", runtime.Version()),
		statsLine("Memory", fmt.Sprintf("%.2f MB / %.2f MB (Sys)", s.Memory, s.SysMemory)),
		statsLine("Goroutines", fmt.Sprintf("%d", s.Goroutines)),
		"",
		statsTitle("App"),
		statsLine("Uptime", fmt.Sprintf("%dd %dh %dm", days, hours, minutes)),
	}
	if s.GatewayPing > 0 {
		lines = append(lines, statsLine("Gateway", fmt.Sprintf("%dms", s.GatewayPing.Milliseconds())))
	}
	if s.APILatency > 0 {
		lines = append(lines, statsLine("API Latency", fmt.Sprintf("%dms", s.APILatency.Milliseconds())))
	}
	if s.DBLatency > 0 {
		lines = append(lines, statsLine("Database", fmt.Sprintf("%.2fms", float64(s.DBLatency.Microseconds())/1000)))
	}

	lines = append(lines, "", statsTitle("Voice"))
	if !s.VoiceReady {
		lines = append(lines, statsLine("Status", "starting"))
	} else {
		lines = append(lines,
			statsLine("Sessions", fmt.Sprintf("%d (%d playing)", s.Sessions, s.Playing)),
			statsLine("Cached Lookups", fmt.Sprintf("%d", s.Cached)),
		)
	}

	return fmt.Sprintf("```ansi\n%s\n```", strings.Join(lines, "\n"))
}
