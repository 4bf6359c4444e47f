package home

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/sys"
)

const historyLimit = 10

func handleVoiceHistory(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	if event.GuildID() == nil {
		replyEphemeral(event, sys.ErrVoiceGuildOnly)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, 5*time.Second)
	defer cancel()

	entries, err := sys.GetRecentTracks(ctx, *event.GuildID(), historyLimit)
	if err != nil {
		sys.LogError("Failed to fetch history for guild %s: %v", *event.GuildID(), err)
		replyEphemeral(event, sys.ErrVoiceHistoryFetchErr)
		return
	}
	reply(event, formatHistory(entries))
}

func formatHistory(entries []*sys.HistoryEntry) string {
	if len(entries) == 0 {
		return sys.MsgVoiceHistoryEmpty
	}
	var sb strings.Builder
	sb.WriteString(sys.MsgVoiceHistoryHeader)
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf(sys.MsgVoiceHistoryItem, i+1, e.Title, e.URL, e.PlayedAt.Unix()))
	}
	return sb.String()
}
