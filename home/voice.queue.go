package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/proc"
	"github.com/leeineian/cadence/sys"
)

func handleVoiceQueue(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}
	reply(event, formatQueue(vs.Queue(*event.GuildID())))
}

func formatQueue(q proc.QueueSummary) string {
	var sb strings.Builder
	sb.WriteString(sys.MsgVoiceQueueHeader)

	if q.Current == nil && len(q.Upcoming) == 0 && q.Pending == 0 {
		sb.WriteString(sys.MsgVoiceQueueEmpty)
		return sb.String()
	}

	if q.Current != nil {
		progress := proc.FormatDuration(q.Elapsed) + " / " + proc.FormatDuration(q.Current.Duration)
		if q.Current.Duration <= 0 {
			progress = proc.FormatDuration(q.Current.Duration)
		}
		if q.Paused {
			progress += " ⏸️"
		}
		sb.WriteString(fmt.Sprintf(sys.MsgVoiceQueueNow, q.Current.Title, q.Current.URL, progress))
	}

	for i, t := range q.Upcoming {
		sb.WriteString(fmt.Sprintf(sys.MsgVoiceQueueItem, i+1, t.Title, t.URL))
	}
	if q.Hidden > 0 {
		sb.WriteString(fmt.Sprintf(sys.MsgVoiceQueueMore, q.Hidden))
	}
	if q.Pending > 0 {
		sb.WriteString(fmt.Sprintf(sys.MsgVoiceQueuePending, q.Pending))
	}
	return sb.String()
}
