package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/sys"
)

// The clip plays to completion before the reply, so this always defers.
func handleVoiceOverride(event *events.ApplicationCommandInteractionCreate) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}
	clip, _ := event.SlashCommandInteractionData().OptString("clip")

	_ = event.DeferCreateMessage(true)

	ctx, cancel := context.WithTimeout(sys.AppContext, 5*time.Minute)
	defer cancel()

	if err := vs.Interrupt(ctx, *event.GuildID(), clip); err != nil {
		editDeferred(event, voiceErrorText(err, sys.ErrVoiceNothingToCut))
		return
	}
	editDeferred(event, sys.MsgVoiceInterrupted)
}
