package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/sys"
)

func handleVoiceStop(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, 10*time.Second)
	defer cancel()

	if err := vs.Stop(ctx, *event.GuildID()); err != nil {
		reply(event, voiceErrorText(err, sys.ErrVoiceNoSession))
		return
	}
	reply(event, sys.MsgVoiceDisconnected)
}

func handleVoiceSkip(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}

	if err := vs.Skip(*event.GuildID()); err != nil {
		reply(event, voiceErrorText(err, sys.ErrVoiceNothingToSkip))
		return
	}
	reply(event, sys.MsgVoiceSkipped)
}

func handleVoiceClear(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}

	if err := vs.Clear(*event.GuildID()); err != nil {
		reply(event, voiceErrorText(err, sys.ErrVoiceNoSession))
		return
	}
	reply(event, sys.MsgVoiceCleared)
}
