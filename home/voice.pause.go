package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/sys"
)

func handleVoicePause(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}

	if err := vs.Pause(*event.GuildID()); err != nil {
		reply(event, voiceErrorText(err, sys.ErrVoiceNothingPlaying))
		return
	}
	reply(event, sys.MsgVoicePaused)
}

func handleVoiceResume(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}

	if err := vs.Resume(*event.GuildID()); err != nil {
		reply(event, voiceErrorText(err, sys.ErrVoiceNothingPlaying))
		return
	}
	reply(event, sys.MsgVoiceResumed)
}
