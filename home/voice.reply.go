package home

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/proc"
	"github.com/leeineian/cadence/sys"
)

// voiceErrorText maps orchestrator errors to user replies. nothingPlaying is
// the reply for ErrNothingPlaying, which reads differently per command.
func voiceErrorText(err error, nothingPlaying string) string {
	switch {
	case errors.Is(err, proc.ErrNotInVoiceChannel):
		return sys.ErrVoiceNotInChannel
	case errors.Is(err, proc.ErrNoActiveSession):
		return sys.ErrVoiceNoSession
	case errors.Is(err, proc.ErrNoResultsFound):
		return sys.ErrVoiceNoResults
	case errors.Is(err, proc.ErrNothingPlaying):
		return nothingPlaying
	case errors.Is(err, proc.ErrNothingPaused):
		return sys.ErrVoiceNothingPaused
	case errors.Is(err, proc.ErrInterruptInProgress):
		return sys.ErrVoiceInterruptBusy
	case errors.Is(err, proc.ErrNoInterruptClip):
		return sys.MsgVoiceInterruptUsage
	default:
		return fmt.Sprintf(sys.MsgVoicePlayFailed, err)
	}
}

// voiceSystem returns the voice system, replying to the user if it is not
// up yet or the command came from outside a guild.
func voiceSystem(event *events.ApplicationCommandInteractionCreate) *proc.VoiceSystem {
	if event.GuildID() == nil {
		replyEphemeral(event, sys.ErrVoiceGuildOnly)
		return nil
	}
	vs := proc.GetVoiceManager()
	if vs == nil {
		replyEphemeral(event, sys.ErrVoiceNotReady)
		return nil
	}
	return vs
}

func reply(event *events.ApplicationCommandInteractionCreate, content string) {
	if err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		Build()); err != nil {
		sys.LogDebug("Failed to reply: %v", err)
	}
}

func replyEphemeral(event *events.ApplicationCommandInteractionCreate, content string) {
	if err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build()); err != nil {
		sys.LogDebug("Failed to reply: %v", err)
	}
}

// editDeferred replaces the "thinking" placeholder of a deferred interaction.
func editDeferred(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetContent(content).
		Build())
	if err != nil {
		sys.LogDebug("Failed to update interaction: %v", err)
	}
}
