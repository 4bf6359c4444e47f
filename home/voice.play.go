package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/cadence/proc"
	"github.com/leeineian/cadence/sys"
)

const playTimeout = 90 * time.Second

func handleVoicePlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	vs := voiceSystem(event)
	if vs == nil {
		return
	}
	query, _ := data.OptString("query")

	voiceState, ok := event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	if !ok || voiceState.ChannelID == nil {
		replyEphemeral(event, sys.ErrVoiceNotInChannel)
		return
	}

	// Instant Defer
	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(sys.AppContext, playTimeout)
	defer cancel()

	res, err := vs.Play(ctx, *event.GuildID(), *voiceState.ChannelID, query)
	if err != nil {
		sys.LogDebug("Play failed in guild %s: %v", *event.GuildID(), err)
		editDeferred(event, voiceErrorText(err, sys.ErrVoiceNothingPlaying))
		return
	}
	editDeferred(event, playReply(res))
}

func playReply(res proc.PlayResult) string {
	if res.Playlist {
		return fmt.Sprintf(sys.MsgVoiceAddedPlaylist, res.Count)
	}
	return fmt.Sprintf(sys.MsgVoiceAddedToQueue, res.Position, res.Track.Title, res.Track.URL)
}

func handleVoiceAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "query" {
		return
	}
	query := focused.String()
	if query == "" {
		_ = event.AutocompleteResult(nil)
		return
	}

	_ = event.AutocompleteResult(autocompleteChoices(proc.Suggest(context.Background(), query)))
}

// autocompleteChoices converts suggestions into choices, respecting the
// 100 character limit on both name and value.
func autocompleteChoices(suggestions []proc.Suggestion) []discord.AutocompleteChoice {
	choices := make([]discord.AutocompleteChoice, 0, len(suggestions))
	for _, s := range suggestions {
		val := s.URL
		if len([]rune(val)) > 100 {
			val = sys.TruncateCenter(s.Title, 100)
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  sys.TruncateCenter(s.Title, 100),
			Value: val,
		})
	}
	return choices
}
