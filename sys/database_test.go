package sys

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDatabase(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitDatabase(context.Background(), path))
	t.Cleanup(func() {
		CloseDatabase()
		DB = nil
	})
}

func TestBotConfig(t *testing.T) {
	openTestDatabase(t)
	ctx := context.Background()

	v, err := GetBotConfig(ctx, "last_cmd_hash")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetBotConfig(ctx, "last_cmd_hash", "abc"))
	require.NoError(t, SetBotConfig(ctx, "last_cmd_hash", "def"))

	v, err = GetBotConfig(ctx, "last_cmd_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestTrackHistory(t *testing.T) {
	openTestDatabase(t)
	ctx := context.Background()
	guild := snowflake.ID(111111111111111111)
	other := snowflake.ID(222222222222222222)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, RecordTrackPlayed(ctx, &HistoryEntry{
			GuildID:  guild,
			URL:      fmt.Sprintf("https://youtu.be/%d", i),
			Title:    fmt.Sprintf("Track %d", i),
			Uploader: "Band",
			Duration: 3 * time.Minute,
			PlayedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, RecordTrackPlayed(ctx, &HistoryEntry{GuildID: other, URL: "https://youtu.be/x", Title: "X"}))

	entries, err := GetRecentTracks(ctx, guild, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Track 2", entries[0].Title)
	assert.Equal(t, "Track 1", entries[1].Title)
	assert.Equal(t, guild, entries[0].GuildID)
	assert.Equal(t, 3*time.Minute, entries[0].Duration)
	assert.Equal(t, "Band", entries[0].Uploader)

	others, err := GetRecentTracks(ctx, other, 10)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.False(t, others[0].PlayedAt.IsZero())
}

func TestTrackHistoryWithoutDatabase(t *testing.T) {
	DB = nil
	assert.NoError(t, RecordTrackPlayed(context.Background(), &HistoryEntry{Title: "x"}))

	entries, err := GetRecentTracks(context.Background(), 1, 10)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
