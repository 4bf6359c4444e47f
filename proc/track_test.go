package proc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTrack(t *testing.T) {
	track := FormatTrack(&Metadata{
		URL:      "https://youtu.be/x",
		Title:    "Song",
		Uploader: "Band",
		Duration: 3 * time.Minute,
	})
	require.NotNil(t, track)
	assert.Equal(t, "Song", track.Title)
	assert.Equal(t, "Band", track.Uploader)
	assert.Equal(t, 3*time.Minute, track.Duration)
	assert.False(t, track.EnqueuedAt.IsZero())

	untitled := FormatTrack(&Metadata{URL: "https://youtu.be/y"})
	require.NotNil(t, untitled)
	assert.Equal(t, "https://youtu.be/y", untitled.Title)

	assert.Nil(t, FormatTrack(&Metadata{Title: "no url"}))
	assert.Nil(t, FormatTrack(&Metadata{URL: "   "}))
	assert.Nil(t, FormatTrack(nil))
}

func TestPlaylistURLsDropsMalformedEntries(t *testing.T) {
	meta := &Metadata{Entries: []Metadata{
		{URL: "https://youtu.be/1"},
		{URL: ""},
		{URL: "https://youtu.be/2"},
		{URL: "not a url"},
		{URL: "https://youtu.be/3"},
	}}
	urls, dropped := playlistURLs(meta)
	assert.Equal(t, []string{"https://youtu.be/1", "https://youtu.be/2", "https://youtu.be/3"}, urls)
	assert.Equal(t, 2, dropped)

	urls, dropped = playlistURLs(nil)
	assert.Empty(t, urls)
	assert.Zero(t, dropped)
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://www.youtube.com/watch?v=abc"))
	assert.True(t, isURL(" http://example.com/a.mp3 "))
	assert.False(t, isURL("lofi beats"))
	assert.False(t, isURL("ftp://example.com/a"))
	assert.False(t, isURL("https://"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "live", FormatDuration(0))
	assert.Equal(t, "0:05", FormatDuration(5*time.Second))
	assert.Equal(t, "3:07", FormatDuration(3*time.Minute+7*time.Second))
	assert.Equal(t, "1:02:03", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}
