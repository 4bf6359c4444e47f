package proc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Metadata is what a MetadataProvider knows about a URL or search hit.
// Entries is set when the URL was a playlist.
type Metadata struct {
	URL       string
	StreamURL string
	Title     string
	Uploader  string
	Thumbnail string
	Duration  time.Duration
	Entries   []Metadata
}

// Track is a resolved, playable queue item.
type Track struct {
	ID         uuid.UUID
	URL        string
	Title      string
	Duration   time.Duration
	Thumbnail  string
	Uploader   string
	EnqueuedAt time.Time
}

type MetadataProvider interface {
	Search(ctx context.Context, query string) ([]Metadata, error)
	Extract(ctx context.Context, url string, expandPlaylist bool) (*Metadata, error)
}

type VoiceConnector interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (VoiceConn, error)
}

// VoiceConn is one connected audio engine session. Play is fire-and-forget:
// onAfter fires once the source ends, with a non-nil error if it failed, and
// must never be invoked synchronously from Play. Pause between Play and the
// source starting is kept: the source reports paused once it starts. Pause
// with no source is a no-op.
type VoiceConn interface {
	Play(source string, offset time.Duration, onAfter func(error)) error
	IsPlaying() bool
	IsPaused() bool
	Pause()
	Resume()
	Stop()
	Disconnect(ctx context.Context) error
}

// statusSetter is implemented by engines that can show the current title.
type statusSetter interface {
	SetStatus(status string)
}

// FormatTrack projects provider metadata onto a Track. Metadata without a
// URL is malformed and yields nil.
func FormatTrack(meta *Metadata) *Track {
	if meta == nil || strings.TrimSpace(meta.URL) == "" {
		return nil
	}
	title := meta.Title
	if title == "" {
		title = meta.URL
	}
	return &Track{
		ID:         uuid.New(),
		URL:        meta.URL,
		Title:      title,
		Duration:   meta.Duration,
		Thumbnail:  meta.Thumbnail,
		Uploader:   meta.Uploader,
		EnqueuedAt: time.Now(),
	}
}

// playlistURLs returns the well-formed entry URLs of a playlist, in order,
// and how many entries were dropped.
func playlistURLs(meta *Metadata) ([]string, int) {
	if meta == nil {
		return nil, 0
	}
	urls := lo.FilterMap(meta.Entries, func(e Metadata, _ int) (string, bool) {
		return e.URL, isURL(e.URL)
	})
	return urls, len(meta.Entries) - len(urls)
}

func isURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FormatDuration renders a track length as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "live"
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
