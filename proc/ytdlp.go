package proc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const (
	audioFormat   = "bestaudio[ext=webm]/bestaudio"
	entryTemplate = "%(webpage_url,url)s\t%(title)s\t%(uploader,channel)s\t%(duration)s\t%(thumbnail,thumbnails.-1.url)s\t%(playlist_index)s\t%(playlist_title)s"
)

type YtdlpOptions struct {
	SocketTimeout int
	Retries       int
	SearchLimit   int
}

// YtdlpProvider implements MetadataProvider on top of the yt-dlp binary.
type YtdlpProvider struct {
	opts YtdlpOptions
}

func NewYtdlpProvider(opts YtdlpOptions) *YtdlpProvider {
	if opts.SocketTimeout <= 0 {
		opts.SocketTimeout = 10
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 1
	}
	return &YtdlpProvider{opts: opts}
}

// args prepends the network flags every invocation carries.
func (p *YtdlpProvider) args(extra ...string) []string {
	return append([]string{
		"--socket-timeout", strconv.Itoa(p.opts.SocketTimeout),
		"--retries", strconv.Itoa(p.opts.Retries),
	}, extra...)
}

func (p *YtdlpProvider) Search(ctx context.Context, query string) ([]Metadata, error) {
	res, err := ytdlp.New().
		FlatPlaylist().
		Print(entryTemplate).
		PlaylistItems(fmt.Sprintf("1-%d", p.opts.SearchLimit)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, p.args(fmt.Sprintf("ytsearch%d:%s", p.opts.SearchLimit, query))...)
	if err != nil {
		return nil, ytdlpError(res, err)
	}

	rows := parseRows(res.Stdout)
	out := make([]Metadata, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.meta)
	}
	return out, nil
}

// Extract reads metadata for url. With expandPlaylist, a playlist URL comes
// back with one flat entry per item; a single video never has entries.
func (p *YtdlpProvider) Extract(ctx context.Context, url string, expandPlaylist bool) (*Metadata, error) {
	cmd := ytdlp.New().
		Print(entryTemplate).
		NoWarnings().
		IgnoreConfig()
	if expandPlaylist {
		cmd = cmd.FlatPlaylist()
	} else {
		cmd = cmd.NoPlaylist()
	}

	res, err := cmd.Run(ctx, p.args("--skip-download", url)...)
	if err != nil {
		return nil, ytdlpError(res, err)
	}
	return buildMetadata(url, parseRows(res.Stdout))
}

// StreamURL resolves a direct audio URL for page. Stream URLs expire, so
// they are fetched at play time and never cached.
func (p *YtdlpProvider) StreamURL(ctx context.Context, page string) (string, error) {
	res, err := ytdlp.New().
		Print("%(url)s").
		Format(audioFormat).
		NoPlaylist().
		NoCheckFormats().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, p.args("--skip-download", page)...)
	if err != nil {
		return "", ytdlpError(res, err)
	}

	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if l = strings.TrimSpace(l); isURL(l) {
			return l, nil
		}
	}
	return "", errors.New("no stream url")
}

type row struct {
	meta          Metadata
	playlistIndex int
	playlistTitle string
}

// parseRows decodes entryTemplate output. yt-dlp prints "NA" for missing
// fields; those become zero values, so an entry without a URL survives
// parsing and is rejected later as malformed.
func parseRows(stdout string) []row {
	var rows []row
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ps := strings.Split(l, "\t")
		if len(ps) < 7 {
			continue
		}
		for i := range ps {
			ps[i] = naField(ps[i])
		}
		r := row{
			meta: Metadata{
				URL:       ps[0],
				Title:     ps[1],
				Uploader:  ps[2],
				Thumbnail: ps[4],
			},
			playlistTitle: ps[6],
		}
		if secs, err := strconv.ParseFloat(ps[3], 64); err == nil {
			r.meta.Duration = time.Duration(secs * float64(time.Second))
		}
		if idx, err := strconv.Atoi(ps[5]); err == nil {
			r.playlistIndex = idx
		}
		rows = append(rows, r)
	}
	return rows
}

func buildMetadata(url string, rows []row) (*Metadata, error) {
	if len(rows) == 0 {
		return nil, errors.New("failed to parse metadata")
	}
	if rows[0].playlistIndex == 0 {
		m := rows[0].meta
		return &m, nil
	}

	playlist := &Metadata{URL: url, Title: rows[0].playlistTitle}
	playlist.Entries = make([]Metadata, 0, len(rows))
	for _, r := range rows {
		playlist.Entries = append(playlist.Entries, r.meta)
		playlist.Duration += r.meta.Duration
	}
	return playlist, nil
}

func naField(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

func ytdlpError(res *ytdlp.Result, err error) error {
	if res != nil && res.Stderr != "" {
		lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
		return fmt.Errorf("%w: %s", err, lines[len(lines)-1])
	}
	return err
}
