package proc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/leeineian/cadence/sys"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

const (
	youtubePrefix = "[YT]"
	ytMusicPrefix = "[YTM]"
	maxSuggest    = 25
)

type Suggestion struct {
	Title string
	URL   string
}

// Suggest returns autocomplete candidates for a partially typed query from
// YouTube Music and YouTube. A leading [YT] or [YTM] picks which source
// ranks first. Slow sources are dropped after a short deadline.
func Suggest(ctx context.Context, q string) []Suggestion {
	query, youtubeFirst := q, false
	switch {
	case strings.HasPrefix(strings.ToUpper(q), ytMusicPrefix):
		query = strings.TrimSpace(q[len(ytMusicPrefix):])
	case strings.HasPrefix(strings.ToUpper(q), youtubePrefix):
		query, youtubeFirst = strings.TrimSpace(q[len(youtubePrefix):]), true
	}
	if query == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2600*time.Millisecond)
	defer cancel()

	var (
		mu      sync.Mutex
		ytm, yt []Suggestion
		seen    = make(map[string]bool)
		wg      sync.WaitGroup
	)
	add := func(dst *[]Suggestion, id string, s Suggestion) {
		mu.Lock()
		defer mu.Unlock()
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		*dst = append(*dst, s)
	}

	wg.Add(2)
	sys.SafeGo(func() {
		defer wg.Done()
		r, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			return
		}
		for _, v := range r.Tracks {
			artist := ""
			if len(v.Artists) > 0 {
				artist = " - " + v.Artists[0].Name
			}
			add(&ytm, v.VideoID, Suggestion{
				URL:   "https://music.youtube.com/watch?v=" + v.VideoID,
				Title: sys.TruncateWithPreserve(v.Title, 100, ytMusicPrefix+" ", artist),
			})
		}
	})
	sys.SafeGo(func() {
		defer wg.Done()
		r, err := ytsearch.NewClient(nil).Search(ctx, query)
		if err != nil {
			return
		}
		for _, v := range r.Results {
			add(&yt, v.VideoID, Suggestion{
				URL:   "https://www.youtube.com/watch?v=" + v.VideoID,
				Title: sys.TruncateWithPreserve(v.Title, 100, youtubePrefix+" ", ""),
			})
		}
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2300 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	var out []Suggestion
	if youtubeFirst {
		out = append(append(out, yt...), ytm...)
	} else {
		out = append(append(out, ytm...), yt...)
	}
	if len(out) > maxSuggest {
		out = out[:maxSuggest]
	}
	return out
}
