package proc

import (
	"errors"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRows_SingleVideo(t *testing.T) {
	out := "https://www.youtube.com/watch?v=jfKfPfyJRdk\tlofi hip hop radio\tLofi Girl\t0\thttps://i.ytimg.com/vi/jfKfPfyJRdk/hq.jpg\tNA\tNA\n"

	rows := parseRows(out)
	require.Len(t, rows, 1)

	meta, err := buildMetadata("https://youtu.be/jfKfPfyJRdk", rows)
	require.NoError(t, err)
	assert.Empty(t, meta.Entries)
	assert.Equal(t, "https://www.youtube.com/watch?v=jfKfPfyJRdk", meta.URL)
	assert.Equal(t, "lofi hip hop radio", meta.Title)
	assert.Equal(t, "Lofi Girl", meta.Uploader)
	assert.Equal(t, "https://i.ytimg.com/vi/jfKfPfyJRdk/hq.jpg", meta.Thumbnail)
}

func TestParseRows_Playlist(t *testing.T) {
	out := "" +
		"https://www.youtube.com/watch?v=aaa\tFirst\tBand\t184\tNA\t1\tMix\n" +
		"https://www.youtube.com/watch?v=bbb\tSecond\tBand\t201.5\tNA\t2\tMix\n" +
		"NA\t[Deleted video]\tNA\tNA\tNA\t3\tMix\n" +
		"garbage line\n" +
		"https://www.youtube.com/watch?v=ccc\tThird\tNA\t60\tNA\t4\tMix\n"

	rows := parseRows(out)
	require.Len(t, rows, 4)

	list := "https://www.youtube.com/playlist?list=PL1"
	meta, err := buildMetadata(list, rows)
	require.NoError(t, err)
	assert.Equal(t, list, meta.URL)
	assert.Equal(t, "Mix", meta.Title)
	require.Len(t, meta.Entries, 4)
	assert.Equal(t, 184*time.Second, meta.Entries[0].Duration)
	assert.Equal(t, 201500*time.Millisecond, meta.Entries[1].Duration)
	assert.Empty(t, meta.Entries[2].URL)
	assert.Empty(t, meta.Entries[3].Uploader)

	urls, dropped := playlistURLs(meta)
	assert.Equal(t, []string{
		"https://www.youtube.com/watch?v=aaa",
		"https://www.youtube.com/watch?v=bbb",
		"https://www.youtube.com/watch?v=ccc",
	}, urls)
	assert.Equal(t, 1, dropped)
}

func TestBuildMetadata_Empty(t *testing.T) {
	_, err := buildMetadata("https://youtu.be/x", parseRows("\n\n"))
	assert.Error(t, err)
}

func TestYtdlpProvider_Args(t *testing.T) {
	p := NewYtdlpProvider(YtdlpOptions{SocketTimeout: 15, Retries: 3})
	assert.Equal(t,
		[]string{"--socket-timeout", "15", "--retries", "3", "--skip-download", "u"},
		p.args("--skip-download", "u"))
}

func TestYtdlpError_AppendsLastStderrLine(t *testing.T) {
	base := errors.New("exit status 1")
	res := &ytdlp.Result{Stderr: "WARNING: something\nERROR: Video unavailable\n"}

	err := ytdlpError(res, base)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "ERROR: Video unavailable")

	assert.Equal(t, base, ytdlpError(nil, base))
}
