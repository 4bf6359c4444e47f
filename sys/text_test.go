package sys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateCenter(t *testing.T) {
	assert.Equal(t, "short", TruncateCenter("short", 10))
	assert.Equal(t, "abc...xyz", TruncateCenter("abcdefghijklmnopqrstuvwxyz", 9))
	assert.Equal(t, "ab", TruncateCenter("abcdef", 2))

	out := TruncateCenter(strings.Repeat("é", 200), 100)
	assert.Equal(t, 100, len([]rune(out)))
}

func TestTruncateWithPreserve(t *testing.T) {
	out := TruncateWithPreserve(strings.Repeat("a", 200), 50, "[YTM] ", " - Artist")
	assert.Equal(t, 50, len([]rune(out)))
	assert.True(t, strings.HasPrefix(out, "[YTM] "))
	assert.True(t, strings.HasSuffix(out, " - Artist"))

	assert.Equal(t, "[YT] song", TruncateWithPreserve("song", 100, "[YT] ", ""))
}
