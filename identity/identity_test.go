package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulugbekdev/savetube"
)

func writeCookie(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# Netscape HTTP Cookie File\n"), 0600))
}

func TestDirSource(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	dir := filepath.Join(root, "video")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeCookie(t, dir, "b.txt")
	writeCookie(t, dir, "a.txt")
	writeCookie(t, dir, "notes.md") // ignored

	tokens, err := DirSource{Root: root}.List(savetube.KindVideo)
	assert.NoError(err)
	require.Len(t, tokens, 2)
	assert.Equal("a", tokens[0].Name)
	assert.Equal("b", tokens[1].Name)
	assert.False(tokens[0].IsAnonymous())

	// Missing kind directory is an empty list, not an error.
	tokens, err = DirSource{Root: root}.List(savetube.KindAudio)
	assert.NoError(err)
	assert.Empty(tokens)
}

func TestAnonymousToken(t *testing.T) {
	assert := assert.New(t)
	assert.True(Anonymous.IsAnonymous())
	assert.Equal("anonymous", Anonymous.String())
}

func TestHealthOrdering(t *testing.T) {
	assert := assert.New(t)
	h, err := OpenHealth(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	defer h.Close()

	a := Token{Name: "a", CookieFile: "a.txt"}
	b := Token{Name: "b", CookieFile: "b.txt"}
	c := Token{Name: "c", CookieFile: "c.txt"}

	require.NoError(t, h.RecordFailure(savetube.KindVideo, a))
	require.NoError(t, h.RecordFailure(savetube.KindVideo, a))
	require.NoError(t, h.RecordFailure(savetube.KindVideo, b))

	ordered := h.Order(savetube.KindVideo, []Token{a, b, c})
	assert.Equal([]Token{c, b, a}, ordered)

	// A success resets the counter, bringing the token forward again.
	require.NoError(t, h.RecordSuccess(savetube.KindVideo, a))
	ordered = h.Order(savetube.KindVideo, []Token{a, b, c})
	assert.Equal([]Token{a, c, b}, ordered)

	// Anonymous trials are not tracked.
	require.NoError(t, h.RecordFailure(savetube.KindVideo, Anonymous))
}

func TestOrderedSource(t *testing.T) {
	assert := assert.New(t)
	h, err := OpenHealth(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	defer h.Close()

	a := Token{Name: "a", CookieFile: "a.txt"}
	b := Token{Name: "b", CookieFile: "b.txt"}
	require.NoError(t, h.RecordFailure(savetube.KindAudio, a))

	src := OrderedSource{Source: Static{a, b}, Health: h}
	tokens, err := src.List(savetube.KindAudio)
	assert.NoError(err)
	assert.Equal([]Token{b, a}, tokens)

	// Nil health passes the underlying order through.
	tokens, err = OrderedSource{Source: Static{a, b}}.List(savetube.KindAudio)
	assert.NoError(err)
	assert.Equal([]Token{a, b}, tokens)
}
