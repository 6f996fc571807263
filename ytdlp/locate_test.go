package ytdlp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const floor = 1024

func write(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestLocateReportedPath(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	reported := write(t, dir, "AbCdEfGhIjK.webm", 4096)

	path, ok := LocateOutput(dir, reported, "AbCdEfGhIjK", []string{"mp4", "webm"}, floor)
	assert.True(ok)
	assert.Equal(reported, path)
}

func TestLocateExtensionSubstitution(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	// Backend reported .webm but the merge step produced .mp4.
	merged := write(t, dir, "AbCdEfGhIjK.mp4", 4096)

	path, ok := LocateOutput(dir, filepath.Join(dir, "AbCdEfGhIjK.webm"), "AbCdEfGhIjK", []string{"mp4", "webm"}, floor)
	assert.True(ok)
	assert.Equal(merged, path)
}

func TestLocateByID(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	byID := write(t, dir, "AbCdEfGhIjK.mkv", 4096)

	// Nothing reported at all; the id-keyed lookup finds it.
	path, ok := LocateOutput(dir, "", "AbCdEfGhIjK", []string{"mp4", "webm", "mkv"}, floor)
	assert.True(ok)
	assert.Equal(byID, path)
}

func TestLocateGlobNewestFirst(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	older := write(t, dir, "Some Title-AbCdEfGhIjK.f137.mp4", 4096)
	newer := write(t, dir, "Some Title-AbCdEfGhIjK.merged.mp4", 4096)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	path, ok := LocateOutput(dir, "", "AbCdEfGhIjK", []string{"mp4"}, floor)
	assert.True(ok)
	assert.Equal(newer, path)
}

func TestLocateIgnoresPartialFiles(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	write(t, dir, "AbCdEfGhIjK.mp4", 100) // below the size floor

	_, ok := LocateOutput(dir, "", "AbCdEfGhIjK", []string{"mp4"}, floor)
	assert.False(ok)
}

func TestLocateNothing(t *testing.T) {
	assert := assert.New(t)
	_, ok := LocateOutput(t.TempDir(), "", "AbCdEfGhIjK", []string{"mp4"}, floor)
	assert.False(ok)
}
