package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "video.mp3", ReplaceExt("video.mp4", ".mp3"))
	assert.Equal(t, "video.mp3", ReplaceExt("video.mp4", "mp3"))
	assert.Equal(t, filepath.Join("a", "b", "clip.srt"), ReplaceExt(filepath.Join("a", "b", "clip.vtt"), ".srt"))
	assert.Equal(t, "noext.txt", ReplaceExt("noext", ".txt"))
	assert.Equal(t, ".hidden.txt", ReplaceExt(".hidden", ".txt"))
	assert.Equal(t, "", ReplaceExt("", ".txt"))
}

func TestFindDirsOlderThan(t *testing.T) {
	root := t.TempDir()

	oldDir := filepath.Join(root, "old")
	newDir := filepath.Join(root, "new")
	require.NoError(t, os.Mkdir(oldDir, 0o755))
	require.NoError(t, os.Mkdir(newDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, past, past))

	stale, err := FindDirsOlderThan(root, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldDir}, stale)
}
