package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_SweepRemovesOnlyStaleDirs(t *testing.T) {
	root := t.TempDir()

	stale := filepath.Join(root, "stale-job")
	fresh := filepath.Join(root, "fresh-job")
	require.NoError(t, os.Mkdir(stale, 0o755))
	require.NoError(t, os.Mkdir(fresh, 0o755))

	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	NewJanitor(root, time.Hour).Sweep()

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
