package file

import (
	"os"
	"path/filepath"
	"time"
)

// FindDirsOlderThan returns the immediate subdirectories of dir whose
// modification time is before cutoff. Used to sweep abandoned work dirs.
func FindDirsOlderThan(dir string, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, filepath.Join(dir, entry.Name()))
		}
	}
	return stale, nil
}
