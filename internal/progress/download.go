package progress

import (
	"regexp"
	"strconv"
)

var percentPattern = regexp.MustCompile(`\d+\.\d+`)

// DownloadMonitor filters raw downloader progress updates down to the few
// worth showing. Concurrent fragment downloads report out of order, so an
// update is dropped when its fragment index regresses, and visible edits
// are spaced at least twelve percentage points apart.
type DownloadMonitor struct {
	lastFragment int
	lastPercent  int
}

func NewDownloadMonitor() *DownloadMonitor {
	return &DownloadMonitor{lastFragment: -1, lastPercent: -1}
}

// Update parses a downloader percent string such as " 45.3%" and reports
// whether the update should be surfaced. Strings without a decimal
// percentage are ignored.
func (m *DownloadMonitor) Update(fragmentIndex int, percentText string) (int, bool) {
	match := percentPattern.FindString(percentText)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	percent := clampPercent(int(value))

	if fragmentIndex >= m.lastFragment && percent-m.lastPercent >= 12 {
		m.lastFragment = fragmentIndex
		m.lastPercent = percent
		return percent, true
	}
	return percent, false
}
