package subtitle

import (
	"fmt"
	"math"
)

// FormatTimestamp renders a moment in seconds as an SRT timestamp
// (HH:MM:SS,mmm) or, when vtt is true, a WebVTT one (HH:MM:SS.mmm).
// Negative inputs clamp to zero.
func FormatTimestamp(seconds float64, vtt bool) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(math.Round(seconds * 1000))

	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1_000
	ms -= secs * 1_000

	sep := ","
	if vtt {
		sep = "."
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, ms)
}
