package fetch

import (
	"fmt"
	"strings"
)

// Selection describes the quality the user asked for.
type Selection struct {
	// Resolution is "highest", "unknown", a labeled height such as
	// "720p", or a WxH string reported by the source.
	Resolution string `json:"resolution"`
	// TranscribeOnly requests the smallest video that still carries the
	// best audio, for jobs that never deliver the video itself.
	TranscribeOnly bool `json:"transcribe_only"`
}

const vcodecFilter = "[vcodec~='^((he|a)vc|h26[45])']"

// FormatSelector builds the downloader format string for a URL and
// selection. Each selector is a fallback chain, preferring mp4 with an
// h26x-family codec, then webm, then whatever merges.
func FormatSelector(url string, sel Selection) string {
	const (
		bestVideoMP4  = "bestvideo[ext=mp4]"
		bestAudioM4A  = "bestaudio[ext=m4a]"
		bestVideoWebm = "bestvideo[ext=webm]"
		bestAudioWebm = "bestaudio[ext=webm]"
		bestBoth      = "bestvideo+bestaudio"
		worstVideoMP4 = "worstvideo[ext=mp4]"
		worstVideoWbm = "worstvideo[ext=webm]"
	)

	switch {
	case sel.Resolution == "unknown":
		return "best"

	case sel.Resolution == "highest":
		return fmt.Sprintf("%s%s+%s/%s+%s/%s+%s/%s",
			bestVideoMP4, vcodecFilter, bestAudioM4A,
			bestVideoWebm, bestAudioWebm,
			bestVideoMP4, bestAudioM4A,
			bestBoth)

	case sel.TranscribeOnly:
		return fmt.Sprintf("%s%s+%s/%s+%s/%s+%s/%s",
			worstVideoMP4, vcodecFilter, bestAudioM4A,
			worstVideoWbm, bestAudioWebm,
			worstVideoMP4, bestAudioM4A,
			bestBoth)

	default:
		height := selectionHeight(url, sel.Resolution)
		return fmt.Sprintf("%s[height=%s]%s+%s/%s[height=%s]+%s/%s[height=%s]+%s/best[height=%s]",
			bestVideoMP4, height, vcodecFilter, bestAudioM4A,
			bestVideoWebm, height, bestAudioWebm,
			bestVideoMP4, height, bestAudioM4A,
			height)
	}
}

// selectionHeight extracts the pixel height from either a "720p" label
// (used for known video platforms) or a "1280x720" resolution string.
func selectionHeight(url, resolution string) string {
	if isKnownVideoSite(url) {
		return strings.TrimSuffix(resolution, "p")
	}
	if _, h, ok := strings.Cut(resolution, "x"); ok {
		return h
	}
	return strings.TrimSuffix(resolution, "p")
}

func isKnownVideoSite(url string) bool {
	return strings.Contains(url, "youtube") || strings.Contains(url, "youtu.be")
}

// IsPlaylist reports whether the URL points at a playlist rather than a
// single video. Playlists are rejected at admission.
func IsPlaylist(url string) bool {
	return isKnownVideoSite(url) && strings.Contains(url, "playlist")
}
