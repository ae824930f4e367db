package storage

import (
	"fmt"
	"regexp"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// KeySet is the remote layout of one job's artifacts: a per-job prefix
// built from the user and the submission time, with fixed artifact names
// underneath.
type KeySet struct {
	base string
}

// NewKeySet builds the prefix "<clean-user>-<id>/<utc timestamp>/".
// Characters outside [a-zA-Z0-9] in the user name are replaced so the
// prefix stays URL-friendly.
func NewKeySet(userName, userID string, now time.Time) KeySet {
	clean := unsafeNameChars.ReplaceAllString(userName, "-")
	return KeySet{
		base: fmt.Sprintf("%s-%s/%s/", clean, userID, now.UTC().Format("2006-01-02_15-04-05")),
	}
}

func (k KeySet) Audio() string { return k.base + "audio.mp3" }

func (k KeySet) Video() string { return k.base + "video.mp4" }

func (k KeySet) Subtitles(vtt bool) string {
	if vtt {
		return k.base + "subtitles.vtt"
	}
	return k.base + "subtitles.srt"
}

func (k KeySet) Transcript() string { return k.base + "transcription.txt" }

func (k KeySet) Output() string { return k.base + "output.mp4" }
