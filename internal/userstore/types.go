package userstore

import "time"

// DefaultAvailableMinutes is the quota granted to a newly seen user.
const DefaultAvailableMinutes = 60

// Settings are the per-user preferences applied to new jobs. Zero values
// mean "decide at request time".
type Settings struct {
	Font           string `json:"font"`            // subtitle font, empty for the built-in default
	FontSize       int    `json:"font_size"`       // 0 derives the size from the video orientation
	BorderBox      bool   `json:"border_box"`      // opaque box behind subtitles instead of outline
	Language       string `json:"language"`        // preferred target language
	Resolution     string `json:"resolution"`      // preferred source quality
	TranscribeOnly bool   `json:"transcribe_only"` // plain transcript instead of subtitles
	DisplayMode    bool   `json:"display_mode"`    // deliver through the web player
}

// User is one account row with its preferences and remaining quota.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Name             string    `json:"name"`
	JoinedAt         time.Time `json:"joined_at"`
	UILanguage       string    `json:"ui_language"`
	Settings         Settings  `json:"settings"`
	AvailableMinutes int       `json:"available_minutes"`
}

// RequestRecord is the history row written for every finished job.
type RequestRecord struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	Name            string    `json:"name"`
	Link            string    `json:"link"`
	SentAt          time.Time `json:"sent_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Resolution      string    `json:"resolution"`
	Language        string    `json:"language"`
	Transcription   bool      `json:"transcription"`
}
