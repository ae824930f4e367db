package pipeline

import (
	"context"
	"time"

	"subgen/internal/fetch"
	"subgen/internal/media"
	"subgen/internal/progress"
	"subgen/internal/transcribe"
	"subgen/internal/userstore"
)

// Messenger is the user-interface side of the pipeline. Progress edits
// for one job always come from a single goroutine, in non-decreasing
// percentage order per stage.
type Messenger interface {
	ShowProgress(ctx context.Context, job *Job, event progress.Event) error
	Deliver(ctx context.Context, job *Job, delivery Delivery) error
	Fail(ctx context.Context, job *Job, kind FailureKind, message string) error
}

// Fetcher downloads source videos.
type Fetcher interface {
	ProbeDurationMinutes(ctx context.Context, url string) (int, error)
	Download(ctx context.Context, url, outputPath string, sel fetch.Selection, onProgress func(fragmentIndex int, percentText string)) error
}

// Transcriber is the remote speech-to-text/alignment service.
type Transcriber interface {
	Submit(ctx context.Context, audioURL, languageHint string, alignOutput bool) (transcribe.JobHandle, error)
	Await(ctx context.Context, handle transcribe.JobHandle, onPoll func()) (transcribe.Status, error)
	Result(ctx context.Context, handle transcribe.JobHandle) (*transcribe.Output, error)
}

// Translator converts cue texts or transcript files to the target
// language. Translated text lists map one-to-one onto their input.
type Translator interface {
	TranslateTexts(ctx context.Context, texts []string, targetLang string) ([]string, error)
	TranslateFile(ctx context.Context, path, targetLang string) (string, error)
}

// Encoder probes and transforms one local media file.
type Encoder interface {
	ExtractAudio(ctx context.Context) (string, error)
	DurationMinutes(ctx context.Context) (int, error)
	FontSize(ctx context.Context) (int, error)
	BurnInSubtitles(ctx context.Context, opts media.BurnInOptions, onProgress func(int)) (string, error)
}

// EncoderFactory binds an Encoder to a media path.
type EncoderFactory func(mediaPath string) Encoder

// Uploader stores artifacts and serves them publicly.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
	PublicURL(key string) string
}

// DisplayRegistrar registers an uploaded video/captions pair with the
// web player and returns the share link.
type DisplayRegistrar interface {
	Register(ctx context.Context, videoURL, captionsURL, sourceLink, language string) (string, error)
}

// Store is the slice of the user store the pipeline needs.
type Store interface {
	AvailableMinutes(ctx context.Context, id string) (int, error)
	DebitMinutes(ctx context.Context, id string, minutes int) error
	RecordRequest(ctx context.Context, record userstore.RequestRecord) error
}

// Clock lets tests pin artifact key timestamps.
type Clock func() time.Time
