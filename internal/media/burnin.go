package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"subgen/internal/progress"
)

// DefaultFontName is used when the user keeps the default font.
const DefaultFontName = "ProbaPro-Bold"

// BurnInOptions configures subtitle burn-in.
type BurnInOptions struct {
	SubtitlePath  string
	WatermarkPath string
	FontName      string
	FontSize      int
	BorderBox     bool // opaque box behind the text instead of an outline
	OutputPath    string
	// DurationOverride supplies the total duration for progress when the
	// encoder output does not report one.
	DurationOverride time.Duration
}

// BurnInSubtitles renders the subtitle file and a corner watermark into
// the video, reporting encode progress through onProgress.
func (ff FFmpeg) BurnInSubtitles(ctx context.Context, opts BurnInOptions, onProgress func(int)) (string, error) {
	if opts.SubtitlePath == "" {
		return "", fmt.Errorf("subtitle path is required")
	}
	if opts.FontName == "" {
		opts.FontName = DefaultFontName
	}
	if opts.OutputPath == "" {
		opts.OutputPath = strings.TrimSuffix(opts.SubtitlePath, filepath.Ext(opts.SubtitlePath)) + "_edited.mp4"
	}

	monitor := progress.NewEncodeMonitor(opts.DurationOverride)
	args := ff.burnInArgs(opts)

	if err := ff.runWithProgress(ctx, args, monitor, onProgress); err != nil {
		return "", fmt.Errorf("subtitle burn-in failed: %w", err)
	}
	return opts.OutputPath, nil
}

func (ff FFmpeg) burnInArgs(opts BurnInOptions) []string {
	borderStyle := "BorderStyle=1,Outline=1.10,Shadow=0.35"
	if opts.BorderBox {
		borderStyle = "BorderStyle=4,BackColour=&H30000000,Shadow=0"
	}

	filter := fmt.Sprintf(
		"[1:v]scale=iw*0.2:-1[logo];[0:v][logo]overlay=W-w-10:10,subtitles=%s:force_style='FontName=%s,FontSize=%d,OutlineColour=&H20000000,Spacing=0.3,%s'",
		opts.SubtitlePath, opts.FontName, opts.FontSize, borderStyle,
	)

	return []string{
		"-vsync", "0",
		"-threads", "auto",
		"-i", ff.filePath,
		"-i", opts.WatermarkPath,
		"-filter_complex", filter,
		"-c:a", "copy",
		"-c:v", "libx264",
		"-preset", "veryfast",
		opts.OutputPath,
		"-y",
	}
}
