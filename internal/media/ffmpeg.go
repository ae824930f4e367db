package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"subgen/internal/progress"
	"subgen/pkg/file"
	"subgen/pkg/log"
)

// Font sizes by orientation, used when the user keeps the default.
const (
	portraitFontSize  = 22
	landscapeFontSize = 14
)

// FFmpeg wraps the external encoder and prober for one media file.
type FFmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	filePath   string
	fileDir    string
	fileName   string
}

func NewFFmpeg(mediaPath string) FFmpeg {
	mediaPath = filepath.Clean(mediaPath)

	return FFmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		filePath:   mediaPath,
		fileDir:    filepath.Dir(mediaPath),
		fileName:   filepath.Base(mediaPath),
	}
}

// NewFFmpegWithCommands binds encoder binaries that are not on PATH.
// Empty commands keep the defaults.
func NewFFmpegWithCommands(ffmpegCmd, ffprobeCmd, mediaPath string) FFmpeg {
	ff := NewFFmpeg(mediaPath)
	if ffmpegCmd != "" {
		ff.ffmpegCmd = ffmpegCmd
	}
	if ffprobeCmd != "" {
		ff.ffprobeCmd = ffprobeCmd
	}
	return ff
}

// ExtractAudio writes a mono 16kHz mp3 next to the media file and returns
// its path. A failure usually means the source has no audio track.
func (ff FFmpeg) ExtractAudio(ctx context.Context) (string, error) {
	output := filepath.Join(ff.fileDir, file.ReplaceExt(ff.fileName, ".mp3"))

	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, cmdPath, ff.extractAudioArgs(output)...)

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("audio extraction failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return output, nil
}

func (ff FFmpeg) extractAudioArgs(targetPath string) []string {
	return []string{
		"-i", ff.filePath,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "320k",
		targetPath,
		"-y",
		"-loglevel", "error",
	}
}

// DurationMinutes probes the media duration and reports it in whole
// minutes. Anything under a minute counts as one.
func (ff FFmpeg) DurationMinutes(ctx context.Context) (int, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, cmdPath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		ff.filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		log.Error("Failed to run ffprobe: %v", err)
		return 0, fmt.Errorf("failed to probe duration: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse probed duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return minutesFromSeconds(seconds), nil
}

func minutesFromSeconds(seconds float64) int {
	if seconds < 60 {
		return 1
	}
	return int(math.RoundToEven(seconds / 60))
}

// Resolution probes the width and height of the first video stream.
func (ff FFmpeg) Resolution(ctx context.Context) (int, int, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return 0, 0, err
	}
	cmd := exec.CommandContext(ctx, cmdPath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		ff.filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		log.Error("Failed to run ffprobe: %v", err)
		return 0, 0, fmt.Errorf("failed to probe resolution: %w", err)
	}

	var probeResult struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		return 0, 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probeResult.Streams) == 0 {
		return 0, 0, fmt.Errorf("media has no video stream")
	}
	return probeResult.Streams[0].Width, probeResult.Streams[0].Height, nil
}

// FontSize picks the default subtitle font size from the video
// orientation.
func (ff FFmpeg) FontSize(ctx context.Context) (int, error) {
	width, height, err := ff.Resolution(ctx)
	if err != nil {
		return 0, err
	}
	return fontSizeFor(width, height), nil
}

func fontSizeFor(width, height int) int {
	if height > width {
		return portraitFontSize
	}
	return landscapeFontSize
}

// runWithProgress executes the encoder with machine-readable progress
// enabled, feeding every output line through the monitor and invoking
// onUpdate for each reportable percentage.
func (ff FFmpeg) runWithProgress(ctx context.Context, args []string, monitor *progress.EncodeMonitor, onUpdate func(int)) error {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return err
	}
	withProgress := append([]string{"-progress", "-", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, cmdPath, withProgress...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open encoder stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open encoder stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	lines := make(chan string, 64)
	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	go func() {
		wg.Wait()
		close(lines)
	}()

	for line := range lines {
		if percent, ok := monitor.Observe(line); ok && onUpdate != nil {
			onUpdate(percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("encoder exited with error: %w", err)
	}
	if percent, ok := monitor.Done(); ok && onUpdate != nil {
		onUpdate(percent)
	}
	return nil
}
