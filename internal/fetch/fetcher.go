package fetch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"subgen/pkg/log"
)

// ErrUnavailable marks a source the upstream reports as gone or blocked,
// as opposed to a transient fetch failure.
var ErrUnavailable = errors.New("video unavailable")

// progressTemplate makes the downloader emit one parsable line per
// update: "<fragment_index>|<percent string>".
const progressTemplate = "download:%(progress.fragment_index)s|%(progress._percent_str)s"

// Fetcher downloads source videos through an external downloader binary.
type Fetcher struct {
	cmd string
}

func NewFetcher() *Fetcher {
	return &Fetcher{cmd: "yt-dlp"}
}

// ProbeDurationMinutes asks the source for the video length without
// downloading. Returns 0 when the source does not report one; the caller
// then re-checks quota after download.
func (f *Fetcher) ProbeDurationMinutes(ctx context.Context, url string) (int, error) {
	cmdPath, err := exec.LookPath(f.cmd)
	if err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, cmdPath,
		"--no-playlist",
		"--skip-download",
		"--print", "duration_string",
		url,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if strings.Contains(stderr.String(), "unavailable") {
			return 0, fmt.Errorf("probing %s: %w", url, ErrUnavailable)
		}
		return 0, fmt.Errorf("failed to probe video duration: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	durationString := strings.TrimSpace(string(output))
	if durationString == "" || durationString == "NA" {
		return 0, nil
	}
	seconds, err := parseDurationString(durationString)
	if err != nil {
		log.Warn("Unparsable duration %q for %s: %v", durationString, url, err)
		return 0, nil
	}
	return seconds / 60, nil
}

// parseDurationString converts a colon-separated duration such as
// "1:02:03" to seconds.
func parseDurationString(s string) (int, error) {
	parts := strings.Split(s, ":")
	seconds := 0
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("invalid duration component %q", part)
		}
		seconds = seconds*60 + v
	}
	return seconds, nil
}

// Download fetches the URL to outputPath using the format chain for the
// selection. onProgress receives the raw fragment index and percent text
// of every progress line; filtering is the caller's concern.
func (f *Fetcher) Download(ctx context.Context, url, outputPath string, sel Selection, onProgress func(fragmentIndex int, percentText string)) error {
	cmdPath, err := exec.LookPath(f.cmd)
	if err != nil {
		return err
	}

	args := []string{
		"-o", outputPath,
		"-f", FormatSelector(url, sel),
		"--merge-output-format", "mp4",
		"--concurrent-fragments", "16",
		"--extractor-args", "youtube:formats=dashy",
		"--no-playlist",
		"--force-overwrites",
		"--newline",
		"--progress-template", progressTemplate,
		"--quiet",
		"--progress",
		url,
	}
	cmd := exec.CommandContext(ctx, cmdPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open downloader stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start downloader: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		fragmentIndex, percentText, ok := parseProgressLine(scanner.Text())
		if ok && onProgress != nil {
			onProgress(fragmentIndex, percentText)
		}
	}

	if err := cmd.Wait(); err != nil {
		if strings.Contains(stderr.String(), "unavailable") {
			return fmt.Errorf("downloading %s: %w", url, ErrUnavailable)
		}
		return fmt.Errorf("download failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// parseProgressLine splits a progress-template line into its fragment
// index and percent text. A missing fragment index counts as zero.
func parseProgressLine(line string) (int, string, bool) {
	idxText, percentText, found := strings.Cut(strings.TrimSpace(line), "|")
	if !found {
		return 0, "", false
	}
	fragmentIndex, err := strconv.Atoi(idxText)
	if err != nil {
		fragmentIndex = 0
	}
	return fragmentIndex, percentText, true
}
