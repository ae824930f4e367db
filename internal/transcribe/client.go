package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"subgen/pkg/backoff"
	"subgen/pkg/log"
)

// Default client tuning. Submission failures are retried a fixed number
// of times; polling runs at a short fixed interval until the remote
// reports a terminal status or the poll deadline passes.
const (
	DefaultSubmitAttempts = 3
	DefaultSubmitDelay    = 3 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultPollTimeout    = 2 * time.Hour
)

// Config holds the transcription service connection settings.
type Config struct {
	APIURL       string
	APIToken     string
	Timeout      int // request timeout in seconds
	PollInterval time.Duration
	PollTimeout  time.Duration // 0 disables the poll deadline
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("transcription API URL is required")
	}
	return nil
}

// Client talks to the remote transcription/alignment service.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	retry      backoff.Policy
}

// NewClient creates a transcription client with the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Copy so defaulting never writes back through the caller's pointer.
	cfg := *config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	timeout := 60 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		config:     &cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      backoff.Fixed(DefaultSubmitAttempts, DefaultSubmitDelay),
	}, nil
}

// SetRetryPolicy overrides the submission retry policy. Tests inject a
// zero-delay variant here.
func (c *Client) SetRetryPolicy(p backoff.Policy) {
	c.retry = p
}

type submitRequest struct {
	Input submitInput `json:"input"`
}

type submitInput struct {
	AudioFile   string `json:"audio_file"`
	AlignOutput bool   `json:"align_output"`
	Language    string `json:"language,omitempty"`
}

type jobResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Output *Output `json:"output,omitempty"`
}

// Submit creates a remote job for the audio at audioURL. languageHint may
// be empty to let the remote model detect the language. alignOutput
// requests word-level timestamps. Submission is retried per the client's
// retry policy; after exhaustion no job handle is produced.
func (c *Client) Submit(ctx context.Context, audioURL, languageHint string, alignOutput bool) (JobHandle, error) {
	request := submitRequest{
		Input: submitInput{
			AudioFile:   audioURL,
			AlignOutput: alignOutput,
			Language:    languageHint,
		},
	}

	var handle JobHandle
	err := c.retry.Retry(ctx, func() error {
		response, err := c.makeRequest(ctx, http.MethodPost, "/jobs", request)
		if err != nil {
			log.Warn("transcription job submission failed, will retry: %v", err)
			return err
		}
		handle = JobHandle(response.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit transcription job: %w", err)
	}
	if handle == "" {
		return "", fmt.Errorf("transcription service returned no job id")
	}
	return handle, nil
}

// Poll fetches the current status of a submitted job.
func (c *Client) Poll(ctx context.Context, handle JobHandle) (Status, error) {
	response, err := c.makeRequest(ctx, http.MethodGet, "/jobs/"+string(handle), nil)
	if err != nil {
		return "", fmt.Errorf("failed to poll transcription job: %w", err)
	}
	switch Status(response.Status) {
	case StatusSucceeded:
		return StatusSucceeded, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// Result fetches the output of a succeeded job.
func (c *Client) Result(ctx context.Context, handle JobHandle) (*Output, error) {
	response, err := c.makeRequest(ctx, http.MethodGet, "/jobs/"+string(handle), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcription result: %w", err)
	}
	if response.Output == nil {
		return nil, fmt.Errorf("transcription job %s has no output", handle)
	}
	return response.Output, nil
}

// Await polls the job at the configured interval until it reaches a
// terminal status. onPoll runs once per completed poll while the job is
// still pending. A non-terminal job past the poll deadline returns an
// error.
func (c *Client) Await(ctx context.Context, handle JobHandle, onPoll func()) (Status, error) {
	if c.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.PollTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.Poll(ctx, handle)
		if err != nil {
			return "", err
		}
		if status != StatusPending {
			return status, nil
		}
		if onPoll != nil {
			onPoll()
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("transcription job %s did not finish in time: %w", handle, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*jobResponse, error) {
	url := c.config.APIURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var response jobResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}
