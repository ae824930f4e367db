package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the translation service connection settings.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout int // request timeout in seconds
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("translation API URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("translation API key is required")
	}
	return nil
}

// Client talks to the translation service. Thread-safe for concurrent
// use.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a translation client with the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// normalizeTarget maps bare two-letter codes to the region-qualified
// codes the service expects for its deprecated plain forms.
func normalizeTarget(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch code {
	case "EN":
		return "EN-US"
	case "PT":
		return "PT-PT"
	}
	return code
}

type translateRequest struct {
	Text               []string `json:"text"`
	TargetLang         string   `json:"target_lang"`
	SplitSentences     string   `json:"split_sentences,omitempty"`
	PreserveFormatting bool     `json:"preserve_formatting"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// TranslateTexts translates a batch of cue texts in order. Sentences are
// not re-split across newlines and formatting is preserved, so the
// translated list maps one to one onto the input cues.
func (c *Client) TranslateTexts(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := translateRequest{
		Text:               texts,
		TargetLang:         normalizeTarget(targetLang),
		SplitSentences:     "nonewlines",
		PreserveFormatting: true,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL+"/v2/translate", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("translation API returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var response translateResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Translations) != len(texts) {
		return nil, fmt.Errorf("translation count mismatch: sent %d, got %d", len(texts), len(response.Translations))
	}

	translated := make([]string, len(response.Translations))
	for i, tr := range response.Translations {
		translated[i] = tr.Text
	}
	return translated, nil
}

// TranslateFile translates a plain-text transcript file and writes the
// result next to it with a "_translated" suffix, returning the new path.
func (c *Client) TranslateFile(ctx context.Context, path, targetLang string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	translated, err := c.TranslateTexts(ctx, []string{string(content)}, targetLang)
	if err != nil {
		return "", err
	}

	outPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_translated.txt"
	if err := os.WriteFile(outPath, []byte(translated[0]), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return outPath, nil
}
