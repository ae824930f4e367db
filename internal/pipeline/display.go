package pipeline

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

const displayNameLength = 20

// HTTPDisplayRegistrar registers finished display-mode jobs with the web
// player service.
type HTTPDisplayRegistrar struct {
	endpoint   string // registration endpoint
	resultBase string // public player base URL
	token      string
	httpClient *http.Client
}

func NewHTTPDisplayRegistrar(endpoint, resultBase, token string) *HTTPDisplayRegistrar {
	return &HTTPDisplayRegistrar{
		endpoint:   endpoint,
		resultBase: strings.TrimRight(resultBase, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type displayRegistration struct {
	VideoURL         string `json:"video_url"`
	CaptionsURL      string `json:"captions_url"`
	OriginalVideoURL string `json:"original_video_url,omitempty"`
	Language         string `json:"language"`
	FileName         string `json:"file_name"`
}

// Register posts the uploaded video/captions pair and returns the public
// player link.
func (r *HTTPDisplayRegistrar) Register(ctx context.Context, videoURL, captionsURL, sourceLink, language string) (string, error) {
	fileName, err := randomName(displayNameLength)
	if err != nil {
		return "", err
	}

	payload := displayRegistration{
		VideoURL:         videoURL,
		CaptionsURL:      captionsURL,
		OriginalVideoURL: sourceLink,
		Language:         strings.ToLower(language),
		FileName:         fileName,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("display registration failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("display registration returned status %d", resp.StatusCode)
	}
	return r.resultBase + "/" + fileName, nil
}

const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomName(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(nameAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate name: %w", err)
		}
		out[i] = nameAlphabet[n.Int64()]
	}
	return string(out), nil
}
