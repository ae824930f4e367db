package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"subgen/pkg/log"
)

// Uploader stores job artifacts under object keys and exposes the public
// URL they will be served from.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
	PublicURL(key string) string
}

// HTTPUploader PUTs artifacts to an object store through its HTTP
// gateway and serves them back through a CDN base URL.
type HTTPUploader struct {
	endpoint   string
	publicBase string
	token      string
	httpClient *http.Client
}

func NewHTTPUploader(endpoint, publicBase, token string) *HTTPUploader {
	return &HTTPUploader{
		endpoint:   strings.TrimRight(endpoint, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Minute},
	}
}

// Upload streams the file at localPath to the store under key.
func (u *HTTPUploader) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.endpoint+"/"+key, f)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload of %s returned status %d", key, resp.StatusCode)
	}
	return nil
}

// PublicURL returns the CDN URL an uploaded key is served from.
func (u *HTTPUploader) PublicURL(key string) string {
	return u.publicBase + "/" + key
}

// AsyncUploader runs uploads on background goroutines and reports
// completion through callbacks, so slow artifact uploads overlap with
// other pipeline work.
type AsyncUploader struct {
	uploader Uploader
	wg       sync.WaitGroup
}

func NewAsyncUploader(uploader Uploader) *AsyncUploader {
	return &AsyncUploader{uploader: uploader}
}

// Upload starts a background upload. onSuccess receives the uploaded
// size and elapsed time; onFailure receives the error. Either may be
// nil.
func (a *AsyncUploader) Upload(ctx context.Context, localPath, key string, onSuccess func(size int64, elapsed time.Duration), onFailure func(err error)) {
	a.wg.Add(1)
	start := time.Now()

	go func() {
		defer a.wg.Done()

		if err := a.uploader.Upload(ctx, localPath, key); err != nil {
			log.Error("Async upload of %s failed: %v", key, err)
			if onFailure != nil {
				onFailure(err)
			}
			return
		}

		var size int64
		if info, err := os.Stat(localPath); err == nil {
			size = info.Size()
		}
		if onSuccess != nil {
			onSuccess(size, time.Since(start))
		}
	}()
}

// Wait blocks until every started upload has finished.
func (a *AsyncUploader) Wait() {
	a.wg.Wait()
}
