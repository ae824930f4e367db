package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHTTPUploaderPutsFile(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	uploader := NewHTTPUploader(server.URL, "https://cdn.example.com", "secret")
	path := writeTempFile(t, "hello artifact")

	err := uploader.Upload(context.Background(), path, "user-1/2026-01-02_03-04-05/audio.mp3")
	require.NoError(t, err)

	assert.Equal(t, "/user-1/2026-01-02_03-04-05/audio.mp3", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "hello artifact", gotBody)
}

func TestHTTPUploaderReportsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	uploader := NewHTTPUploader(server.URL, "https://cdn.example.com", "")
	err := uploader.Upload(context.Background(), writeTempFile(t, "x"), "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestHTTPUploaderPublicURL(t *testing.T) {
	uploader := NewHTTPUploader("https://store.example.com/", "https://cdn.example.com/", "")
	assert.Equal(t, "https://cdn.example.com/a/b/video.mp4", uploader.PublicURL("a/b/video.mp4"))
}

type fakeUploader struct {
	err   error
	delay time.Duration
}

func (f *fakeUploader) Upload(ctx context.Context, localPath, key string) error {
	time.Sleep(f.delay)
	return f.err
}

func (f *fakeUploader) PublicURL(key string) string { return "https://cdn/" + key }

func TestAsyncUploaderSuccessCallback(t *testing.T) {
	async := NewAsyncUploader(&fakeUploader{})
	path := writeTempFile(t, "twelve bytes")

	done := make(chan int64, 1)
	async.Upload(context.Background(), path, "key",
		func(size int64, elapsed time.Duration) { done <- size },
		func(err error) { t.Errorf("unexpected failure: %v", err) },
	)
	async.Wait()

	select {
	case size := <-done:
		assert.Equal(t, int64(len("twelve bytes")), size)
	default:
		t.Fatal("success callback never ran")
	}
}

func TestAsyncUploaderFailureCallback(t *testing.T) {
	wantErr := errors.New("store offline")
	async := NewAsyncUploader(&fakeUploader{err: wantErr})

	done := make(chan error, 1)
	async.Upload(context.Background(), writeTempFile(t, "x"), "key",
		func(size int64, elapsed time.Duration) { t.Error("unexpected success") },
		func(err error) { done <- err },
	)
	async.Wait()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, wantErr)
	default:
		t.Fatal("failure callback never ran")
	}
}

func TestKeySetLayout(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	keys := NewKeySet("Ada Lovelace!", "42", at)

	assert.Equal(t, "Ada-Lovelace--42/2026-03-14_15-09-26/audio.mp3", keys.Audio())
	assert.Equal(t, "Ada-Lovelace--42/2026-03-14_15-09-26/video.mp4", keys.Video())
	assert.Equal(t, "Ada-Lovelace--42/2026-03-14_15-09-26/subtitles.srt", keys.Subtitles(false))
	assert.Equal(t, "Ada-Lovelace--42/2026-03-14_15-09-26/subtitles.vtt", keys.Subtitles(true))
	assert.Equal(t, "Ada-Lovelace--42/2026-03-14_15-09-26/transcription.txt", keys.Transcript())
	assert.Equal(t, "Ada-Lovelace--42/2026-03-14_15-09-26/output.mp4", keys.Output())
}

func TestKeySetConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2026, 3, 14, 18, 0, 0, 0, loc)
	keys := NewKeySet("user", "1", at)
	assert.Contains(t, keys.Audio(), "2026-03-14_15-00-00")
}
