package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{APIURL: server.URL, APIKey: "key"})
	require.NoError(t, err)
	return client
}

func TestTranslateTextsPreservesOrderAndFormat(t *testing.T) {
	var gotReq translateRequest
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{
				{"text": "Hallo"},
				{"text": "Welt"},
			},
		})
	}))

	got, err := client.TranslateTexts(context.Background(), []string{"Hello", "World"}, "DE")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hallo", "Welt"}, got)
	assert.Equal(t, "DeepL-Auth-Key key", gotAuth)
	assert.Equal(t, "DE", gotReq.TargetLang)
	assert.Equal(t, "nonewlines", gotReq.SplitSentences)
	assert.True(t, gotReq.PreserveFormatting)
}

func TestTranslateTextsNormalizesTarget(t *testing.T) {
	var gotReq translateRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": "hello"}},
		})
	}))

	_, err := client.TranslateTexts(context.Background(), []string{"hi"}, "en")
	require.NoError(t, err)
	assert.Equal(t, "EN-US", gotReq.TargetLang)

	_, err = client.TranslateTexts(context.Background(), []string{"hi"}, "pt")
	require.NoError(t, err)
	assert.Equal(t, "PT-PT", gotReq.TargetLang)
}

func TestTranslateTextsCountMismatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": "solo"}},
		})
	}))

	_, err := client.TranslateTexts(context.Background(), []string{"one", "two"}, "ES")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestTranslateTextsEmptyInput(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	}))

	got, err := client.TranslateTexts(context.Background(), nil, "ES")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTranslateFileWritesSuffixedOutput(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": "übersetzt"}},
		})
	}))

	dir := t.TempDir()
	path := filepath.Join(dir, "transcription.txt")
	require.NoError(t, os.WriteFile(path, []byte("translated"), 0o644))

	outPath, err := client.TranslateFile(context.Background(), path, "DE")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "transcription_translated.txt"), outPath)
	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "übersetzt", string(content))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(&Config{APIKey: "key"})
	require.Error(t, err)
	_, err = NewClient(&Config{APIURL: "https://api.example.com"})
	require.Error(t, err)
}
