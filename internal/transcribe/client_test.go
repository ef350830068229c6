package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake-mp3-bytes"), 0644))
	return path
}

func defaultParams() Params {
	return Params{
		Model:         "whisper-large-v3-turbo",
		Language:      "ja",
		Granularities: Granularities{GranularityWord},
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestTranscribe_WithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Equal(t, "whisper-large-v3-turbo", r.FormValue("model"))
		assert.Equal(t, "ja", r.FormValue("language"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Contains(t, r.MultipartForm.Value["timestamp_granularities[]"], "word")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "sample.mp3", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		response := `{
			"task": "transcribe",
			"language": "japanese",
			"duration": 2.5,
			"text": "こんにちは 世界",
			"segments": [
				{"id": 0, "seek": 0, "start": 0.0, "end": 2.5, "text": "こんにちは 世界"}
			],
			"words": [
				{"word": "こんにちは", "start": 0.0, "end": 1.2},
				{"word": "世界", "start": 1.3, "end": 2.5}
			]
		}`
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	result, err := client.Transcribe(context.Background(), writeTempAudio(t), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, "japanese", result.Language)
	assert.InDelta(t, 2.5, result.Duration, 1e-9)
	require.Len(t, result.Words, 2)
	assert.Equal(t, "こんにちは", result.Words[0].Word)
	assert.InDelta(t, 1.2, result.Words[0].End, 1e-9)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, 0, result.Segments[0].ID)
	assert.False(t, result.Empty(GranularityWord))
}

func TestTranscribe_AutoDetectOmitsLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Empty(t, r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":1.0,"text":"hi","words":[{"word":"hi","start":0.0,"end":0.4}]}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	params := defaultParams()
	params.AutoDetect = true
	params.Language = ""

	result, err := client.Transcribe(context.Background(), writeTempAudio(t), params)
	require.NoError(t, err)
	assert.Equal(t, "english", result.Language)
}

func TestTranscribe_InvalidLanguageFailsBeforeRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	params := defaultParams()
	params.Language = "xx"

	_, err = client.Transcribe(context.Background(), writeTempAudio(t), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
	assert.Zero(t, requests)
}

func TestTranscribe_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "bad-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeTempAudio(t), defaultParams())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsRateLimitError(err))
}

func TestTranscribe_RateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"tokens"}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeTempAudio(t), defaultParams())
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.False(t, IsAuthError(err))
}

func TestTranscribe_GenericErrorIsNeither(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"server exploded","type":"server_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeTempAudio(t), defaultParams())
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
	assert.False(t, IsRateLimitError(err))
}

func TestTranscribe_MissingFile(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), "/nope/missing.mp3", defaultParams())
	require.Error(t, err)
}

func TestTranscribe_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":0,"text":""}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeTempAudio(t), defaultParams())
	require.Error(t, err)
}

// TestGroqIntegration runs against the real Groq API. It needs GROQ_API_KEY
// and ASB_TEST_AUDIO (a small audio file) to be set.
func TestGroqIntegration(t *testing.T) {
	_ = godotenv.Load("./.env")
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		t.Skip("Set GROQ_API_KEY environment variable to run this test")
	}
	audioPath := os.Getenv("ASB_TEST_AUDIO")
	if audioPath == "" {
		t.Skip("Set ASB_TEST_AUDIO to a small audio file to run this test")
	}

	client, err := NewClient(ClientConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.groq.com/openai/v1",
		Timeout: 120 * time.Second,
	})
	require.NoError(t, err)

	params := Params{
		Model:         "whisper-large-v3-turbo",
		AutoDetect:    true,
		Granularities: Granularities{GranularitySegment, GranularityWord},
	}

	result, err := client.Transcribe(context.Background(), audioPath, params)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Language)
}
