package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// Client submits audio to an OpenAI-compatible transcription endpoint. Groq
// exposes Whisper behind the same surface, so the stock client works with a
// BaseURL override.
type Client struct {
	api     *openai.Client
	timeout time.Duration
}

// ClientConfig holds what the transcription client needs to reach the
// backend.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a transcription client for the configured endpoint.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcription api key is required")
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		timeout: cfg.Timeout,
	}, nil
}

// Transcribe submits one unit synchronously and returns its structured
// result. Parameter problems surface before any network traffic; backend
// failures come back wrapped so callers can classify them.
func (c *Client) Transcribe(ctx context.Context, path string, params Params) (Result, error) {
	if params.Model == "" {
		return Result{}, fmt.Errorf("transcription model is required")
	}
	if len(params.Granularities) == 0 {
		return Result{}, fmt.Errorf("at least one timestamp granularity is required")
	}
	if !params.AutoDetect {
		if err := ValidateLanguage(params.Language); err != nil {
			return Result{}, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open audio unit %s: %w", path, err)
	}
	defer f.Close()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.AudioRequest{
		Model:       params.Model,
		FilePath:    filepath.Base(path),
		Reader:      f,
		Prompt:      params.Prompt,
		Temperature: params.Temperature,
		Format:      openai.AudioResponseFormatVerboseJSON,
	}
	for _, g := range params.Granularities {
		switch g {
		case GranularityWord:
			req.TimestampGranularities = append(req.TimestampGranularities,
				openai.TranscriptionTimestampGranularityWord)
		case GranularitySegment:
			req.TimestampGranularities = append(req.TimestampGranularities,
				openai.TranscriptionTimestampGranularitySegment)
		}
	}
	if !params.AutoDetect {
		req.Language = params.Language
	}

	started := time.Now()
	resp, err := c.api.CreateTranscription(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
	}

	result := fromAudioResponse(resp)
	log.Debug("transcribed %s in %s: %d segments, %d words, language=%s",
		filepath.Base(path), time.Since(started).Round(time.Millisecond),
		len(result.Segments), len(result.Words), result.Language)

	return result, nil
}

func fromAudioResponse(resp openai.AudioResponse) Result {
	result := Result{
		Language: resp.Language,
		Duration: resp.Duration,
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	for _, w := range resp.Words {
		result.Words = append(result.Words, Word{
			Word:  w.Word,
			Start: w.Start,
			End:   w.End,
		})
	}
	return result
}

// httpStatusOf digs the HTTP status out of a backend error, or 0 when the
// error did not come from the API at all.
func httpStatusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// IsAuthError reports whether the backend rejected our credentials.
func IsAuthError(err error) bool {
	status := httpStatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsRateLimitError reports whether the backend throttled the request.
func IsRateLimitError(err error) bool {
	return httpStatusOf(err) == http.StatusTooManyRequests
}
