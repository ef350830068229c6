package asbplayer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

const DefaultBaseURL = "http://127.0.0.1:8766"

// Client delivers finished subtitle files to a running asbplayer
// instance over its local HTTP bridge.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type loadSubtitlesRequest struct {
	Files []subtitleFile `json:"files"`
}

type subtitleFile struct {
	Name   string `json:"name"`
	Base64 string `json:"base64"`
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// LoadSubtitles posts the subtitle file at path to asbplayer, which
// attaches it to whatever is currently playing.
func (c *Client) LoadSubtitles(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read subtitle file: %w", err)
	}

	request := loadSubtitlesRequest{
		Files: []subtitleFile{{
			Name:   filepath.Base(path),
			Base64: base64.StdEncoding.EncodeToString(content),
		}},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/asbplayer/load-subtitles"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("asbplayer error (status %d): %s", resp.StatusCode, string(body))
	}

	log.Info("Sent subtitles %s to %s", filepath.Base(path), url)
	log.Debug("asbplayer response: %s", string(body))
	return nil
}
