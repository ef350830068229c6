package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/file"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

const fallbackAudioName = "youtube_audio"

type ytdlp struct {
	ytdlpCmd  string
	outputDir string
}

func NewYtdlp(
	outputDir string,
) ytdlp {
	return ytdlp{
		ytdlpCmd:  "yt-dlp",
		outputDir: filepath.Clean(outputDir),
	}
}

// ExtractVideoID resolves the video id without downloading anything.
func (yd ytdlp) ExtractVideoID(ctx context.Context, url string) (string, error) {
	cmdPath, err := exec.LookPath(yd.ytdlpCmd)
	if err != nil {
		return "", err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, yd.printIDArgs(url)...)
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp id lookup failed for %s: %w: %s",
			url, err, strings.TrimSpace(stderr.String()))
	}

	id := strings.TrimSpace(string(output))
	if id == "" {
		return "", fmt.Errorf("yt-dlp returned no id for %s", url)
	}
	return id, nil
}

// DownloadAudio downloads the best audio stream for url and extracts it
// to mp3 under the output dir. The file is named after the video id;
// when the expected name does not appear, the newest mp3 written during
// the download is used instead.
func (yd ytdlp) DownloadAudio(ctx context.Context, url string) (string, error) {
	cmdPath, err := exec.LookPath(yd.ytdlpCmd)
	if err != nil {
		return "", err
	}

	id, err := yd.ExtractVideoID(ctx, url)
	if err != nil {
		log.Warn("Could not pre-extract video id, using default name: %v", err)
		id = fallbackAudioName
	}
	log.Info("Downloading audio for %s (id %s)", url, id)

	// Allow for filesystems with second-granularity mtimes.
	began := time.Now().Add(-time.Second)
	expected := filepath.Join(yd.outputDir, id+".mp3")
	outtmpl := filepath.Join(yd.outputDir, id) + ".%(ext)s"

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, yd.downloadArgs(url, outtmpl)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp download failed for %s: %w: %s",
			url, err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}

	found, err := file.NewestWithExtAfter(yd.outputDir, ".mp3", began)
	if err == nil && found != "" {
		log.Warn("yt-dlp wrote %s instead of %s, using it", found, expected)
		return found, nil
	}
	return "", fmt.Errorf("expected audio file not found after download: %s", expected)
}

func (ytdlp) printIDArgs(url string) []string {
	return []string{
		"--no-playlist",
		"--print", "id",
		url,
	}
}

func (ytdlp) downloadArgs(url, outtmpl string) []string {
	return []string{
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x", // extract audio
		"--audio-format", "mp3",
		"--audio-quality", "192",
		"-o", outtmpl,
		url,
	}
}
