package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/file"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	filePath   string
	fileDir    string
	fileName   string
}

func NewFfmpeg(
	mediaPath string,
) ffmpeg {
	// deal with media path
	mediaPath = filepath.Clean(mediaPath)
	mediaDir := filepath.Dir(mediaPath)
	mediaName := filepath.Base(mediaPath)

	return ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		filePath:   mediaPath,
		fileDir:    mediaDir,
		fileName:   mediaName,
	}
}

// Downsample transcodes the media file to 16 kHz mono 128 kbps mp3 and
// saves it to the target path.
func (ff ffmpeg) Downsample(
	ctx context.Context,
	toDir string,
	name string,
) (string, error) {
	output := filepath.Join(toDir, name)

	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.downsampleArgs(output)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed for %s: %w: %s",
			ff.fileName, err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// Downsample next to the input, named after it.
func (ff ffmpeg) DefDownsample(ctx context.Context) (string, error) {
	return ff.Downsample(ctx, ff.fileDir, DownsampledName(ff.fileName))
}

func (ff ffmpeg) ReadAudioInfo(ctx context.Context) (AudioInfo, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return AudioInfo{}, err
	}
	cmd := exec.CommandContext(ctx, cmdPath, ff.readFormatArgs(ff.filePath)...)

	output, err := cmd.Output()
	if err != nil {
		log.Error("Failed to run ffprobe: %v", err)
		return AudioInfo{}, err
	}

	// ffprobe reports numeric format fields as strings.
	var probeResult struct {
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
			Size       string `json:"size"`
			BitRate    string `json:"bit_rate"`
		} `json:"format"`
	}

	if err := json.Unmarshal(output, &probeResult); err != nil {
		log.Error("Failed to parse ffprobe output: %v", err)
		return AudioInfo{}, err
	}

	info := AudioInfo{FormatName: probeResult.Format.FormatName}
	if probeResult.Format.Duration != "" {
		info.DurationSeconds, err = strconv.ParseFloat(probeResult.Format.Duration, 64)
		if err != nil {
			return AudioInfo{}, fmt.Errorf("bad ffprobe duration %q: %w", probeResult.Format.Duration, err)
		}
	}
	if probeResult.Format.Size != "" {
		info.SizeBytes, _ = strconv.ParseInt(probeResult.Format.Size, 10, 64)
	}
	if probeResult.Format.BitRate != "" {
		info.BitRate, _ = strconv.ParseInt(probeResult.Format.BitRate, 10, 64)
	}

	return info, nil
}

func (ffmpeg) readFormatArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
}

func (f ffmpeg) downsampleArgs(targetPath string) []string {
	return []string{
		"-y", // overwrite existing output
		"-i", f.filePath,
		"-ar", "16000", // 16 kHz sample rate
		"-ab", "128k", // 128 kbps bitrate
		"-ac", "1", // mono
		"-f", "mp3",
		targetPath,
	}
}

// DownsampledName returns the default output name Downsample produces
// for the given input name.
func DownsampledName(inputName string) string {
	return file.InsertSuffix(file.ReplaceExt(inputName, ".mp3"), "_downsampled")
}
