package media

import "context"

// AudioInfo holds the container-level facts ffprobe reports for an
// audio file.
type AudioInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	FormatName      string  `json:"format_name"`
	BitRate         int64   `json:"bit_rate"`
}

type Operator interface {
	ReadAudioInfo(ctx context.Context) (AudioInfo, error)
	Downsample(ctx context.Context, toDir string, name string) (string, error)
	DefDownsample(ctx context.Context) (string, error)
}

func NewOperator(
	mediaPath string,
) Operator {
	return NewFfmpeg(mediaPath)
}
