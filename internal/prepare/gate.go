package prepare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/media"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// AllowedExtensions is the upload whitelist of the transcription
// backend.
var AllowedExtensions = []string{"mp3", "mp4", "mpeg", "mpga", "m4a", "wav", "webm"}

var allowedExtSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(AllowedExtensions))
	for _, ext := range AllowedExtensions {
		set[ext] = struct{}{}
	}
	return set
}()

// ErrUnsupportedExtension marks inputs whose file type the backend will
// not accept.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

func IsAllowedExtension(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := allowedExtSet[ext]
	return ok
}

type PlanKind string

const (
	PlanPassthrough PlanKind = "passthrough"
	PlanDownsampled PlanKind = "downsampled"
	PlanSplit       PlanKind = "split"
)

// Plan is the outcome of the size gate: the ordered list of units to
// transcribe. Passthrough and Downsampled plans carry exactly one unit.
type Plan struct {
	Kind  PlanKind
	Units []string
}

// Gate decides how an input file reaches the size-limited backend:
// unchanged, downsampled, or downsampled and split into chunks.
type Gate struct {
	maxUploadBytes int64
	chunkBytes     int64
	temp           *Registry

	newOperator func(string) media.Operator
}

func NewGate(maxUploadBytes, chunkBytes int64, temp *Registry) Gate {
	return Gate{
		maxUploadBytes: maxUploadBytes,
		chunkBytes:     chunkBytes,
		temp:           temp,
		newOperator:    media.NewOperator,
	}
}

// Classify stats and gates the input. Oversized files are downsampled
// to 16 kHz mono mp3; if the result is still oversized it is split. The
// raw original is never split, so a transcoding failure is fatal for
// the file.
func (g Gate) Classify(ctx context.Context, path string) (Plan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Plan{}, fmt.Errorf("input file: %w", err)
	}

	if !IsAllowedExtension(path) {
		return Plan{}, fmt.Errorf("%w: %q (allowed: %s)",
			ErrUnsupportedExtension, filepath.Ext(path), strings.Join(AllowedExtensions, ", "))
	}

	name := filepath.Base(path)
	if info.Size() <= g.maxUploadBytes {
		log.Info("File %s (%.2f MB) within size limit", name, toMB(info.Size()))
		return Plan{Kind: PlanPassthrough, Units: []string{path}}, nil
	}

	log.Warn("File %s (%.2f MB) over limit (%.2f MB), downsampling",
		name, toMB(info.Size()), toMB(g.maxUploadBytes))

	downsampled, err := g.newOperator(path).DefDownsample(ctx)
	if err != nil {
		return Plan{}, err
	}
	g.temp.Add(downsampled)

	dsInfo, err := os.Stat(downsampled)
	if err != nil {
		return Plan{}, fmt.Errorf("downsampled file: %w", err)
	}

	if dsInfo.Size() <= g.maxUploadBytes {
		log.Info("Downsampled %s size: %.2f MB", filepath.Base(downsampled), toMB(dsInfo.Size()))
		return Plan{Kind: PlanDownsampled, Units: []string{downsampled}}, nil
	}

	log.Warn("Still too large (%.2f MB), splitting into %.0f MB chunks",
		toMB(dsInfo.Size()), toMB(g.chunkBytes))

	chunks, err := Split(downsampled, g.chunkBytes, g.temp)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Kind: PlanSplit, Units: chunks}, nil
}

func toMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}
