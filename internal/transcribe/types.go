package transcribe

import (
	"context"
	"fmt"
	"strings"
)

// Granularity selects the timestamp resolution the backend is asked for.
type Granularity string

const (
	GranularitySegment Granularity = "segment"
	GranularityWord    Granularity = "word"
)

// Granularities is the parsed, ordered granularity request. When both are
// present, word-level timestamps take priority end-to-end: stitching and
// serialization use the words and ignore the segment data of that run.
type Granularities []Granularity

// ParseGranularities parses a comma-separated granularity list such as
// "segment", "word" or "segment,word".
func ParseGranularities(s string) (Granularities, error) {
	parts := strings.Split(s, ",")
	var out Granularities
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch Granularity(p) {
		case GranularitySegment, GranularityWord:
			out = append(out, Granularity(p))
		default:
			return nil, fmt.Errorf("invalid granularity %q: use %q, %q or %q",
				p, GranularitySegment, GranularityWord, "segment,word")
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty granularity: use %q, %q or %q",
			GranularitySegment, GranularityWord, "segment,word")
	}
	return out, nil
}

// Primary returns the granularity that drives stitching.
func (g Granularities) Primary() Granularity {
	for _, gran := range g {
		if gran == GranularityWord {
			return GranularityWord
		}
	}
	return GranularitySegment
}

func (g Granularities) String() string {
	parts := make([]string, 0, len(g))
	for _, gran := range g {
		parts = append(parts, string(gran))
	}
	return strings.Join(parts, ",")
}

// Params carries everything one transcription request needs besides the
// audio itself.
type Params struct {
	Model         string
	Prompt        string
	Language      string // ISO 639-1 code; ignored when AutoDetect is set
	AutoDetect    bool
	Granularities Granularities
	Temperature   float32
}

// Segment is one backend segment with timestamps relative to the start of
// the submitted unit. The ID is the backend's own numbering, which may skip.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Word is one backend word with unit-relative timestamps.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the structured transcription of a single unit. Entries arrive in
// non-decreasing start order from the backend and are not re-sorted here.
type Result struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []Segment
	Words    []Word
}

// Empty reports whether the result carries no usable entries for the given
// primary granularity.
func (r Result) Empty(primary Granularity) bool {
	if primary == GranularityWord {
		return len(r.Words) == 0
	}
	return len(r.Segments) == 0
}

// Transcriber is the transcription capability the pipeline depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, params Params) (Result, error)
}
