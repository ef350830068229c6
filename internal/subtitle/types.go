package subtitle

import (
	"math"
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read(path string) (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Line represents a single subtitle line
type Line struct {
	Index     int           // subtitle index
	StartTime time.Duration // start time
	EndTime   time.Duration // end time
	Text      string        // subtitle text
}

// File represents a subtitle file
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT, ASS, VTT etc
	Path     string // where the file was read from or written to
}

// Empty reports whether the file has no lines.
func (f *File) Empty() bool {
	return f == nil || len(f.Lines) == 0
}

// DurationFromSeconds converts backend float seconds to a Duration with
// millisecond precision. Rounding happens here once, so formatting later is
// pure integer arithmetic and the millisecond field can never overflow.
func DurationFromSeconds(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}
