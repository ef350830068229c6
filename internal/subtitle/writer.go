package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// DefaultWriter is the default subtitle file writer
type DefaultWriter struct{}

// NewWriter creates a new subtitle file writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write renders the subtitle file as SRT at the given path. Blocks are
// separated by exactly one blank line and the file ends right after the last
// text line.
func (w *DefaultWriter) Write(path string, subtitle *File) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for i, line := range subtitle.Lines {
		if i > 0 {
			fmt.Fprintln(writer)
		}

		// write index
		fmt.Fprintf(writer, "%d\n", line.Index)

		// write time
		startTime := FormatDuration(line.StartTime)
		endTime := FormatDuration(line.EndTime)
		fmt.Fprintf(writer, "%s --> %s\n", startTime, endTime)

		// write text
		fmt.Fprintf(writer, "%s\n", line.Text)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}

	return nil
}

// FormatDuration formats a time.Duration in SRT time notation, truncating to
// whole seconds for the H/M/S fields with the millisecond remainder in the
// fractional field.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
