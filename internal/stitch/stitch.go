package stitch

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/subtitle"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/transcribe"
)

// MinDuration is the smallest entry length, in seconds, that survives
// serialization. Entries whose end does not exceed their start are stretched
// to exactly this length.
const MinDuration = 0.050

// Entry is one globally positioned subtitle entry. Start and End are
// absolute seconds from the beginning of the source audio; IDs are contiguous
// from 1 across the whole run.
type Entry struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Cursor carries the two accumulators that make unit-local results global.
// RunningOffset advances to the maximum adjusted end of each productive unit
// and never decreases; IDOffset advances by the unit's entry count (word
// granularity) or by its maximum original local id + 1 (segment granularity).
// Units that fail or return nothing advance neither value.
type Cursor struct {
	RunningOffset float64 `json:"running_offset"`
	IDOffset      int     `json:"id_offset"`
}

// Fold merges one unit's result into the global timeline and returns the
// advanced cursor. It is pure: no I/O, no retained state beyond the cursor
// the caller threads through.
func Fold(cur Cursor, res transcribe.Result, primary transcribe.Granularity) ([]Entry, Cursor) {
	if primary == transcribe.GranularityWord {
		return foldWords(cur, res.Words)
	}
	return foldSegments(cur, res.Segments)
}

func foldWords(cur Cursor, words []transcribe.Word) ([]Entry, Cursor) {
	if len(words) == 0 {
		return nil, cur
	}

	entries := make([]Entry, 0, len(words))
	prevEnd := 0.0
	maxEnd := cur.RunningOffset

	for i, w := range words {
		start := w.Start + cur.RunningOffset
		end := w.End + cur.RunningOffset

		start, end = clamp(start, end, prevEnd)

		entries = append(entries, Entry{
			ID:    cur.IDOffset + i + 1,
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(w.Word),
		})

		prevEnd = end
		if end > maxEnd {
			maxEnd = end
		}
	}

	return entries, Cursor{
		RunningOffset: maxEnd,
		IDOffset:      cur.IDOffset + len(words),
	}
}

func foldSegments(cur Cursor, segments []transcribe.Segment) ([]Entry, Cursor) {
	if len(segments) == 0 {
		return nil, cur
	}

	entries := make([]Entry, 0, len(segments))
	prevEnd := 0.0
	maxEnd := cur.RunningOffset
	maxOriginalID := -1

	for i, s := range segments {
		start := s.Start + cur.RunningOffset
		end := s.End + cur.RunningOffset

		start, end = clamp(start, end, prevEnd)

		if s.ID > maxOriginalID {
			maxOriginalID = s.ID
		}

		entries = append(entries, Entry{
			ID:    cur.IDOffset + i + 1,
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(s.Text),
		})

		prevEnd = end
		if end > maxEnd {
			maxEnd = end
		}
	}

	// Backends may skip ids inside a unit, so the id offset jumps by the
	// highest original id rather than by the number of entries produced.
	return entries, Cursor{
		RunningOffset: maxEnd,
		IDOffset:      cur.IDOffset + maxOriginalID + 1,
	}
}

// clamp enforces pairwise monotonicity between consecutive entries: a start
// may not precede the previous end, and an entry that would collapse to zero
// or negative length is stretched to MinDuration.
func clamp(start, end, prevEnd float64) (float64, float64) {
	if start < prevEnd {
		start = prevEnd
	}
	if end <= start {
		end = start + MinDuration
	}
	return start, end
}

// ToFile converts stitched entries into a subtitle file ready for the SRT
// writer. Timestamps are rounded to millisecond precision here, once.
func ToFile(entries []Entry, lang language.Tag) *subtitle.File {
	lines := make([]subtitle.Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, subtitle.Line{
			Index:     e.ID,
			StartTime: subtitle.DurationFromSeconds(e.Start),
			EndTime:   subtitle.DurationFromSeconds(e.End),
			Text:      e.Text,
		})
	}
	return &subtitle.File{
		Lines:    lines,
		Language: lang,
		Format:   "SRT",
	}
}
