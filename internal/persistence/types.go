package persistence

import (
	"time"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/stitch"
)

// UnitCheckpoint records the stitch output of one processed unit so an
// interrupted job can resume after the last finished unit instead of
// re-transcribing everything. Entries hold the globally offset entries
// this unit contributed (empty for skipped units); Cursor is the stitch
// cursor after the unit.
type UnitCheckpoint struct {
	JobID     string
	UnitIndex int
	Entries   []stitch.Entry
	Cursor    stitch.Cursor
	UpdatedAt time.Time
}
