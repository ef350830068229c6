package library

import "time"

// MediaFile is one audio file found under the watch folder.
type MediaFile struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	SubtitlePath string    `json:"subtitle_path"`
	HasSubtitle  bool      `json:"has_subtitle"`
	SizeBytes    int64     `json:"size_bytes"`
	ModifiedAt   time.Time `json:"modified_at"`
}

type Library struct {
	Dir          string      `json:"dir"`
	Files        []MediaFile `json:"files"`
	PendingCount int         `json:"pending_count"`
}

// Pending returns the files that still need a subtitle.
func (l *Library) Pending() []MediaFile {
	if l == nil {
		return nil
	}
	ret := make([]MediaFile, 0, l.PendingCount)
	for _, f := range l.Files {
		if !f.HasSubtitle {
			ret = append(ret, f)
		}
	}
	return ret
}
