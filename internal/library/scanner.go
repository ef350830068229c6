package library

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/prepare"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/file"
)

type scannerOptions struct {
	cacheTTL time.Duration
}

type Option func(*scannerOptions)

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	library *Library
}

// Scanner walks the watch folder for audio files the backend can
// transcribe and reports which ones still lack a sibling SRT.
type Scanner struct {
	dir string

	mu            sync.RWMutex
	cacheTTL      time.Duration
	cache         *scanCache
	configVersion uint64
}

func NewScanner(dir string, opts ...Option) *Scanner {
	options := scannerOptions{
		cacheTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Scanner{
		dir:      dir,
		cacheTTL: options.cacheTTL,
	}
}

func (s *Scanner) Dir() string {
	return s.dir
}

func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.configVersion++
	s.mu.Unlock()
}

// Intermediate artifacts of our own pipeline must never be re-enqueued.
var tempArtifactPattern = regexp.MustCompile(`(?i)(_downsampled|_part\d{3})$`)

func isTempArtifact(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return tempArtifactPattern.MatchString(stem)
}

func (s *Scanner) Scan(ctx context.Context) (*Library, error) {
	s.mu.RLock()
	version := s.configVersion
	cacheTTL := s.cacheTTL
	if s.cache != nil && s.cache.version == version && (cacheTTL <= 0 || time.Since(s.cache.scanned) < cacheTTL) {
		cached := cloneLibrary(s.cache.library)
		s.mu.RUnlock()
		return cached, nil
	}
	dir := s.dir
	s.mu.RUnlock()

	ret := &Library{
		Dir:   dir,
		Files: make([]MediaFile, 0),
	}

	if dir == "" {
		return ret, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ret, nil
		}
		return nil, err
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !prepare.IsAllowedExtension(path) {
			return nil
		}
		if isTempArtifact(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		// A zero-byte subtitle counts as missing; the pipeline makes the
		// authoritative call by parsing it.
		subtitlePath := file.ReplaceExt(path, ".srt")
		subStat, statErr := os.Stat(subtitlePath)

		ret.Files = append(ret.Files, MediaFile{
			Path:         path,
			Name:         name,
			SubtitlePath: subtitlePath,
			HasSubtitle:  statErr == nil && subStat.Size() > 0,
			SizeBytes:    info.Size(),
			ModifiedAt:   info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(ret.Files, func(i, j int) bool {
		return ret.Files[i].Path < ret.Files[j].Path
	})
	for _, f := range ret.Files {
		if !f.HasSubtitle {
			ret.PendingCount++
		}
	}

	s.mu.Lock()
	if s.configVersion == version {
		s.cache = &scanCache{
			version: version,
			scanned: time.Now(),
			library: cloneLibrary(ret),
		}
	}
	s.mu.Unlock()

	return ret, nil
}

func cloneLibrary(src *Library) *Library {
	if src == nil {
		return nil
	}
	dst := &Library{
		Dir:          src.Dir,
		Files:        make([]MediaFile, len(src.Files)),
		PendingCount: src.PendingCount,
	}
	copy(dst.Files, src.Files)
	return dst
}
