package prepare

import (
	"os"
	"sync"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// Registry collects the temporary artifacts a run creates (downsampled
// audio, chunk files, downloaded audio) so they can all be removed when
// the run finishes, however it ends.
type Registry struct {
	mu    sync.Mutex
	files []string
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, path)
}

// Files returns a snapshot of the registered paths.
func (r *Registry) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.files))
	copy(out, r.files)
	return out
}

// Cleanup removes every registered file. Deletion failure is a warning,
// never an error; the registry is emptied either way.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	files := r.files
	r.files = nil
	r.mu.Unlock()

	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(f); err != nil {
			log.Warn("Could not remove temporary file %s: %v", f, err)
			continue
		}
		log.Info("Cleaned up temporary file: %s", f)
	}
}
