package watch

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultErrorBackoff = 5 * time.Second
)

// Handler receives each YouTube link detected on the clipboard.
type Handler func(url string)

// Watcher polls the system clipboard and hands YouTube links to a
// handler. Every clipboard change is remembered, so the same text is
// inspected at most once no matter how long it stays copied.
type Watcher struct {
	handler      Handler
	pollInterval time.Duration
	errorBackoff time.Duration
	readText     func() (string, error)

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Option func(*Watcher)

// WithPollInterval overrides how often the clipboard is read.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithErrorBackoff overrides the delay after a failed clipboard read.
func WithErrorBackoff(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.errorBackoff = d
		}
	}
}

func NewWatcher(handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		handler:      handler,
		pollInterval: defaultPollInterval,
		errorBackoff: defaultErrorBackoff,
		readText:     clipboard.ReadAll,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the polling loop in the background.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	log.Info("Monitoring clipboard for YouTube links...")

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	var previous string
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-timer.C:
		}

		text, err := w.readText()
		if err != nil {
			log.Warn("Could not access clipboard: %v. Retrying...", err)
			timer.Reset(w.errorBackoff)
			continue
		}

		if text != "" && text != previous {
			previous = text
			if IsYouTubeURL(text) {
				log.Info("Detected YouTube link: %s", text)
				w.handler(text)
			}
		}
		timer.Reset(w.pollInterval)
	}
}
