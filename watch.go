// FILE: lixenwraith/confbind/watch.go
package confbind

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultMaxWatchers = 100 // Prevent resource exhaustion

// WatchOptions configures file watching behavior
type WatchOptions struct {
	// PollInterval for file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid reloads
	Debounce time.Duration

	// MaxWatchers limits concurrent watch channels
	MaxWatchers int

	// ReloadTimeout for file reload operations
	ReloadTimeout time.Duration

	// VerifyPermissions refuses to reload when group or world permissions change
	VerifyPermissions bool
}

// DefaultWatchOptions returns sensible defaults for file watching
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval:      DefaultPollInterval,
		Debounce:          DefaultDebounce,
		MaxWatchers:       DefaultMaxWatchers,
		ReloadTimeout:     DefaultReloadTimeout,
		VerifyPermissions: true,
	}
}

// watcher polls one file and reloads its FileSource on change
type watcher struct {
	mu               sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	opts             WatchOptions
	src              *FileSource
	lastModTime      time.Time
	lastSize         int64
	lastMode         os.FileMode
	watching         atomic.Bool
	reloadInProgress atomic.Bool
	subscribers      map[int64]chan string
	subscriberID     atomic.Int64
	debounceTimer    *time.Timer
}

// Watch starts polling the file, if not already running, and subscribes to change notifications.
// The channel receives the keys whose values changed after each reload, or one of the Event values.
// It is closed by StopWatch.
func (s *FileSource) Watch(opts WatchOptions) <-chan string {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.MaxWatchers <= 0 {
		opts.MaxWatchers = DefaultMaxWatchers
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}

	s.mu.Lock()
	if s.watcher == nil {
		ctx, cancel := context.WithCancel(context.Background())
		w := &watcher{
			ctx:         ctx,
			cancel:      cancel,
			opts:        opts,
			src:         s,
			subscribers: make(map[int64]chan string),
		}
		if info, err := os.Stat(s.path); err == nil {
			w.lastModTime = info.ModTime()
			w.lastSize = info.Size()
			w.lastMode = info.Mode()
		}
		// mark before the goroutine runs so IsWatching is immediately true
		w.watching.Store(true)
		s.watcher = w
		go w.watchLoop()
	}
	w := s.watcher
	s.mu.Unlock()

	return w.subscribe()
}

// StopWatch stops polling and closes every subscriber channel.
func (s *FileSource) StopWatch() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		w.stop()
	}
}

// IsWatching returns true if the file is being polled
func (s *FileSource) IsWatching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watcher != nil && s.watcher.watching.Load()
}

// WatcherCount returns the number of active watch channels
func (s *FileSource) WatcherCount() int {
	s.mu.RLock()
	w := s.watcher
	s.mu.RUnlock()
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subscribers)
}

// watchLoop is the main file watching loop
func (w *watcher) watchLoop() {
	defer w.watching.Store(false)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkAndReload()
		}
	}
}

// checkAndReload checks if file changed and triggers reload
func (w *watcher) checkAndReload() {
	info, err := os.Stat(w.src.path)
	if err != nil {
		if os.IsNotExist(err) {
			w.notify(EventFileDeleted)
		}
		return
	}

	changed := !info.ModTime().Equal(w.lastModTime) || info.Size() != w.lastSize

	if w.opts.VerifyPermissions && w.lastMode != 0 && info.Mode() != w.lastMode {
		if (info.Mode() & 0077) != (w.lastMode & 0077) {
			// group or world permissions changed, do not trust the new contents
			w.src.logger.Warn("configuration file permissions changed",
				zap.String("path", w.src.path),
				zap.Stringer("old", w.lastMode),
				zap.Stringer("new", info.Mode()))
			w.notify(EventPermissionsChanged)
			return
		}
	}

	if !changed {
		return
	}
	w.lastModTime = info.ModTime()
	w.lastSize = info.Size()
	w.lastMode = info.Mode()

	// Debounce rapid changes
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, w.performReload)
	w.mu.Unlock()
}

// performReload reloads the file and notifies the keys that changed
func (w *watcher) performReload() {
	if !w.reloadInProgress.CompareAndSwap(false, true) {
		return
	}
	defer w.reloadInProgress.Store(false)

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ReloadTimeout)
	defer cancel()

	old := w.src.snapshot()

	done := make(chan error, 1)
	go func() {
		done <- w.src.Reload()
	}()

	select {
	case err := <-done:
		if err != nil {
			w.src.logger.Warn("configuration reload failed", zap.String("path", w.src.path), zap.Error(err))
			w.notify(fmt.Sprintf("%s%v", EventReloadErrorPrefix, err))
			return
		}

		updated := w.src.snapshot()
		for key, v := range updated {
			if prev, existed := old[key]; !existed || prev != v {
				w.notify(key)
			}
		}
		for key := range old {
			if _, exists := updated[key]; !exists {
				w.notify(key)
			}
		}

	case <-ctx.Done():
		w.notify(EventReloadTimeout)
	}
}

// subscribe creates a new subscriber channel
func (w *watcher) subscribe() <-chan string {
	w.mu.Lock()
	defer w.mu.Unlock()

	// closed channel when the limit is reached
	if len(w.subscribers) >= w.opts.MaxWatchers || w.ctx.Err() != nil {
		ch := make(chan string)
		close(ch)
		return ch
	}

	ch := make(chan string, 10)
	id := w.subscriberID.Add(1)
	w.subscribers[id] = ch

	go func() {
		<-w.ctx.Done()
		w.mu.Lock()
		delete(w.subscribers, id)
		close(ch)
		w.mu.Unlock()
	}()

	return ch
}

// notify sends change notification to all subscribers, dropping it for full channels
func (w *watcher) notify(event string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// stop terminates the watcher
func (w *watcher) stop() {
	w.cancel()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()

	// Wait for watch loop to exit with timeout
	deadline := time.Now().Add(ShutdownTimeout)
	for w.watching.Load() && time.Now().Before(deadline) {
		time.Sleep(SpinWaitInterval)
	}
}
