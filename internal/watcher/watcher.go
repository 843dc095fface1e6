// Package watcher monitors document files and reports when a changed
// file has settled. The CLI re-resolves stored anchors on each event.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quillmark/driftanchor/core/document"
)

// Event reports a document file that changed and then stayed quiet for
// the debounce interval.
type Event struct {
	Path        string
	Fingerprint string
	Size        int64
	Timestamp   time.Time
}

// Watcher monitors files and directories for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     []string
	debounce  time.Duration

	// path -> last modification time
	state   map[string]time.Time
	stateMu sync.RWMutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for the given paths. Directories are watched at
// one level; single files are watched through their parent directory.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		paths:     paths,
		debounce:  debounce,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of settle events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching all configured paths. Files that already exist
// are tracked immediately, so every watch begins with one event per
// file once it proves stable.
func (w *Watcher) Start() error {
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := w.fsWatcher.Add(absPath); err != nil {
				return err
			}

			entries, err := os.ReadDir(absPath)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					w.trackFile(filepath.Join(absPath, entry.Name()))
				}
			}
		} else {
			// Watch the parent so edits through rename (most editors)
			// are still seen.
			if err := w.fsWatcher.Add(filepath.Dir(absPath)); err != nil {
				return err
			}
			w.trackFile(absPath)
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

func (w *Watcher) trackFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.stateMu.Lock()
	w.state[path] = info.ModTime()
	w.stateMu.Unlock()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.stateMu.Lock()
				delete(w.state, event.Name)
				w.stateMu.Unlock()
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.debounce / 2
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

type stableFile struct {
	path    string
	lastMod time.Time
}

// checkStableFiles emits events for files quiet past the debounce
// interval. The lock is released during file I/O so eventLoop never
// blocks behind a slow read.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.debounce)

	var stable []stableFile
	w.stateMu.RLock()
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			stable = append(stable, stableFile{path: path, lastMod: lastMod})
		}
	}
	w.stateMu.RUnlock()

	if len(stable) == 0 {
		return
	}

	type readResult struct {
		path        string
		lastMod     time.Time
		fingerprint string
		size        int64
		err         error
	}
	results := make([]readResult, len(stable))
	for i, sf := range stable {
		fingerprint, size, err := FingerprintFile(sf.path)
		results[i] = readResult{
			path:        sf.path,
			lastMod:     sf.lastMod,
			fingerprint: fingerprint,
			size:        size,
			err:         err,
		}
	}

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	for _, r := range results {
		if r.err != nil {
			select {
			case w.errors <- r.err:
			default:
			}
			continue
		}

		currentLastMod, exists := w.state[r.path]
		if !exists {
			continue
		}
		// Modified while we were reading; let it stabilize again.
		if currentLastMod != r.lastMod {
			continue
		}

		event := Event{
			Path:        r.path,
			Fingerprint: r.fingerprint,
			Size:        r.size,
			Timestamp:   now,
		}

		select {
		case w.events <- event:
			// Quiet until the next modification.
			delete(w.state, r.path)
		default:
			// Channel full, try again on the next tick.
		}
	}
}

// FingerprintFile reads a file and returns its document fingerprint,
// the same one the host adapters compute when they parse it.
func FingerprintFile(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	return document.FingerprintBytes(data), int64(len(data)), nil
}

// WatchedPaths returns the list of paths being watched.
func (w *Watcher) WatchedPaths() []string {
	return w.paths
}

// TrackedFiles returns the current number of tracked files.
func (w *Watcher) TrackedFiles() int {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return len(w.state)
}
