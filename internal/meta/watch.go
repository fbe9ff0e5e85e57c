package meta

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads sidecar files when they change on disk and hands the new
// Metadata to the callback registered for that track.
//
// Directories are watched rather than files so editors that replace the file
// on save are still picked up.
type Watcher struct {
	fs *fsnotify.Watcher

	mu      sync.Mutex
	targets map[string]func(Metadata) // sidecar path -> callback
	dirs    map[string]int            // watched dir -> sidecar count
}

func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("metadata watcher: %w", err)
	}
	return &Watcher{
		fs:      fw,
		targets: make(map[string]func(Metadata)),
		dirs:    make(map[string]int),
	}, nil
}

// Watch registers fn for the sidecar of audioPath, replacing any previous
// callback for the same sidecar.
func (w *Watcher) Watch(audioPath string, fn func(Metadata)) error {
	side, err := filepath.Abs(SidecarPath(audioPath))
	if err != nil {
		return err
	}
	dir := filepath.Dir(side)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.targets[side]; !ok {
		if w.dirs[dir] == 0 {
			if err := w.fs.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
		}
		w.dirs[dir]++
	}
	w.targets[side] = fn
	return nil
}

// Unwatch drops the callback for the sidecar of audioPath.
func (w *Watcher) Unwatch(audioPath string) {
	side, err := filepath.Abs(SidecarPath(audioPath))
	if err != nil {
		return
	}
	dir := filepath.Dir(side)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.targets[side]; !ok {
		return
	}
	delete(w.targets, side)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.fs.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			log.Printf("Metadata watcher: remove %s: %v", dir, err)
		}
	}
}

// Run dispatches change events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Printf("Metadata watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload(name string) {
	side, err := filepath.Abs(name)
	if err != nil {
		return
	}
	w.mu.Lock()
	fn, ok := w.targets[side]
	w.mu.Unlock()
	if !ok {
		return
	}

	m, err := Load(side)
	if err != nil {
		log.Printf("Metadata reload %s: %v", filepath.Base(side), err)
		return
	}
	log.Printf("Metadata reloaded: %s (bpm %.2f, first beat %.3fs)", filepath.Base(side), m.BPM, m.FirstBeat)
	fn(m)
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
