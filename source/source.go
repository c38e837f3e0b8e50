// Package source watches a shader file on disk and reports settled edits.
package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the file must stay quiet before a change is
// reported.
const DefaultSettle = 50 * time.Millisecond

// File is a watched shader source file.
type File struct {
	path   string
	settle time.Duration
	log    *slog.Logger

	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	text   string
	timer  *time.Timer
	closed bool
}

// Open reads path and starts watching it. The directory is watched rather
// than the file so that editors replacing the file on save are followed.
func Open(path string, settle time.Duration) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	f := &File{
		path:    abs,
		settle:  settle,
		log:     slog.Default().With("file", abs),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if _, err := f.Reload(); err != nil {
		return nil, err
	}

	f.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := f.watcher.Add(filepath.Dir(abs)); err != nil {
		f.watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	go f.watch()
	return f, nil
}

func (f *File) watch() {
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				f.schedule()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("watch error", "error", err)
		}
	}
}

// schedule (re)starts the settle timer.
func (f *File) schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.settle, func() {
		changed, err := f.Reload()
		if err != nil {
			f.log.Debug("reload failed", "error", err)
			return
		}
		if changed {
			f.notify()
		}
	})
}

func (f *File) notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

// Reload rereads the file and reports whether its text changed.
func (f *File) Reload() (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("failed to read shader: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	text := string(data)
	if text == f.text {
		return false, nil
	}
	f.text = text
	return true, nil
}

// Text returns the last text read.
func (f *File) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

// Path returns the absolute path of the file.
func (f *File) Path() string {
	return f.path
}

// Changes fires after the file settles with new content. It is closed by
// Close.
func (f *File) Changes() <-chan struct{} {
	return f.changes
}

// Close stops watching.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
	}
	close(f.done)
	close(f.changes)
	f.mu.Unlock()
	return f.watcher.Close()
}
