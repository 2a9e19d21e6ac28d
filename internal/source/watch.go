package source

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "piedial/internal/log"
)

const watchDebounce = 100 * time.Millisecond

// fileWatcher reports changes to individual files. It watches their parent
// directories so editors that replace a file by rename are still seen.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(string)

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
	timer map[string]*time.Timer

	done chan struct{}
}

func newFileWatcher(onChange func(string)) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &fileWatcher{
		watcher:  w,
		onChange: onChange,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		timer:    make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	go fw.watch()
	return fw, nil
}

func (fw *fileWatcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	dir := filepath.Dir(abs)
	if !fw.dirs[dir] {
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
		fw.dirs[dir] = true
	}
	fw.files[abs] = true
	return nil
}

func (fw *fileWatcher) watch() {
	for {
		select {
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.schedule(filepath.Clean(ev.Name))

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			appLog.Warn("file watcher error", "err", err)

		case <-fw.done:
			return
		}
	}
}

// schedule debounces bursts of events for one file into a single callback.
func (fw *fileWatcher) schedule(name string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.files[name] {
		return
	}
	if t, ok := fw.timer[name]; ok {
		t.Stop()
	}
	fw.timer[name] = time.AfterFunc(watchDebounce, func() {
		fw.mu.Lock()
		delete(fw.timer, name)
		fw.mu.Unlock()
		fw.onChange(name)
	})
}

func (fw *fileWatcher) Close() error {
	close(fw.done)

	fw.mu.Lock()
	for _, t := range fw.timer {
		t.Stop()
	}
	fw.mu.Unlock()

	return fw.watcher.Close()
}
