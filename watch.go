package main

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/padtone/padtone/audio"
)

// watcher re-loads the current sample whenever its file changes on disk, so
// edits in an external audio editor are audible on the next key press. The
// directory is watched rather than the file itself: most editors replace the
// file on save, which would drop a direct watch.
type watcher struct {
	engine *audio.Engine

	mu   sync.Mutex
	fsw  *fsnotify.Watcher
	done chan struct{}

	name string
	path string
	root int
}

func newWatcher(engine *audio.Engine) *watcher {
	return &watcher{engine: engine}
}

func (w *watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsw != nil
}

// Watch follows the sample at path, replacing any previously watched file.
func (w *watcher) Watch(name, path string, root int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.Stop()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.done = make(chan struct{})
	w.name = name
	w.path = abs
	w.root = root
	w.mu.Unlock()

	go w.run(fsw, w.done)
	return nil
}

func (w *watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	close(w.done)
	w.fsw.Close()
	w.fsw = nil
	w.done = nil
}

func (w *watcher) run(fsw *fsnotify.Watcher, done chan struct{}) {
	// Editors fire several events per save; collapse them into one reload.
	var reload *time.Timer
	defer func() {
		if reload != nil {
			reload.Stop()
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			match := w.path != ""
			if match {
				evAbs, err := filepath.Abs(ev.Name)
				match = err == nil && evAbs == w.path
			}
			name, path, root := w.name, w.path, w.root
			w.mu.Unlock()
			if !match {
				continue
			}
			if reload != nil {
				reload.Stop()
			}
			reload = time.AfterFunc(100*time.Millisecond, func() {
				log.Printf("watch: reloading %s", path)
				w.engine.Load(name, path, root)
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		}
	}
}
