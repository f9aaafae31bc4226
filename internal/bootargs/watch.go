package bootargs

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-parses a boot argument file whenever it changes and hands
// the result to a callback. Used by tooling that applies the mutable
// subset of configuration (per-pool exemptions) at runtime; the
// immutable options are only read once at startup regardless.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
	done chan struct{}
}

// Watch starts watching path. onChange runs on the watcher goroutine for
// every successful re-parse; parse failures are delivered to onError
// (which may be nil).
func Watch(path string, onChange func(*Args), onError func(error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file so atomic
	// rename-into-place updates are observed.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	bw := &Watcher{w: w, path: path, done: make(chan struct{})}
	go bw.loop(onChange, onError)

	return bw, nil
}

func (bw *Watcher) loop(onChange func(*Args), onError func(error)) {
	defer close(bw.done)

	for {
		select {
		case ev, ok := <-bw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(bw.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			args, err := Load(bw.path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(args)
		case err, ok := <-bw.w.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (bw *Watcher) Close() error {
	err := bw.w.Close()
	<-bw.done

	return err
}
