package autosync

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"romm-autosync/constants"
	"romm-autosync/retroarch"
)

// Watcher watches the save and state roots recursively and reports writes to
// syncable files. Events inside the startup grace window are dropped so
// pre-existing files touched during emulator boot are not uploaded.
type Watcher struct {
	fsw      *fsnotify.Watcher
	log      *slog.Logger
	onChange func(path string)
	graceEnd time.Time
	done     chan struct{}
}

// NewWatcher sets up watches over each root and all of its subdirectories.
// Roots that do not exist are skipped.
func NewWatcher(roots []string, onChange func(string), log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		log:      log.With("component", "watcher"),
		onChange: onChange,
		graceEnd: time.Now().Add(constants.StartupGrace),
		done:     make(chan struct{}),
	}
	for _, root := range roots {
		w.addTree(root)
	}
	go w.loop()
	return w, nil
}

// addTree registers root and every directory below it.
func (w *Watcher) addTree(root string) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return
	}
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		// New emulator folders appear when a system is played for the first
		// time; they must be watched from then on.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
			return
		}
	}
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}
	if !retroarch.IsSyncable(filepath.Base(ev.Name)) {
		return
	}
	if time.Now().Before(w.graceEnd) {
		w.log.Debug("dropping event inside startup grace", "path", ev.Name)
		return
	}
	w.onChange(ev.Name)
}

// Stop closes the underlying watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.fsw.Close()
	<-w.done
}
