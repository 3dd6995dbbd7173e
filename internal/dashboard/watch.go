package dashboard

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// storeChangedMsg is sent when the store file was replaced or written.
type storeChangedMsg struct{}

// watchErrMsg carries a watcher failure to the update loop.
type watchErrMsg struct{ err error }

// Watcher reports changes to a single file. It watches the parent directory
// so atomic replacements through rename are seen.
type Watcher struct {
	fs      *fsnotify.Watcher
	name    string
	changes chan struct{}
	errs    chan error
	done    chan struct{}
}

// NewWatcher starts watching path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		fs:      fw,
		name:    filepath.Base(abs),
		changes: make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.name {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce bursts into one pending change.
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		case <-w.done:
			return
		}
	}
}

// Changes delivers one value per burst of changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.fs.Close()
}

// wait returns a command that blocks until the next change or error.
func (w *Watcher) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.changes:
			return storeChangedMsg{}
		case err := <-w.errs:
			return watchErrMsg{err: err}
		case <-w.done:
			return nil
		}
	}
}
