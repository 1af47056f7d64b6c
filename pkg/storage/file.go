package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// File persists all keys in one JSON file. Writes go through a temp file
// and an atomic rename, so readers never observe a half-written file. A
// filesystem watch on the containing directory picks up external writers
// (another process, a sync tool) and reloads the in-memory mirror.
type File struct {
	path string
	base string
	log  *slog.Logger

	mu    sync.RWMutex
	items map[string]string

	watcher  *fsnotify.Watcher
	onReload func()

	closeOnce sync.Once
	done      chan struct{}
}

// FileOption configures a File adapter.
type FileOption func(*File)

// WithFileLogger routes watch and reload diagnostics to l.
func WithFileLogger(l *slog.Logger) FileOption {
	return func(f *File) {
		if l != nil {
			f.log = l
		}
	}
}

// WithReloadHook registers fn to run after every reload of the mirror,
// including reloads triggered by the adapter's own writes.
func WithReloadHook(fn func()) FileOption {
	return func(f *File) {
		f.onReload = fn
	}
}

// NewFile opens (or creates) the adapter for path. The containing
// directory is created when missing. A corrupt existing file is logged
// and treated as empty; the next write overwrites it.
func NewFile(path string, opts ...FileOption) (*File, error) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, sifterrors.FromError(err, "E040")
	}

	f := &File{
		path:  path,
		base:  filepath.Base(path),
		log:   slog.Default(),
		items: make(map[string]string),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.reload(); err != nil {
		f.log.Warn("ignoring corrupt state file", "path", path, "error", err)
	}

	// Watch the directory, not the file: rename-based writes replace the
	// inode and would silently detach a file-level watch.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, sifterrors.FromError(err, "E040")
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, sifterrors.FromError(err, "E040")
	}
	f.watcher = watcher

	go f.run()

	return f, nil
}

func (f *File) run() {
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != f.base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if err := f.reload(); err != nil {
				f.log.Warn("state file reload failed", "path", f.path, "error", err)
				continue
			}
			if f.onReload != nil {
				f.onReload()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Error("state file watcher error", "path", f.path, "error", err)
		case <-f.done:
			return
		}
	}
}

// reload replaces the mirror with the file's current contents. A missing
// file means no keys.
func (f *File) reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.mu.Lock()
			f.items = make(map[string]string)
			f.mu.Unlock()
			return nil
		}
		return err
	}

	items := make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
	return nil
}

// save writes the mirror to disk. Callers hold f.mu.
func (f *File) save() error {
	raw, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), f.base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *File) GetItem(_ context.Context, key string) (string, bool, error) {
	v, ok := f.GetItemSync(key)
	return v, ok, nil
}

// GetItemSync implements SyncAdapter; it reads the in-memory mirror.
func (f *File) GetItemSync(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *File) SetItem(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
	if err := f.save(); err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

func (f *File) RemoveItem(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return nil
	}
	delete(f.items, key)
	if err := f.save(); err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = make(map[string]string)
	if err := f.save(); err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

// Close stops the filesystem watch. The file itself stays on disk.
func (f *File) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		if f.watcher != nil {
			err = f.watcher.Close()
		}
	})
	return err
}

var _ SyncAdapter = (*File)(nil)
