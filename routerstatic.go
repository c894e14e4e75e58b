package deliver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RouterStatic serves files from disk through an in-memory content cache.
//
// While Watch runs, cache entries are dropped on filesystem events and
// are trusted without stat; otherwise each hit is checked against the
// file size and modification time.
type RouterStatic struct {
	Root    string
	MaxSize int64
	Logger  Logger

	mu       sync.RWMutex
	cache    map[string]*staticEntry
	watching atomic.Bool
}

type staticEntry struct {
	data    []byte
	modtime time.Time
}

// NewRouterStatic function creates a RouterStatic serving root.
func NewRouterStatic(root string, log Logger) *RouterStatic {
	abs, err := filepath.Abs(root)
	if err == nil {
		root = abs
	}
	if log == nil {
		log = DefaultLoggerNull
	}
	return &RouterStatic{
		Root:    root,
		MaxSize: DefaultRouterStaticCacheSize,
		Logger:  log,
		cache:   make(map[string]*staticEntry),
	}
}

// Load method replies the content of res.FilePath, or
// [ErrResourceNotFound] if it is missing or a directory.
func (rs *RouterStatic) Load(res *Resource, reply *Reply) {
	reply.SetServedWith(rs.Last())
	data, err := rs.read(res.FilePath)
	if err != nil {
		reply.Done(err, nil)
		return
	}
	reply.Done(nil, data)
}

// Last method returns the static identifier.
func (*RouterStatic) Last() string {
	return "static"
}

func (rs *RouterStatic) read(name string) ([]byte, error) {
	rel, err := filepath.Rel(rs.Root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}
	rs.mu.RLock()
	entry, ok := rs.cache[name]
	rs.mu.RUnlock()
	if ok && rs.watching.Load() {
		return entry.data, nil
	}

	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}
	if ok && entry.modtime.Equal(info.ModTime()) && int64(len(entry.data)) == info.Size() {
		return entry.data, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceNotFound, err)
	}
	if int64(len(data)) <= rs.MaxSize {
		rs.mu.Lock()
		rs.cache[name] = &staticEntry{data: data, modtime: info.ModTime()}
		rs.mu.Unlock()
	}
	return data, nil
}

// Watching method reports whether Watch is running.
func (rs *RouterStatic) Watching() bool {
	return rs.watching.Load()
}

// Watch method watches Root and its subdirectories and drops changed
// files from the cache until ctx is done.
func (rs *RouterStatic) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	addfn := func(path string) {
		rs.Logger.Debug("RouterStatic: watch dir " + path)
		if err := watcher.Add(path); err != nil {
			rs.Logger.Error("RouterStatic: watch error:", err)
		}
	}
	addfn(rs.Root)
	listDir(rs.Root, addfn)

	// entries cached before the watch started may be stale
	rs.Reset()
	rs.watching.Store(true)
	defer func() {
		rs.watching.Store(false)
		rs.Reset()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rs.invalidate(event.Name)
			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					addfn(event.Name)
					listDir(event.Name, addfn)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rs.Logger.Error("RouterStatic: watcher error:", err)
		}
	}
}

func (rs *RouterStatic) invalidate(name string) {
	prefix := name + string(filepath.Separator)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for key := range rs.cache {
		if key == name || strings.HasPrefix(key, prefix) {
			delete(rs.cache, key)
		}
	}
}

// Reset method drops the content cache.
func (rs *RouterStatic) Reset() {
	rs.mu.Lock()
	rs.cache = make(map[string]*staticEntry)
	rs.mu.Unlock()
}

func listDir(path string, fn func(string)) {
	files, _ := os.ReadDir(path)
	for _, f := range files {
		if f.IsDir() && f.Name()[0] != '.' {
			path := filepath.Join(path, f.Name())
			fn(path)
			listDir(path, fn)
		}
	}
}
