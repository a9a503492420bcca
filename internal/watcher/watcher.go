// Package watcher reports changes below a handler tree so the registry can
// be rebuilt.
//
// Events from fsnotify are filtered, then coalesced: every change restarts a
// single debounce timer, and when it fires the changed paths are delivered
// together as one Batch. A rebuild scans the whole tree, so per-path
// delivery would only cause redundant scans.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/opdispatch/internal/logging"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op is a set of file system operations.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// String returns the operations joined with "|".
func (op Op) String() string {
	var parts []string
	for _, o := range []struct {
		op   Op
		name string
	}{{OpCreate, "CREATE"}, {OpWrite, "WRITE"}, {OpRemove, "REMOVE"}, {OpRename, "RENAME"}} {
		if op.Has(o.op) {
			parts = append(parts, o.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Batch is a set of changes delivered after the tree went quiet.
type Batch struct {
	// Paths are the changed paths, sorted.
	Paths []string

	// Ops is the union of the operations seen.
	Ops Op

	// Time is when the batch was delivered.
	Time time.Time
}

// Config holds watcher configuration options.
type Config struct {
	// DebounceDelay is how long the tree must be quiet before a batch is
	// delivered. Default: 250ms
	DebounceDelay time.Duration

	// BufferSize is the size of the batch and error channels. Default: 16
	BufferSize int

	// Extensions limits file events to these extensions. Directory events
	// always pass. Empty means every file.
	Extensions []string

	// IgnoreHidden ignores names starting with a dot. Default: true
	IgnoreHidden bool

	Logger logging.Interface
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 250 * time.Millisecond,
		BufferSize:    16,
		IgnoreHidden:  true,
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithDebounceDelay sets the debounce delay.
func WithDebounceDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.DebounceDelay = d
		}
	}
}

// WithExtensions limits file events to the given extensions.
func WithExtensions(exts ...string) Option {
	return func(c *Config) {
		c.Extensions = exts
	}
}

// WithIgnoreHidden sets whether dot-prefixed names are ignored.
func WithIgnoreHidden(ignore bool) Option {
	return func(c *Config) {
		c.IgnoreHidden = ignore
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Interface) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Watcher watches a directory tree with fsnotify.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	config Config
	logger logging.Interface

	paths map[string]bool

	pending    map[string]Op
	pendingOps Op
	timer      *time.Timer

	batches chan Batch
	errors  chan error

	totalEvents int64

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New creates a watcher. Call WatchRecursive to add a tree.
func New(opts ...Option) (*Watcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 16
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		config:  config,
		logger:  config.Logger,
		paths:   make(map[string]bool),
		pending: make(map[string]Op),
		batches: make(chan Batch, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		closeCh: make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = logging.Nop()
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// WatchRecursive watches root and every directory below it. Directories
// created later are added as they appear.
func (w *Watcher) WatchRecursive(root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.watch(absPath)
	}

	return filepath.WalkDir(absPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != absPath && w.hidden(p) {
			return filepath.SkipDir
		}
		if err := w.watch(p); err != nil {
			if errors.Is(err, ErrWatcherClosed) {
				return err
			}
			w.logger.Warn("watching %s: %v", p, err)
		}
		return nil
	})
}

func (w *Watcher) watch(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[p] {
		return nil
	}
	if err := w.fsw.Add(p); err != nil {
		return err
	}
	w.paths[p] = true
	return nil
}

// Batches returns the channel of coalesced changes. It is closed by Close.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Errors returns the channel of watcher errors. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// WatchedPaths returns the watched directories, sorted.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalEvents returns the number of events accepted so far.
func (w *Watcher) TotalEvents() int64 {
	return atomic.LoadInt64(&w.totalEvents)
}

// Run calls fn for each batch until ctx is done or the watcher is closed.
// Watcher errors are logged.
func (w *Watcher) Run(ctx context.Context, fn func(Batch)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-w.batches:
			if !ok {
				return ErrWatcherClosed
			}
			fn(b)
		case err, ok := <-w.errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Warn("watcher error: %v", err)
		}
	}
}

// Close stops the watcher. Pending changes are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.closedWg.Wait()

	close(w.batches)
	close(w.errors)
	return err
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
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

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 || w.hidden(ev.Name) {
		return
	}

	isDir := false
	if op.Has(OpCreate) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			isDir = true
			if err := w.WatchRecursive(ev.Name); err != nil && !errors.Is(err, ErrWatcherClosed) {
				w.logger.Warn("watching new directory %s: %v", ev.Name, err)
			}
		}
	}
	if !isDir && !w.wanted(ev.Name) {
		return
	}

	atomic.AddInt64(&w.totalEvents, 1)
	w.schedule(ev.Name, op)
}

// schedule records a change and restarts the debounce timer.
func (w *Watcher) schedule(p string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending[p] |= op
	w.pendingOps |= op

	if w.timer == nil {
		w.timer = time.AfterFunc(w.config.DebounceDelay, w.fire)
		return
	}
	w.timer.Reset(w.config.DebounceDelay)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := Batch{Ops: w.pendingOps, Time: time.Now()}
	for p := range w.pending {
		batch.Paths = append(batch.Paths, p)
	}
	sort.Strings(batch.Paths)
	w.pending = make(map[string]Op)
	w.pendingOps = 0
	w.closedWg.Add(1)
	w.mu.Unlock()
	defer w.closedWg.Done()

	select {
	case w.batches <- batch:
	case <-w.closeCh:
	}
}

// wanted reports whether a non-directory path passes the extension filter.
// Removed directories can't be told apart from files, so extensionless
// names always pass.
func (w *Watcher) wanted(p string) bool {
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(p))
	return ext == "" || slices.Contains(w.config.Extensions, ext)
}

func (w *Watcher) hidden(p string) bool {
	if !w.config.IgnoreHidden {
		return false
	}
	base := filepath.Base(p)
	return len(base) > 0 && base[0] == '.'
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
