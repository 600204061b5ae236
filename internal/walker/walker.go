package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// FileRecord is one emitted scan hit. Directory records carry zero Size;
// the caller decides whether to measure them recursively.
type FileRecord struct {
	Path        string
	Name        string
	Size        int64
	ModTime     time.Time
	AccessTime  time.Time
	ChangeTime  time.Time
	IsDirectory bool
	IsSymlink   bool
}

// Options configure a single walk.
type Options struct {
	Root string
	// Glob is a comma-separated pattern list, see Matcher.
	Glob string
	// MaxDepth bounds recursion below Root; <=0 means unlimited.
	MaxDepth int
	// ExcludePrefixes are absolute path prefixes that are never entered.
	ExcludePrefixes []string
	// IncludeHidden includes dot-entries. Off by default.
	IncludeHidden bool
	// Workers bounds traversal parallelism; <=0 uses NumCPU.
	Workers int
}

// Stats are cumulative counters for one walk.
type Stats struct {
	DirsListed   atomic.Int64
	FilesMatched atomic.Int64
	Errors       atomic.Int64
	Skipped      atomic.Int64
}

// packageSuffixes mark macOS bundle directories whose contents are a
// single opaque unit. The walker never descends into them.
var packageSuffixes = []string{".app", ".bundle", ".framework"}

// Walker performs one bounded-parallel recursive traversal. Symlinks are
// never followed, neither for files nor directories.
type Walker struct {
	opts    Options
	matcher *Matcher
	stats   Stats
}

// New builds a Walker for the given options.
func New(opts Options) *Walker {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Walker{opts: opts, matcher: NewMatcher(opts.Glob)}
}

// Stats exposes the walk counters. Valid to read after the record
// channel closes.
func (w *Walker) Stats() *Stats { return &w.stats }

// Walk traverses the root and returns a lazily filled record channel.
// The channel closes when traversal finishes or the context is
// cancelled; per-entry errors are logged, counted and skipped.
func (w *Walker) Walk(ctx context.Context) <-chan FileRecord {
	out := make(chan FileRecord, 256)

	root := filepath.Clean(w.opts.Root)
	go func() {
		defer close(out)

		info, err := os.Lstat(root)
		if err != nil {
			w.stats.Errors.Add(1)
			log.Debug().Err(err).Str("root", root).Msg("walk root unavailable")
			return
		}
		if !info.IsDir() {
			w.stats.Errors.Add(1)
			log.Debug().Str("root", root).Msg("walk root is not a directory")
			return
		}

		sem := make(chan struct{}, w.opts.Workers)
		var wg sync.WaitGroup
		wg.Add(1)
		w.walkDir(ctx, root, 0, sem, &wg, out)
		wg.Wait()
	}()
	return out
}

// walkDir lists one directory, emits matches, and recurses. Recursion
// runs on a new goroutine while pool tokens are available and inline
// otherwise, which bounds parallelism without ever deadlocking.
// Cancellation is checked at every directory boundary.
func (w *Walker) walkDir(ctx context.Context, dir string, depth int, sem chan struct{}, wg *sync.WaitGroup, out chan<- FileRecord) {
	defer wg.Done()

	if ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.stats.Errors.Add(1)
		log.Debug().Err(err).Str("dir", dir).Msg("cannot list directory, skipping")
		return
	}
	w.stats.DirsListed.Add(1)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		name := entry.Name()
		if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			w.stats.Skipped.Add(1)
			continue
		}
		path := filepath.Join(dir, name)
		if w.excluded(path) {
			w.stats.Skipped.Add(1)
			continue
		}

		isSymlink := entry.Type()&fs.ModeSymlink != 0
		if entry.IsDir() && !isSymlink {
			w.handleDir(ctx, path, name, depth, sem, wg, out)
			continue
		}
		if !entry.Type().IsRegular() && !isSymlink {
			// Sockets, devices, fifos: not cleanable.
			w.stats.Skipped.Add(1)
			continue
		}
		if !w.matcher.MatchFile(name) {
			continue
		}
		rec, err := statRecord(path, name, isSymlink)
		if err != nil {
			w.stats.Errors.Add(1)
			log.Debug().Err(err).Str("path", path).Msg("stat failed, skipping")
			continue
		}
		w.stats.FilesMatched.Add(1)
		select {
		case out <- rec:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Walker) handleDir(ctx context.Context, path, name string, depth int, sem chan struct{}, wg *sync.WaitGroup, out chan<- FileRecord) {
	if isPackageDir(name) {
		w.stats.Skipped.Add(1)
		return
	}
	if w.matcher.MatchDir(name) {
		// The directory itself is the item; do not descend.
		rec, err := statRecord(path, name, false)
		if err != nil {
			w.stats.Errors.Add(1)
			return
		}
		rec.IsDirectory = true
		rec.Size = 0
		w.stats.FilesMatched.Add(1)
		select {
		case out <- rec:
		case <-ctx.Done():
		}
		return
	}
	if w.opts.MaxDepth > 0 && depth+1 >= w.opts.MaxDepth {
		w.stats.Skipped.Add(1)
		return
	}

	wg.Add(1)
	select {
	case sem <- struct{}{}:
		go func() {
			defer func() { <-sem }()
			w.walkDir(ctx, path, depth+1, sem, wg, out)
		}()
	default:
		w.walkDir(ctx, path, depth+1, sem, wg, out)
	}
}

func (w *Walker) excluded(path string) bool {
	for _, prefix := range w.opts.ExcludePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

func isPackageDir(name string) bool {
	for _, suffix := range packageSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// statRecord lstats path and fills the record, including the extended
// timestamps where the platform exposes them.
func statRecord(path, name string, isSymlink bool) (FileRecord, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return FileRecord{}, err
	}
	rec := FileRecord{
		Path:        path,
		Name:        name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		AccessTime:  info.ModTime(),
		ChangeTime:  info.ModTime(),
		IsDirectory: info.IsDir(),
		IsSymlink:   isSymlink,
	}
	if atime, ctime, ok := statTimes(info); ok {
		rec.AccessTime = atime
		rec.ChangeTime = ctime
	}
	if isSymlink {
		rec.Size = 0
	}
	return rec, nil
}
