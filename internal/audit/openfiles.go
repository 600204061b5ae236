package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// openFileIndex is a cached snapshot of every file handle currently held
// by a live process. Building it walks the whole process table, so the
// snapshot is reused for a short window rather than rebuilt per item.
type openFileIndex struct {
	mu      sync.Mutex
	paths   map[string]struct{}
	ttl     time.Duration
	builtAt time.Time
}

func newOpenFileIndex(ttl time.Duration) *openFileIndex {
	return &openFileIndex{ttl: ttl}
}

// InUse reports whether path is held open by any live process. When the
// process table cannot be enumerated every path is reported as in use,
// so the audit denies rather than allows.
func (idx *openFileIndex) InUse(ctx context.Context, path string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.paths == nil || time.Since(idx.builtAt) > idx.ttl {
		idx.paths = buildOpenFileSet(ctx)
		idx.builtAt = time.Now()
	}
	if idx.paths == nil {
		return true
	}
	_, ok := idx.paths[path]
	return ok
}

// buildOpenFileSet enumerates open file handles across the process
// table. Per-process failures are routine (permissions, races with
// exiting processes) and are skipped. A failed enumeration of the process
// table returns nil.
func buildOpenFileSet(ctx context.Context) map[string]struct{} {
	set := make(map[string]struct{})
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("process enumeration unavailable, treating paths as in use")
		return nil
	}
	for _, p := range procs {
		if ctx.Err() != nil {
			return set
		}
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			set[f.Path] = struct{}{}
		}
	}
	return set
}
