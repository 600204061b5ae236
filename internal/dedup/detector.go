package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

// hashChunkSize is the read granularity while hashing; cancellation is
// checked between chunks so large files cannot stall shutdown.
const hashChunkSize = 256 * 1024

// Detector partitions regular files into byte-identical groups using a
// two-phase algorithm: exact-size bucketing first, then a SHA-256 digest
// within each bucket.
type Detector struct {
	// MinSize excludes files below this many bytes from consideration.
	MinSize int64
	// Workers bounds concurrent hashing; <=0 uses NumCPU.
	Workers int
	// Home is the user's home directory, used by the primary tie-break.
	Home string
}

// New returns a Detector with the given candidate floor.
func New(minSize int64, workers int, home string) *Detector {
	if minSize < 1 {
		minSize = 1
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Detector{MinSize: minSize, Workers: workers, Home: home}
}

// Detect groups the given items into duplicate groups. Items that are
// directories or below MinSize are ignored; an item carries no symlink
// flag, so symlinks are left out only through their size (the walker
// records them with size zero). Files that cannot
// be read are dropped with a log note; an individual unreadable file
// never fails the detection. Groups come back ordered by descending
// wasted space.
func (d *Detector) Detect(ctx context.Context, items []*model.CleanableItem) ([]*model.DuplicateGroup, error) {
	// Phase 1: bucket by exact byte size, discard singletons.
	bySize := make(map[int64][]*model.CleanableItem)
	for _, it := range items {
		if it.IsDirectory || it.Size < d.MinSize {
			continue
		}
		bySize[it.Size] = append(bySize[it.Size], it)
	}

	var candidates []*model.CleanableItem
	for _, bucket := range bySize {
		if len(bucket) > 1 {
			candidates = append(candidates, bucket...)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Phase 2: hash candidates in parallel, bounded by the semaphore.
	sem := semaphore.NewWeighted(int64(d.Workers))
	var (
		mu     sync.Mutex
		byHash = make(map[string][]*model.CleanableItem)
		wg     sync.WaitGroup
	)
	for _, it := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, errors.Cancelled("duplicate detection", err)
		}
		wg.Add(1)
		go func(it *model.CleanableItem) {
			defer wg.Done()
			defer sem.Release(1)
			digest, err := hashFile(ctx, it.Path)
			if err != nil {
				if ctx.Err() == nil {
					log.Debug().Err(err).Str("path", it.Path).Msg("cannot hash file, dropped from duplicate detection")
				}
				return
			}
			it.ContentHash = digest
			mu.Lock()
			byHash[digest] = append(byHash[digest], it)
			mu.Unlock()
		}(it)
	}
	wg.Wait()
	if ctx.Err() != nil {
		return nil, errors.Cancelled("duplicate detection", ctx.Err())
	}

	// Build groups, discard singletons again.
	var groups []*model.DuplicateGroup
	for _, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		g := &model.DuplicateGroup{
			Items:       members,
			Primary:     d.selectPrimary(members),
			WastedSpace: members[0].Size * int64(len(members)-1),
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].WastedSpace != groups[j].WastedSpace {
			return groups[i].WastedSpace > groups[j].WastedSpace
		}
		return groups[i].Items[0].Path < groups[j].Items[0].Path
	})
	return groups, nil
}

// selectPrimary picks the member to keep: home paths first, then the
// shorter canonical path, then the older ctime, then the smaller path.
func (d *Detector) selectPrimary(members []*model.CleanableItem) *model.CleanableItem {
	best := members[0]
	for _, it := range members[1:] {
		if primaryLess(it, best, d.Home) {
			best = it
		}
	}
	return best
}

func primaryLess(a, b *model.CleanableItem, home string) bool {
	aHome, bHome := underHome(a.Path, home), underHome(b.Path, home)
	if aHome != bHome {
		return aHome
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	if !a.ChangeTime.Equal(b.ChangeTime) {
		return a.ChangeTime.Before(b.ChangeTime)
	}
	return a.Path < b.Path
}

func underHome(path, home string) bool {
	return home != "" && strings.HasPrefix(path, home+string(os.PathSeparator))
}

// hashFile digests a file in chunks, checking cancellation between
// reads.
func hashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
