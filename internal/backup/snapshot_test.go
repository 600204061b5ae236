package backup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeply/sweeply/internal/model"
)

func writeFixture(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestCaptureSnapshot(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "a", 100)
	b := writeFixture(t, dir, "b", 200)

	snap, err := CaptureSnapshot(context.Background(), []string{a, b, filepath.Join(dir, "missing")}, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.FileCount)
	assert.Equal(t, int64(300), snap.TotalSize)
	assert.Len(t, snap.Entries, 2)
	assert.Equal(t, "v", snap.Metadata["k"])
	// Entries are path-sorted.
	assert.Equal(t, a, snap.Entries[0].Path)
	for _, e := range snap.Entries {
		assert.NotEmpty(t, e.ContentHash)
	}
}

// buildSnapshot fabricates a manifest without touching the filesystem.
func buildSnapshot(id string, entries map[string]int64) *model.DiskSnapshot {
	ts := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	snap := &model.DiskSnapshot{ID: id, Timestamp: ts, Metadata: map[string]string{}}
	for path, size := range entries {
		snap.Entries = append(snap.Entries, model.SnapshotEntry{
			Path: path, Size: size, ContentHash: "h-" + path, ModTime: ts,
		})
		snap.TotalSize += size
		snap.FileCount++
	}
	snap.Entries = sortedEntries(snap.Entries)
	return snap
}

func TestComputeDelta_IncrementalScenario(t *testing.T) {
	// Base snapshot of 100 files. Five victims get fixed sizes so the
	// scenario's arithmetic comes out exact: 3 deletions totalling
	// 500 KiB and 2 modifications netting +200 KiB, while 5 new files
	// add 1000 KiB. Expected total delta: +700 KiB.
	base := map[string]int64{}
	for i := 0; i < 100; i++ {
		name := filepath.Join("/data", "f", string(rune('a'+i%26))+string(rune('a'+i/26)))
		base[name] = 100 << 10
	}
	var names []string
	for k := range base {
		names = append(names, k)
	}
	sort.Strings(names)
	base[names[0]] = 250 << 10
	base[names[1]] = 150 << 10
	base[names[2]] = 100 << 10

	prev := buildSnapshot("base", base)
	require.Equal(t, 100, prev.FileCount)

	curr := map[string]int64{}
	for k, v := range base {
		curr[k] = v
	}
	for i, kib := range []int64{300, 250, 200, 150, 100} { // 1000 KiB total
		curr[filepath.Join("/data", "new", string(rune('a'+i)))] = kib << 10
	}
	delete(curr, names[0])
	delete(curr, names[1])
	delete(curr, names[2])
	curr[names[3]] = base[names[3]] + 150<<10
	curr[names[4]] = base[names[4]] + 50<<10

	next := buildSnapshot("next", curr)
	// Changed entries need changed hashes to register as modified.
	for i := range next.Entries {
		if next.Entries[i].Path == names[3] || next.Entries[i].Path == names[4] {
			next.Entries[i].ContentHash += "-v2"
		}
	}

	delta := ComputeDelta(prev, next)
	added, modified, deleted := delta.Counts()
	assert.Equal(t, 5, added)
	assert.Equal(t, 2, modified)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, int64(700<<10), delta.TotalSizeDelta)

	// The change records sum to the total delta.
	var sum int64
	for _, c := range delta.Changes {
		sum += c.SizeDelta
	}
	assert.Equal(t, delta.TotalSizeDelta, sum)

	// Reconstruction matches counts and total size.
	rebuilt, err := ApplyDelta(prev, delta)
	require.NoError(t, err)
	assert.Equal(t, prev.FileCount+added-deleted, rebuilt.FileCount)
	assert.Equal(t, prev.TotalSize+delta.TotalSizeDelta, rebuilt.TotalSize)
	assert.Equal(t, next.FileCount, rebuilt.FileCount)
	assert.Equal(t, next.TotalSize, rebuilt.TotalSize)
}

func TestComputeDelta_NoChanges(t *testing.T) {
	snap := buildSnapshot("a", map[string]int64{"/x": 10, "/y": 20})
	other := buildSnapshot("b", map[string]int64{"/x": 10, "/y": 20})
	delta := ComputeDelta(snap, other)
	assert.Empty(t, delta.Changes)
	assert.Zero(t, delta.TotalSizeDelta)
}

func TestApplyDelta_WrongBase(t *testing.T) {
	a := buildSnapshot("a", map[string]int64{"/x": 10})
	b := buildSnapshot("b", map[string]int64{"/x": 10, "/y": 5})
	delta := ComputeDelta(a, b)

	c := buildSnapshot("c", map[string]int64{"/x": 10})
	_, err := ApplyDelta(c, delta)
	assert.Error(t, err)
}
