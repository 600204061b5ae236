package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

// CaptureSnapshot builds a manifest of the given paths: size, a fast
// content hash and mtime per entry. Unreadable files are skipped with a
// log note; the snapshot carries what could be measured.
func CaptureSnapshot(ctx context.Context, paths []string, metadata map[string]string) (*model.DiskSnapshot, error) {
	snap := &model.DiskSnapshot{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	if snap.Metadata == nil {
		snap.Metadata = map[string]string{}
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, errors.Cancelled("snapshot capture", err)
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			if err != nil {
				log.Debug().Err(err).Str("path", path).Msg("skipping unreadable file in snapshot")
			}
			continue
		}
		digest, err := fastFileHash(path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping unhashable file in snapshot")
			continue
		}
		snap.Entries = append(snap.Entries, model.SnapshotEntry{
			Path:        path,
			Size:        info.Size(),
			ContentHash: digest,
			ModTime:     info.ModTime().UTC(),
		})
		snap.TotalSize += info.Size()
		snap.FileCount++
	}
	snap.Entries = sortedEntries(snap.Entries)
	return snap, nil
}

// ComputeDelta diffs two manifests keyed by path. Added entries exist
// only in current, deleted only in previous; modified entries differ in
// hash or mtime, with size_delta = current - previous.
func ComputeDelta(previous, current *model.DiskSnapshot) *model.BackupDelta {
	delta := &model.BackupDelta{
		PreviousSnapshotID: previous.ID,
		CurrentSnapshotID:  current.ID,
	}
	now := time.Now().UTC()

	prevByPath := make(map[string]model.SnapshotEntry, len(previous.Entries))
	for _, e := range previous.Entries {
		prevByPath[e.Path] = e
	}
	currByPath := make(map[string]model.SnapshotEntry, len(current.Entries))
	for _, e := range current.Entries {
		currByPath[e.Path] = e
	}

	for _, e := range sortedEntries(current.Entries) {
		prev, ok := prevByPath[e.Path]
		if !ok {
			delta.Changes = append(delta.Changes, model.BackupFileChange{
				Path:       e.Path,
				ChangeType: model.ChangeAdded,
				SizeDelta:  e.Size,
				Timestamp:  now,
			})
			delta.TotalSizeDelta += e.Size
			continue
		}
		if prev.ContentHash != e.ContentHash || !prev.ModTime.Equal(e.ModTime) {
			delta.Changes = append(delta.Changes, model.BackupFileChange{
				Path:       e.Path,
				ChangeType: model.ChangeModified,
				SizeDelta:  e.Size - prev.Size,
				Timestamp:  now,
			})
			delta.TotalSizeDelta += e.Size - prev.Size
		}
	}
	for _, e := range sortedEntries(previous.Entries) {
		if _, ok := currByPath[e.Path]; !ok {
			delta.Changes = append(delta.Changes, model.BackupFileChange{
				Path:       e.Path,
				ChangeType: model.ChangeDeleted,
				SizeDelta:  -e.Size,
				Timestamp:  now,
			})
			delta.TotalSizeDelta -= e.Size
		}
	}
	return delta
}

// ApplyDelta reconstructs the snapshot a delta leads to when applied on
// base. The entry set, entry sizes and aggregate counters are rebuilt
// from the delta; no content is read. Modified entries keep the base's
// content hash and take the change timestamp as mtime; added entries
// carry no content hash.
func ApplyDelta(base *model.DiskSnapshot, delta *model.BackupDelta) (*model.DiskSnapshot, error) {
	if delta.PreviousSnapshotID != base.ID {
		return nil, errors.Validationf("delta applies to snapshot %s, not %s",
			delta.PreviousSnapshotID, base.ID)
	}
	entries := make(map[string]model.SnapshotEntry, len(base.Entries))
	for _, e := range base.Entries {
		entries[e.Path] = e
	}
	for _, c := range delta.Changes {
		switch c.ChangeType {
		case model.ChangeAdded:
			entries[c.Path] = model.SnapshotEntry{Path: c.Path, Size: c.SizeDelta, ModTime: c.Timestamp}
		case model.ChangeModified:
			e, ok := entries[c.Path]
			if !ok {
				return nil, errors.Validationf("delta modifies unknown path %s", c.Path)
			}
			e.Size += c.SizeDelta
			e.ModTime = c.Timestamp
			entries[c.Path] = e
		case model.ChangeDeleted:
			if _, ok := entries[c.Path]; !ok {
				return nil, errors.Validationf("delta deletes unknown path %s", c.Path)
			}
			delete(entries, c.Path)
		}
	}

	out := &model.DiskSnapshot{
		ID:        delta.CurrentSnapshotID,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{"reconstructed_from": base.ID},
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, e)
		out.TotalSize += e.Size
		out.FileCount++
	}
	out.Entries = sortedEntries(out.Entries)
	return out, nil
}

func sortedEntries(entries []model.SnapshotEntry) []model.SnapshotEntry {
	out := make([]model.SnapshotEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// fastFileHash digests a file with xxhash. Manifest hashes only need to
// witness change, not resist collisions, so the fast hash is the right
// tradeoff for large snapshot sets.
func fastFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
