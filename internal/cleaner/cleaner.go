package cleaner

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/sweeply/sweeply/internal/audit"
	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

// Backuper captures a pre-deletion snapshot. The cleaner only needs this
// one operation from the backup subsystem.
type Backuper interface {
	SnapshotBeforeClean(ctx context.Context, items []*model.CleanableItem) (*model.BackupRecord, error)
}

// Cleaner executes deletions in parallel under the audit gate. It
// consumes items but does not own them; per-file errors are collected,
// never escalated. Only cancellation and a required-backup failure abort
// a batch.
type Cleaner struct {
	auditor *audit.Auditor
	cfg     conf.Config
	backup  Backuper
	// ConfirmSensitive marks that the caller explicitly approved
	// sensitive-pattern items for this batch.
	ConfirmSensitive bool
	// trashDir overrides the platform trash location; empty uses the
	// platform default.
	trashDir string
}

// New builds a Cleaner. backup may be nil when auto-backup is off.
func New(a *audit.Auditor, cfg conf.Config, backup Backuper) *Cleaner {
	return &Cleaner{auditor: a, cfg: cfg, backup: backup, trashDir: conf.TrashDir()}
}

// WithTrashDir overrides the trash location, mainly for tests and for
// per-volume trash directories.
func (c *Cleaner) WithTrashDir(dir string) *Cleaner {
	c.trashDir = dir
	return c
}

// DryRun evaluates the batch without touching the filesystem. Deleted
// preserves submission order.
func (c *Cleaner) DryRun(ctx context.Context, items []*model.CleanableItem) (*model.CleanResult, error) {
	result := &model.CleanResult{DryRun: true}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, errors.Cancelled("dry run", err)
		}
		if err := c.preflight(ctx, item); err != nil {
			result.Failed = append(result.Failed, model.CleanFailure{Item: item, Error: err.Error()})
			continue
		}
		result.Deleted = append(result.Deleted, item)
		result.FreedSpace += item.Size
	}
	return result, nil
}

// Clean deletes the batch. Deleted reflects completion order; partial
// results come back alongside a Cancelled error when the context or the
// global timeout fires mid-batch.
func (c *Cleaner) Clean(ctx context.Context, items []*model.CleanableItem) (*model.CleanResult, error) {
	if c.cfg.DryRun {
		return c.DryRun(ctx, items)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Clean)
	defer cancel()

	result := &model.CleanResult{}
	var mu sync.Mutex

	// Pre-deletion snapshot, before anything is touched.
	if c.cfg.AutoBackup && c.backup != nil {
		if _, err := c.backup.SnapshotBeforeClean(ctx, items); err != nil {
			if c.cfg.RequireBackupOnDelete {
				return result, err
			}
			log.Warn().Err(err).Msg("pre-deletion backup failed, continuing without it")
		}
	}

	sem := semaphore.NewWeighted(int64(c.cfg.ParallelWorkers))
	var wg sync.WaitGroup
	cancelled := false

	for _, item := range items {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		acquireCtx, acquireCancel := context.WithTimeout(ctx, c.cfg.Timeouts.SemAcquire)
		err := sem.Acquire(acquireCtx, 1)
		acquireCancel()
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			mu.Lock()
			result.Failed = append(result.Failed, model.CleanFailure{
				Item:  item,
				Error: errors.Cancelled("semaphore acquisition", err).Error(),
			})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(item *model.CleanableItem) {
			defer wg.Done()
			defer sem.Release(1)
			c.deleteOne(ctx, item, result, &mu)
		}(item)
	}
	wg.Wait()

	result.Duration = time.Since(start)
	if secs := result.Duration.Seconds(); secs > 0 {
		result.ThroughputMiBps = float64(result.FreedSpace) / (1 << 20) / secs
	}
	log.Info().
		Int("deleted", len(result.Deleted)).
		Int("failed", len(result.Failed)).
		Int64("freed", result.FreedSpace).
		Dur("duration", result.Duration).
		Msg("clean finished")

	if cancelled || ctx.Err() != nil {
		return result, errors.Cancelled("clean", ctx.Err())
	}
	return result, nil
}

// preflight applies the min-safety filter and the audit gate, the same
// way for real runs and dry runs. The auditor runs its policy checks
// before touching the filesystem, so a critical or sensitive path is
// denied as such even when it no longer exists; plain missing files
// come back as not-found.
func (c *Cleaner) preflight(ctx context.Context, item *model.CleanableItem) error {
	if item.SafetyScore < c.cfg.MinSafetyScore {
		return errors.Denied("below_min_safety", errors.RiskLow,
			"safety score below the configured minimum")
	}
	return c.auditor.Audit(ctx, item, c.ConfirmSensitive)
}

// deleteOne runs the full per-item pipeline: re-audit (TOCTOU guard),
// capture, delete, verify.
func (c *Cleaner) deleteOne(ctx context.Context, item *model.CleanableItem, result *model.CleanResult, mu *sync.Mutex) {
	itemCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.CleanPerItem)
	defer cancel()

	fail := func(err error) {
		mu.Lock()
		result.Failed = append(result.Failed, model.CleanFailure{Item: item, Error: err.Error()})
		mu.Unlock()
	}

	// Audit immediately before the unlink, not at submission time.
	if err := c.preflight(itemCtx, item); err != nil {
		fail(err)
		return
	}

	info, err := os.Lstat(item.Path)
	if err != nil {
		fail(errors.IO("capturing attributes", err))
		return
	}
	size := info.Size()
	if info.IsDir() {
		size = item.Size
	}

	if err := c.remove(item.Path, info.IsDir()); err != nil {
		fail(err)
		return
	}

	// Verify the path is actually gone.
	if _, err := os.Lstat(item.Path); err == nil {
		fail(errors.Integrity(item.Path))
		return
	} else if !os.IsNotExist(err) {
		fail(errors.IO("verifying deletion", err))
		return
	}

	mu.Lock()
	result.Deleted = append(result.Deleted, item)
	result.FreedSpace += size
	mu.Unlock()
	log.Debug().Str("path", item.Path).Int64("size", size).Msg("deleted")
}

// remove disposes of the path according to the configured delete mode.
func (c *Cleaner) remove(path string, isDir bool) error {
	switch c.cfg.DeleteMode {
	case conf.DeleteModeTrash:
		return moveToTrash(path, c.trashDir)
	default:
		var err error
		if isDir {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil {
			return errors.IO("removing "+path, err)
		}
		return nil
	}
}
