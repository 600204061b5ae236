package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/dedup"
	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/internal/score"
	"github.com/sweeply/sweeply/internal/walker"
	"github.com/sweeply/sweeply/pkg/util"
)

// Engine orchestrates walkers per category, maps matches to items,
// scores them and optionally runs duplicate detection. The engine never
// deletes; it reports.
type Engine struct {
	cfg    conf.Config
	scorer *score.Scorer
	specs  map[model.Category]CategorySpec
	home   string
}

// New builds an Engine with the default category table.
func New(cfg conf.Config, scorer *score.Scorer) *Engine {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Engine{
		cfg:    cfg,
		scorer: scorer,
		specs:  defaultSpecs(),
		home:   home,
	}
}

// WithSpec overrides one category's roots and glob. Used by tests and
// by custom scan locations from the configuration.
func (e *Engine) WithSpec(spec CategorySpec) *Engine {
	e.specs[spec.Category] = spec
	return e
}

// CategoriesForProfile exposes the per-profile category presets.
func (e *Engine) CategoriesForProfile(p conf.Profile) []model.Category {
	return profileCategories(p)
}

// Scan walks every requested category and returns aggregated, scored
// results. Per-entry failures are logged and skipped; only cancellation
// or an unknown category fails the scan.
func (e *Engine) Scan(ctx context.Context, categories []model.Category) (*model.ScanResults, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Scan)
	defer cancel()
	start := time.Now()

	wantDuplicates := false
	var walks []CategorySpec
	for _, c := range categories {
		if c == model.CategoryDuplicates {
			wantDuplicates = true
			continue
		}
		spec, ok := e.specs[c]
		if !ok {
			return nil, errors.Validationf("unknown category %q", c)
		}
		walks = append(walks, spec)
	}

	var (
		mu    sync.Mutex
		items []*model.CleanableItem
	)
	now := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ParallelWorkers)
	for _, spec := range walks {
		for _, root := range spec.Roots {
			if root == "" || !util.IsDir(root) {
				continue
			}
			g.Go(func() error {
				w := walker.New(walker.Options{
					Root:          root,
					Glob:          spec.Glob,
					MaxDepth:      spec.MaxDepth,
					IncludeHidden: spec.IncludeHidden,
					Workers:       e.cfg.ParallelWorkers,
				})
				for rec := range w.Walk(gctx) {
					item := e.toItem(rec, spec.Category, now)
					mu.Lock()
					items = append(items, item)
					mu.Unlock()
				}
				if err := gctx.Err(); err != nil {
					return errors.Cancelled("scan", err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var groups []*model.DuplicateGroup
	if wantDuplicates {
		det := dedup.New(e.cfg.DuplicateMinSize, e.cfg.ParallelWorkers, e.home)
		var err error
		groups, err = det.Detect(ctx, items)
		if err != nil {
			return nil, err
		}
	}

	results := model.NewScanResults(items)
	results.Duplicates = groups
	log.Info().
		Int("items", len(results.Items)).
		Int64("total_size", results.TotalSize).
		Int("duplicate_groups", len(groups)).
		Dur("duration", time.Since(start)).
		Msg("scan finished")
	return results, nil
}

// toItem converts a walker record into a scored item. Directory items
// get their recursive regular-file size.
func (e *Engine) toItem(rec walker.FileRecord, category model.Category, now time.Time) *model.CleanableItem {
	size := rec.Size
	if rec.IsDirectory {
		size = util.DirSize(rec.Path)
	}
	item := &model.CleanableItem{
		ID:          model.NewItemID(),
		Path:        rec.Path,
		Name:        rec.Name,
		Category:    category,
		Size:        size,
		ModTime:     rec.ModTime,
		AccessTime:  rec.AccessTime,
		ChangeTime:  rec.ChangeTime,
		IsDirectory: rec.IsDirectory,
	}
	in := score.BuildInputs(item.Path, item.Name, string(category), size, rec.ModTime, now)
	item.SafetyScore = e.scorer.Score(in)
	return item
}
