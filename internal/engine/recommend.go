package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

// categoryPriority maps a scan category onto a recommendation priority.
var categoryPriority = map[model.Category]model.Priority{
	model.CategoryUserCaches:    model.PriorityHigh,
	model.CategoryAppCaches:     model.PriorityHigh,
	model.CategoryTemporary:     model.PriorityMedium,
	model.CategoryLogs:          model.PriorityLow,
	model.CategoryTrash:         model.PriorityMedium,
	model.CategoryNodeModules:   model.PriorityMedium,
	model.CategoryXcodeJunk:     model.PriorityMedium,
	model.CategoryDeveloperJunk: model.PriorityMedium,
}

var categoryTitles = map[model.Category]string{
	model.CategoryUserCaches:    "Clear user caches",
	model.CategoryAppCaches:     "Clear application caches",
	model.CategoryTemporary:     "Remove temporary files",
	model.CategoryLogs:          "Remove old log files",
	model.CategoryTrash:         "Empty the trash",
	model.CategoryNodeModules:   "Remove node_modules directories",
	model.CategoryXcodeJunk:     "Remove Xcode derived data",
	model.CategoryDeveloperJunk: "Remove build artifacts",
}

// Recommend groups safe items per category and ranks the groups by
// priority, then estimated space. The output is deterministic for a
// deterministic scorer output set.
func (e *Engine) Recommend(ctx context.Context, results *model.ScanResults) ([]*model.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.Recommendations)
	defer cancel()

	var recs []*model.Recommendation
	for _, category := range model.AllCategories {
		if err := ctx.Err(); err != nil {
			return nil, errors.Cancelled("recommendations", err)
		}
		items := results.ItemsByCategory[category]
		if len(items) == 0 {
			continue
		}
		var (
			safe      []*model.CleanableItem
			estimated int64
			scoreSum  int
		)
		for _, it := range items {
			if it.SafetyScore >= e.cfg.MinSafetyScore {
				safe = append(safe, it)
				estimated += it.Size
				scoreSum += it.SafetyScore
			}
		}
		if len(safe) == 0 {
			continue
		}
		priority, ok := categoryPriority[category]
		if !ok {
			priority = model.PriorityLow
		}
		title, ok := categoryTitles[category]
		if !ok {
			title = "Clean " + string(category)
		}
		recs = append(recs, &model.Recommendation{
			ID:    uuid.NewString(),
			Title: title,
			Description: fmt.Sprintf("%d items, about %s reclaimable",
				len(safe), humanize.IBytes(uint64(estimated))),
			Priority:       priority,
			EstimatedSpace: estimated,
			Items:          safe,
			Confidence:     float64(scoreSum) / float64(len(safe)) / 100,
		})
	}

	// Duplicates: everything except each group's primary is redundant.
	if len(results.Duplicates) > 0 {
		var redundant []*model.CleanableItem
		var wasted int64
		for _, g := range results.Duplicates {
			for _, it := range g.Items {
				if g.Primary != nil && it.ID == g.Primary.ID {
					continue
				}
				redundant = append(redundant, it)
			}
			wasted += g.WastedSpace
		}
		if len(redundant) > 0 {
			recs = append(recs, &model.Recommendation{
				ID:    uuid.NewString(),
				Title: "Remove duplicate files",
				Description: fmt.Sprintf("%d redundant copies across %d groups, %s wasted",
					len(redundant), len(results.Duplicates), humanize.IBytes(uint64(wasted))),
				Priority:       model.PriorityMedium,
				EstimatedSpace: wasted,
				Items:          redundant,
				Confidence:     0.9,
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority.Rank() != recs[j].Priority.Rank() {
			return recs[i].Priority.Rank() > recs[j].Priority.Rank()
		}
		return recs[i].EstimatedSpace > recs[j].EstimatedSpace
	})
	return recs, nil
}
