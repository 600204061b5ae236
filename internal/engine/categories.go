package engine

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/model"
)

// CategorySpec tells the engine where and what to scan for one
// category.
type CategorySpec struct {
	Category      model.Category
	Roots         []string
	Glob          string
	MaxDepth      int
	IncludeHidden bool
}

// defaultSpecs builds the category table for the current user. Roots
// that do not exist are skipped at scan time, so the table can list
// every platform's locations.
func defaultSpecs() map[model.Category]CategorySpec {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	join := func(parts ...string) string { return filepath.Join(parts...) }

	userCaches := []string{join(home, "Library", "Caches")}
	logs := []string{"/var/log", join(home, "Library", "Logs")}
	if runtime.GOOS != "darwin" {
		userCaches = append(userCaches, join(home, ".cache"))
	}

	return map[model.Category]CategorySpec{
		model.CategoryUserCaches: {
			Category:      model.CategoryUserCaches,
			Roots:         userCaches,
			Glob:          "*",
			IncludeHidden: true,
		},
		model.CategoryAppCaches: {
			Category: model.CategoryAppCaches,
			Roots:    []string{"/Library/Caches"},
			Glob:     "*",
		},
		model.CategoryLogs: {
			Category: model.CategoryLogs,
			Roots:    logs,
			Glob:     "*.log",
		},
		model.CategoryTrash: {
			Category:      model.CategoryTrash,
			Roots:         []string{conf.TrashDir()},
			Glob:          "*",
			IncludeHidden: true,
		},
		model.CategoryNodeModules: {
			Category: model.CategoryNodeModules,
			Roots:    []string{home},
			Glob:     "node_modules/",
			MaxDepth: 8,
		},
		model.CategoryXcodeJunk: {
			Category: model.CategoryXcodeJunk,
			Roots:    []string{join(home, "Library", "Developer", "Xcode", "DerivedData")},
			Glob:     "*",
		},
		model.CategoryDeveloperJunk: {
			Category: model.CategoryDeveloperJunk,
			Roots:    []string{home},
			Glob:     "*.o,*.pyc,*.class,dist,build,target",
			MaxDepth: 8,
		},
		model.CategoryTemporary: {
			Category: model.CategoryTemporary,
			Roots:    []string{"/tmp", "/var/tmp"},
			Glob:     "*",
		},
		// CategoryDuplicates has no walker of its own; it derives from
		// the items the other categories produced.
	}
}

// profileCategories expands a config profile into the category set the
// engine scans by default.
func profileCategories(p conf.Profile) []model.Category {
	switch p {
	case conf.ProfileAggressive:
		return []model.Category{
			model.CategoryUserCaches, model.CategoryAppCaches,
			model.CategoryLogs, model.CategoryTrash,
			model.CategoryDeveloperJunk, model.CategoryNodeModules,
			model.CategoryXcodeJunk, model.CategoryDuplicates,
		}
	case conf.ProfileParanoid:
		return []model.Category{model.CategoryTrash}
	default:
		return []model.Category{
			model.CategoryUserCaches, model.CategoryAppCaches,
			model.CategoryLogs, model.CategoryTrash,
		}
	}
}
