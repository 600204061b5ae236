package sweeply

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeply/sweeply/internal/audit"
	"github.com/sweeply/sweeply/internal/backup"
	"github.com/sweeply/sweeply/internal/cleaner"
	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/engine"
	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/keychain"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/internal/policy"
	"github.com/sweeply/sweeply/internal/score"
)

// App wires the engine, auditor, cleaner and backup coordinator behind
// one handle for the CLI. It is strictly request/response: callers ask,
// the app answers; nothing here holds references back into the UI.
type App struct {
	Config  conf.Config
	engine  *engine.Engine
	auditor *audit.Auditor
	backup  *backup.Coordinator
	scorer  *score.Scorer
	home    string
}

// New initializes the full pipeline; backup coordinator setup is bounded
// by the init timeout. Models are optional; a missing model file just
// leaves the heuristic scorer.
func New(cfg conf.Config) (*App, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve home directory")
		home = ""
	}

	scorer := score.New()
	if m, err := score.LoadModel(filepath.Join(conf.ModelsDir(), "SafetyModel.json")); err != nil {
		log.Warn().Err(err).Msg("safety model unavailable, using heuristics only")
	} else if m != nil {
		scorer.WithModel(m)
		log.Info().Msg("safety model loaded")
	}
	if m, err := score.LoadContentTypeModel(filepath.Join(conf.ModelsDir(), "ContentTypeModel.json")); err != nil {
		log.Warn().Err(err).Msg("content-type model unavailable, using extension table")
	} else if m != nil {
		scorer.WithContentTypeModel(m)
	}

	auditor := audit.New(policy.Default(), audit.Options{
		Aggressive: cfg.AggressiveMode,
		Home:       home,
	})

	// Keychain access can hang on a locked keychain; bound it by the
	// init timeout instead of blocking startup forever.
	coordinator, err := initCoordinator(cfg)
	if err != nil {
		if cfg.RequireBackupOnDelete {
			return nil, err
		}
		log.Warn().Err(err).Msg("backup coordinator unavailable, continuing without backups")
		coordinator = nil
	}

	return &App{
		Config:  cfg,
		engine:  engine.New(cfg, scorer),
		auditor: auditor,
		backup:  coordinator,
		scorer:  scorer,
		home:    home,
	}, nil
}

// Scan runs a scan over the given category tokens.
func (a *App) Scan(ctx context.Context, tokens []string) (*model.ScanResults, error) {
	categories, unknown := model.ExpandCategoryTokens(tokens)
	if len(unknown) > 0 {
		return nil, errors.Validationf("unknown categories: %v", unknown)
	}
	if len(categories) == 0 {
		categories = a.engine.CategoriesForProfile(a.profile())
	}
	return a.engine.Scan(ctx, categories)
}

// Recommend derives ranked recommendations from scan results.
func (a *App) Recommend(ctx context.Context, results *model.ScanResults) ([]*model.Recommendation, error) {
	return a.engine.Recommend(ctx, results)
}

// Clean deletes the given items under the audit gate. confirmed lifts
// the sensitive-pattern denial for this batch only.
func (a *App) Clean(ctx context.Context, items []*model.CleanableItem, confirmed bool) (*model.CleanResult, error) {
	var backuper cleaner.Backuper
	if a.backup != nil {
		backuper = a.backup
	}
	c := cleaner.New(a.auditor, a.Config, backuper)
	c.ConfirmSensitive = confirmed
	if a.Config.DryRun {
		return c.DryRun(ctx, items)
	}
	return c.Clean(ctx, items)
}

// Auto scans with the current profile and cleans everything the
// recommendations consider safe.
func (a *App) Auto(ctx context.Context) (*model.ScanResults, *model.CleanResult, error) {
	results, err := a.Scan(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	recs, err := a.Recommend(ctx, results)
	if err != nil {
		return results, nil, err
	}
	var items []*model.CleanableItem
	seen := make(map[string]struct{})
	for _, rec := range recs {
		for _, it := range rec.Items {
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			items = append(items, it)
		}
	}
	clean, err := a.Clean(ctx, items, false)
	return results, clean, err
}

// Backup snapshots the given paths through the coordinator.
func (a *App) Backup(ctx context.Context, paths []string, incremental bool) (*model.BackupRecord, error) {
	if a.backup == nil {
		return nil, errors.ProviderUnavailable("none", "backup coordinator is not available")
	}
	return a.backup.Backup(ctx, paths, incremental)
}

// Restore fetches and decodes a stored backup.
func (a *App) Restore(ctx context.Context, id string) (*model.DiskSnapshot, error) {
	if a.backup == nil {
		return nil, errors.ProviderUnavailable("none", "backup coordinator is not available")
	}
	return a.backup.Restore(ctx, id)
}

// Backups lists the registry, newest first.
func (a *App) Backups() ([]*model.BackupRecord, error) {
	if a.backup == nil {
		return nil, nil
	}
	return a.backup.List()
}

// CleanupOldBackups applies the retention policy.
func (a *App) CleanupOldBackups(ctx context.Context) (int, error) {
	if a.backup == nil {
		return 0, nil
	}
	return a.backup.CleanupOldBackups(ctx, a.Config.BackupKeepLast)
}

// ClassifyContentType exposes the scorer's content-type classifier.
func (a *App) ClassifyContentType(name string) score.ContentType {
	return a.scorer.ClassifyContentType(name)
}

func initCoordinator(cfg conf.Config) (*backup.Coordinator, error) {
	type result struct {
		c   *backup.Coordinator
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := backup.NewCoordinator(cfg, keychain.New())
		ch <- result{c, err}
	}()
	select {
	case r := <-ch:
		return r.c, r.err
	case <-time.After(cfg.Timeouts.Init):
		return nil, errors.Cancelled("engine init", context.DeadlineExceeded)
	}
}

func (a *App) profile() conf.Profile {
	if a.Config.AggressiveMode {
		return conf.ProfileAggressive
	}
	return conf.ProfileDefault
}

// ShutdownBudget is how long callers should wait for a cancelled
// operation to return partial results.
const ShutdownBudget = 2 * time.Second
