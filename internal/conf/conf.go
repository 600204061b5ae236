package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/pkg/util"
)

// DeleteMode selects how the cleaner disposes of files.
type DeleteMode string

const (
	// DeleteModeUnlink removes files permanently.
	DeleteModeUnlink DeleteMode = "unlink"
	// DeleteModeTrash moves files to the user's trash. When the OS
	// provides a trash directory and this mode is selected, unlink is
	// refused rather than silently substituted.
	DeleteModeTrash DeleteMode = "trash"
)

// Profile is a named scan/clean preset.
type Profile string

const (
	ProfileDefault    Profile = "default"
	ProfileAggressive Profile = "aggressive"
	ProfileParanoid   Profile = "paranoid"
)

// Config is the full engine configuration. It is loaded once at startup
// and passed by value to components; nothing mutates it afterwards.
type Config struct {
	DryRun                bool       `json:"dry_run" mapstructure:"dry_run"`
	AutoBackup            bool       `json:"auto_backup" mapstructure:"auto_backup"`
	RequireBackupOnDelete bool       `json:"require_backup_on_delete" mapstructure:"require_backup_on_delete"`
	ParallelWorkers       int        `json:"parallel_workers" mapstructure:"parallel_workers"`
	VerboseLogging        bool       `json:"verbose_logging" mapstructure:"verbose_logging"`
	MinSafetyScore        int        `json:"min_safety_score" mapstructure:"min_safety_score"`
	AggressiveMode        bool       `json:"aggressive_mode" mapstructure:"aggressive_mode"`
	DeleteMode            DeleteMode `json:"delete_mode" mapstructure:"delete_mode"`

	// Duplicate detection.
	DuplicateMinSize int64 `json:"duplicate_min_size" mapstructure:"duplicate_min_size"`

	// Backup.
	BackupProvider  string   `json:"backup_provider" mapstructure:"backup_provider"`
	NASMountPoints  []string `json:"nas_mount_points" mapstructure:"nas_mount_points"`
	BackupKeepLast  int      `json:"backup_keep_last" mapstructure:"backup_keep_last"`
	RemoteBackupURL string   `json:"remote_backup_url" mapstructure:"remote_backup_url"`

	Timeouts Timeouts `json:"timeouts" mapstructure:"timeouts"`
}

// Timeouts holds the configurable operation deadlines.
type Timeouts struct {
	Init            time.Duration `json:"init" mapstructure:"init"`
	Scan            time.Duration `json:"scan" mapstructure:"scan"`
	Recommendations time.Duration `json:"recommendations" mapstructure:"recommendations"`
	Clean           time.Duration `json:"clean" mapstructure:"clean"`
	CleanPerItem    time.Duration `json:"clean_per_item" mapstructure:"clean_per_item"`
	SemAcquire      time.Duration `json:"sem_acquire" mapstructure:"sem_acquire"`
	Shutdown        time.Duration `json:"shutdown" mapstructure:"shutdown"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		ParallelWorkers:  runtime.NumCPU(),
		MinSafetyScore:   70,
		DeleteMode:       DeleteModeTrash,
		DuplicateMinSize: 1024,
		BackupProvider:   "smart",
		BackupKeepLast:   5,
		Timeouts: Timeouts{
			Init:            60 * time.Second,
			Scan:            5 * time.Minute,
			Recommendations: 60 * time.Second,
			Clean:           10 * time.Minute,
			CleanPerItem:    30 * time.Second,
			SemAcquire:      30 * time.Second,
			Shutdown:        2 * time.Second,
		},
	}
}

// Validate checks option ranges, returning a Validation error on the
// first violation.
func (c *Config) Validate() error {
	if c.ParallelWorkers < 1 || c.ParallelWorkers > 1024 {
		return errors.Validationf("parallel_workers %d out of range [1,1024]", c.ParallelWorkers)
	}
	if c.MinSafetyScore < 0 || c.MinSafetyScore > 100 {
		return errors.Validationf("min_safety_score %d out of range [0,100]", c.MinSafetyScore)
	}
	if c.DeleteMode != DeleteModeUnlink && c.DeleteMode != DeleteModeTrash {
		return errors.Validationf("delete_mode %q must be unlink or trash", c.DeleteMode)
	}
	if c.DuplicateMinSize < 1 {
		return errors.Validationf("duplicate_min_size %d must be >= 1", c.DuplicateMinSize)
	}
	if c.BackupKeepLast < 1 {
		return errors.Validationf("backup_keep_last %d must be >= 1", c.BackupKeepLast)
	}
	for _, d := range []time.Duration{
		c.Timeouts.Init, c.Timeouts.Scan, c.Timeouts.Recommendations,
		c.Timeouts.Clean, c.Timeouts.CleanPerItem, c.Timeouts.SemAcquire,
	} {
		if d <= 0 {
			return errors.Validation("timeouts must be positive")
		}
	}
	return nil
}

// Load reads configuration from <app-data>/config/application.json with
// SWEEPLY_-prefixed environment overrides, applied on top of Default().
// A missing config file is not an error.
func Load(configDir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("json")
	if configDir == "" {
		configDir = ConfigDir()
	}
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("SWEEPLY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, errors.Encoding("reading config", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Encoding("decoding config", err)
	}
	if cfg.ParallelWorkers == 0 {
		cfg.ParallelWorkers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration back to <app-data>/config/application.json.
func Save(cfg Config, configDir string) error {
	if configDir == "" {
		configDir = ConfigDir()
	}
	if err := util.PrepareDir(configDir); err != nil {
		return errors.IO("creating config dir", err)
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("dry_run", cfg.DryRun)
	v.Set("auto_backup", cfg.AutoBackup)
	v.Set("require_backup_on_delete", cfg.RequireBackupOnDelete)
	v.Set("parallel_workers", cfg.ParallelWorkers)
	v.Set("verbose_logging", cfg.VerboseLogging)
	v.Set("min_safety_score", cfg.MinSafetyScore)
	v.Set("aggressive_mode", cfg.AggressiveMode)
	v.Set("delete_mode", string(cfg.DeleteMode))
	v.Set("duplicate_min_size", cfg.DuplicateMinSize)
	v.Set("backup_provider", cfg.BackupProvider)
	v.Set("nas_mount_points", cfg.NASMountPoints)
	v.Set("backup_keep_last", cfg.BackupKeepLast)
	v.Set("remote_backup_url", cfg.RemoteBackupURL)
	if err := v.WriteConfigAs(filepath.Join(configDir, "application.json")); err != nil {
		return errors.IO("writing config", err)
	}
	return nil
}

// ApplyProfile adjusts the configuration for a named preset.
func (c *Config) ApplyProfile(p Profile) {
	switch p {
	case ProfileAggressive:
		c.AggressiveMode = true
		c.MinSafetyScore = 60
	case ProfileParanoid:
		c.AggressiveMode = false
		c.MinSafetyScore = 85
	}
}

// home returns $HOME, falling back to os.UserHomeDir.
func home() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}
