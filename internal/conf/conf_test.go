package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 70, cfg.MinSafetyScore)
	assert.Equal(t, DeleteModeTrash, cfg.DeleteMode)
	assert.GreaterOrEqual(t, cfg.ParallelWorkers, 1)
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers zero", func(c *Config) { c.ParallelWorkers = 0 }},
		{"workers huge", func(c *Config) { c.ParallelWorkers = 4096 }},
		{"safety negative", func(c *Config) { c.MinSafetyScore = -1 }},
		{"safety over 100", func(c *Config) { c.MinSafetyScore = 101 }},
		{"bad delete mode", func(c *Config) { c.DeleteMode = "shred" }},
		{"dup floor zero", func(c *Config) { c.DuplicateMinSize = 0 }},
		{"keep last zero", func(c *Config) { c.BackupKeepLast = 0 }},
		{"zero timeout", func(c *Config) { c.Timeouts.Scan = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().MinSafetyScore, cfg.MinSafetyScore)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.MinSafetyScore = 85
	cfg.AutoBackup = true
	cfg.DeleteMode = DeleteModeUnlink
	cfg.NASMountPoints = []string{"/mnt/nas"}
	require.NoError(t, Save(cfg, dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 85, loaded.MinSafetyScore)
	assert.True(t, loaded.AutoBackup)
	assert.Equal(t, DeleteModeUnlink, loaded.DeleteMode)
	assert.Equal(t, []string{"/mnt/nas"}, loaded.NASMountPoints)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "application.json"),
		[]byte(`{"min_safety_score": 400}`), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestApplyProfile(t *testing.T) {
	cfg := Default()
	cfg.ApplyProfile(ProfileAggressive)
	assert.True(t, cfg.AggressiveMode)
	assert.Equal(t, 60, cfg.MinSafetyScore)

	cfg.ApplyProfile(ProfileParanoid)
	assert.False(t, cfg.AggressiveMode)
	assert.Equal(t, 85, cfg.MinSafetyScore)
}

func TestAppDataDir_Override(t *testing.T) {
	t.Setenv("SWEEPLY_DATA_DIR", "/custom/data")
	assert.Equal(t, "/custom/data", AppDataDir())
	assert.Equal(t, filepath.Join("/custom/data", "config"), ConfigDir())
	assert.Equal(t, filepath.Join("/custom/data", "registry"), RegistryDir())
	assert.Equal(t, filepath.Join("/custom/data", "models"), ModelsDir())
	assert.Equal(t, filepath.Join("/custom/data", "logs"), LogsDir())
}
