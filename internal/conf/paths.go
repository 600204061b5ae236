package conf

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDataDir returns the per-user application-data directory:
//
//	<app-data>/
//	  config/    JSON configuration files
//	  registry/  backups.json
//	  models/    optional SafetyModel / ContentTypeModel
//	  logs/      *.log
//
// SWEEPLY_DATA_DIR overrides the platform default, which keeps tests and
// portable installs away from the real user profile.
func AppDataDir() string {
	if dir := os.Getenv("SWEEPLY_DATA_DIR"); dir != "" {
		return dir
	}
	h := home()
	if runtime.GOOS == "darwin" {
		return filepath.Join(h, "Library", "Application Support", "sweeply")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "sweeply")
	}
	return filepath.Join(h, ".local", "share", "sweeply")
}

// ConfigDir returns <app-data>/config.
func ConfigDir() string { return filepath.Join(AppDataDir(), "config") }

// RegistryDir returns <app-data>/registry.
func RegistryDir() string { return filepath.Join(AppDataDir(), "registry") }

// ModelsDir returns <app-data>/models.
func ModelsDir() string { return filepath.Join(AppDataDir(), "models") }

// LogsDir returns <app-data>/logs.
func LogsDir() string { return filepath.Join(AppDataDir(), "logs") }

// TrashDir returns the user's trash directory if the platform has one,
// or empty when trash is unsupported.
func TrashDir() string {
	h := home()
	if h == "" {
		return ""
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(h, ".Trash")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "Trash", "files")
	}
	return filepath.Join(h, ".local", "share", "Trash", "files")
}
