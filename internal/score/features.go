package score

import (
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Inputs are the immutable per-file features the scorer consumes. They
// are captured once at scan time so scoring stays reproducible.
type Inputs struct {
	Path         string
	Name         string
	Category     string
	Size         int64
	AgeDays      int
	PathDepth    int
	IsRecent     bool // modified within 7 days
	IsOld        bool // not modified for over a year
	IsSystemDir  bool
	IsUserDir    bool
	HasCommonExt bool
}

// commonExts are extensions frequent enough that their presence is a
// weak "ordinary user file" signal for the model features.
var commonExts = map[string]struct{}{
	"txt": {}, "pdf": {}, "doc": {}, "docx": {}, "jpg": {}, "jpeg": {},
	"png": {}, "mp4": {}, "mp3": {}, "zip": {}, "log": {}, "json": {},
	"html": {}, "csv": {},
}

// BuildInputs derives scorer features from a scanned file.
func BuildInputs(path, name, category string, size int64, mtime, now time.Time) Inputs {
	age := int(now.Sub(mtime).Hours() / 24)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, common := commonExts[ext]
	return Inputs{
		Path:         path,
		Name:         name,
		Category:     category,
		Size:         size,
		AgeDays:      age,
		PathDepth:    strings.Count(filepath.Clean(path), string(filepath.Separator)),
		IsRecent:     now.Sub(mtime) < 7*24*time.Hour,
		IsOld:        age > 365,
		IsSystemDir:  strings.HasPrefix(path, "/System") || strings.HasPrefix(path, "/Library") || strings.HasPrefix(path, "/usr"),
		IsUserDir:    strings.Contains(path, "/Users/") || strings.Contains(path, "/home/"),
		HasCommonExt: common,
	}
}

// vector flattens the features for model inference. Order is part of the
// model contract; changing it invalidates persisted weights.
func (in Inputs) vector() []float64 {
	b := func(v bool) float64 {
		if v {
			return 1
		}
		return 0
	}
	return []float64{
		math.Log1p(float64(in.Size)) / 32,
		math.Min(float64(in.AgeDays), 3650) / 3650,
		math.Min(float64(in.PathDepth), 32) / 32,
		b(in.IsRecent),
		b(in.IsOld),
		b(in.IsSystemDir),
		b(in.IsUserDir),
		b(in.HasCommonExt),
	}
}
