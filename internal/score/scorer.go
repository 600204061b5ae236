package score

import (
	"math"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// inferenceBudget caps how long a single model call may take before the
// scorer falls back to the pure heuristic for that item.
const inferenceBudget = 5 * time.Millisecond

// Scorer produces a safety score in [0,100] where higher means safer to
// delete. The heuristic part is deterministic; the optional model only
// nudges the result by at most ±10.
type Scorer struct {
	model        *Model
	contentModel *ContentTypeModel
}

// New returns a heuristic-only scorer.
func New() *Scorer { return &Scorer{} }

// WithModel attaches a safety model. A nil model is ignored.
func (s *Scorer) WithModel(m *Model) *Scorer {
	s.model = m
	return s
}

// WithContentTypeModel attaches a content-type model. A nil model keeps
// the extension table.
func (s *Scorer) WithContentTypeModel(m *ContentTypeModel) *Scorer {
	s.contentModel = m
	return s
}

// pathRule is one first-match-wins path contribution. Junk locations
// push the score up (safer to delete), user-content locations push it
// down, and system trees push it down hard.
type pathRule struct {
	pattern string
	delta   int
}

var pathRules = []pathRule{
	{"/System/**", -25},
	{"/tmp/**", 20},
	{"/var/tmp/**", 20},
	{"**/Library/Caches/**", 15},
	{"**/.Trash/**", 20},
	{"**/Caches/**", 15},
	{"**/cache/**", 15},
	{"**/.cache/**", 15},
	{"**/Users/*/Documents/**", -15},
	{"**/Users/*/Desktop/**", -10},
	{"**/Users/*/Pictures/**", -12},
}

var docExts = map[string]struct{}{
	"txt": {}, "doc": {}, "pdf": {}, "rtf": {}, "pages": {},
}

var mediaExts = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "heic": {},
	"tiff": {}, "webp": {}, "mp4": {}, "mov": {}, "avi": {}, "mkv": {},
	"mp3": {}, "aac": {}, "flac": {}, "wav": {}, "m4a": {},
}

// Score computes the safety score for the given inputs. Equal inputs
// always produce equal scores, independent of evaluation order.
func (s *Scorer) Score(in Inputs) int {
	score := 50
	score += pathContribution(in.Path)
	score += nameContribution(in.Name)
	score += categoryContribution(in.Category)
	score += sizeContribution(in.Size)
	score += ageContribution(in)

	if s.model != nil {
		if adj, ok := s.modelAdjustment(in); ok {
			score += adj
		}
	}

	return clamp(score, 0, 100)
}

// pathContribution applies the first matching path rule only.
func pathContribution(path string) int {
	for _, r := range pathRules {
		if ok, _ := doublestar.Match(r.pattern, path); ok {
			return r.delta
		}
	}
	return 0
}

// nameContribution accumulates across all matching name predicates.
func nameContribution(name string) int {
	delta := 0
	lower := strings.ToLower(name)
	ext := ""
	if i := strings.LastIndexByte(lower, '.'); i >= 0 {
		ext = lower[i+1:]
	}
	if _, ok := docExts[ext]; ok {
		delta -= 8
	}
	if _, ok := mediaExts[ext]; ok {
		delta -= 10
	}
	if strings.Contains(lower, "important") || strings.Contains(lower, "backup") {
		delta -= 12
	}
	if strings.HasPrefix(lower, "temp") || strings.HasPrefix(lower, "tmp") {
		delta += 15
	}
	if strings.Contains(name, "cache") || strings.Contains(name, "Cache") {
		delta += 10
	}
	if strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".tmp") {
		delta += 8
	}
	return delta
}

// categoryContribution maps scan categories and the broader semantic
// classes onto score deltas.
func categoryContribution(category string) int {
	switch category {
	case "documents", "pictures", "music", "videos":
		return -15
	case "system":
		return -20
	case "cache", "userCaches", "appCaches",
		"developerJunk", "nodeModules", "xcodeJunk":
		return 10
	case "logs":
		return 8
	case "temporary":
		return 12
	case "trash":
		return 15
	default:
		return 0
	}
}

func sizeContribution(size int64) int {
	switch {
	case size > 100*1024*1024:
		return 5
	case size < 100*1024:
		return -3
	default:
		return 0
	}
}

// ageContribution moves recently touched files toward "keep" and files
// untouched for over a year toward "delete".
func ageContribution(in Inputs) int {
	switch {
	case in.IsRecent:
		return -10
	case in.IsOld:
		return 10
	default:
		return 0
	}
}

// modelAdjustment runs the model under the per-item inference budget and
// converts its probability into a bounded score delta.
func (s *Scorer) modelAdjustment(in Inputs) (int, bool) {
	type result struct {
		p   float64
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := s.model.Predict(in.vector())
		ch <- result{p, err}
	}()

	timer := time.NewTimer(inferenceBudget)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			log.Debug().Err(r.err).Str("path", in.Path).Msg("safety model failed, using heuristic")
			return 0, false
		}
		return int(math.Round((r.p - 0.5) * 20)), true
	case <-timer.C:
		log.Debug().Str("path", in.Path).Msg("safety model timed out, using heuristic")
		return 0, false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
