package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SafeThreshold is the safety score at or above which an item counts
// toward SafeTotalSize and is eligible for default cleaning.
const SafeThreshold = 70

// CleanableItem is a single discovered candidate for cleaning. Items are
// created by the walker; the scorer fills SafetyScore and the duplicate
// detector fills ContentHash. After a scan completes the item is read-only.
type CleanableItem struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mtime"`
	AccessTime  time.Time `json:"atime"`
	ChangeTime  time.Time `json:"ctime"`
	IsDirectory bool      `json:"is_directory,omitempty"`
	SafetyScore int       `json:"safety_score"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// NewItemID returns a fresh process-unique item identifier.
func NewItemID() string { return uuid.NewString() }

// AgeDays returns whole days since the item was last modified.
func (i *CleanableItem) AgeDays(now time.Time) int {
	return int(now.Sub(i.ModTime).Hours() / 24)
}

// DuplicateGroup is a set of two or more files with byte-identical
// content, witnessed by equal size and equal content hash. Items reference
// members of the owning ScanResults by pointer; Primary is the member the
// tie-break selected to keep.
type DuplicateGroup struct {
	Items       []*CleanableItem `json:"items"`
	Primary     *CleanableItem   `json:"-"`
	WastedSpace int64            `json:"wasted_space"`
}

// ScanResults is the aggregate outcome of one scan. It is produced once
// and read-only afterwards; concurrent readers are fine.
type ScanResults struct {
	Items           []*CleanableItem              `json:"items"`
	ItemsByCategory map[Category][]*CleanableItem `json:"items_by_category"`
	TotalSize       int64                         `json:"total_size"`
	SafeTotalSize   int64                         `json:"safe_total_size"`
	Duplicates      []*DuplicateGroup             `json:"duplicates"`
}

// NewScanResults builds results from scored items, computing the category
// partition and size aggregates. Items are sorted by path so aggregation
// is deterministic regardless of walker emission order.
func NewScanResults(items []*CleanableItem) *ScanResults {
	sorted := make([]*CleanableItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	r := &ScanResults{
		Items:           sorted,
		ItemsByCategory: make(map[Category][]*CleanableItem),
	}
	for _, it := range sorted {
		r.ItemsByCategory[it.Category] = append(r.ItemsByCategory[it.Category], it)
		r.TotalSize += it.Size
		if it.SafetyScore >= SafeThreshold {
			r.SafeTotalSize += it.Size
		}
	}
	return r
}

// Priority ranks a recommendation.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities for sorting; a higher rank is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Recommendation is a grouped, ranked cleaning suggestion derived from
// scan items. Its lifetime is bounded by the ScanResults it references.
type Recommendation struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Priority       Priority         `json:"priority"`
	EstimatedSpace int64            `json:"estimated_space"`
	Items          []*CleanableItem `json:"items"`
	Confidence     float64          `json:"confidence"`
}

// CleanFailure pairs an item with the error that prevented its deletion.
type CleanFailure struct {
	Item  *CleanableItem `json:"item"`
	Error string         `json:"error"`
}

// CleanResult is the outcome of one clean or dry-run invocation. In dry
// runs Deleted preserves submission order; in real runs it reflects
// completion order.
type CleanResult struct {
	Deleted    []*CleanableItem `json:"deleted"`
	Failed     []CleanFailure   `json:"failed"`
	FreedSpace int64            `json:"freed_space"`
	DryRun     bool             `json:"dry_run,omitempty"`
	// Metrics.
	Duration        time.Duration `json:"-"`
	ThroughputMiBps float64       `json:"throughput_mibps,omitempty"`
}
