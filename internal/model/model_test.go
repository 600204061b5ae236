package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCategoryTokens(t *testing.T) {
	tests := []struct {
		name    string
		tokens  []string
		want    int
		unknown int
	}{
		{"all", []string{"all"}, len(AllCategories), 0},
		{"safe preset", []string{"safe"}, len(SafeCategories), 0},
		{"single", []string{"logs"}, 1, 0},
		{"dedup", []string{"logs", "logs", "trash"}, 2, 0},
		{"safe plus extra", []string{"safe", "nodeModules"}, len(SafeCategories) + 1, 0},
		{"unknown", []string{"logs", "nonsense"}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unknown := ExpandCategoryTokens(tt.tokens)
			assert.Len(t, got, tt.want)
			assert.Len(t, unknown, tt.unknown)
		})
	}
}

func TestSafePresetIsSubsetOfAll(t *testing.T) {
	for _, c := range SafeCategories {
		assert.True(t, ValidCategory(c))
	}
	assert.Less(t, len(SafeCategories), len(AllCategories))
}

func TestNewScanResults_Aggregates(t *testing.T) {
	items := []*CleanableItem{
		{ID: NewItemID(), Path: "/b", Category: CategoryLogs, Size: 10, SafetyScore: 90},
		{ID: NewItemID(), Path: "/a", Category: CategoryLogs, Size: 20, SafetyScore: 50},
		{ID: NewItemID(), Path: "/c", Category: CategoryTrash, Size: 5, SafetyScore: 75},
	}
	r := NewScanResults(items)

	assert.Equal(t, int64(35), r.TotalSize)
	assert.Equal(t, int64(15), r.SafeTotalSize, "only scores >= %d count", SafeThreshold)
	assert.Len(t, r.ItemsByCategory[CategoryLogs], 2)
	assert.Len(t, r.ItemsByCategory[CategoryTrash], 1)
	// Deterministic path ordering.
	assert.Equal(t, "/a", r.Items[0].Path)
	assert.Equal(t, "/b", r.Items[1].Path)
	assert.Equal(t, "/c", r.Items[2].Path)
}

func TestPriorityRank(t *testing.T) {
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
}

func TestCleanableItem_JSONShape(t *testing.T) {
	it := &CleanableItem{
		ID:          "id-1",
		Path:        "/u/cache/a",
		Name:        "a",
		Category:    CategoryUserCaches,
		Size:        42,
		ModTime:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		SafetyScore: 80,
	}
	data, err := json.Marshal(it)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"id", "path", "name", "category", "size", "safety_score"} {
		assert.Contains(t, m, key)
	}
	_, hasHash := m["content_hash"]
	assert.False(t, hasHash, "empty content hash must be omitted")
}

func TestBackupDelta_Counts(t *testing.T) {
	d := &BackupDelta{Changes: []BackupFileChange{
		{ChangeType: ChangeAdded}, {ChangeType: ChangeAdded},
		{ChangeType: ChangeModified},
		{ChangeType: ChangeDeleted}, {ChangeType: ChangeDeleted}, {ChangeType: ChangeDeleted},
	}}
	added, modified, deleted := d.Counts()
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, modified)
	assert.Equal(t, 3, deleted)
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	it := &CleanableItem{ModTime: now.AddDate(0, 0, -30)}
	assert.Equal(t, 30, it.AgeDays(now))
}
