package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/internal/score"
)

func writeAged(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	old := time.Now().AddDate(0, -1, 0)
	require.NoError(t, os.Chtimes(path, old, old))
}

func testEngine(cfg conf.Config) *Engine {
	return New(cfg, score.New())
}

func TestScan_CacheFixture(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	writeAged(t, filepath.Join(cacheDir, "a"), make([]byte, 10<<20))
	writeAged(t, filepath.Join(cacheDir, "b"), make([]byte, 5<<20))
	writeAged(t, filepath.Join(dir, "kept.txt"), make([]byte, 1<<20))

	e := testEngine(conf.Default()).WithSpec(CategorySpec{
		Category: model.CategoryUserCaches,
		Roots:    []string{cacheDir},
		Glob:     "*",
	})

	results, err := e.Scan(context.Background(), []model.Category{model.CategoryUserCaches})
	require.NoError(t, err)

	require.Len(t, results.Items, 2)
	for _, it := range results.Items {
		assert.GreaterOrEqual(t, it.SafetyScore, 70, it.Path)
		assert.Equal(t, model.CategoryUserCaches, it.Category)
	}
	assert.Equal(t, int64(15<<20), results.TotalSize)
	assert.Equal(t, int64(15<<20), results.SafeTotalSize)
}

func TestScan_ResultInvariants(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, "caches", "x.cache"), make([]byte, 4096))
	writeAged(t, filepath.Join(dir, "logs", "app.log"), make([]byte, 2048))
	writeAged(t, filepath.Join(dir, "logs", "skip.txt"), make([]byte, 2048))

	e := testEngine(conf.Default()).
		WithSpec(CategorySpec{
			Category: model.CategoryUserCaches,
			Roots:    []string{filepath.Join(dir, "caches")},
			Glob:     "*",
		}).
		WithSpec(CategorySpec{
			Category: model.CategoryLogs,
			Roots:    []string{filepath.Join(dir, "logs")},
			Glob:     "*.log",
		})

	results, err := e.Scan(context.Background(),
		[]model.Category{model.CategoryUserCaches, model.CategoryLogs})
	require.NoError(t, err)

	// Every item appears exactly once and the category map partitions
	// the item list.
	seen := make(map[string]int)
	var sum int64
	for _, it := range results.Items {
		seen[it.ID]++
		sum += it.Size
		assert.True(t, model.ValidCategory(it.Category))
		assert.GreaterOrEqual(t, it.SafetyScore, 0)
		assert.LessOrEqual(t, it.SafetyScore, 100)
		assert.GreaterOrEqual(t, it.Size, int64(0))

		found := false
		for _, other := range results.ItemsByCategory[it.Category] {
			if other.ID == it.ID {
				found = true
			}
		}
		assert.True(t, found, "item must appear in its category bucket")
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, sum, results.TotalSize)

	var partitioned int
	for _, bucket := range results.ItemsByCategory {
		partitioned += len(bucket)
	}
	assert.Equal(t, len(results.Items), partitioned)
}

func TestScan_DuplicateScenario(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "u")
	payload := bytes.Repeat([]byte{0x5A}, 4096)
	writeAged(t, filepath.Join(home, "A"), payload)
	writeAged(t, filepath.Join(home, "B"), payload)
	writeAged(t, filepath.Join(dir, "tmp", "C"), payload)
	writeAged(t, filepath.Join(home, "D"), bytes.Repeat([]byte{0x77}, 4096))

	cfg := conf.Default()
	e := testEngine(cfg).WithSpec(CategorySpec{
		Category: model.CategoryUserCaches,
		Roots:    []string{home, filepath.Join(dir, "tmp")},
		Glob:     "*",
	})
	e.home = home

	results, err := e.Scan(context.Background(),
		[]model.Category{model.CategoryUserCaches, model.CategoryDuplicates})
	require.NoError(t, err)

	require.Len(t, results.Duplicates, 1)
	g := results.Duplicates[0]
	assert.Len(t, g.Items, 3)
	assert.Equal(t, int64(8<<10), g.WastedSpace)
	require.NotNil(t, g.Primary)
	assert.Equal(t, filepath.Join(home, "A"), g.Primary.Path)

	// Groups reference only items present in the result set.
	ids := make(map[string]bool)
	for _, it := range results.Items {
		ids[it.ID] = true
	}
	for _, it := range g.Items {
		assert.True(t, ids[it.ID])
	}
}

func TestScan_UnknownCategory(t *testing.T) {
	e := testEngine(conf.Default())
	_, err := e.Scan(context.Background(), []model.Category{"bogus"})
	assert.Error(t, err)
}

func TestScan_MissingRootSkipped(t *testing.T) {
	e := testEngine(conf.Default()).WithSpec(CategorySpec{
		Category: model.CategoryUserCaches,
		Roots:    []string{"/nonexistent-sweeply-root"},
		Glob:     "*",
	})
	results, err := e.Scan(context.Background(), []model.Category{model.CategoryUserCaches})
	require.NoError(t, err)
	assert.Empty(t, results.Items)
}

func TestScan_DirectoryItemRecursiveSize(t *testing.T) {
	dir := t.TempDir()
	nm := filepath.Join(dir, "proj", "node_modules")
	writeAged(t, filepath.Join(nm, "pkg", "a.js"), make([]byte, 1000))
	writeAged(t, filepath.Join(nm, "pkg", "b.js"), make([]byte, 500))

	e := testEngine(conf.Default()).WithSpec(CategorySpec{
		Category: model.CategoryNodeModules,
		Roots:    []string{dir},
		Glob:     "node_modules/",
	})
	results, err := e.Scan(context.Background(), []model.Category{model.CategoryNodeModules})
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.True(t, results.Items[0].IsDirectory)
	assert.Equal(t, int64(1500), results.Items[0].Size)
}

func TestRecommend_OrderingAndPriorities(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, "caches", "big.cache"), make([]byte, 1<<20))
	writeAged(t, filepath.Join(dir, "tmpdir", "tempfile.tmp"), make([]byte, 512<<10))
	writeAged(t, filepath.Join(dir, "logs", "old.log"), make([]byte, 256<<10))

	cfg := conf.Default()
	cfg.MinSafetyScore = 50
	e := testEngine(cfg).
		WithSpec(CategorySpec{Category: model.CategoryUserCaches, Roots: []string{filepath.Join(dir, "caches")}, Glob: "*"}).
		WithSpec(CategorySpec{Category: model.CategoryTemporary, Roots: []string{filepath.Join(dir, "tmpdir")}, Glob: "*"}).
		WithSpec(CategorySpec{Category: model.CategoryLogs, Roots: []string{filepath.Join(dir, "logs")}, Glob: "*.log"})

	results, err := e.Scan(context.Background(), []model.Category{
		model.CategoryUserCaches, model.CategoryTemporary, model.CategoryLogs,
	})
	require.NoError(t, err)

	recs, err := e.Recommend(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, model.PriorityHigh, recs[0].Priority)
	assert.Equal(t, model.PriorityMedium, recs[1].Priority)
	assert.Equal(t, model.PriorityLow, recs[2].Priority)
	for _, r := range recs {
		assert.NotEmpty(t, r.Items)
		assert.Greater(t, r.EstimatedSpace, int64(0))
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}

	// Determinism: same inputs, same ordering and sizes.
	again, err := e.Recommend(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, again, 3)
	for i := range recs {
		assert.Equal(t, recs[i].Title, again[i].Title)
		assert.Equal(t, recs[i].EstimatedSpace, again[i].EstimatedSpace)
	}
}

func TestScan_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, "f"), make([]byte, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := testEngine(conf.Default()).WithSpec(CategorySpec{
		Category: model.CategoryUserCaches,
		Roots:    []string{dir},
		Glob:     "*",
	})
	start := time.Now()
	_, err := e.Scan(ctx, []model.Category{model.CategoryUserCaches})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
