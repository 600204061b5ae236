package backup

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeply/sweeply/internal/backup/provider"
	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

// memProvider is an in-memory provider for coordinator tests.
type memProvider struct {
	name    string
	limit   int64
	down    bool
	mu      sync.Mutex
	blobs   map[string][]byte
	uploads int
}

func newMemProvider(name string, limit int64) *memProvider {
	return &memProvider{name: name, limit: limit, blobs: map[string][]byte{}}
}

func (p *memProvider) Name() string { return p.name }

func (p *memProvider) Available(ctx context.Context, size int64) error {
	if p.down {
		return errors.ProviderUnavailable(p.name, "offline")
	}
	if p.limit > 0 && size > p.limit {
		return errors.QuotaExceeded(p.name, size, p.limit)
	}
	return nil
}

func (p *memProvider) Upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error) {
	if err := p.Available(ctx, int64(len(blob))); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := uuid.NewString()
	p.blobs[key] = blob
	p.uploads++
	return &model.BackupRecord{
		ID:          key,
		Provider:    p.name,
		Location:    name,
		Size:        int64(len(blob)),
		Timestamp:   time.Now().UTC(),
		IsEncrypted: true,
	}, nil
}

func (p *memProvider) List(ctx context.Context) ([]*model.BackupRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var records []*model.BackupRecord
	for key, blob := range p.blobs {
		records = append(records, &model.BackupRecord{ID: key, Provider: p.name, Size: int64(len(blob))})
	}
	return records, nil
}

func (p *memProvider) Delete(ctx context.Context, record *model.BackupRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.blobs[record.ID]; !ok {
		return errors.NotFound("blob " + record.ID)
	}
	delete(p.blobs, record.ID)
	return nil
}

func (p *memProvider) Fetch(ctx context.Context, record *model.BackupRecord) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	blob, ok := p.blobs[record.ID]
	if !ok {
		return nil, errors.NotFound("blob " + record.ID)
	}
	return blob, nil
}

var _ provider.Provider = (*memProvider)(nil)

func testCoordinator(t *testing.T, providers ...provider.Provider) *Coordinator {
	t.Helper()
	codec, err := NewCodec("coordinator-test-secret")
	require.NoError(t, err)
	return &Coordinator{
		cfg:       conf.Default(),
		codec:     codec,
		registry:  NewRegistry(filepath.Join(t.TempDir(), "backups.json")),
		providers: providers,
	}
}

func TestBackup_RoundTripThroughProvider(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "a.txt", 500)
	writeFixture(t, dir, "b.txt", 700)

	prov := newMemProvider("localnas", 0)
	c := testCoordinator(t, prov)

	record, err := c.Backup(context.Background(), []string{a, filepath.Join(dir, "b.txt")}, false)
	require.NoError(t, err)
	assert.Equal(t, "localnas", record.Provider)
	assert.True(t, record.IsEncrypted)

	snap, err := c.Restore(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.FileCount)
	assert.Equal(t, int64(1200), snap.TotalSize)
}

func TestBackup_SmartSelectionFallsThrough(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "a", 100)

	nas := newMemProvider("localnas", 0)
	nas.down = true
	tiny := newMemProvider("icloud", 1) // everything exceeds the quota
	fallback := newMemProvider("ipfs", 0)

	c := testCoordinator(t, nas, tiny, fallback)
	record, err := c.Backup(context.Background(), []string{a}, false)
	require.NoError(t, err)
	assert.Equal(t, "ipfs", record.Provider)
	assert.Equal(t, 1, fallback.uploads)
	assert.Zero(t, nas.uploads)
}

func TestBackup_AllProvidersFailSurfacesLastError(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "a", 100)

	first := newMemProvider("localnas", 0)
	first.down = true
	second := newMemProvider("icloud", 1)

	c := testCoordinator(t, first, second)
	_, err := c.Backup(context.Background(), []string{a}, false)
	require.Error(t, err)
	assert.Equal(t, errors.CodeQuotaExceeded, errors.CodeOf(err))
}

func TestBackup_IncrementalRecordsDelta(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "a", 100)
	prov := newMemProvider("localnas", 0)
	c := testCoordinator(t, prov)

	_, err := c.Backup(context.Background(), []string{a}, true)
	require.NoError(t, err)

	b := writeFixture(t, dir, "b", 250)
	record, err := c.Backup(context.Background(), []string{a, b}, true)
	require.NoError(t, err)

	snap, err := c.Restore(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", snap.Metadata["delta_added"])
	assert.Equal(t, "0", snap.Metadata["delta_deleted"])
	assert.Equal(t, "250", snap.Metadata["delta_size"])
	assert.NotEmpty(t, snap.Metadata["previous_snapshot_id"])
}

func TestRestore_UnknownID(t *testing.T) {
	c := testCoordinator(t, newMemProvider("localnas", 0))
	_, err := c.Restore(context.Background(), "no-such-backup")
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}

func TestCleanupOldBackups_Retention(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "a", 100)
	prov := newMemProvider("localnas", 0)
	c := testCoordinator(t, prov)

	for i := 0; i < 5; i++ {
		_, err := c.Backup(context.Background(), []string{a}, false)
		require.NoError(t, err)
	}

	pruned, err := c.CleanupOldBackups(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	records, err := c.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, prov.blobs, 2)
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "reg", "backups.json"))

	rec := &model.BackupRecord{ID: "r1", Provider: "localnas", Timestamp: time.Now().UTC()}
	require.NoError(t, r.Add(rec))

	got, err := r.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "localnas", got.Provider)

	require.NoError(t, r.Remove("r1"))
	_, err = r.Get("r1")
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
	assert.Error(t, r.Remove("r1"))
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "backups.json"))
	now := time.Now().UTC()
	require.NoError(t, r.Add(&model.BackupRecord{ID: "old", Timestamp: now.Add(-time.Hour)}))
	require.NoError(t, r.Add(&model.BackupRecord{ID: "new", Timestamp: now}))

	records, err := r.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
}
