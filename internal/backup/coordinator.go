package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sweeply/sweeply/internal/backup/provider"
	"github.com/sweeply/sweeply/internal/conf"
	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/keychain"
	"github.com/sweeply/sweeply/internal/model"
)

// Coordinator captures snapshots, runs them through the codec and
// stores the blob on the first available provider. Smart selection
// tries providers in priority order: local NAS, iCloud, remote upload,
// IPFS.
type Coordinator struct {
	cfg       conf.Config
	codec     *Codec
	registry  *Registry
	providers []provider.Provider

	mu   sync.Mutex
	prev *model.DiskSnapshot
}

// NewCoordinator wires the codec key from the keychain and the provider
// chain from the configuration.
func NewCoordinator(cfg conf.Config, keys *keychain.Store) (*Coordinator, error) {
	secret, err := keys.MasterSecret()
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(secret)
	if err != nil {
		return nil, err
	}

	chain := []provider.Provider{
		provider.NewLocalNAS(cfg.NASMountPoints),
		provider.NewICloud(),
		provider.NewRemote(cfg.RemoteBackupURL, func() (string, error) {
			return keys.Get("remote-upload-token", "SWEEPLY_REMOTE_TOKEN")
		}),
		provider.NewIPFS(""),
	}
	if cfg.BackupProvider != "" && cfg.BackupProvider != "smart" {
		filtered := chain[:0]
		for _, p := range chain {
			if p.Name() == cfg.BackupProvider {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			return nil, errors.Validationf("unknown backup provider %q", cfg.BackupProvider)
		}
		chain = filtered
	}

	return &Coordinator{
		cfg:       cfg,
		codec:     codec,
		registry:  NewRegistry(filepath.Join(conf.RegistryDir(), "backups.json")),
		providers: chain,
	}, nil
}

// WithProviders replaces the provider chain, preserving priority order.
// Used by tests and by callers with custom sinks.
func (c *Coordinator) WithProviders(providers ...provider.Provider) *Coordinator {
	c.providers = providers
	return c
}

// WithRegistry replaces the registry location.
func (c *Coordinator) WithRegistry(r *Registry) *Coordinator {
	c.registry = r
	return c
}

// Backup snapshots the given paths and uploads the encrypted blob.
// Incremental mode also computes the delta against the previous
// snapshot taken by this coordinator and records its shape in the
// snapshot metadata.
func (c *Coordinator) Backup(ctx context.Context, paths []string, incremental bool) (*model.BackupRecord, error) {
	snap, err := CaptureSnapshot(ctx, paths, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if incremental && c.prev != nil {
		delta := ComputeDelta(c.prev, snap)
		added, modified, deleted := delta.Counts()
		snap.Metadata["previous_snapshot_id"] = c.prev.ID
		snap.Metadata["delta_added"] = strconv.Itoa(added)
		snap.Metadata["delta_modified"] = strconv.Itoa(modified)
		snap.Metadata["delta_deleted"] = strconv.Itoa(deleted)
		snap.Metadata["delta_size"] = strconv.FormatInt(delta.TotalSizeDelta, 10)
	}
	c.prev = snap
	c.mu.Unlock()

	blob, err := c.codec.Encode(snap)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("backup_%s_%d.bin", snap.ID, snap.Timestamp.Unix())

	record, err := c.upload(ctx, name, blob)
	if err != nil {
		return nil, err
	}
	if err := c.registry.Add(record); err != nil {
		return nil, err
	}
	log.Info().
		Str("provider", record.Provider).
		Str("id", record.ID).
		Int64("size", record.Size).
		Int("files", snap.FileCount).
		Msg("backup stored")
	return record, nil
}

// upload walks the provider chain and returns the first success or the
// last error.
func (c *Coordinator) upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error) {
	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, errors.Cancelled("backup upload", err)
		}
		if err := p.Available(ctx, int64(len(blob))); err != nil {
			log.Debug().Err(err).Str("provider", p.Name()).Msg("provider not usable, trying next")
			lastErr = err
			continue
		}
		record, err := p.Upload(ctx, name, blob)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("upload failed, trying next")
			lastErr = err
			continue
		}
		return record, nil
	}
	if lastErr == nil {
		lastErr = errors.ProviderUnavailable("none", "no backup provider configured")
	}
	return nil, lastErr
}

// SnapshotBeforeClean implements the cleaner's pre-deletion hook.
func (c *Coordinator) SnapshotBeforeClean(ctx context.Context, items []*model.CleanableItem) (*model.BackupRecord, error) {
	paths := make([]string, 0, len(items))
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	return c.Backup(ctx, paths, false)
}

// Restore fetches a stored backup and decodes it back into a snapshot.
func (c *Coordinator) Restore(ctx context.Context, id string) (*model.DiskSnapshot, error) {
	record, err := c.registry.Get(id)
	if err != nil {
		return nil, err
	}
	p := c.providerByName(record.Provider)
	if p == nil {
		return nil, errors.ProviderUnavailable(record.Provider, "provider not in the active chain")
	}
	blob, err := p.Fetch(ctx, record)
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(blob)
}

// List returns the registry's records, newest first.
func (c *Coordinator) List() ([]*model.BackupRecord, error) {
	return c.registry.List()
}

// CleanupOldBackups keeps the keepLast newest records per provider and
// deletes the rest, blobs included. Blob deletion failures are logged;
// the registry stays authoritative.
func (c *Coordinator) CleanupOldBackups(ctx context.Context, keepLast int) (int, error) {
	if keepLast < 1 {
		return 0, errors.Validationf("keep_last %d must be >= 1", keepLast)
	}
	pruned, err := c.registry.Prune(keepLast)
	if err != nil {
		return 0, err
	}
	for _, record := range pruned {
		p := c.providerByName(record.Provider)
		if p == nil {
			continue
		}
		if err := p.Delete(ctx, record); err != nil {
			log.Warn().Err(err).Str("id", record.ID).Msg("stale backup blob not deleted")
		}
	}
	return len(pruned), nil
}

func (c *Coordinator) providerByName(name string) provider.Provider {
	for _, p := range c.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
