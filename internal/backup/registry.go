package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/pkg/util"
)

// Registry is the local index of every backup record, persisted as JSON
// under <app-data>/registry/backups.json. Providers are the storage of
// record; the registry is the fast lookup and the retention ledger.
type Registry struct {
	mu   sync.Mutex
	path string
}

// NewRegistry opens (or lazily creates) the registry file at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// load reads the current record list. A missing file is an empty
// registry.
func (r *Registry) load() ([]*model.BackupRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO("reading backup registry", err)
	}
	var records []*model.BackupRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Encoding("parsing backup registry", err)
	}
	return records, nil
}

func (r *Registry) save(records []*model.BackupRecord) error {
	if err := util.PrepareDir(filepath.Dir(r.path)); err != nil {
		return errors.IO("creating registry directory", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Encoding("serializing backup registry", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.IO("writing backup registry", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return errors.IO("replacing backup registry", err)
	}
	return nil
}

// Add appends a record.
func (r *Registry) Add(record *model.BackupRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return err
	}
	return r.save(append(records, record))
}

// List returns all records, newest first.
func (r *Registry) List() ([]*model.BackupRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// Get finds one record by id.
func (r *Registry) Get(id string) (*model.BackupRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errors.NotFound("backup " + id)
}

// Remove drops a record by id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return err
	}
	kept := records[:0]
	found := false
	for _, rec := range records {
		if rec.ID == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return errors.NotFound("backup " + id)
	}
	return r.save(kept)
}

// Prune returns the records beyond the keepLast newest for each
// provider and removes them from the registry. The caller deletes the
// underlying blobs.
func (r *Registry) Prune(keepLast int) ([]*model.BackupRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	byProvider := make(map[string][]*model.BackupRecord)
	for _, rec := range records {
		byProvider[rec.Provider] = append(byProvider[rec.Provider], rec)
	}

	var kept, pruned []*model.BackupRecord
	for _, provRecords := range byProvider {
		sort.Slice(provRecords, func(i, j int) bool {
			return provRecords[i].Timestamp.After(provRecords[j].Timestamp)
		})
		for i, rec := range provRecords {
			if i < keepLast {
				kept = append(kept, rec)
			} else {
				pruned = append(pruned, rec)
			}
		}
	}
	if len(pruned) == 0 {
		return nil, nil
	}
	if err := r.save(kept); err != nil {
		return nil, err
	}
	return pruned, nil
}
