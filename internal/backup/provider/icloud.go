package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/pkg/util"
)

const (
	iCloudName = "icloud"
	// iCloudFreeTier is the free-tier ceiling a payload must fit in.
	iCloudFreeTier = 5 << 30
)

// ICloud stores blobs in the local iCloud Drive container; the OS sync
// agent takes it from there. Availability equals "the user is signed in
// and the container exists".
type ICloud struct {
	// ContainerDir overrides the default iCloud Drive location,
	// mainly for tests.
	ContainerDir string
}

// NewICloud builds the provider over the default container.
func NewICloud() *ICloud {
	home, err := os.UserHomeDir()
	if err != nil {
		return &ICloud{}
	}
	return &ICloud{ContainerDir: filepath.Join(home,
		"Library", "Mobile Documents", "com~apple~CloudDocs", "sweeply-backups")}
}

func (p *ICloud) Name() string { return iCloudName }

func (p *ICloud) Available(ctx context.Context, size int64) error {
	if p.ContainerDir == "" || !util.IsDir(filepath.Dir(p.ContainerDir)) {
		return errors.ProviderUnavailable(iCloudName, "iCloud Drive is not signed in on this machine")
	}
	if size > iCloudFreeTier {
		return errors.QuotaExceeded(iCloudName, size, iCloudFreeTier)
	}
	return nil
}

func (p *ICloud) Upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error) {
	if err := p.Available(ctx, int64(len(blob))); err != nil {
		return nil, err
	}
	if err := util.PrepareDir(p.ContainerDir); err != nil {
		return nil, errors.IO("creating iCloud container", err)
	}
	dest := filepath.Join(p.ContainerDir, name)
	if err := os.WriteFile(dest, blob, 0o600); err != nil {
		return nil, errors.IO("writing to iCloud container", err)
	}
	return &model.BackupRecord{
		ID:          uuid.NewString(),
		Provider:    iCloudName,
		Location:    dest,
		Size:        int64(len(blob)),
		Timestamp:   time.Now().UTC(),
		IsEncrypted: true,
	}, nil
}

func (p *ICloud) List(ctx context.Context) ([]*model.BackupRecord, error) {
	entries, err := os.ReadDir(p.ContainerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO("listing iCloud container", err)
	}
	var records []*model.BackupRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "backup_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		records = append(records, &model.BackupRecord{
			ID:          e.Name(),
			Provider:    iCloudName,
			Location:    filepath.Join(p.ContainerDir, e.Name()),
			Size:        info.Size(),
			Timestamp:   info.ModTime().UTC(),
			IsEncrypted: true,
		})
	}
	return records, nil
}

func (p *ICloud) Delete(ctx context.Context, record *model.BackupRecord) error {
	if err := os.Remove(record.Location); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("backup blob " + record.Location)
		}
		return errors.IO("deleting from iCloud container", err)
	}
	return nil
}

func (p *ICloud) Fetch(ctx context.Context, record *model.BackupRecord) ([]byte, error) {
	blob, err := os.ReadFile(record.Location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("backup blob " + record.Location)
		}
		return nil, errors.IO("reading from iCloud container", err)
	}
	return blob, nil
}
