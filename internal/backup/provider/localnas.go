package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
	"github.com/sweeply/sweeply/pkg/util"
)

const localNASName = "localnas"

// LocalNAS stores blobs on the first mounted path from the configured
// set. Capacity is treated as unlimited; the mount's own free space is
// the only bound.
type LocalNAS struct {
	// MountPoints are candidate mount locations, checked in order.
	MountPoints []string
	// Subdir is the directory created on the mount for sweeply blobs.
	Subdir string
}

// NewLocalNAS builds the provider over the configured mount set.
func NewLocalNAS(mountPoints []string) *LocalNAS {
	return &LocalNAS{MountPoints: mountPoints, Subdir: "sweeply-backups"}
}

func (p *LocalNAS) Name() string { return localNASName }

// activeMount returns the first configured mount location that exists
// as a directory, answers statfs and has room for the payload. It does
// not check that the directory is a separate mounted filesystem.
func (p *LocalNAS) activeMount(size int64) (string, error) {
	for _, mp := range p.MountPoints {
		if !util.IsDir(mp) {
			continue
		}
		var st unix.Statfs_t
		if err := unix.Statfs(mp, &st); err != nil {
			log.Debug().Err(err).Str("mount", mp).Msg("statfs failed")
			continue
		}
		if free := int64(st.Bavail) * int64(st.Bsize); free < size {
			log.Debug().Str("mount", mp).Int64("free", free).Msg("mount too full for payload")
			continue
		}
		return mp, nil
	}
	return "", errors.ProviderUnavailable(localNASName, "no configured mount point is available")
}

func (p *LocalNAS) Available(ctx context.Context, size int64) error {
	_, err := p.activeMount(size)
	return err
}

func (p *LocalNAS) Upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error) {
	mp, err := p.activeMount(int64(len(blob)))
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(mp, p.Subdir)
	if err := util.PrepareDir(dir); err != nil {
		return nil, errors.IO("creating backup directory", err)
	}
	dest := filepath.Join(dir, name)
	tmp := dest + ".partial"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return nil, errors.IO("writing backup blob", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return nil, errors.IO("finalizing backup blob", err)
	}
	return &model.BackupRecord{
		ID:          uuid.NewString(),
		Provider:    localNASName,
		Location:    dest,
		Size:        int64(len(blob)),
		Timestamp:   time.Now().UTC(),
		IsEncrypted: true,
	}, nil
}

func (p *LocalNAS) List(ctx context.Context) ([]*model.BackupRecord, error) {
	var records []*model.BackupRecord
	for _, mp := range p.MountPoints {
		dir := filepath.Join(mp, p.Subdir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
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
				Provider:    localNASName,
				Location:    filepath.Join(dir, e.Name()),
				Size:        info.Size(),
				Timestamp:   info.ModTime().UTC(),
				IsEncrypted: true,
			})
		}
	}
	return records, nil
}

func (p *LocalNAS) Delete(ctx context.Context, record *model.BackupRecord) error {
	if err := os.Remove(record.Location); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("backup blob " + record.Location)
		}
		return errors.IO("deleting backup blob", err)
	}
	return nil
}

func (p *LocalNAS) Fetch(ctx context.Context, record *model.BackupRecord) ([]byte, error) {
	blob, err := os.ReadFile(record.Location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("backup blob " + record.Location)
		}
		return nil, errors.IO("reading backup blob", err)
	}
	return blob, nil
}
