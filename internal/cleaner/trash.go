package cleaner

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/pkg/util"
)

// moveToTrash relocates path into trashDir under a collision-free name.
// The move is a rename, so it stays reversible; a cross-device rename
// failure surfaces as an IO error rather than silently unlinking.
func moveToTrash(path, trashDir string) error {
	if trashDir == "" {
		return errors.IO("no trash directory on this platform", nil)
	}
	if err := util.PrepareDir(trashDir); err != nil {
		return errors.IO("creating trash directory", err)
	}
	dest := filepath.Join(trashDir, filepath.Base(path)+"."+uuid.NewString())
	if err := os.Rename(path, dest); err != nil {
		return errors.IO("moving to trash", err)
	}
	return nil
}
