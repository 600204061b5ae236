package provider

import (
	"context"

	"github.com/sweeply/sweeply/internal/model"
)

// Provider is a backup sink. The provider set is closed: localnas,
// icloud, remote and ipfs. All providers share the same operations;
// selection policy lives in the coordinator, not here.
type Provider interface {
	// Name is the stable provider identifier used in records and
	// configuration.
	Name() string
	// Available reports whether the provider can accept an upload of
	// the given size right now. The returned error explains why not:
	// ProviderUnavailable for missing mounts/credentials,
	// QuotaExceeded when size is over the provider's limit.
	Available(ctx context.Context, size int64) error
	// Upload stores the blob under the given object name.
	Upload(ctx context.Context, name string, blob []byte) (*model.BackupRecord, error)
	// List returns the records this provider currently holds.
	List(ctx context.Context) ([]*model.BackupRecord, error)
	// Delete removes one stored blob.
	Delete(ctx context.Context, record *model.BackupRecord) error
	// Fetch retrieves a stored blob.
	Fetch(ctx context.Context, record *model.BackupRecord) ([]byte, error)
}
