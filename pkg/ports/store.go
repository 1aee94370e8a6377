package ports

import (
	"context"

	"github.com/aretw0/traverse/pkg/domain"
)

// SnapshotStore persists entry sequences so hosts can restore navigation
// across process boundaries. The engine core never touches a store; the
// session manager and hosts do.
type SnapshotStore interface {
	// Save persists the snapshot under the given ID.
	Save(ctx context.Context, id string, snap *domain.Snapshot) error

	// Load retrieves the snapshot for the given ID.
	// Returns domain.ErrSnapshotNotFound if it does not exist.
	Load(ctx context.Context, id string) (*domain.Snapshot, error)

	// Delete removes the snapshot for the given ID.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of stored snapshots.
	List(ctx context.Context) ([]string, error)
}
