package storage

import (
	"context"
	"errors"

	"github.com/i5heu/linkchain/pkg/types"
)

var (
	ErrStorage  = errors.New("storage: storage unavailable")
	ErrNotFound = errors.New("storage: no persisted chain")
)

// StorageService is the collaborator that moves records between a Chain and
// persistent storage. Implementations keep storage order.
type StorageService interface {
	// Exists reports whether a persisted chain is present.
	Exists(ctx context.Context) (bool, error)
	// Load returns the stored records in storage order. Malformed entries are
	// skipped and unparsable numeric fields default to 0.
	Load(ctx context.Context) ([]types.Record, error)
	// Persist replaces the stored chain with entries, in order.
	Persist(ctx context.Context, entries []types.Entry) error
	Close() error
}
