package linkchain

import (
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

// Config configures a Ledger.
type Config struct {
	// Backend selects the storage backend: "file", "badger" or "sqlite".
	Backend string
	// Path is the chain file, badger directory or sqlite database.
	Path string
	// MinimumFreeMB is a free-space threshold checked by the badger backend.
	MinimumFreeMB uint64
	// Scheme is the digest scheme records are sealed and checked with.
	Scheme types.DigestScheme
	// Logger is an optional logrus logger. If nil, logrus.New() is used.
	Logger *logrus.Logger
	// Workers sizes the pool that checks long chains before persisting. Zero means one per CPU.
	Workers int
	// Now returns the creation timestamp for new records. Defaults to wall clock milliseconds.
	Now func() uint64
}
