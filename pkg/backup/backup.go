// Package backup defines interfaces for chain snapshot operations.
package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/i5heu/linkchain/pkg/types"
)

// Compression is the container format of a snapshot.
type Compression string

const (
	CompressionXZ   Compression = "xz"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts "xz", "zstd" or "" (xz).
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionXZ, "":
		return CompressionXZ, nil
	case CompressionZstd:
		return CompressionZstd, nil
	}
	return "", fmt.Errorf("unknown backup compression %q", name)
}

// BackupManager writes and reads compressed chain snapshots.
type BackupManager interface {
	// BackupData writes a snapshot of entries to writer.
	BackupData(ctx context.Context, writer io.Writer, entries []types.Entry, scheme types.DigestScheme) (Manifest, error)

	// RestoreData reads a snapshot and returns its records in order.
	RestoreData(ctx context.Context, reader io.Reader) (Manifest, []types.Record, error)

	// GetBackupStatus returns the current backup status.
	GetBackupStatus(ctx context.Context) (BackupStatus, error)
}

// Manifest is the header line of a snapshot.
type Manifest struct {
	// ID is a random identifier of the snapshot.
	ID string

	// Records is the number of records in the snapshot.
	Records int

	// Scheme is the digest scheme the records were hashed with.
	Scheme types.DigestScheme

	// CreatedAt is the Unix timestamp in milliseconds of the snapshot.
	CreatedAt uint64
}

// BackupStatus represents the status of backup operations.
type BackupStatus struct {
	// LastBackup is the Unix timestamp in milliseconds of the last successful backup.
	LastBackup uint64

	// LastBackupID is the manifest ID of the last successful backup.
	LastBackupID string

	// LastBackupSize is the compressed size of the last backup in bytes.
	LastBackupSize int64

	// BackupInProgress indicates if a backup is currently running.
	BackupInProgress bool
}
