package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/i5heu/linkchain/internal/lineCoder"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

// FileStore keeps the chain in a single text file, one record per line.
type FileStore struct {
	path string
	log  *logrus.Logger
}

func NewFileStore(path string, log *logrus.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (f *FileStore) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", f.path, err)
	}
	return true, nil
}

func (f *FileStore) Load(ctx context.Context) ([]types.Record, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", f.path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	records, stats, err := lineCoder.ReadAll(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if stats.Skipped > 0 || stats.FieldDefaults > 0 {
		f.log.WithFields(logrus.Fields{
			"path":          f.path,
			"lines":         stats.Lines,
			"skipped":       stats.Skipped,
			"fieldDefaults": stats.FieldDefaults,
		}).Warn("Malformed lines in chain file")
	}

	return records, nil
}

// Persist writes to a temporary file next to the target and renames it into
// place, so a failed write leaves the previous chain intact.
func (f *FileStore) Persist(ctx context.Context, entries []types.Entry) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	if err := lineCoder.WriteAll(ctx, tmp, entries); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}

	f.log.WithFields(logrus.Fields{
		"path":    f.path,
		"records": len(entries),
	}).Debug("Chain file written")

	return nil
}

func (f *FileStore) Close() error {
	return nil
}
