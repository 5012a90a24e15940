// Package backup writes chain snapshots as xz or zstd compressed text: a
// manifest line followed by one record per line in the chain file format.
package backup

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/i5heu/linkchain/internal/lineCoder"
	"github.com/i5heu/linkchain/pkg/backup"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

const manifestPrefix = "# linkchain-backup"

var (
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

var ErrCorruptBackup = errors.New("backup: corrupt snapshot")

// DefaultBackupManager implements the BackupManager interface.
type DefaultBackupManager struct {
	mu          sync.Mutex
	status      backup.BackupStatus
	log         *logrus.Logger
	compression backup.Compression
}

// NewBackupManager creates a new DefaultBackupManager instance. Snapshots are
// written with compression, xz when empty. Restore accepts both formats.
func NewBackupManager(log *logrus.Logger, compression backup.Compression) *DefaultBackupManager {
	if log == nil {
		log = logrus.New()
	}
	if compression == "" {
		compression = backup.CompressionXZ
	}
	return &DefaultBackupManager{log: log, compression: compression}
}

func (m *DefaultBackupManager) compressor(w io.Writer) (io.WriteCloser, error) {
	switch m.compression {
	case backup.CompressionZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return encoder, nil
	case backup.CompressionXZ:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return xzWriter, nil
	}
	return nil, fmt.Errorf("unknown compression %q", m.compression)
}

// decompressor picks the format from the leading magic bytes.
func decompressor(r *bufio.Reader) (io.ReadCloser, error) {
	magic, _ := r.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(magic, xzMagic):
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xzReader), nil
	case bytes.HasPrefix(magic, zstdMagic):
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	}
	return nil, errors.New("unknown snapshot format")
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// BackupData writes entries as a compressed snapshot.
func (m *DefaultBackupManager) BackupData(
	ctx context.Context,
	writer io.Writer,
	entries []types.Entry,
	scheme types.DigestScheme,
) (backup.Manifest, error) {
	m.mu.Lock()
	if m.status.BackupInProgress {
		m.mu.Unlock()
		return backup.Manifest{}, errors.New("backup: backup already in progress")
	}
	m.status.BackupInProgress = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.status.BackupInProgress = false
		m.mu.Unlock()
	}()

	manifest := backup.Manifest{
		ID:        uuid.NewString(),
		Records:   len(entries),
		Scheme:    scheme,
		CreatedAt: types.NowMillis(),
	}

	counter := &countingWriter{w: writer}
	compressed, err := m.compressor(counter)
	if err != nil {
		return backup.Manifest{}, fmt.Errorf("create %s writer: %w", m.compression, err)
	}

	if _, err := io.WriteString(compressed, formatManifest(manifest)); err != nil {
		compressed.Close()
		return backup.Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	if err := lineCoder.WriteAll(ctx, compressed, entries); err != nil {
		compressed.Close()
		return backup.Manifest{}, fmt.Errorf("write records: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return backup.Manifest{}, fmt.Errorf("close %s writer: %w", m.compression, err)
	}

	m.mu.Lock()
	m.status.LastBackup = manifest.CreatedAt
	m.status.LastBackupID = manifest.ID
	m.status.LastBackupSize = counter.n
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"backupID":    manifest.ID,
		"records":     manifest.Records,
		"bytes":       counter.n,
		"compression": string(m.compression),
		"created":     types.Millis(manifest.CreatedAt).Time(),
	}).Info("Backup written")

	return manifest, nil
}

// RestoreData reads a snapshot. The record count must match the manifest.
func (m *DefaultBackupManager) RestoreData(
	ctx context.Context,
	reader io.Reader,
) (backup.Manifest, []types.Record, error) {
	decompressed, err := decompressor(bufio.NewReader(reader))
	if err != nil {
		return backup.Manifest{}, nil, fmt.Errorf("%w: %v", ErrCorruptBackup, err)
	}
	defer decompressed.Close()

	buffered := bufio.NewReader(decompressed)
	header, err := buffered.ReadString('\n')
	if err != nil {
		return backup.Manifest{}, nil, fmt.Errorf("%w: read manifest: %v", ErrCorruptBackup, err)
	}

	manifest, err := parseManifest(header)
	if err != nil {
		return backup.Manifest{}, nil, err
	}

	// decompress fully first so checksum errors surface as corruption
	var body bytes.Buffer
	if _, err := body.ReadFrom(buffered); err != nil {
		return backup.Manifest{}, nil, fmt.Errorf("%w: %v", ErrCorruptBackup, err)
	}

	records, stats, err := lineCoder.ReadAll(ctx, &body)
	if err != nil {
		return backup.Manifest{}, nil, err
	}
	if len(records) != manifest.Records {
		return backup.Manifest{}, nil, fmt.Errorf("%w: manifest lists %d records, found %d (%d skipped)",
			ErrCorruptBackup, manifest.Records, len(records), stats.Skipped)
	}

	return manifest, records, nil
}

// GetBackupStatus returns the current backup status.
func (m *DefaultBackupManager) GetBackupStatus(
	ctx context.Context,
) (backup.BackupStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, nil
}

func formatManifest(manifest backup.Manifest) string {
	return fmt.Sprintf("%s id=%s records=%d scheme=%s created=%d\n",
		manifestPrefix, manifest.ID, manifest.Records, manifest.Scheme, manifest.CreatedAt)
}

func parseManifest(line string) (backup.Manifest, error) {
	line = strings.TrimSuffix(line, "\n")
	if !strings.HasPrefix(line, manifestPrefix+" ") {
		return backup.Manifest{}, fmt.Errorf("%w: missing manifest", ErrCorruptBackup)
	}

	var manifest backup.Manifest
	seen := 0
	for _, field := range strings.Fields(strings.TrimPrefix(line, manifestPrefix)) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return backup.Manifest{}, fmt.Errorf("%w: manifest field %q", ErrCorruptBackup, field)
		}

		var err error
		switch key {
		case "id":
			manifest.ID = value
		case "records":
			manifest.Records, err = strconv.Atoi(value)
		case "scheme":
			manifest.Scheme, err = types.ParseDigestScheme(value)
		case "created":
			manifest.CreatedAt, err = strconv.ParseUint(value, 10, 64)
		default:
			continue
		}
		if err != nil {
			return backup.Manifest{}, fmt.Errorf("%w: manifest field %s: %v", ErrCorruptBackup, key, err)
		}
		seen++
	}
	if seen != 4 {
		return backup.Manifest{}, fmt.Errorf("%w: incomplete manifest", ErrCorruptBackup)
	}

	return manifest, nil
}
