// Package sqlStore persists a chain in a SQLite database file.
package sqlStore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS records (
	seq              INTEGER PRIMARY KEY,
	position         TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	payload          BLOB NOT NULL,
	predecessor_hash BLOB NOT NULL,
	hash             BLOB NOT NULL,
	valid            INTEGER NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS chain_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`}

// persistedKey marks a database that has been persisted to, even with an
// empty chain.
const persistedKey = "persisted_at"

// SQLStore wraps the sql.DB holding the records table.
type SQLStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// Open opens or creates the database at path. Use ":memory:" for tests.
func Open(path string, log *logrus.Logger) (*SQLStore, error) {
	if log == nil {
		log = logrus.New()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	for _, statement := range schema {
		if _, err := db.Exec(statement); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLStore{db: db, log: log}, nil
}

// Exists reports whether a chain was ever persisted. Databases written
// before the marker existed count as persisted when they hold records.
func (s *SQLStore) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM chain_meta WHERE key = ?) OR EXISTS(SELECT 1 FROM records)",
		persistedKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query records: %w", err)
	}
	return exists, nil
}

// Load reads records ordered by sequence. Numeric columns are stored as text
// so unparsable values fall back to 0 the same way the text file does. Text
// fields are blobs and come back byte for byte.
func (s *SQLStore) Load(ctx context.Context) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT position, created_at, payload, predecessor_hash, hash FROM records ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]types.Record, 0)
	defaults := 0
	for rows.Next() {
		var position, createdAt string
		var payload, predecessorHash, hash []byte
		if err := rows.Scan(&position, &createdAt, &payload, &predecessorHash, &hash); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		p, err := strconv.ParseUint(position, 10, 32)
		if err != nil {
			p = 0
			defaults++
		}
		c, err := strconv.ParseUint(createdAt, 10, 64)
		if err != nil {
			c = 0
			defaults++
		}

		records = append(records, types.NewRecord(uint32(p), c, string(payload), string(predecessorHash), string(hash)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	if defaults > 0 {
		s.log.WithFields(logrus.Fields{
			"records":       len(records),
			"fieldDefaults": defaults,
		}).Warn("Unparsable numeric fields in database")
	}

	return records, nil
}

// Persist replaces all rows in one transaction.
func (s *SQLStore) Persist(ctx context.Context, entries []types.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO records (seq, position, created_at, payload, predecessor_hash, hash, valid) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			i,
			strconv.FormatUint(uint64(entry.Position), 10),
			strconv.FormatUint(entry.CreatedAt, 10),
			[]byte(entry.Payload),
			[]byte(entry.PredecessorHash),
			[]byte(entry.Hash),
			bool(entry.Valid),
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO chain_meta (key, value) VALUES (?, ?)",
		persistedKey, strconv.FormatUint(types.NowMillis(), 10))
	if err != nil {
		return fmt.Errorf("mark persisted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.WithField("records", len(entries)).Debug("Chain persisted")
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
