// Package keyValStore persists a chain in badger. Every Persist writes a new
// generation of records and then switches the head key to it in one
// transaction, so readers see either the old or the new chain.
package keyValStore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/i5heu/linkchain/internal/binaryCoder"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	headKey        = "chain:head"
	generationBase = "chain:gen:"
)

var ErrNoChain = errors.New("keyValStore: no chain stored")

var log *logrus.Logger

type StoreConfig struct {
	Path          string // directory of the badger database
	InMemory      bool   // keep everything in memory, Path is ignored
	MinimumFreeMB uint64
	Logger        *logrus.Logger
}

type KeyValStore struct {
	config       StoreConfig
	badgerDB     *badger.DB
	readCounter  uint64
	writeCounter uint64
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	log = config.Logger

	err := config.checkConfig()
	if err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // Set max size of each value log file to 100MB
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	if !config.InMemory {
		// informational only
		_ = displayDiskUsage(config.Path)
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
	}, nil
}

func generationPrefix(generation uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x:", generationBase, generation))
}

func recordKey(generation uint64, sequence int) []byte {
	return append(generationPrefix(generation), []byte(fmt.Sprintf("%020d", sequence))...)
}

func (k *KeyValStore) head(txn *badger.Txn) (uint64, bool, error) {
	item, err := txn.Get([]byte(headKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var generation uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("invalid head length %d", len(val))
		}
		generation = binary.BigEndian.Uint64(val)
		return nil
	})
	return generation, err == nil, err
}

func (k *KeyValStore) Exists(ctx context.Context) (bool, error) {
	atomic.AddUint64(&k.readCounter, 1)

	var exists bool
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		var err error
		_, exists, err = k.head(txn)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("read head: %w", err)
	}
	return exists, nil
}

// Load returns the records of the current generation in sequence order.
// Values that fail to decode are skipped.
func (k *KeyValStore) Load(ctx context.Context) ([]types.Record, error) {
	records := make([]types.Record, 0)
	skipped := 0

	err := k.badgerDB.View(func(txn *badger.Txn) error {
		generation, ok, err := k.head(txn)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoChain
		}

		prefix := generationPrefix(generation)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			atomic.AddUint64(&k.readCounter, 1)

			err := it.Item().Value(func(val []byte) error {
				record, _, err := binaryCoder.ByteToRecord(val)
				if err != nil {
					log.WithFields(logrus.Fields{
						"key": string(it.Item().Key()),
					}).Warnf("Skipping undecodable record: %v", err)
					skipped++
					return nil
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		log.WithFields(logrus.Fields{
			"loaded":  len(records),
			"skipped": skipped,
		}).Warn("Malformed records in store")
	}

	return records, nil
}

// Persist writes entries as a new generation, switches the head to it and
// drops the previous generation.
func (k *KeyValStore) Persist(ctx context.Context, entries []types.Entry) error {
	var previous uint64
	var hadPrevious bool
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		var err error
		previous, hadPrevious, err = k.head(txn)
		return err
	})
	if err != nil {
		return fmt.Errorf("read head: %w", err)
	}

	next := uint64(0)
	if hadPrevious {
		next = previous + 1
	}

	if err := k.writeGeneration(ctx, next, entries); err != nil {
		_ = k.badgerDB.DropPrefix(generationPrefix(next))
		return err
	}

	headValue := make([]byte, 8)
	binary.BigEndian.PutUint64(headValue, next)
	err = k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(headKey), headValue)
	})
	if err != nil {
		return fmt.Errorf("switch head: %w", err)
	}
	atomic.AddUint64(&k.writeCounter, 1)

	if hadPrevious {
		if err := k.badgerDB.DropPrefix(generationPrefix(previous)); err != nil {
			log.WithFields(logrus.Fields{
				"generation": previous,
			}).Warnf("Error dropping old generation: %v", err)
		}
	}

	log.WithFields(logrus.Fields{
		"generation": next,
		"records":    len(entries),
	}).Debug("Chain persisted")

	return nil
}

func (k *KeyValStore) writeGeneration(ctx context.Context, generation uint64, entries []types.Entry) error {
	wb := k.badgerDB.NewWriteBatch()
	defer wb.Cancel()

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		atomic.AddUint64(&k.writeCounter, 1)
		err := wb.Set(recordKey(generation, i), binaryCoder.RecordToByte(entry.Record, bool(entry.Valid)))
		if err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush generation %d: %w", generation, err)
	}
	return nil
}

// Counters returns the number of read and write operations since opening.
func (k *KeyValStore) Counters() (reads, writes uint64) {
	return atomic.LoadUint64(&k.readCounter), atomic.LoadUint64(&k.writeCounter)
}

// Keys returns every key in the database, for inspection tools.
func (k *KeyValStore) Keys() ([]string, error) {
	var keys []string
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (k *KeyValStore) Close() error {
	if err := k.Clean(); err != nil {
		log.Warnf("Error cleaning store: %v", err)
	}
	return k.badgerDB.Close()
}

func (k *KeyValStore) Clean() error {
	if k.config.InMemory {
		return nil
	}

	err := k.badgerDB.Sync()
	if err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	// flatten the db
	err = k.badgerDB.Flatten(runtime.NumCPU()) // The parameter is the number of concurrent compactions
	if err != nil {
		return fmt.Errorf("error flattening db: %w", err)
	}

	// clean badgerDB
	err = k.badgerDB.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("error cleaning db: %w", err)
	}

	return nil
}
