/*
Package linkchain keeps a hash-linked record chain in local storage: it loads
the persisted records, validates the links between them and writes them back.
*/
package linkchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/i5heu/linkchain/internal/bootstrap"
	"github.com/i5heu/linkchain/pkg/chain"
	"github.com/i5heu/linkchain/pkg/storage"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/i5heu/linkchain/pkg/workerPool"
	"github.com/sirupsen/logrus"
)

// chains shorter than this are annotated without the worker pool
const parallelThreshold = 4096

var (
	ErrNotStarted = errors.New("linkchain: ledger not started")
	ErrClosed     = errors.New("linkchain: ledger closed")
)

// Ledger owns one chain and the storage it is loaded from. Unlike Chain it
// is safe for concurrent use.
type Ledger struct {
	log    *logrus.Entry
	config Config

	mu      sync.RWMutex
	store   storage.StorageService
	chain   *chain.Chain
	wp      *workerPool.WorkerPool
	started bool
	closed  bool
}

// New constructs a ledger. New does not touch storage; call Start.
func New(conf Config) (*Ledger, error) {
	if conf.Path == "" {
		return nil, fmt.Errorf("linkchain: no storage path configured")
	}
	if conf.Logger == nil {
		conf.Logger = logrus.New()
	}
	if conf.Now == nil {
		conf.Now = types.NowMillis
	}

	return &Ledger{
		log: conf.Logger.WithFields(logrus.Fields{
			"run":    uuid.NewString(),
			"scheme": conf.Scheme.String(),
		}),
		config: conf,
		chain:  chain.New(chain.WithScheme(conf.Scheme)),
		wp:     workerPool.NewWorkerPool(workerPool.Config{WorkerCount: conf.Workers}),
	}, nil
}

// Start opens storage, writes the starter chain if none exists and loads the
// persisted records. Calling Start again has no effect.
func (l *Ledger) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.started {
		return nil
	}

	store, err := storage.Open(storage.Config{
		Backend:       l.config.Backend,
		Path:          l.config.Path,
		MinimumFreeMB: l.config.MinimumFreeMB,
		Logger:        l.config.Logger,
	})
	if err != nil {
		return err
	}

	if _, err := bootstrap.Ensure(ctx, store, l.config.Scheme, l.config.Now, l.config.Logger); err != nil {
		store.Close()
		return err
	}

	records, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return err
	}

	c := chain.New(chain.WithScheme(l.config.Scheme))
	for _, record := range records {
		c.Append(record)
	}

	l.store = store
	l.chain = c
	l.started = true

	l.log.WithFields(logrus.Fields{
		"path":    l.config.Path,
		"backend": l.config.Backend,
		"records": c.Len(),
	}).Info("Chain loaded")

	return nil
}

func (l *Ledger) ready() error {
	if l.closed {
		return ErrClosed
	}
	if !l.started {
		return ErrNotStarted
	}
	return nil
}

// Append seals payload as the successor of the last record and appends it.
func (l *Ledger) Append(payload string) (types.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ready(); err != nil {
		return types.Record{}, err
	}

	record := l.chain.Next(payload, l.config.Now())
	l.chain.Append(record)

	l.log.WithFields(logrus.Fields{
		"position": record.Position,
		"hash":     record.Hash,
	}).Debug("Record appended")

	return record, nil
}

// Validate reports whether the loaded chain is intact.
func (l *Ledger) Validate() bool {
	return l.Verify().Valid
}

// Verify validates the chain and logs where it is broken.
func (l *Ledger) Verify() chain.Report {
	l.mu.RLock()
	defer l.mu.RUnlock()

	report := l.chain.Verify()
	if !report.Valid {
		l.log.WithFields(logrus.Fields{
			"index": report.Index,
			"kind":  report.Kind.String(),
		}).Warn("Chain validation failed")
	}
	return report
}

// Records returns a copy of the loaded records.
func (l *Ledger) Records() []types.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Records()
}

// Entries returns the records with their structural validity.
func (l *Ledger) Entries() []types.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.annotate(l.chain.Records())
}

// annotate computes the structural validity of every record, splitting
// long chains into batches checked on the worker pool.
func (l *Ledger) annotate(records []types.Record) []types.Entry {
	scheme := l.chain.Scheme()
	if l.closed || len(records) < parallelThreshold {
		return types.Annotate(records, scheme)
	}

	entries := make([]types.Entry, len(records))
	batch := (len(records) + l.wp.WorkerCount() - 1) / l.wp.WorkerCount()
	room := l.wp.CreateRoom()
	for start := 0; start < len(records); start += batch {
		start, end := start, min(start+batch, len(records))
		room.NewTask(func() {
			copy(entries[start:end], types.Annotate(records[start:end], scheme))
		})
	}
	room.Wait()

	return entries
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Len()
}

// String is the diagnostic dump of the chain, one record per line.
func (l *Ledger) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.String()
}

// Persist writes the chain back with each record's validity recomputed.
func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.ready(); err != nil {
		return err
	}

	entries := l.annotate(l.chain.Records())
	if err := l.store.Persist(ctx, entries); err != nil {
		return err
	}

	l.log.WithField("records", len(entries)).Debug("Chain persisted")
	return nil
}

// Close releases storage. It is safe to call more than once.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.wp.Close()

	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
