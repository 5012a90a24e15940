package linkchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/i5heu/linkchain/internal/bootstrap"
	"github.com/i5heu/linkchain/internal/config"
	"github.com/i5heu/linkchain/internal/testutil"
	"github.com/i5heu/linkchain/pkg/chain"
	"github.com/i5heu/linkchain/pkg/storage"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() uint64 { return 1700000000000 }

func newTestLedger(t *testing.T, backend string) (*Ledger, Config) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hash.txt")
	if backend == config.BackendBadger {
		path = filepath.Join(t.TempDir(), "badger")
	}

	conf := Config{
		Backend: backend,
		Path:    path,
		Scheme:  types.DefaultScheme,
		Logger:  testutil.QuietLogger(),
		Now:     fixedClock,
	}
	ledger, err := New(conf)
	require.NoError(t, err)
	require.NoError(t, ledger.Start(context.Background()))
	t.Cleanup(func() { ledger.Close() })

	return ledger, conf
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestLedger_NotStarted(t *testing.T) {
	ledger, err := New(Config{Path: filepath.Join(t.TempDir(), "hash.txt")})
	require.NoError(t, err)

	_, err = ledger.Append("x")
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, ledger.Persist(context.Background()), ErrNotStarted)
	assert.True(t, ledger.Validate())
}

func TestLedger_StartBootstrapsEmptyStorage(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ledger, _ := newTestLedger(t, backend)

			assert.Equal(t, bootstrap.Starter(fixedClock(), types.DefaultScheme), ledger.Records())
			assert.True(t, ledger.Validate())
		})
	}
}

func TestLedger_EmptyPersistedChainStaysEmpty(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "chain")
			store, err := storage.Open(storage.Config{Backend: backend, Path: path, Logger: testutil.QuietLogger()})
			require.NoError(t, err)
			require.NoError(t, store.Persist(context.Background(), nil))
			require.NoError(t, store.Close())

			ledger, err := New(Config{Backend: backend, Path: path, Logger: testutil.QuietLogger(), Now: fixedClock})
			require.NoError(t, err)
			require.NoError(t, ledger.Start(context.Background()))
			defer ledger.Close()

			assert.Equal(t, 0, ledger.Len())
			assert.True(t, ledger.Validate())
		})
	}
}

func TestLedger_StartTwice(t *testing.T) {
	ledger, _ := newTestLedger(t, config.BackendFile)
	require.NoError(t, ledger.Start(context.Background()))
	assert.Equal(t, 3, ledger.Len())
}

func TestLedger_AppendPersistReload(t *testing.T) {
	ledger, conf := newTestLedger(t, config.BackendFile)

	record, err := ledger.Append("Third Block")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), record.Position)
	assert.True(t, record.IsStructurallyValid())

	require.NoError(t, ledger.Persist(context.Background()))
	require.NoError(t, ledger.Close())

	reopened, err := New(conf)
	require.NoError(t, err)
	require.NoError(t, reopened.Start(context.Background()))
	defer reopened.Close()

	records := reopened.Records()
	require.Len(t, records, 4)
	assert.Equal(t, record, records[3])
	assert.True(t, reopened.Validate())
}

func TestLedger_DetectsTamperedFile(t *testing.T) {
	ledger, conf := newTestLedger(t, config.BackendFile)
	require.NoError(t, ledger.Close())

	data, err := os.ReadFile(conf.Path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "First Block", "First Blocc", 1)
	require.NoError(t, os.WriteFile(conf.Path, []byte(tampered), 0o644))

	reopened, err := New(conf)
	require.NoError(t, err)
	require.NoError(t, reopened.Start(context.Background()))
	defer reopened.Close()

	report := reopened.Verify()
	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.Index)
	assert.Equal(t, chain.FailureStructural, report.Kind)

	entries := reopened.Entries()
	require.Len(t, entries, 3)
	assert.True(t, bool(entries[0].Valid))
	assert.False(t, bool(entries[1].Valid))
}

func TestLedger_Close(t *testing.T) {
	ledger, _ := newTestLedger(t, config.BackendSQLite)

	require.NoError(t, ledger.Close())
	require.NoError(t, ledger.Close())

	_, err := ledger.Append("late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ledger.Start(context.Background()), ErrClosed)
}

func TestLedger_StorageError(t *testing.T) {
	ledger, err := New(Config{
		Path:   filepath.Join(t.TempDir(), "missing", "hash.txt"),
		Logger: testutil.QuietLogger(),
	})
	require.NoError(t, err)

	err = ledger.Start(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorage)
}

func TestLedger_ConcurrentAppend(t *testing.T) {
	ledger, _ := newTestLedger(t, config.BackendFile)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Append("block")
			assert.NoError(t, err)
			ledger.Validate()
		}()
	}
	wg.Wait()

	assert.Equal(t, 23, ledger.Len())
	assert.True(t, ledger.Validate())
}

func TestLedger_AnnotateParallel(t *testing.T) {
	ledger, _ := newTestLedger(t, config.BackendFile)

	records := bootstrap.Generate(make([]string, parallelThreshold+17), fixedClock(), types.DefaultScheme)
	records[100].Payload = "tampered"
	records[parallelThreshold+3].Payload = "tampered"

	ledger.mu.RLock()
	entries := ledger.annotate(records)
	ledger.mu.RUnlock()

	assert.Equal(t, types.Annotate(records, types.DefaultScheme), entries)
	assert.False(t, bool(entries[100].Valid))
	assert.False(t, bool(entries[parallelThreshold+3].Valid))
	assert.True(t, bool(entries[101].Valid))
}

func TestLedger_LargeChain(t *testing.T) {
	testutil.RequireLong(t)

	for _, backend := range []string{config.BackendFile, config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ledger, conf := newTestLedger(t, backend)
			for i := 0; i < 20000; i++ {
				_, err := ledger.Append("block")
				require.NoError(t, err)
			}
			require.NoError(t, ledger.Persist(context.Background()))
			require.NoError(t, ledger.Close())

			reopened, err := New(conf)
			require.NoError(t, err)
			require.NoError(t, reopened.Start(context.Background()))
			defer reopened.Close()

			assert.Equal(t, 20003, reopened.Len())
			assert.True(t, reopened.Validate())
		})
	}
}
