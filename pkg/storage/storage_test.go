package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/i5heu/linkchain/internal/config"
	"github.com/i5heu/linkchain/internal/testutil"
	"github.com/i5heu/linkchain/pkg/chain"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var allBackends = []string{config.BackendFile, config.BackendBadger, config.BackendSQLite}

func anyPayload() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.String(),
		rapid.StringOf(rapid.SampledFrom([]rune{'x', ',', '"', '\\', '\r', '\n', ' '})),
		rapid.Map(rapid.SliceOf(rapid.Byte()), func(b []byte) string { return string(b) }),
	)
}

func buildChain(n int) *chain.Chain {
	c := chain.New()
	for i := 0; i < n; i++ {
		c.Append(c.Next("record, number "+string(rune('a'+i)), uint64(1700000000000+i)))
	}
	return c
}

func openBackend(t *testing.T, backend string) StorageService {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "hash.txt")
	switch backend {
	case config.BackendBadger:
		path = filepath.Join(dir, "badger")
	case config.BackendSQLite:
		path = filepath.Join(dir, "chain.db")
	}

	store, err := Open(Config{Backend: backend, Path: path, Logger: testutil.QuietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRoundTrip_AllBackends(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := openBackend(t, backend)

			exists, err := store.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, exists)

			original := buildChain(6)
			require.True(t, original.Validate())
			require.NoError(t, store.Persist(ctx, types.Annotate(original.Records(), original.Scheme())))

			exists, err = store.Exists(ctx)
			require.NoError(t, err)
			assert.True(t, exists)

			records, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, original.Records(), records)

			reloaded := chain.New()
			for _, r := range records {
				reloaded.Append(r)
			}
			assert.True(t, reloaded.Validate())
		})
	}
}

func TestRoundTrip_ArbitraryPayloads(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend)

			rapid.Check(t, func(t *rapid.T) {
				ctx := context.Background()
				scheme := rapid.SampledFrom([]types.DigestScheme{types.SchemeDelimited, types.SchemeLegacy}).Draw(t, "scheme")

				original := chain.New(chain.WithScheme(scheme))
				n := rapid.IntRange(0, 8).Draw(t, "n")
				for i := 0; i < n; i++ {
					original.Append(original.Next(anyPayload().Draw(t, "payload"), rapid.Uint64().Draw(t, "createdAt")))
				}

				if err := store.Persist(ctx, types.Annotate(original.Records(), scheme)); err != nil {
					t.Fatalf("persist: %v", err)
				}
				records, err := store.Load(ctx)
				if err != nil {
					t.Fatalf("load: %v", err)
				}

				want := original.Records()
				if len(records) != len(want) {
					t.Fatalf("loaded %d records, want %d", len(records), len(want))
				}
				reloaded := chain.New(chain.WithScheme(scheme))
				for i, r := range records {
					if r != want[i] {
						t.Fatalf("record %d: got %q, want %q", i, r.String(), want[i].String())
					}
					reloaded.Append(r)
				}
				if !reloaded.Validate() {
					t.Fatalf("reloaded chain is invalid")
				}
			})
		})
	}
}

func TestExists_AfterEmptyPersist(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := openBackend(t, backend)

			require.NoError(t, store.Persist(ctx, nil))

			exists, err := store.Exists(ctx)
			require.NoError(t, err)
			assert.True(t, exists)

			records, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestLoad_MissingChainIsNotFound(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend)
			_, err := store.Load(context.Background())
			assert.ErrorIs(t, err, ErrStorage)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStore_NonNumericPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hash.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc,5,payload,0,hash,true\nshort,line\n"), 0o644))

	store, err := Open(Config{Path: path, Logger: testutil.QuietLogger()})
	require.NoError(t, err)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.NewRecord(0, 5, "payload", "0", "hash"), records[0])

	c := chain.New()
	for _, r := range records {
		c.Append(r)
	}
	assert.Equal(t, 1, c.Len())
}

func TestFileStore_PersistWritesValidityFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hash.txt")
	store := NewFileStore(path, testutil.QuietLogger())

	good := types.Seal(0, 1, "a", types.GenesisPredecessor, types.DefaultScheme)
	bad := types.NewRecord(1, 2, "b", good.Hash, "broken")
	require.NoError(t, store.Persist(context.Background(), types.Annotate([]types.Record{good, bad}, types.DefaultScheme)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"0,1,a,0,"+good.Hash+",true\n"+
			"1,2,b,"+good.Hash+",broken,false\n",
		string(data))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files must be cleaned up")
}

func TestFileStore_PersistIntoMissingDirectory(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "missing", "hash.txt"), Logger: testutil.QuietLogger()})
	require.NoError(t, err)

	err = store.Persist(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "tape", Path: "x"})
	assert.ErrorIs(t, err, ErrStorage)
}
