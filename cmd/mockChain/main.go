package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/i5heu/linkchain/pkg/chain"
	"github.com/i5heu/linkchain/pkg/logging"
	"github.com/i5heu/linkchain/pkg/storage"
	"github.com/i5heu/linkchain/pkg/types"
)

var words = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel",
	"india", "juliett", "kilo", "lima", "mike", "november", "oscar", "papa",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Logger.Error("mockChain failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("mockChain", flag.ContinueOnError)
	path := fs.String("path", "hash.txt", "chain file, badger directory or sqlite database")
	backend := fs.String("backend", "file", "storage backend: file, badger or sqlite")
	count := fs.Int("count", 1000, "number of records to write")
	corrupt := fs.Int("corrupt", -1, "index of a record whose payload is altered after sealing (-1 for none)")
	digest := fs.String("digest", types.DefaultScheme.String(), "digest scheme")
	randSeed := fs.Int64("seed", time.Now().UnixNano(), "rand seed - useful for reproducible chains")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if *corrupt >= *count {
		return fmt.Errorf("corrupt index %d outside of chain with %d records", *corrupt, *count)
	}
	scheme, err := types.ParseDigestScheme(*digest)
	if err != nil {
		return err
	}

	log, err := logging.New("info", false)
	if err != nil {
		return err
	}

	records := mockRecords(rand.New(rand.NewSource(*randSeed)), *count, scheme)
	if *corrupt >= 0 {
		records[*corrupt].Payload += " (altered)"
	}

	store, err := storage.Open(storage.Config{Backend: *backend, Path: *path, Logger: log})
	if err != nil {
		return err
	}
	defer store.Close()

	startTime := time.Now()
	if err := store.Persist(context.Background(), types.Annotate(records, scheme)); err != nil {
		return err
	}

	logging.Logger.Info("Mock chain written",
		"records", len(records),
		"corrupt", *corrupt,
		"duration", time.Since(startTime).String(),
	)
	return nil
}

// mockRecords returns a correctly linked chain with random payloads.
// Timestamps advance by up to a second per record.
func mockRecords(rng *rand.Rand, count int, scheme types.DigestScheme) []types.Record {
	c := chain.New(chain.WithScheme(scheme))
	createdAt := types.NowMillis()
	for i := 0; i < count; i++ {
		parts := make([]string, 1+rng.Intn(6))
		for j := range parts {
			parts[j] = words[rng.Intn(len(words))]
		}
		c.Append(c.Next(strings.Join(parts, " "), createdAt))
		createdAt += uint64(rng.Intn(1000))
	}
	return c.Records()
}
