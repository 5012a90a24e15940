// Package bootstrap creates starter chains for empty storage.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/i5heu/linkchain/pkg/chain"
	"github.com/i5heu/linkchain/pkg/storage"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

// StarterPayloads are the payloads of the chain written into empty storage.
var StarterPayloads = []string{"Genesis Block", "First Block", "Second Block"}

// Generate returns a correctly linked chain of payloads, all stamped with createdAt.
func Generate(payloads []string, createdAt uint64, scheme types.DigestScheme) []types.Record {
	c := chain.New(chain.WithScheme(scheme))
	for _, payload := range payloads {
		c.Append(c.Next(payload, createdAt))
	}
	return c.Records()
}

// Starter returns the three record starter chain.
func Starter(createdAt uint64, scheme types.DigestScheme) []types.Record {
	return Generate(StarterPayloads, createdAt, scheme)
}

// Ensure writes the starter chain when the store holds no chain yet. It
// reports whether it wrote one.
func Ensure(ctx context.Context, store storage.StorageService, scheme types.DigestScheme, now func() uint64, log *logrus.Logger) (bool, error) {
	exists, err := store.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if now == nil {
		now = types.NowMillis
	}

	records := Starter(now(), scheme)
	if err := store.Persist(ctx, types.Annotate(records, scheme)); err != nil {
		return false, fmt.Errorf("persist starter chain: %w", err)
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"records": len(records),
			"scheme":  scheme.String(),
		}).Info("No chain found, created starter chain")
	}

	return true, nil
}
