package testutil

import (
	"flag"
	"io"
	"strconv"
	"testing"

	"github.com/i5heu/linkchain/pkg/chain"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

var RunLong = flag.Bool("long", false, "run long/heavy tests")

func RequireLong(t *testing.T) {
	t.Helper()
	if !*RunLong {
		t.Skip("skipping long test (use -long to enable)")
	}
}

// SealedRecords returns a correctly linked chain of n records with payloads
// "block 0", "block 1" and so on.
func SealedRecords(n int, scheme types.DigestScheme) []types.Record {
	c := chain.New(chain.WithScheme(scheme))
	for i := 0; i < n; i++ {
		c.Append(c.Next("block "+strconv.Itoa(i), 1700000000000+uint64(i)))
	}
	return c.Records()
}

// QuietLogger discards everything below error level.
func QuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}
