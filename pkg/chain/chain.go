// Package chain holds an ordered sequence of records and validates the hash
// links between them.
package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/i5heu/linkchain/pkg/types"
)

var (
	ErrStructuralMismatch = errors.New("chain: record hash does not match its fields")
	ErrLinkageMismatch    = errors.New("chain: predecessor hash does not match previous record")
)

// FailureKind tells which check rejected a chain.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureStructural
	FailureLinkage
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureStructural:
		return "structural"
	case FailureLinkage:
		return "linkage"
	}
	return "unknown"
}

// Report is the result of Verify. Index is the first failing position in the
// sequence, or -1 when the chain is valid.
type Report struct {
	Valid bool
	Index int
	Kind  FailureKind
}

func (r Report) Err() error {
	switch r.Kind {
	case FailureStructural:
		return fmt.Errorf("record %d: %w", r.Index, ErrStructuralMismatch)
	case FailureLinkage:
		return fmt.Errorf("record %d: %w", r.Index, ErrLinkageMismatch)
	}
	return nil
}

// Chain is not safe for concurrent use.
type Chain struct {
	records []types.Record
	scheme  types.DigestScheme
}

type Option func(*Chain)

// WithScheme sets the digest scheme used to check structural validity.
func WithScheme(scheme types.DigestScheme) Option {
	return func(c *Chain) {
		c.scheme = scheme
	}
}

func New(opts ...Option) *Chain {
	c := &Chain{
		records: make([]types.Record, 0),
		scheme:  types.DefaultScheme,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Scheme() types.DigestScheme {
	return c.scheme
}

// Append adds the record to the end without any validation.
func (c *Chain) Append(record types.Record) {
	c.records = append(c.records, record)
}

func (c *Chain) Len() int {
	return len(c.records)
}

// Records returns a copy of the sequence.
func (c *Chain) Records() []types.Record {
	out := make([]types.Record, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Chain) Last() (types.Record, bool) {
	if len(c.records) == 0 {
		return types.Record{}, false
	}
	return c.records[len(c.records)-1], true
}

// Next seals the successor of the last record. The result is not appended.
func (c *Chain) Next(payload string, createdAt uint64) types.Record {
	last, ok := c.Last()
	if !ok {
		return types.Seal(0, createdAt, payload, types.GenesisPredecessor, c.scheme)
	}
	return types.Seal(last.Position+1, createdAt, payload, last.Hash, c.scheme)
}

// Validate reports whether every record after the first is structurally valid
// and linked to the record before it.
func (c *Chain) Validate() bool {
	return c.Verify().Valid
}

// Verify runs the same scan as Validate and reports where it stopped.
// The first record is not checked, it has nothing to link against.
func (c *Chain) Verify() Report {
	for i := 1; i < len(c.records); i++ {
		current := c.records[i]
		previous := c.records[i-1]

		if !current.IsStructurallyValidWith(c.scheme) {
			return Report{Valid: false, Index: i, Kind: FailureStructural}
		}

		if current.PredecessorHash != previous.Hash {
			return Report{Valid: false, Index: i, Kind: FailureLinkage}
		}
	}
	return Report{Valid: true, Index: -1, Kind: FailureNone}
}

// String renders one record per line for diagnostics.
func (c *Chain) String() string {
	var sb strings.Builder
	for _, record := range c.records {
		sb.WriteString(record.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
