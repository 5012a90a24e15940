package types

import (
	"fmt"
)

// GenesisPredecessor is the predecessor hash carried by the first record of a chain.
const GenesisPredecessor = "0"

// Record is a single link of the chain. The hash is stored as given and only
// checked on demand, so records can be built from untrusted persisted data.
type Record struct {
	Position        uint32 // ordinal slot in the chain, starting at 0
	CreatedAt       uint64 // milliseconds since the Unix epoch, informational only
	Payload         string
	PredecessorHash string // hash of the previous record or GenesisPredecessor
	Hash            string // hash over Position, CreatedAt, Payload and PredecessorHash
}

func NewRecord(position uint32, createdAt uint64, payload, predecessorHash, hash string) Record {
	return Record{
		Position:        position,
		CreatedAt:       createdAt,
		Payload:         payload,
		PredecessorHash: predecessorHash,
		Hash:            hash,
	}
}

// Seal builds a record whose hash is computed with the given scheme.
func Seal(position uint32, createdAt uint64, payload, predecessorHash string, scheme DigestScheme) Record {
	return NewRecord(position, createdAt, payload, predecessorHash,
		scheme.Digest(position, createdAt, payload, predecessorHash))
}

// ComputeHash recomputes the record hash from its own fields.
func (r Record) ComputeHash(scheme DigestScheme) string {
	return scheme.Digest(r.Position, r.CreatedAt, r.Payload, r.PredecessorHash)
}

// IsStructurallyValid reports whether the stored hash matches the fields
// under DefaultScheme.
func (r Record) IsStructurallyValid() bool {
	return r.IsStructurallyValidWith(DefaultScheme)
}

func (r Record) IsStructurallyValidWith(scheme DigestScheme) bool {
	return r.Hash == r.ComputeHash(scheme)
}

func (r Record) String() string {
	return fmt.Sprintf(
		"Record { position: %d, created_at: %d, payload: %s, predecessor_hash: %s, hash: %s }",
		r.Position, r.CreatedAt, r.Payload, r.PredecessorHash, r.Hash,
	)
}

// Entry is a record as handed to storage, with its structural validity
// computed at write time. Valid is diagnostic output and never read back
// into the chain.
type Entry struct {
	Record
	Valid Binary
}

// Annotate pairs every record with its structural validity under scheme.
func Annotate(records []Record, scheme DigestScheme) []Entry {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{Record: r, Valid: Binary(r.IsStructurallyValidWith(scheme))}
	}
	return entries
}
