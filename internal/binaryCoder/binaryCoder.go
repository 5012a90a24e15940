// Package binaryCoder encodes records in the protobuf wire format. The layout
// matches a message with fields position=1, created_at=2, payload=3,
// predecessor_hash=4, hash=5 and valid=6.
package binaryCoder

import (
	"errors"
	"fmt"

	"github.com/i5heu/linkchain/pkg/types"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldPosition        protowire.Number = 1
	fieldCreatedAt       protowire.Number = 2
	fieldPayload         protowire.Number = 3
	fieldPredecessorHash protowire.Number = 4
	fieldHash            protowire.Number = 5
	fieldValid           protowire.Number = 6
)

var ErrMalformed = errors.New("binaryCoder: malformed record")

func RecordToByte(record types.Record, valid bool) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPosition, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(record.Position))
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, record.CreatedAt)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendString(b, record.Payload)
	b = protowire.AppendTag(b, fieldPredecessorHash, protowire.BytesType)
	b = protowire.AppendString(b, record.PredecessorHash)
	b = protowire.AppendTag(b, fieldHash, protowire.BytesType)
	b = protowire.AppendString(b, record.Hash)
	b = protowire.AppendTag(b, fieldValid, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(valid))
	return b
}

// ByteToRecord decodes a record and its stored validity flag. Unknown fields
// are skipped.
func ByteToRecord(b []byte) (types.Record, bool, error) {
	var record types.Record
	var valid bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return types.Record{}, false, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldPosition && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			record.Position = uint32(v)
		case num == fieldCreatedAt && typ == protowire.VarintType:
			record.CreatedAt, n = protowire.ConsumeVarint(b)
		case num == fieldPayload && typ == protowire.BytesType:
			record.Payload, n = consumeString(b)
		case num == fieldPredecessorHash && typ == protowire.BytesType:
			record.PredecessorHash, n = consumeString(b)
		case num == fieldHash && typ == protowire.BytesType:
			record.Hash, n = consumeString(b)
		case num == fieldValid && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			valid = protowire.DecodeBool(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return types.Record{}, false, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	return record, valid, nil
}

func consumeString(b []byte) (string, int) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", n
	}
	return string(v), n
}
