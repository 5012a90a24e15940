package types

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	TrueStr  = "true"
	FalseStr = "false"
)

// DigestScheme selects how a record's fields are turned into its hash.
// Producer and verifier of a chain must agree on the scheme.
type DigestScheme int

const (
	// SchemeDelimited hashes every field with an 8 byte length prefix using SHA-256.
	SchemeDelimited DigestScheme = iota
	// SchemeLegacy is MD5 over the fields concatenated without delimiters,
	// compatible with files written by earlier tooling.
	// ("12", "3", ...) and ("1", "23", ...) collide under this scheme.
	SchemeLegacy
)

const DefaultScheme = SchemeDelimited

func (s DigestScheme) String() string {
	switch s {
	case SchemeDelimited:
		return "sha256-delimited"
	case SchemeLegacy:
		return "md5-concat"
	}
	return "unknown"
}

// ParseDigestScheme is the inverse of DigestScheme.String.
func ParseDigestScheme(name string) (DigestScheme, error) {
	switch name {
	case "sha256-delimited", "":
		return SchemeDelimited, nil
	case "md5-concat":
		return SchemeLegacy, nil
	}
	return 0, fmt.Errorf("unknown digest scheme %q", name)
}

// Digest returns the lowercase hex hash of the four record fields.
func (s DigestScheme) Digest(position uint32, createdAt uint64, payload, predecessorHash string) string {
	switch s {
	case SchemeLegacy:
		return legacyDigest(position, createdAt, payload, predecessorHash)
	default:
		return delimitedDigest(position, createdAt, payload, predecessorHash)
	}
}

// Digest hashes with DefaultScheme.
func Digest(position uint32, createdAt uint64, payload, predecessorHash string) string {
	return DefaultScheme.Digest(position, createdAt, payload, predecessorHash)
}

func legacyDigest(position uint32, createdAt uint64, payload, predecessorHash string) string {
	var buffer bytes.Buffer
	buffer.WriteString(strconv.FormatUint(uint64(position), 10))
	buffer.WriteString(strconv.FormatUint(createdAt, 10))
	buffer.WriteString(payload)
	buffer.WriteString(predecessorHash)

	sum := md5.Sum(buffer.Bytes())
	return hex.EncodeToString(sum[:])
}

func delimitedDigest(position uint32, createdAt uint64, payload, predecessorHash string) string {
	var buffer bytes.Buffer
	for _, field := range []string{
		strconv.FormatUint(uint64(position), 10),
		strconv.FormatUint(createdAt, 10),
		payload,
		predecessorHash,
	} {
		lengthBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(lengthBytes, uint64(len(field)))
		buffer.Write(lengthBytes)
		buffer.WriteString(field)
	}

	sum := sha256.Sum256(buffer.Bytes())
	return hex.EncodeToString(sum[:])
}

type Binary bool

func (b Binary) Bytes() []byte {
	if b {
		return []byte(TrueStr)
	}
	return []byte(FalseStr)
}

func (b Binary) String() string {
	if b {
		return TrueStr
	}
	return FalseStr
}

// Millis is a creation timestamp in milliseconds since the Unix epoch.
// Clocks are not trusted, the value is only carried through hashing.
type Millis uint64

func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

func NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
