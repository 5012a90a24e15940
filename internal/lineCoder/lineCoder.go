// Package lineCoder reads and writes records as comma separated text, one
// record per line:
//
//	position,created_at,payload,predecessor_hash,hash,valid
//
// Lines are split on every comma, so files written by earlier tooling decode
// unchanged. A record with a field containing a backslash, comma, carriage
// return or line feed is written as an escaped line instead: a leading
// backslash, then the fields with those four characters written as \\, \,,
// \r and \n. Escaped lines decode back to the exact bytes.
package lineCoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/i5heu/linkchain/pkg/types"
)

const (
	minFields     = 5
	escapedMarker = '\\'
	specialChars  = "\\,\r\n"
)

var errBadEscape = errors.New("lineCoder: invalid escape sequence")

// Stats describes what the decoder had to repair or drop.
type Stats struct {
	Lines         int // non-empty lines read, including skipped ones
	Skipped       int // lines with fewer than five fields or a broken escape
	FieldDefaults int // position or timestamp fields replaced by 0
}

// ReadAll decodes records in storage order. Empty lines are ignored, lines
// with missing fields are skipped, non numeric position or timestamp fields
// become 0 and the record is kept.
func ReadAll(ctx context.Context, r io.Reader) ([]types.Record, Stats, error) {
	reader := bufio.NewReader(r)

	var stats Stats
	records := make([]types.Record, 0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("read line %d: %w", stats.Lines+1, err)
		}
		atEOF := err != nil

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			stats.Lines++

			fields, splitErr := SplitLine(line)
			record, defaults, ok := DecodeFields(fields)
			if splitErr != nil || !ok {
				stats.Skipped++
			} else {
				stats.FieldDefaults += defaults
				records = append(records, record)
			}
		}

		if atEOF {
			break
		}
	}

	return records, stats, nil
}

// SplitLine splits one line without its terminator into fields.
func SplitLine(line string) ([]string, error) {
	if line == "" || line[0] != escapedMarker {
		return strings.Split(line, ","), nil
	}

	fields := make([]string, 0, 6)
	var field strings.Builder
	for i := 1; i < len(line); i++ {
		c := line[i]
		switch c {
		case ',':
			fields = append(fields, field.String())
			field.Reset()
			continue
		case '\\':
		default:
			field.WriteByte(c)
			continue
		}

		i++
		if i == len(line) {
			return nil, errBadEscape
		}
		switch line[i] {
		case '\\':
			field.WriteByte('\\')
		case ',':
			field.WriteByte(',')
		case 'r':
			field.WriteByte('\r')
		case 'n':
			field.WriteByte('\n')
		default:
			return nil, errBadEscape
		}
	}
	return append(fields, field.String()), nil
}

// JoinLine is the inverse of SplitLine. The result has no terminator.
func JoinLine(fields []string) string {
	escape := false
	for _, field := range fields {
		if strings.ContainsAny(field, specialChars) {
			escape = true
			break
		}
	}
	if !escape {
		return strings.Join(fields, ",")
	}

	var sb strings.Builder
	sb.WriteByte(escapedMarker)
	for i, field := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		for j := 0; j < len(field); j++ {
			switch c := field[j]; c {
			case '\\':
				sb.WriteString(`\\`)
			case ',':
				sb.WriteString(`\,`)
			case '\r':
				sb.WriteString(`\r`)
			case '\n':
				sb.WriteString(`\n`)
			default:
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// DecodeFields builds a record from split line fields. It reports how many
// numeric fields fell back to 0 and false when fields are missing.
func DecodeFields(fields []string) (types.Record, int, bool) {
	if len(fields) < minFields {
		return types.Record{}, 0, false
	}

	defaults := 0
	position, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		position = 0
		defaults++
	}
	createdAt, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		createdAt = 0
		defaults++
	}

	return types.NewRecord(uint32(position), createdAt, fields[2], fields[3], fields[4]), defaults, true
}

// WriteAll writes one line per entry with the validity flag as sixth field.
func WriteAll(ctx context.Context, w io.Writer, entries []types.Entry) error {
	writer := bufio.NewWriter(w)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := writer.WriteString(JoinLine(EncodeFields(entry)) + "\n"); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return writer.Flush()
}

func EncodeFields(entry types.Entry) []string {
	return []string{
		strconv.FormatUint(uint64(entry.Position), 10),
		strconv.FormatUint(entry.CreatedAt, 10),
		entry.Payload,
		entry.PredecessorHash,
		entry.Hash,
		entry.Valid.String(),
	}
}
