// Package purchase holds the peak-hour aggregation core: parsing transaction
// lines, deriving (category, hour) keys, summing counts and tracking the
// per-category maximum.
package purchase

import (
	"strings"
)

const (
	fieldSep       = ","
	minFields      = 7
	categoryField  = 2
	timestampField = 6
)

// SkipReason explains why a raw line produced no Transaction or no key.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipEmptyLine
	SkipMalformedRecord
	SkipMalformedTimestamp
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipEmptyLine:
		return "empty line"
	case SkipMalformedRecord:
		return "malformed input line"
	case SkipMalformedTimestamp:
		return "malformed timestamp"
	default:
		return "unknown"
	}
}

// Transaction is the structured view of one valid input line.
type Transaction struct {
	Category  string
	Timestamp string
}

// ParseLine splits a CSV transaction line. Category is field 2 and the
// timestamp field 6; extra fields are ignored.
func ParseLine(line string) (Transaction, SkipReason) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Transaction{}, SkipEmptyLine
	}
	fields := strings.SplitN(line, fieldSep, minFields+1)
	if len(fields) < minFields {
		return Transaction{}, SkipMalformedRecord
	}
	return Transaction{
		Category:  fields[categoryField],
		Timestamp: fields[timestampField],
	}, SkipNone
}
