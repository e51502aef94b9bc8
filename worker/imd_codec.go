package worker

import (
	"fmt"

	"github.com/emptyOVO/peakhour/purchase"
	"google.golang.org/protobuf/encoding/protowire"
)

// Intermediate records are a repeated protobuf field:
//
//	message Record { bytes category = 1; bytes hour = 2; uint64 total = 3; }
//	message Records { repeated Record record = 1; }
//
// Category and hour travel as separate fields, so no delimiter is involved.
const (
	fieldRecord   protowire.Number = 1
	fieldCategory protowire.Number = 1
	fieldHour     protowire.Number = 2
	fieldTotal    protowire.Number = 3
)

func encodeIMD(counts []purchase.AggregatedCount) []byte {
	if len(counts) == 0 {
		return nil
	}
	// Rough pre-size to reduce reallocations for hot path.
	b := make([]byte, 0, len(counts)*24)
	var rec []byte
	for i := range counts {
		rec = rec[:0]
		rec = protowire.AppendTag(rec, fieldCategory, protowire.BytesType)
		rec = protowire.AppendString(rec, counts[i].Key.Category)
		rec = protowire.AppendTag(rec, fieldHour, protowire.BytesType)
		rec = protowire.AppendString(rec, counts[i].Key.Hour)
		rec = protowire.AppendTag(rec, fieldTotal, protowire.VarintType)
		rec = protowire.AppendVarint(rec, uint64(counts[i].Total))

		b = protowire.AppendTag(b, fieldRecord, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	return b
}

func decodeIMD(b []byte) ([]purchase.AggregatedCount, error) {
	var out []purchase.AggregatedCount
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("imd: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldRecord || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("imd: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		rec, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("imd: bad record: %w", protowire.ParseError(n))
		}
		b = b[n:]
		c, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeRecord(b []byte) (purchase.AggregatedCount, error) {
	var c purchase.AggregatedCount
	var hasHour, hasTotal bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("imd: bad record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldCategory && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return c, fmt.Errorf("imd: bad category: %w", protowire.ParseError(n))
			}
			c.Key.Category = v
			b = b[n:]
		case num == fieldHour && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return c, fmt.Errorf("imd: bad hour: %w", protowire.ParseError(n))
			}
			c.Key.Hour = v
			hasHour = true
			b = b[n:]
		case num == fieldTotal && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return c, fmt.Errorf("imd: bad total: %w", protowire.ParseError(n))
			}
			c.Total = int64(v)
			hasTotal = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return c, fmt.Errorf("imd: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !hasHour || !hasTotal || !purchase.ValidHour(c.Key.Hour) || c.Total <= 0 {
		return c, fmt.Errorf("imd: incomplete record %v", c.Key)
	}
	return c, nil
}
