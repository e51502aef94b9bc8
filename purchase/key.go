package purchase

import (
	"fmt"
	"time"
)

// TimestampLayout is the only accepted transaction time format. No timezone
// conversion is applied: the hour is the wall-clock hour as written.
const TimestampLayout = "2006-01-02 15:04:05"

// GroupKey identifies one (category, hour) bucket. It is never flattened into
// a delimited string, so any category value is safe.
type GroupKey struct {
	Category string
	Hour     string
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%q@%s", k.Category, k.Hour)
}

// Less orders keys by category, then hour.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.Hour < o.Hour
}

// ExtractKey derives the grouping key of a transaction.
func ExtractKey(tx Transaction) (GroupKey, SkipReason) {
	hour, ok := HourOf(tx.Timestamp)
	if !ok {
		return GroupKey{}, SkipMalformedTimestamp
	}
	return GroupKey{Category: tx.Category, Hour: hour}, SkipNone
}

// HourOf returns the zero-padded hour ("00".."23") of a timestamp.
func HourOf(ts string) (string, bool) {
	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return "", false
	}
	return FormatHour(t.Hour()), true
}

func FormatHour(h int) string {
	return fmt.Sprintf("%02d", h)
}

// ValidHour reports whether s is a two-digit hour in range.
func ValidHour(s string) bool {
	if len(s) != 2 || s[0] < '0' || s[0] > '2' || s[1] < '0' || s[1] > '9' {
		return false
	}
	return s < "24"
}
