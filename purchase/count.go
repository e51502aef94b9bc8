package purchase

import (
	"bufio"
	"io"
	"sort"
)

// AggregatedCount is the summed purchase count of one key.
type AggregatedCount struct {
	Key   GroupKey
	Total int64
}

// MapLine runs the parser and key extractor on one raw line and calls emit
// with a unit count when the line is valid.
func MapLine(line string, diag *Diagnostics, emit func(GroupKey, int64)) {
	tx, reason := ParseLine(line)
	if reason == SkipNone {
		var key GroupKey
		if key, reason = ExtractKey(tx); reason == SkipNone {
			emit(key, 1)
		}
	}
	if diag != nil {
		diag.record(reason, line)
	}
}

// MaxLineSize bounds one input or result line.
const MaxLineSize = 16 * 1024 * 1024

// MapReader maps every line read from r. A line longer than MaxLineSize
// fails with bufio.ErrTooLong.
func MapReader(r io.Reader, diag *Diagnostics, emit func(GroupKey, int64)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	for scanner.Scan() {
		MapLine(scanner.Text(), diag, emit)
	}
	return scanner.Err()
}

// SumCounts reduces every count observed for one key.
func SumCounts(key GroupKey, counts []int64) AggregatedCount {
	var total int64
	for _, c := range counts {
		total += c
	}
	return AggregatedCount{Key: key, Total: total}
}

// CountTable accumulates partial sums per key. It is used both as the
// map-side combiner and to merge partial sums on the reduce side. Not safe
// for concurrent use.
type CountTable map[GroupKey]int64

func (t CountTable) Add(key GroupKey, n int64) {
	t[key] += n
}

func (t CountTable) Merge(counts []AggregatedCount) {
	for _, c := range counts {
		t[c.Key] += c.Total
	}
}

// Total returns the sum over every key.
func (t CountTable) Total() int64 {
	var n int64
	for _, v := range t {
		n += v
	}
	return n
}

// Sorted returns the table ordered by (category, hour).
func (t CountTable) Sorted() []AggregatedCount {
	out := make([]AggregatedCount, 0, len(t))
	for k, v := range t {
		out = append(out, AggregatedCount{Key: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
