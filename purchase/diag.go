package purchase

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Diagnostics counts lines seen by a map task. Safe for concurrent use.
type Diagnostics struct {
	lines              atomic.Int64
	valid              atomic.Int64
	emptyLines         atomic.Int64
	malformedRecords   atomic.Int64
	malformedTimestamp atomic.Int64
}

// Stats is a point-in-time copy of Diagnostics.
type Stats struct {
	Lines               int64 `json:"lines"`
	Valid               int64 `json:"valid"`
	EmptyLines          int64 `json:"empty_lines"`
	MalformedRecords    int64 `json:"malformed_records"`
	MalformedTimestamps int64 `json:"malformed_timestamps"`
}

// Skipped is the number of non-empty lines dropped.
func (s Stats) Skipped() int64 {
	return s.MalformedRecords + s.MalformedTimestamps
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		Lines:               s.Lines + o.Lines,
		Valid:               s.Valid + o.Valid,
		EmptyLines:          s.EmptyLines + o.EmptyLines,
		MalformedRecords:    s.MalformedRecords + o.MalformedRecords,
		MalformedTimestamps: s.MalformedTimestamps + o.MalformedTimestamps,
	}
}

func (d *Diagnostics) Snapshot() Stats {
	return Stats{
		Lines:               d.lines.Load(),
		Valid:               d.valid.Load(),
		EmptyLines:          d.emptyLines.Load(),
		MalformedRecords:    d.malformedRecords.Load(),
		MalformedTimestamps: d.malformedTimestamp.Load(),
	}
}

func (d *Diagnostics) record(reason SkipReason, line string) {
	d.lines.Add(1)
	switch reason {
	case SkipNone:
		d.valid.Add(1)
		return
	case SkipEmptyLine:
		d.emptyLines.Add(1)
		return
	case SkipMalformedRecord:
		d.malformedRecords.Add(1)
	case SkipMalformedTimestamp:
		d.malformedTimestamp.Add(1)
	}
	log.WithFields(log.Fields{
		"reason": reason.String(),
		"line":   line,
	}).Warn("Skipping ", reason.String())
}
