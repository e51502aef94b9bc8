package purchase

import (
	"fmt"
	"strings"
)

// TieBreak decides which hour wins when two hours share the best count.
type TieBreak int

const (
	// TieSmallestHour keeps the smaller hour. Deterministic under any
	// delivery order.
	TieSmallestHour TieBreak = iota
	// TieFirstSeen only replaces on a strictly greater count, so the first
	// hour to reach a count keeps it.
	TieFirstSeen
)

func (t TieBreak) String() string {
	switch t {
	case TieFirstSeen:
		return "first"
	default:
		return "smallest"
	}
}

// ParseTieBreak accepts "smallest" (or "") and "first".
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "smallest", "smallest-hour":
		return TieSmallestHour, nil
	case "first", "first-seen":
		return TieFirstSeen, nil
	default:
		return TieSmallestHour, fmt.Errorf("unknown tie-break policy: %q", s)
	}
}

// PeakState is the running maximum of one category.
type PeakState struct {
	BestHour  string
	BestCount int64
}

// NewPeakState returns the sentinel state ("00", 0).
func NewPeakState() PeakState {
	return PeakState{BestHour: "00", BestCount: 0}
}

// Observe folds one (hour, total) into the state.
func (s *PeakState) Observe(hour string, total int64, tie TieBreak) {
	if total > s.BestCount {
		s.BestHour, s.BestCount = hour, total
		return
	}
	if tie == TieSmallestHour && total == s.BestCount && total > 0 && hour < s.BestHour {
		s.BestHour = hour
	}
}

// Tracker consumes the aggregated counts of a single category and finalizes
// into one PeakResult when the group ends.
type Tracker struct {
	category string
	tie      TieBreak
	state    PeakState
	seen     int
}

func NewTracker(category string, tie TieBreak) *Tracker {
	return &Tracker{category: category, tie: tie, state: NewPeakState()}
}

func (t *Tracker) Category() string { return t.category }

// Observe adds one aggregated count. Counts of other categories are a
// programming error and are rejected.
func (t *Tracker) Observe(c AggregatedCount) error {
	if c.Key.Category != t.category {
		return fmt.Errorf("tracker for %q got count for %q", t.category, c.Key.Category)
	}
	t.state.Observe(c.Key.Hour, c.Total, t.tie)
	t.seen++
	return nil
}

// Finish ends the group. ok is false when no count was observed.
func (t *Tracker) Finish() (res PeakResult, ok bool) {
	if t.seen == 0 || t.state.BestCount == 0 {
		return PeakResult{}, false
	}
	return PeakResult{
		Category:  t.category,
		PeakHour:  t.state.BestHour,
		PeakCount: t.state.BestCount,
	}, true
}

// PeakCounts groups counts sorted by (category, hour) into one tracker per
// category run and calls emit at every group end.
func PeakCounts(sorted []AggregatedCount, tie TieBreak, emit func(PeakResult) error) error {
	var cur *Tracker
	flush := func() error {
		if cur == nil {
			return nil
		}
		if res, ok := cur.Finish(); ok {
			return emit(res)
		}
		return nil
	}
	for _, c := range sorted {
		if cur == nil || cur.Category() != c.Key.Category {
			if err := flush(); err != nil {
				return err
			}
			cur = NewTracker(c.Key.Category, tie)
		}
		if err := cur.Observe(c); err != nil {
			return err
		}
	}
	return flush()
}

// MergePeaks max-reduces partial results that may share categories, for
// when one category's hours were tracked by more than one instance.
func MergePeaks(parts []PeakResult, tie TieBreak) []PeakResult {
	states := make(map[string]*PeakState)
	order := make([]string, 0)
	for _, p := range parts {
		st, ok := states[p.Category]
		if !ok {
			s := NewPeakState()
			st = &s
			states[p.Category] = st
			order = append(order, p.Category)
		}
		st.Observe(p.PeakHour, p.PeakCount, tie)
	}
	out := make([]PeakResult, 0, len(order))
	for _, cat := range order {
		st := states[cat]
		if st.BestCount == 0 {
			continue
		}
		out = append(out, PeakResult{Category: cat, PeakHour: st.BestHour, PeakCount: st.BestCount})
	}
	SortResults(out)
	return out
}
