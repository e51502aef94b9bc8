package purchase

import (
	"reflect"
	"strings"
	"testing"
)

func runLocal(t *testing.T, input string, tie TieBreak) []PeakResult {
	t.Helper()
	table := CountTable{}
	if err := MapReader(strings.NewReader(input), &Diagnostics{}, table.Add); err != nil {
		t.Fatal(err)
	}
	var out []PeakResult
	if err := PeakCounts(table.Sorted(), tie, func(r PeakResult) error {
		out = append(out, r)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestCategoryWithoutValidPurchaseHasNoLine(t *testing.T) {
	input := strings.Join([]string{
		"t1,u1,Books,p,1,1,2024-01-01 09:00:00",
		"t2,u2,Garden,p,1,1,2024-13-01 10:00:00",
		"t3,u3,Garden,p,1,1,yesterday",
		"t4,u4,Garden",
		"t5,u5,Toys,p,1,1,",
	}, "\n")
	got := runLocal(t, input, TieSmallestHour)
	want := []PeakResult{{Category: "Books", PeakHour: "09", PeakCount: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPeakCountsExample(t *testing.T) {
	input := strings.Join([]string{
		"t1,u1,Electronics,...,...,...,2024-01-01 10:15:00",
		"t2,u2,Electronics,...,...,...,2024-01-01 10:45:00",
		"t3,u3,Electronics,...,...,...,2024-01-01 22:00:00",
		"t4,u4,Books,...,...,...,2024-01-01 09:00:00",
		"bad,line,only,four",
	}, "\n")

	got := runLocal(t, input, TieSmallestHour)
	want := []PeakResult{
		{Category: "Books", PeakHour: "09", PeakCount: 1},
		{Category: "Electronics", PeakHour: "10", PeakCount: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	lines := []string{FormatResult(got[0]), FormatResult(got[1])}
	if lines[1] != "Electronics\tPeak Hour: 10, Purchases: 2" {
		t.Fatalf("unexpected line %q", lines[1])
	}
}

func TestPeakStateTieBreak(t *testing.T) {
	order := []AggregatedCount{
		{Key: GroupKey{"c", "15"}, Total: 3},
		{Key: GroupKey{"c", "04"}, Total: 3},
		{Key: GroupKey{"c", "09"}, Total: 1},
	}

	smallest := NewPeakState()
	first := NewPeakState()
	for _, c := range order {
		smallest.Observe(c.Key.Hour, c.Total, TieSmallestHour)
		first.Observe(c.Key.Hour, c.Total, TieFirstSeen)
	}
	if smallest != (PeakState{"04", 3}) {
		t.Fatalf("smallest-hour state = %+v", smallest)
	}
	if first != (PeakState{"15", 3}) {
		t.Fatalf("first-seen state = %+v", first)
	}
}

func TestTrackerRejectsForeignCategory(t *testing.T) {
	tr := NewTracker("a", TieSmallestHour)
	if err := tr.Observe(AggregatedCount{Key: GroupKey{"b", "01"}, Total: 1}); err == nil {
		t.Fatal("expected error for foreign category")
	}
	if _, ok := tr.Finish(); ok {
		t.Fatal("empty tracker must not produce a result")
	}
}

func TestPeakCountIsMaxPerCategory(t *testing.T) {
	table := CountTable{}
	for h := 0; h < 24; h++ {
		for i := 0; i <= (h*7)%11; i++ {
			table.Add(GroupKey{"x", FormatHour(h)}, 1)
			table.Add(GroupKey{"y", FormatHour(23 - h)}, 1)
		}
	}
	var results []PeakResult
	_ = PeakCounts(table.Sorted(), TieSmallestHour, func(r PeakResult) error {
		results = append(results, r)
		return nil
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		var max int64
		for k, v := range table {
			if k.Category == r.Category && v > max {
				max = v
			}
		}
		if r.PeakCount != max {
			t.Fatalf("%s: peak %d != max %d", r.Category, r.PeakCount, max)
		}
		if table[GroupKey{r.Category, r.PeakHour}] != max {
			t.Fatalf("%s: hour %s does not achieve max", r.Category, r.PeakHour)
		}
	}
}

func TestMergePeaks(t *testing.T) {
	parts := []PeakResult{
		{Category: "a", PeakHour: "12", PeakCount: 4},
		{Category: "b", PeakHour: "01", PeakCount: 1},
		{Category: "a", PeakHour: "03", PeakCount: 4},
		{Category: "a", PeakHour: "20", PeakCount: 2},
	}
	got := MergePeaks(parts, TieSmallestHour)
	want := []PeakResult{
		{Category: "a", PeakHour: "03", PeakCount: 4},
		{Category: "b", PeakHour: "01", PeakCount: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got := MergePeaks(parts, TieFirstSeen); got[0].PeakHour != "12" {
		t.Fatalf("first-seen merge kept %s", got[0].PeakHour)
	}
}

func TestParseTieBreak(t *testing.T) {
	if tb, err := ParseTieBreak(""); err != nil || tb != TieSmallestHour {
		t.Fatalf("default: %v %v", tb, err)
	}
	if tb, err := ParseTieBreak("first"); err != nil || tb != TieFirstSeen {
		t.Fatalf("first: %v %v", tb, err)
	}
	if _, err := ParseTieBreak("random"); err == nil {
		t.Fatal("expected error")
	}
}
