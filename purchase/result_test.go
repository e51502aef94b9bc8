package purchase

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseResultLineKeepsOddCategories(t *testing.T) {
	for _, cat := range []string{"Electronics", "Home-Garden", "a\tb", "", "x, Purchases: 9"} {
		r := PeakResult{Category: cat, PeakHour: "05", PeakCount: 12}
		got, err := ParseResultLine(FormatResult(r))
		if err != nil {
			t.Fatalf("category %q: %v", cat, err)
		}
		if got != r {
			t.Fatalf("category %q: got %+v", cat, got)
		}
	}
}

func TestParseResultLineErrors(t *testing.T) {
	for _, line := range []string{
		"no tab here",
		"a\tPeak Hour: 05",
		"a\tPeak Hour: 5, Purchases: 1",
		"a\tPeak Hour: 05, Purchases: zero",
		"a\tHour: 05, Purchases: 1",
	} {
		if _, err := ParseResultLine(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestResultWriterAndReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewResultWriter(&buf)
	in := []PeakResult{{"Books", "09", 1}, {"Electronics", "10", 2}}
	for _, r := range in {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Count() != 2 {
		t.Fatalf("count = %d", w.Count())
	}
	want := "Books\tPeak Hour: 09, Purchases: 1\nElectronics\tPeak Hour: 10, Purchases: 2\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}
	out, err := ReadResults(strings.NewReader(buf.String() + "\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[1] != in[1] {
		t.Fatalf("read back %+v", out)
	}
}

func TestLoadPeaksMergesParts(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, rs ...PeakResult) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		rw := NewResultWriter(f)
		for _, r := range rs {
			if err := rw.Write(r); err != nil {
				t.Fatal(err)
			}
		}
		if err := rw.Flush(); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	write("part-r-00000", PeakResult{Category: "Books", PeakHour: "09", PeakCount: 4})
	write("part-r-00001",
		PeakResult{Category: "Books", PeakHour: "07", PeakCount: 4},
		PeakResult{Category: "Toys", PeakHour: "12", PeakCount: 1},
	)
	write("_SUCCESS")

	got, err := LoadPeaks(filepath.Join(dir, "part-r-*"), TieSmallestHour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != (PeakResult{Category: "Books", PeakHour: "07", PeakCount: 4}) || got[1].Category != "Toys" {
		t.Fatalf("unexpected merge %+v", got)
	}
	if _, err := LoadPeaks(filepath.Join(dir, "nothing-*"), TieSmallestHour); err == nil {
		t.Fatal("expected error for empty glob")
	}

	only, err := LoadPeakFiles([]string{filepath.Join(dir, "part-r-00000")}, TieSmallestHour)
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 1 || only[0].PeakHour != "09" {
		t.Fatalf("listed file not read alone: %+v", only)
	}
	if _, err := LoadPeakFiles(nil, TieSmallestHour); err == nil {
		t.Fatal("expected error for no files")
	}
}

func TestReadResultsLongCategory(t *testing.T) {
	r := PeakResult{Category: strings.Repeat("c", 200*1024), PeakHour: "03", PeakCount: 5}
	var buf bytes.Buffer
	rw := NewResultWriter(&buf)
	if err := rw.Write(r); err != nil {
		t.Fatal(err)
	}
	if err := rw.Flush(); err != nil {
		t.Fatal(err)
	}
	out, err := ReadResults(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != r {
		t.Fatal("long category did not survive the part file")
	}
}
