package peakhour

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
)

const jobInput = `t1,u1,Electronics,p1,1,10.0,2024-01-01 10:15:00
t2,u2,Electronics,p2,1,10.0,2024-01-01 10:45:00
t3,u3,Electronics,p3,1,10.0,2024-01-01 22:00:00
t4,u4,Books,p4,1,10.0,2024-01-01 09:00:00
bad,line,only,four
t5,u5,Books,p5,1,10.0,yesterday

t6,u6,Toys,p6,2,5.0,2024-03-05 17:30:00
t7,u7,Toys,p7,2,5.0,2024-03-05 08:30:00
t8,u8,Garden,p8,1,1.0,2024-13-01 10:00:00
t9,u9,Garden
`

func readOutput(t *testing.T, dir string) []purchase.PeakResult {
	t.Helper()
	parts, err := filepath.Glob(filepath.Join(dir, "part-r-*"))
	if err != nil {
		t.Fatal(err)
	}
	var all []purchase.PeakResult
	for _, p := range parts {
		f, err := os.Open(p)
		if err != nil {
			t.Fatal(err)
		}
		rs, err := purchase.ReadResults(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, rs...)
	}
	purchase.SortResults(all)
	return all
}

func TestSingleMachineJob(t *testing.T) {
	dir := t.TempDir()
	inDir := filepath.Join(dir, "in")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "a.csv"), []byte(jobInput), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	job := Job{
		Inputs:     []string{inDir},
		OutputDir:  out,
		NReduce:    2,
		NWorker:    2,
		MasterAddr: "127.0.0.1:0",
		IMDDir:     filepath.Join(dir, "imd"),
		TieBreak:   purchase.TieSmallestHour,
	}
	report, err := StartSingleMachineJob(ctx, job)
	if err != nil {
		t.Fatal(err)
	}
	if report.Stats.Valid != 6 || report.Stats.MalformedRecords != 2 || report.Stats.MalformedTimestamps != 2 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
	if report.Purchases != 6 || report.Categories != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, err := os.Stat(filepath.Join(out, "_SUCCESS")); err != nil {
		t.Fatal("missing success marker")
	}

	want := []purchase.PeakResult{
		{Category: "Books", PeakHour: "09", PeakCount: 1},
		{Category: "Electronics", PeakHour: "10", PeakCount: 2},
		{Category: "Toys", PeakHour: "08", PeakCount: 1},
	}
	got := readOutput(t, out)
	for _, r := range got {
		if r.Category == "Garden" {
			t.Fatalf("category without a valid purchase in output: %+v", r)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := StartSingleMachineJob(ctx, job); !errors.Is(err, ErrOutputExists) {
		t.Fatalf("expected existing output error, got %v", err)
	}
	job.Overwrite = true
	if _, err := StartSingleMachineJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if again := readOutput(t, out); len(again) != len(want) || again[2] != want[2] {
		t.Fatalf("rerun differs: %+v", again)
	}
}

func TestRerunDropsPartsOfFailedRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(in, []byte("t1,u1,Books,p1,1,1.0,2024-01-01 09:00:00\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	// a run that died after one reducer committed and another was mid-write
	leftovers := map[string]string{
		"part-r-00003":          "Ghost\tPeak Hour: 05, Purchases: 99\n",
		"part-r-00000.tmp-dead": "Ghost\tPeak Hour: 06, Purchases: 7\n",
	}
	for name, body := range leftovers {
		if err := os.WriteFile(filepath.Join(out, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	report, err := StartSingleMachineJob(ctx, Job{
		Inputs:     []string{in},
		OutputDir:  out,
		NReduce:    1,
		NWorker:    1,
		MasterAddr: "127.0.0.1:0",
		IMDDir:     filepath.Join(dir, "imd"),
	})
	if err != nil {
		t.Fatal(err)
	}
	for name := range leftovers {
		if _, err := os.Stat(filepath.Join(out, name)); !os.IsNotExist(err) {
			t.Fatalf("%s survived the rerun", name)
		}
	}
	peaks, err := purchase.LoadPeaks(filepath.Join(out, "part-r-*"), purchase.TieSmallestHour)
	if err != nil {
		t.Fatal(err)
	}
	if len(peaks) != 1 || peaks[0] != (purchase.PeakResult{Category: "Books", PeakHour: "09", PeakCount: 1}) {
		t.Fatalf("unexpected peaks %+v", peaks)
	}
	if len(report.Outputs) != 1 {
		t.Fatalf("unexpected outputs %v", report.Outputs)
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "_SUCCESS", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := ExpandInputs([]string{dir, filepath.Join(dir, "*.csv")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "a.csv" || filepath.Base(got[1]) != "b.csv" {
		t.Fatalf("unexpected inputs %v", got)
	}
	if _, err := ExpandInputs([]string{filepath.Join(dir, "missing*.csv")}); err == nil {
		t.Fatal("expected error for unmatched input")
	}
}

func TestMasterPort(t *testing.T) {
	cases := map[string]int{
		":10000":         10000,
		"127.0.0.1:9000": 9000,
		"127.0.0.1:0":    0,
		"":               10000,
		"nonsense":       10000,
	}
	for in, want := range cases {
		if got := masterPort(in); got != want {
			t.Fatalf("masterPort(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestDialAddr(t *testing.T) {
	cases := map[string]string{
		"[::]:10000":     "127.0.0.1:10000",
		"0.0.0.0:9000":   "127.0.0.1:9000",
		":8000":          "127.0.0.1:8000",
		"10.0.0.5:10000": "10.0.0.5:10000",
	}
	for in, want := range cases {
		if got := dialAddr(in); got != want {
			t.Fatalf("dialAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
