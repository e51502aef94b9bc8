package purchase

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	hourLabel     = "Peak Hour: "
	purchaseLabel = ", Purchases: "
)

// PeakResult is the final record of one category.
type PeakResult struct {
	Category  string `json:"category"`
	PeakHour  string `json:"peak_hour"`
	PeakCount int64  `json:"purchases"`
}

// FormatResult renders "category<TAB>Peak Hour: HH, Purchases: N".
func FormatResult(r PeakResult) string {
	return r.Category + "\t" + hourLabel + r.PeakHour + purchaseLabel + strconv.FormatInt(r.PeakCount, 10)
}

// ParseResultLine is the inverse of FormatResult. The value part never holds
// a tab, so the line is split on its last tab.
func ParseResultLine(line string) (PeakResult, error) {
	line = strings.TrimRight(line, "\r\n")
	idx := strings.LastIndexByte(line, '\t')
	if idx < 0 {
		return PeakResult{}, fmt.Errorf("result line has no tab: %q", line)
	}
	category, value := line[:idx], line[idx+1:]
	if !strings.HasPrefix(value, hourLabel) {
		return PeakResult{}, fmt.Errorf("result line missing %q: %q", hourLabel, line)
	}
	value = strings.TrimPrefix(value, hourLabel)
	parts := strings.SplitN(value, purchaseLabel, 2)
	if len(parts) != 2 {
		return PeakResult{}, fmt.Errorf("result line missing %q: %q", purchaseLabel, line)
	}
	if !ValidHour(parts[0]) {
		return PeakResult{}, fmt.Errorf("result line has invalid hour %q", parts[0])
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || n <= 0 {
		return PeakResult{}, fmt.Errorf("result line has invalid purchases %q", parts[1])
	}
	return PeakResult{Category: category, PeakHour: parts[0], PeakCount: n}, nil
}

func SortResults(rs []PeakResult) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Category < rs[j].Category })
}

// ResultWriter emits formatted result lines.
type ResultWriter struct {
	w *bufio.Writer
	n int
}

func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{w: bufio.NewWriter(w)}
}

func (rw *ResultWriter) Write(r PeakResult) error {
	if _, err := rw.w.WriteString(FormatResult(r)); err != nil {
		return err
	}
	if err := rw.w.WriteByte('\n'); err != nil {
		return err
	}
	rw.n++
	return nil
}

// Count is the number of results written so far.
func (rw *ResultWriter) Count() int { return rw.n }

func (rw *ResultWriter) Flush() error {
	return rw.w.Flush()
}

// ReadResults parses every non-empty line of r.
func ReadResults(r io.Reader) ([]PeakResult, error) {
	var out []PeakResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		res, err := ParseResultLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, scanner.Err()
}

// LoadPeaks reads every part file matching glob and max-merges the results,
// so a category written by more than one reducer still yields one line.
func LoadPeaks(glob string, tie TieBreak) ([]PeakResult, error) {
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no result files matched: %s", glob)
	}
	return LoadPeakFiles(files, tie)
}

// LoadPeakFiles is LoadPeaks over an explicit file list, such as the outputs
// a job reported.
func LoadPeakFiles(files []string, tie TieBreak) ([]PeakResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no result files")
	}
	var all []PeakResult
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		rs, err := ReadResults(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		all = append(all, rs...)
	}
	return MergePeaks(all, tie), nil
}
