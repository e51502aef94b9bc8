package mysql_batch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
)

func TestFormatRowIsParseable(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	line, ok := formatRow([]interface{}{int64(7), []byte("u1"), "Electronics", "p1", int64(2), "9.99", ts})
	if !ok {
		t.Fatal("row rejected")
	}
	if line != "7,u1,Electronics,p1,2,9.99,2024-01-01 10:15:00\n" {
		t.Fatalf("unexpected line %q", line)
	}
	tx, reason := purchase.ParseLine(strings.TrimSuffix(line, "\n"))
	if reason != purchase.SkipNone {
		t.Fatalf("exported line not parseable: %v", reason)
	}
	key, reason := purchase.ExtractKey(tx)
	if reason != purchase.SkipNone || key.Hour != "10" || key.Category != "Electronics" {
		t.Fatalf("unexpected key %+v %v", key, reason)
	}
}

func TestFormatRowRejectsSeparators(t *testing.T) {
	for _, bad := range []string{"Home, Garden", "two\nlines"} {
		if _, ok := formatRow([]interface{}{1, "u", bad, "p", 1, 1, "2024-01-01 00:00:00"}); ok {
			t.Fatalf("row with %q should be rejected", bad)
		}
	}
}

func TestPlanShards(t *testing.T) {
	tasks := planShards(10, 29, 4, "out", "chunk")
	if len(tasks) != 4 {
		t.Fatalf("expected 4 shards, got %d", len(tasks))
	}
	if tasks[0].start != 10 || tasks[3].end != 30 {
		t.Fatalf("shards do not cover [10,30): %+v", tasks)
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].start != tasks[i-1].end {
			t.Fatalf("gap between shard %d and %d", i-1, i)
		}
	}
	if got := planShards(5, 6, 8, "out", "chunk"); len(got) != 2 {
		t.Fatalf("expected shards capped by id span, got %d", len(got))
	}
}

func TestUpsertStatement(t *testing.T) {
	sqlStr, args := upsertStatement("`t`", "`c`", "`h`", "`n`", []purchase.PeakResult{
		{Category: "Books", PeakHour: "09", PeakCount: 3},
		{Category: "Toys", PeakHour: "17", PeakCount: 1},
	})
	if !strings.Contains(sqlStr, "VALUES (?, ?, ?),(?, ?, ?) ON DUPLICATE KEY UPDATE `h`=VALUES(`h`), `n`=VALUES(`n`)") {
		t.Fatalf("unexpected sql %s", sqlStr)
	}
	if len(args) != 6 || args[3] != "Toys" || args[5] != int64(1) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestCreateTableKeysOnBytes(t *testing.T) {
	stmt := createTableStatement("`t`", "`c`", "`h`", "`n`")
	if !strings.Contains(stmt, "`c` VARBINARY(3072) NOT NULL") || !strings.Contains(stmt, "PRIMARY KEY (`c`)") {
		t.Fatalf("category key is not binary: %s", stmt)
	}
}

func TestImportPeaksRejectsOversizedCategory(t *testing.T) {
	peaks := []purchase.PeakResult{{Category: strings.Repeat("x", MaxCategoryBytes+1), PeakHour: "01", PeakCount: 1}}
	// rejected before the connection is touched
	err := ImportPeaks(context.Background(), nil, SinkConfig{}, peaks)
	if err == nil || !strings.Contains(err.Error(), "at most 3072") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if _, err := quoteIdentifier("purchases; DROP TABLE x"); err == nil {
		t.Fatal("expected invalid identifier")
	}
	q, err := quoteIdentifier("purchased_at")
	if err != nil || q != "`purchased_at`" {
		t.Fatalf("got %q %v", q, err)
	}
}
