package batch

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
)

var syntheticEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// PrepareSyntheticSource creates a synthetic transactions table for benchmark.
// Each category favours one hour so the expected peaks are easy to eyeball.
func PrepareSyntheticSource(ctx context.Context, db *sql.DB, cfg PrepareConfig) error {
	cfg.withDefaults()
	table, err := quoteIdentifier(cfg.SourceTable)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE %s (
  id BIGINT NOT NULL,
  user_id VARCHAR(32) NOT NULL,
  category VARCHAR(64) NOT NULL,
  product_id VARCHAR(32) NOT NULL,
  quantity INT NOT NULL,
  price DECIMAL(10,2) NOT NULL,
  purchased_at DATETIME NOT NULL,
  PRIMARY KEY (id),
  KEY idx_category (category)
) ENGINE=InnoDB
`, table)); err != nil {
		return err
	}

	r := rand.New(rand.NewSource(cfg.Seed))
	const batchSize int64 = 5000
	for start := int64(0); start < cfg.Rows; start += batchSize {
		end := start + batchSize
		if end > cfg.Rows {
			end = cfg.Rows
		}
		rowN := end - start

		placeholders := make([]string, 0, rowN)
		args := make([]interface{}, 0, rowN*7)
		for i := start; i < end; i++ {
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, syntheticRow(r, i, cfg.Categories)...)
		}

		insertSQL := fmt.Sprintf(
			"INSERT INTO %s (id, user_id, category, product_id, quantity, price, purchased_at) VALUES %s",
			table,
			strings.Join(placeholders, ","),
		)
		if _, err := db.ExecContext(ctx, insertSQL, args...); err != nil {
			return err
		}
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`ANALYZE TABLE %s`, table))
	return err
}

func favouredHour(cat int64) int {
	return int((cat*7 + 9) % 24)
}

func syntheticRow(r *rand.Rand, i int64, categories int64) []interface{} {
	cat := r.Int63n(categories)
	hour := r.Intn(24)
	if r.Intn(10) < 3 {
		hour = favouredHour(cat)
	}
	ts := syntheticEpoch.
		AddDate(0, 0, r.Intn(365)).
		Add(time.Duration(hour)*time.Hour + time.Duration(r.Intn(3600))*time.Second)
	return []interface{}{
		i + 1,
		fmt.Sprintf("u%06d", r.Intn(100000)),
		fmt.Sprintf("category_%03d", cat),
		fmt.Sprintf("p%05d", r.Intn(20000)),
		1 + r.Intn(5),
		fmt.Sprintf("%d.%02d", 1+r.Intn(500), r.Intn(100)),
		ts,
	}
}

// ValidatePeaks recomputes (category, hour, count) in SQL on the source
// database, reduces it with the same tracker the runtime uses and compares
// the result with the sink table.
func ValidatePeaks(ctx context.Context, sourceDB, sinkDB *sql.DB, cfg ValidateConfig) error {
	cfg.Source.WithDefaults()
	cfg.Sink.WithDefaults()
	if cfg.Source.Table == "" {
		return fmt.Errorf("source table is required")
	}
	tie, err := purchase.ParseTieBreak(cfg.TieBreak)
	if err != nil {
		return err
	}

	q, err := quoteIdentifiers(cfg.Source.Table, cfg.Source.CategoryColumn, cfg.Source.TimeColumn,
		cfg.Sink.TargetTable, cfg.Sink.CategoryColumn, cfg.Sink.HourColumn, cfg.Sink.CountColumn)
	if err != nil {
		return err
	}
	srcTable, srcCat, srcTime := q[0], q[1], q[2]
	tgtTable, tgtCat, tgtHour, tgtCnt := q[3], q[4], q[5], q[6]

	rows, err := sourceDB.QueryContext(ctx, expectedCountsQuery(srcTable, srcCat, srcTime, cfg.Source.Where))
	if err != nil {
		return err
	}
	table := purchase.CountTable{}
	for rows.Next() {
		var cat string
		var hour int
		var n int64
		if err := rows.Scan(&cat, &hour, &n); err != nil {
			rows.Close()
			return err
		}
		table.Add(purchase.GroupKey{Category: cat, Hour: purchase.FormatHour(hour)}, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	var expected []purchase.PeakResult
	if err := purchase.PeakCounts(table.Sorted(), tie, func(r purchase.PeakResult) error {
		expected = append(expected, r)
		return nil
	}); err != nil {
		return err
	}

	actualSQL := fmt.Sprintf(`SELECT %s, %s, %s FROM %s`, tgtCat, tgtHour, tgtCnt, tgtTable)
	rows, err = sinkDB.QueryContext(ctx, actualSQL)
	if err != nil {
		return err
	}
	defer rows.Close()
	var actual []purchase.PeakResult
	for rows.Next() {
		var r purchase.PeakResult
		if err := rows.Scan(&r.Category, &r.PeakHour, &r.PeakCount); err != nil {
			return err
		}
		actual = append(actual, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return comparePeaks(expected, actual)
}

// expectedCountsQuery groups on the exact category bytes, as the runtime and
// the sink table do, whatever collation the source column has.
func expectedCountsQuery(table, catCol, timeCol, where string) string {
	cat := fmt.Sprintf("CONVERT(%s USING utf8mb4) COLLATE utf8mb4_bin", catCol)
	return fmt.Sprintf(`
SELECT %s AS cat, HOUR(%s) AS h, COUNT(*) AS total
FROM %s
WHERE %s
GROUP BY %s, h`, cat, timeCol, table, where, cat)
}

func comparePeaks(expected, actual []purchase.PeakResult) error {
	purchase.SortResults(expected)
	purchase.SortResults(actual)
	if len(expected) != len(actual) {
		return fmt.Errorf("row count mismatch in validation: expected %d categories, got %d", len(expected), len(actual))
	}
	for i := range expected {
		if expected[i] != actual[i] {
			return fmt.Errorf("validation mismatch at row %d: expected %+v, actual %+v", i+1, expected[i], actual[i])
		}
	}
	return nil
}

func quoteIdentifiers(names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := quoteIdentifier(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
