package mysql_batch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/emptyOVO/peakhour/purchase"
)

// MaxCategoryBytes is the longest category the sink table can key on: the
// InnoDB index limit for a VARBINARY primary key.
const MaxCategoryBytes = 3072

// ImportPeaks upserts one row per category into the target table in a single
// transaction.
func ImportPeaks(ctx context.Context, db *sql.DB, cfg SinkConfig, peaks []purchase.PeakResult) error {
	cfg.WithDefaults()
	q, err := quoteIdentifiers(cfg.TargetTable, cfg.CategoryColumn, cfg.HourColumn, cfg.CountColumn)
	if err != nil {
		return err
	}
	table, catCol, hourCol, cntCol := q[0], q[1], q[2], q[3]
	for _, p := range peaks {
		if len(p.Category) > MaxCategoryBytes {
			return fmt.Errorf("category %.32q... is %d bytes, sink keys hold at most %d", p.Category, len(p.Category), MaxCategoryBytes)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableStatement(table, catCol, hourCol, cntCol)); err != nil {
		return err
	}
	if cfg.Replace {
		// DELETE rather than TRUNCATE keeps the replace inside the transaction.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return err
		}
	}

	for start := 0; start < len(peaks); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(peaks) {
			end = len(peaks)
		}
		sqlStr, args := upsertStatement(table, catCol, hourCol, cntCol, peaks[start:end])
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("upsert peaks %d..%d: %w", start, end, err)
		}
	}
	return tx.Commit()
}

// createTableStatement keys on the category bytes, so categories that differ
// only in case or accents stay distinct rows.
func createTableStatement(table, catCol, hourCol, cntCol string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  %s VARBINARY(%d) NOT NULL,
  %s CHAR(2) NOT NULL,
  %s BIGINT NOT NULL,
  PRIMARY KEY (%s)
)`, table, catCol, MaxCategoryBytes, hourCol, cntCol, catCol)
}

func upsertStatement(table, catCol, hourCol, cntCol string, peaks []purchase.PeakResult) (string, []interface{}) {
	valueSQL := make([]string, 0, len(peaks))
	args := make([]interface{}, 0, len(peaks)*3)
	for _, p := range peaks {
		valueSQL = append(valueSQL, "(?, ?, ?)")
		args = append(args, p.Category, p.PeakHour, p.PeakCount)
	}
	sqlStr := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES %s ON DUPLICATE KEY UPDATE %s=VALUES(%s), %s=VALUES(%s)",
		table, catCol, hourCol, cntCol, strings.Join(valueSQL, ","), hourCol, hourCol, cntCol, cntCol)
	return sqlStr, args
}
