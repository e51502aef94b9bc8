package mysql_batch

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ExportSourceByPKRange exports transaction rows into shard files.
// Each output line is: id,user,category,product,quantity,price,yyyy-MM-dd HH:mm:ss
func ExportSourceByPKRange(ctx context.Context, db *sql.DB, cfg SourceConfig) ([]string, error) {
	cfg.WithDefaults()
	if cfg.Table == "" {
		return nil, fmt.Errorf("source table is required")
	}

	table, err := quoteIdentifier(cfg.Table)
	if err != nil {
		return nil, err
	}
	cols, err := quoteIdentifiers(cfg.columns()...)
	if err != nil {
		return nil, err
	}
	pk := cols[0]

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, err
	}
	pattern := filepath.Join(cfg.OutputDir, cfg.FilePrefix+"-*.csv")
	oldFiles, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	for _, f := range oldFiles {
		_ = os.Remove(f)
	}

	boundsSQL := fmt.Sprintf("SELECT COALESCE(MIN(%s),0), COALESCE(MAX(%s),0), COUNT(*) FROM %s WHERE %s", pk, pk, table, cfg.Where)
	var minID, maxID, rowCount int64
	if err := db.QueryRowContext(ctx, boundsSQL).Scan(&minID, &maxID, &rowCount); err != nil {
		return nil, err
	}
	if rowCount == 0 {
		return []string{}, nil
	}

	tasks := planShards(minID, maxID, cfg.Shards, cfg.OutputDir, cfg.FilePrefix)

	workerN := cfg.Parallel
	if workerN > len(tasks) {
		workerN = len(tasks)
	}
	if workerN < 1 {
		workerN = 1
	}

	jobs := make(chan shardTask)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	querySQL := fmt.Sprintf("SELECT %s FROM %s WHERE %s >= ? AND %s < ? AND %s ORDER BY %s",
		strings.Join(cols, ", "), table, pk, pk, cfg.Where, pk)
	for i := 0; i < workerN; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if err := exportOneShard(ctx, db, querySQL, task); err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}
			}
		}()
	}

	for _, task := range tasks {
		select {
		case err := <-errCh:
			close(jobs)
			wg.Wait()
			return nil, err
		default:
		}
		jobs <- task
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.file)
	}
	return out, nil
}

type shardTask struct {
	start int64
	end   int64
	file  string
}

func planShards(minID, maxID int64, shards int, dir, prefix string) []shardTask {
	span := maxID - minID + 1
	step := (span + int64(shards) - 1) / int64(shards)
	if step < 1 {
		step = 1
	}
	tasks := make([]shardTask, 0, shards)
	for i := 0; i < shards; i++ {
		start := minID + int64(i)*step
		if start > maxID {
			break
		}
		file := filepath.Join(dir, fmt.Sprintf("%s-%05d.csv", prefix, i))
		tasks = append(tasks, shardTask{start: start, end: start + step, file: file})
	}
	return tasks
}

func exportOneShard(ctx context.Context, db *sql.DB, querySQL string, task shardTask) error {
	rows, err := db.QueryContext(ctx, querySQL, task.start, task.end)
	if err != nil {
		return err
	}
	defer rows.Close()

	f, err := os.Create(task.file)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)

	var skipped int64
	vals := make([]interface{}, 7)
	ptrs := make([]interface{}, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		line, ok := formatRow(vals)
		if !ok {
			skipped++
			continue
		}
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if skipped > 0 {
		log.WithFields(log.Fields{"file": task.file, "rows": skipped}).Warn("skipped rows with separators inside a field")
	}
	return w.Flush()
}

// formatRow renders one input line. Rows with a comma or newline inside a
// field cannot be represented and are rejected.
func formatRow(vals []interface{}) (string, bool) {
	fields := make([]string, len(vals))
	for i, v := range vals {
		s := asString(v)
		if strings.ContainsAny(s, ",\r\n") {
			return "", false
		}
		fields[i] = s
	}
	return strings.Join(fields, ",") + "\n", true
}
