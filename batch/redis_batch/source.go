package redis_batch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceConfig reads raw transaction lines from a Redis list.
type SourceConfig struct {
	ListKey    string `json:"list_key"`
	PageSize   int    `json:"page_size" validate:"gte=0,lte=100000"`
	OutputDir  string `json:"output_dir"`
	FilePrefix string `json:"file_prefix"`
}

func (c *SourceConfig) WithDefaults() {
	if c.ListKey == "" {
		c.ListKey = "purchases"
	}
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	if c.OutputDir == "" {
		c.OutputDir = "txt/redis_source"
	}
	if c.FilePrefix == "" {
		c.FilePrefix = "chunk"
	}
}

// ExportSource drains the list with LRANGE pages into one chunk file. The list
// is left untouched.
func ExportSource(ctx context.Context, connCfg ConnConfig, cfg SourceConfig) ([]string, error) {
	cfg.WithDefaults()
	c, err := openRedis(ctx, connCfg)
	if err != nil {
		return nil, err
	}
	defer c.close()

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

	outFile := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s-%05d.csv", cfg.FilePrefix, 0))
	f, err := os.Create(outFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)

	var written int64
	for start := 0; ; start += cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := c.do("LRANGE", cfg.ListKey, strconv.Itoa(start), strconv.Itoa(start+cfg.PageSize-1))
		if err != nil {
			return nil, err
		}
		items, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected LRANGE response")
		}
		for _, item := range items {
			line := strings.TrimRight(toString(item), "\r\n")
			if line == "" {
				continue
			}
			if _, err := w.WriteString(line + "\n"); err != nil {
				return nil, err
			}
			written++
		}
		if len(items) < cfg.PageSize {
			break
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	if written == 0 {
		return []string{}, nil
	}
	return []string{outFile}, nil
}
