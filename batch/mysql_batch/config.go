package mysql_batch

import (
	"fmt"
	"regexp"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SourceConfig configures export of a transactions table to CSV shards that
// the runtime reads as input.
type SourceConfig struct {
	Table          string `json:"table" validate:"omitempty,sqlident"`
	PKColumn       string `json:"pk_column" validate:"omitempty,sqlident"`
	UserColumn     string `json:"user_column" validate:"omitempty,sqlident"`
	CategoryColumn string `json:"category_column" validate:"omitempty,sqlident"`
	ProductColumn  string `json:"product_column" validate:"omitempty,sqlident"`
	QuantityColumn string `json:"quantity_column" validate:"omitempty,sqlident"`
	PriceColumn    string `json:"price_column" validate:"omitempty,sqlident"`
	TimeColumn     string `json:"time_column" validate:"omitempty,sqlident"`
	Where          string `json:"where"`
	Shards         int    `json:"shards" validate:"gte=0,lte=4096"`
	Parallel       int    `json:"parallel" validate:"gte=0,lte=256"`
	OutputDir      string `json:"output_dir"`
	FilePrefix     string `json:"file_prefix"`
}

func (c *SourceConfig) WithDefaults() {
	if c.PKColumn == "" {
		c.PKColumn = "id"
	}
	if c.UserColumn == "" {
		c.UserColumn = "user_id"
	}
	if c.CategoryColumn == "" {
		c.CategoryColumn = "category"
	}
	if c.ProductColumn == "" {
		c.ProductColumn = "product_id"
	}
	if c.QuantityColumn == "" {
		c.QuantityColumn = "quantity"
	}
	if c.PriceColumn == "" {
		c.PriceColumn = "price"
	}
	if c.TimeColumn == "" {
		c.TimeColumn = "purchased_at"
	}
	if c.Where == "" {
		c.Where = "1=1"
	}
	if c.Shards <= 0 {
		c.Shards = 16
	}
	if c.Parallel <= 0 {
		c.Parallel = 4
	}
	if c.OutputDir == "" {
		c.OutputDir = "txt/mysql_source"
	}
	if c.FilePrefix == "" {
		c.FilePrefix = "chunk"
	}
}

func (c SourceConfig) columns() []string {
	return []string{c.PKColumn, c.UserColumn, c.CategoryColumn, c.ProductColumn, c.QuantityColumn, c.PriceColumn, c.TimeColumn}
}

// SinkConfig configures the peak table that results are upserted into.
type SinkConfig struct {
	TargetTable    string `json:"target_table" validate:"omitempty,sqlident"`
	CategoryColumn string `json:"category_column" validate:"omitempty,sqlident"`
	HourColumn     string `json:"hour_column" validate:"omitempty,sqlident"`
	CountColumn    string `json:"count_column" validate:"omitempty,sqlident"`
	Replace        bool   `json:"replace"`
	BatchSize      int    `json:"batch_size" validate:"gte=0,lte=100000"`
}

func (c *SinkConfig) WithDefaults() {
	if c.TargetTable == "" {
		c.TargetTable = "category_peak_hours"
	}
	if c.CategoryColumn == "" {
		c.CategoryColumn = "category"
	}
	if c.HourColumn == "" {
		c.HourColumn = "peak_hour"
	}
	if c.CountColumn == "" {
		c.CountColumn = "purchases"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 2000
	}
}

// ValidIdentifier reports whether s can be used unquoted as a table or
// column name.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

func quoteIdentifier(s string) (string, error) {
	if !identifierRe.MatchString(s) {
		return "", fmt.Errorf("invalid identifier: %s", s)
	}
	return "`" + s + "`", nil
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

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(purchase.TimestampLayout)
	default:
		return fmt.Sprint(t)
	}
}
