package batch

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/emptyOVO/peakhour/batch/kafka_batch"
	"github.com/emptyOVO/peakhour/batch/mysql_batch"
	"github.com/emptyOVO/peakhour/batch/redis_batch"
	"github.com/go-sql-driver/mysql"
)

// DBConfig defines MySQL connection parameters.
type DBConfig struct {
	Host     string            `json:"host"`
	Port     int               `json:"port" validate:"gte=0,lte=65535"`
	User     string            `json:"user"`
	Password string            `json:"password"`
	Database string            `json:"database"`
	Params   map[string]string `json:"params"`
}

func (c DBConfig) dsn() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

func openDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("db user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("db database is required")
	}
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenForApp opens a MySQL connection for advanced/custom flows.
func OpenForApp(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	return openDB(ctx, cfg)
}

func quoteIdentifier(s string) (string, error) {
	if !mysql_batch.ValidIdentifier(s) {
		return "", fmt.Errorf("invalid identifier: %s", s)
	}
	return "`" + s + "`", nil
}

// Unified source/sink config aliases exposed by batch package.
type SourceConfig = mysql_batch.SourceConfig
type SinkConfig = mysql_batch.SinkConfig
type RedisConnConfig = redis_batch.ConnConfig
type RedisSourceConfig = redis_batch.SourceConfig
type RedisSinkConfig = redis_batch.SinkConfig
type KafkaSinkConfig = kafka_batch.SinkConfig

// PrepareConfig configures synthetic transactions table generation for
// benchmarking.
type PrepareConfig struct {
	SourceTable string `json:"source_table" validate:"omitempty,sqlident"`
	Rows        int64  `json:"rows" validate:"gte=0"`
	Categories  int64  `json:"categories" validate:"gte=0,lte=100000"`
	Seed        int64  `json:"seed"`
}

func (c *PrepareConfig) withDefaults() {
	if c.SourceTable == "" {
		c.SourceTable = "transactions"
	}
	if c.Rows <= 0 {
		c.Rows = 1000000
	}
	if c.Categories <= 0 {
		c.Categories = 50
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

// ValidateConfig recomputes peaks from the source table and compares them with
// the sink table.
type ValidateConfig struct {
	Source   SourceConfig `json:"source"`
	Sink     SinkConfig   `json:"sink"`
	TieBreak string       `json:"tie_break" validate:"omitempty,oneof=smallest first"`
}
