package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/emptyOVO/peakhour/batch"
)

func getenvDefault(name, d string) string {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	return v
}

func getenvInt(name string, d int) int {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

// Exports a transactions table, computes peak hours and upserts them into a
// second table on the same server.
func main() {
	db := batch.DBConfig{
		Host:     getenvDefault("MYSQL_HOST", "localhost"),
		Port:     getenvInt("MYSQL_PORT", 3306),
		User:     getenvDefault("MYSQL_USER", "root"),
		Password: getenvDefault("MYSQL_PASSWORD", "123456"),
		Database: getenvDefault("MYSQL_DB", "shop"),
	}

	cfg := batch.FlowConfig{
		Version: batch.FlowVersionV1,
		Source: batch.FlowSourceConfig{
			Type: "mysql",
			DB:   db,
			Config: batch.SourceConfig{
				Table:    getenvDefault("SOURCE_TABLE", "transactions"),
				Shards:   getenvInt("SOURCE_SHARDS", 8),
				Parallel: getenvInt("SOURCE_PARALLEL", 4),
			},
		},
		Transform: batch.FlowTransformConfig{
			Reducers:  4,
			Workers:   8,
			Port:      10000,
			Overwrite: true,
		},
		Sink: batch.FlowSinkConfig{
			Type: "mysql",
			DB:   db,
			Config: batch.SinkConfig{
				TargetTable: getenvDefault("TARGET_TABLE", "category_peak_hours"),
				Replace:     true,
			},
		},
	}

	report, err := batch.RunFlow(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("categories=%d valid=%d skipped=%d", report.Categories, report.Stats.Valid, report.Stats.Skipped())
}
