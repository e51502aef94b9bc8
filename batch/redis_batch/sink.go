package redis_batch

import (
	"context"
	"strconv"

	"github.com/emptyOVO/peakhour/purchase"
)

// SinkConfig stores each result as HSET <prefix><category> peak_hour HH purchases N.
type SinkConfig struct {
	KeyPrefix  string `json:"key_prefix"`
	HourField  string `json:"hour_field"`
	CountField string `json:"count_field"`
	Replace    bool   `json:"replace"`
}

func (c *SinkConfig) WithDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "peakhour:"
	}
	if c.HourField == "" {
		c.HourField = "peak_hour"
	}
	if c.CountField == "" {
		c.CountField = "purchases"
	}
}

func ImportPeaks(ctx context.Context, connCfg ConnConfig, cfg SinkConfig, peaks []purchase.PeakResult) error {
	cfg.WithDefaults()
	c, err := openRedis(ctx, connCfg)
	if err != nil {
		return err
	}
	defer c.close()

	if cfg.Replace {
		err := c.scan(cfg.KeyPrefix+"*", 1000, func(keys []string) error {
			if len(keys) == 0 {
				return nil
			}
			_, err := c.do("DEL", keys...)
			return err
		})
		if err != nil {
			return err
		}
	}

	for _, p := range peaks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.do("HSET", hsetArgs(cfg, p)...); err != nil {
			return err
		}
	}
	return nil
}

func hsetArgs(cfg SinkConfig, p purchase.PeakResult) []string {
	return []string{cfg.KeyPrefix + p.Category, cfg.HourField, p.PeakHour, cfg.CountField, strconv.FormatInt(p.PeakCount, 10)}
}
