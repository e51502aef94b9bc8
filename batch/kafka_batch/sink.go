package kafka_batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// SinkConfig publishes one JSON message per category, keyed by category.
type SinkConfig struct {
	Brokers   []string `json:"brokers" validate:"omitempty,dive,hostname_port"`
	Topic     string   `json:"topic"`
	BatchSize int      `json:"batch_size" validate:"gte=0,lte=100000"`
	// RequireAll waits for every in-sync replica instead of the leader only.
	RequireAll bool `json:"require_all"`
}

func (c *SinkConfig) WithDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"127.0.0.1:9092"}
	}
	if c.Topic == "" {
		c.Topic = "category-peak-hours"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
}

// MessageWriter is the part of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newWriter(cfg SinkConfig) *kafka.Writer {
	acks := kafka.RequireOne
	if cfg.RequireAll {
		acks = kafka.RequireAll
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: acks,
		BatchSize:    cfg.BatchSize,
	}
}

type SinkAdapter struct {
	cfg SinkConfig
	w   MessageWriter
}

func NewSinkAdapter(cfg SinkConfig) SinkAdapter {
	cfg.WithDefaults()
	return SinkAdapter{cfg: cfg}
}

// WithWriter swaps the kafka writer, mainly for tests.
func (a SinkAdapter) WithWriter(w MessageWriter) SinkAdapter {
	a.w = w
	return a
}

func (a SinkAdapter) Import(ctx context.Context, peaks []purchase.PeakResult) error {
	w := a.w
	if w == nil {
		w = newWriter(a.cfg)
	}
	defer w.Close()

	msgs, err := buildMessages(peaks, time.Now())
	if err != nil {
		return err
	}
	for start := 0; start < len(msgs); start += a.cfg.BatchSize {
		end := start + a.cfg.BatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := w.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publish peaks to %s: %w", a.cfg.Topic, err)
		}
	}
	log.WithFields(log.Fields{"topic": a.cfg.Topic, "messages": len(msgs)}).Info("published peak hours")
	return nil
}

func buildMessages(peaks []purchase.PeakResult, now time.Time) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(peaks))
	for _, p := range peaks {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(p.Category), Value: b, Time: now})
	}
	return msgs, nil
}
