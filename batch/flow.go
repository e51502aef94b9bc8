package batch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/emptyOVO/peakhour/batch/kafka_batch"
	"github.com/emptyOVO/peakhour/batch/mysql_batch"
	"github.com/emptyOVO/peakhour/batch/redis_batch"
	"github.com/emptyOVO/peakhour/master"
	"github.com/emptyOVO/peakhour/purchase"
	log "github.com/sirupsen/logrus"
)

// FlowConfig describes a source -> peak-hour job -> sink pipeline.
type FlowConfig struct {
	Version   string              `json:"version" validate:"required,eq=v1"`
	Source    FlowSourceConfig    `json:"source"`
	Transform FlowTransformConfig `json:"transform"`
	Sink      FlowSinkConfig      `json:"sink"`
}

type FlowSourceConfig struct {
	Type        string            `json:"type" validate:"oneof=file mysql redis"`
	Files       []string          `json:"files"`
	DB          DBConfig          `json:"db"`
	Redis       RedisConnConfig   `json:"redis"`
	Config      SourceConfig      `json:"config"`
	RedisConfig RedisSourceConfig `json:"redis_config"`
}

type FlowTransformConfig struct {
	Reducers  int    `json:"reducers" validate:"gte=0,lte=1024"`
	Workers   int    `json:"workers" validate:"gte=0,lte=1024"`
	InRAM     bool   `json:"in_ram"`
	Port      int    `json:"port" validate:"gte=0,lte=65535"`
	TieBreak  string `json:"tie_break" validate:"oneof=smallest first"`
	OutputDir string `json:"output_dir"`
	Overwrite bool   `json:"overwrite"`
}

type FlowSinkConfig struct {
	Type        string          `json:"type" validate:"oneof=file mysql redis kafka"`
	DB          DBConfig        `json:"db"`
	Redis       RedisConnConfig `json:"redis"`
	Config      SinkConfig      `json:"config"`
	RedisConfig RedisSinkConfig `json:"redis_config"`
	Kafka       KafkaSinkConfig `json:"kafka"`
}

func (c *FlowConfig) withDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = "file"
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "file"
	}
	if c.Transform.Reducers <= 0 {
		c.Transform.Reducers = 8
	}
	if c.Transform.Workers <= 0 {
		c.Transform.Workers = 16
	}
	if c.Transform.Port == 0 {
		c.Transform.Port = 10000
	}
	if c.Transform.TieBreak == "" {
		c.Transform.TieBreak = purchase.TieSmallestHour.String()
	}
	if c.Transform.OutputDir == "" {
		c.Transform.OutputDir = filepath.Join("output", "peakhour")
	}
	c.Source.Config.WithDefaults()
	c.Sink.Config.WithDefaults()
	c.Source.RedisConfig.WithDefaults()
	c.Sink.RedisConfig.WithDefaults()
	c.Sink.Kafka.WithDefaults()
}

// FlowBenchmarkResult captures source/transform/sink stage durations.
type FlowBenchmarkResult struct {
	SourceDuration    time.Duration
	TransformDuration time.Duration
	SinkDuration      time.Duration
	TotalDuration     time.Duration
	Report            master.JobReport
}

// RunFlow executes source -> transform -> sink defined by FlowConfig.
func RunFlow(ctx context.Context, cfg FlowConfig) (master.JobReport, error) {
	res, err := runFlowInternal(ctx, cfg)
	return res.Report, err
}

// RunFlowBenchmark executes a config-driven flow and reports stage durations.
func RunFlowBenchmark(ctx context.Context, cfg FlowConfig) (FlowBenchmarkResult, error) {
	return runFlowInternal(ctx, cfg)
}

func runFlowInternal(ctx context.Context, cfg FlowConfig) (FlowBenchmarkResult, error) {
	var bench FlowBenchmarkResult
	started := time.Now()

	cfg.withDefaults()
	if err := ValidateFlowConfig(cfg); err != nil {
		return bench, err
	}
	tie, err := purchase.ParseTieBreak(cfg.Transform.TieBreak)
	if err != nil {
		return bench, err
	}

	sSource := time.Now()
	files, err := exportSource(ctx, cfg.Source)
	if err != nil {
		return bench, err
	}
	bench.SourceDuration = time.Since(sSource)
	if len(files) == 0 {
		log.Warnf("source %s produced no input, nothing to do", cfg.Source.Type)
		return bench, nil
	}

	sTransform := time.Now()
	bench.Report, err = RunMapReduce(ctx, MapReduceRunConfig{
		Files:     files,
		OutputDir: cfg.Transform.OutputDir,
		Reducers:  cfg.Transform.Reducers,
		Workers:   cfg.Transform.Workers,
		InRAM:     cfg.Transform.InRAM,
		Port:      cfg.Transform.Port,
		TieBreak:  tie,
		Overwrite: cfg.Transform.Overwrite,
	})
	if err != nil {
		return bench, err
	}
	bench.TransformDuration = time.Since(sTransform)

	sSink := time.Now()
	if err := importSink(ctx, cfg.Sink, bench.Report, cfg.Transform.OutputDir, tie); err != nil {
		return bench, err
	}
	bench.SinkDuration = time.Since(sSink)
	bench.TotalDuration = time.Since(started)
	return bench, nil
}

func exportSource(ctx context.Context, src FlowSourceConfig) ([]string, error) {
	switch src.Type {
	case "mysql":
		sourceDB, err := openDB(ctx, src.DB)
		if err != nil {
			return nil, err
		}
		defer sourceDB.Close()
		return mysql_batch.NewSourceAdapter(src.Config).Export(ctx, sourceDB)
	case "redis":
		return redis_batch.NewSourceAdapter(src.Redis, src.RedisConfig).Export(ctx)
	default:
		return src.Files, nil
	}
}

// importSink loads exactly the part files the job reported, never whatever
// else sits in the output directory.
func importSink(ctx context.Context, sink FlowSinkConfig, report master.JobReport, outputDir string, tie purchase.TieBreak) error {
	if sink.Type == "file" {
		log.Infof("results written to %s", outputDir)
		return nil
	}
	peaks, err := purchase.LoadPeakFiles(report.Outputs, tie)
	if err != nil {
		return err
	}
	switch sink.Type {
	case "mysql":
		sinkDB, err := openDB(ctx, sink.DB)
		if err != nil {
			return err
		}
		defer sinkDB.Close()
		return mysql_batch.NewSinkAdapter(sink.Config).Import(ctx, sinkDB, peaks)
	case "redis":
		return redis_batch.NewSinkAdapter(sink.Redis, sink.RedisConfig).Import(ctx, peaks)
	case "kafka":
		return kafka_batch.NewSinkAdapter(sink.Kafka).Import(ctx, peaks)
	}
	return nil
}
