package batch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emptyOVO/peakhour"
	"github.com/emptyOVO/peakhour/master"
)

// LocalRunner runs master and workers inside this process.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, cfg MapReduceRunConfig) (master.JobReport, error) {
	if len(cfg.Files) == 0 {
		return master.JobReport{}, nil
	}
	if cfg.Reducers <= 0 {
		return master.JobReport{}, fmt.Errorf("reducers must be > 0")
	}
	if cfg.Workers <= 0 {
		return master.JobReport{}, fmt.Errorf("workers must be > 0")
	}
	if cfg.OutputDir == "" {
		return master.JobReport{}, fmt.Errorf("output dir is required")
	}
	if cfg.Port < 0 {
		cfg.Port = 10000
	}
	if err := ctx.Err(); err != nil {
		return master.JobReport{}, err
	}

	return peakhour.StartSingleMachineJob(ctx, peakhour.Job{
		Inputs:     cfg.Files,
		OutputDir:  cfg.OutputDir,
		NReduce:    cfg.Reducers,
		NWorker:    cfg.Workers,
		MasterAddr: "127.0.0.1:" + strconv.Itoa(cfg.Port),
		InRAM:      cfg.InRAM,
		TieBreak:   cfg.TieBreak,
		Overwrite:  cfg.Overwrite,
	})
}
