package peakhour

import (
	"context"

	"github.com/emptyOVO/peakhour/master"
)

// StartMaster runs only the master side; workers join from other processes.
func StartMaster(ctx context.Context, job Job) (master.JobReport, error) {
	inputs, err := ExpandInputs(job.Inputs)
	if err != nil {
		return master.JobReport{}, err
	}
	if err := PrepareOutput(job.OutputDir, job.Overwrite); err != nil {
		return master.JobReport{}, err
	}
	return master.StartMaster(ctx, masterConfig(job, inputs, job.MasterAddr))
}

func masterConfig(job Job, inputs []string, addr string) master.Config {
	return master.Config{
		Inputs:    inputs,
		OutputDir: job.OutputDir,
		NWorker:   job.NWorker,
		NReduce:   job.NReduce,
		Addr:      addr,
		TieBreak:  job.TieBreak,
	}
}
