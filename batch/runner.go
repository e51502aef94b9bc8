package batch

import (
	"context"

	"github.com/emptyOVO/peakhour/master"
	"github.com/emptyOVO/peakhour/purchase"
)

// MapReduceRunConfig describes a runtime invocation for a peak-hour job.
type MapReduceRunConfig struct {
	Files     []string
	OutputDir string
	Reducers  int
	Workers   int
	InRAM     bool
	Port      int
	TieBreak  purchase.TieBreak
	Overwrite bool
}

// Runner abstracts runtime startup strategy for map-reduce execution.
type Runner interface {
	Run(ctx context.Context, cfg MapReduceRunConfig) (master.JobReport, error)
}

var defaultRunner Runner = LocalRunner{}

// SetDefaultRunner overrides the process-wide runtime strategy.
func SetDefaultRunner(r Runner) {
	if r == nil {
		return
	}
	defaultRunner = r
}

// DefaultRunner returns the current process-wide runtime strategy.
func DefaultRunner() Runner {
	return defaultRunner
}

// RunMapReduce executes map-reduce through the configured runner.
func RunMapReduce(ctx context.Context, cfg MapReduceRunConfig) (master.JobReport, error) {
	return DefaultRunner().Run(ctx, cfg)
}
