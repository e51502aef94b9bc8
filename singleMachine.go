package peakhour

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emptyOVO/peakhour/master"
	"github.com/emptyOVO/peakhour/worker"
)

var MasterIP string = ":10000"
var runtimeMu sync.Mutex

// StartSingleMachineJob runs the master and job.NWorker workers in this
// process and returns once the output directory is complete.
func StartSingleMachineJob(ctx context.Context, job Job) (master.JobReport, error) {
	inputs, err := ExpandInputs(job.Inputs)
	if err != nil {
		return master.JobReport{}, err
	}
	if job.NWorker <= 0 {
		return master.JobReport{}, fmt.Errorf("need at least one worker")
	}
	if err := PrepareOutput(job.OutputDir, job.Overwrite); err != nil {
		return master.JobReport{}, err
	}
	addr := job.MasterAddr
	if addr == "" {
		addr = MasterIP
	}

	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	return singleMachineJob(ctx, job, inputs, addr)
}

func singleMachineJob(ctx context.Context, job Job, inputs []string, addr string) (master.JobReport, error) {
	m := master.New(masterConfig(job, inputs, addr))
	bound, err := m.Listen()
	if err != nil {
		return master.JobReport{}, err
	}
	worker.Init(dialAddr(bound))

	wctx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	host := workerHost(bound)
	basePort := masterPort(addr)
	var wg sync.WaitGroup
	errCh := make(chan error, job.NWorker)
	for i := 0; i < job.NWorker; i++ {
		wg.Add(1)
		go func(i0 int) {
			defer wg.Done()
			// Keep each worker on a disjoint candidate sequence to avoid collisions.
			start := 0
			if basePort > 0 {
				start = basePort + i0 + 1
			}
			err := startWorkerWithRetryE(func(a string) error {
				return worker.StartWorker(wctx, a, workerOptions(job))
			}, host, start, job.NWorker)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(i)
	}

	report, runErr := m.Run(ctx)
	stopWorkers()
	wg.Wait()
	close(errCh)
	if runErr != nil {
		return report, runErr
	}
	if err, ok := <-errCh; ok {
		return report, fmt.Errorf("worker: %w", err)
	}
	return report, nil
}
