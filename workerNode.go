package peakhour

import (
	"context"

	"github.com/emptyOVO/peakhour/worker"
)

// StartWorker runs one worker process against masterAddr. The worker listens
// on the first free port after the master's, offset by id.
func StartWorker(ctx context.Context, masterAddr string, id int, job Job) error {
	worker.Init(masterAddr)
	start := masterPort(masterAddr)
	if start > 0 {
		start += id + 1
	}
	return startWorkerWithRetryE(func(addr string) error {
		return worker.StartWorker(ctx, addr, workerOptions(job))
	}, "", start, 1)
}
