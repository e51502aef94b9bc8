package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/emptyOVO/peakhour/purchase"
	"github.com/emptyOVO/peakhour/rpc"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Worker struct {
	UUID       string
	ID         int
	nReduce    int
	EndChan    chan bool
	storeInRAM bool
	imdDir     string
	State      rpc.WorkerStatus
	Client     RpcClient
	imdFiles   []string
	mux        sync.Mutex
	rpc.UnimplementedWorkerServer
}

func newWorker(client RpcClient, opts Options) *Worker {
	return &Worker{
		UUID:       uuid.New().String(),
		nReduce:    opts.NReduce,
		EndChan:    make(chan bool, 1),
		Client:     client,
		storeInRAM: opts.StoreInRAM,
		imdDir:     opts.IMDDir,
		State:      rpc.WorkerIdle,
	}
}

// gRPC functions

func (wr *Worker) Map(ctx context.Context, in *rpc.MapInfo) (*rpc.Result, error) {
	log.Infof("[Worker %d] Start Map task %d", wr.ID, in.TaskId)

	wr.setWorkerState(rpc.WorkerBusy)
	defer wr.setWorkerState(rpc.WorkerIdle)

	nReduce := int(in.NReduce)
	if nReduce <= 0 {
		nReduce = wr.nReduce
	}
	if nReduce <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "nReduce must be > 0")
	}

	log.Trace("[Worker] Start Mapping")
	var diag purchase.Diagnostics
	partials := make([]purchase.CountTable, len(in.Files))
	errCh := make(chan error, len(in.Files))
	var wg sync.WaitGroup
	for i, fInfo := range in.Files {
		partials[i] = purchase.CountTable{}
		wg.Add(1)
		go func(i0 int, f0 *rpc.MapFileInfo) {
			defer wg.Done()
			if err := mapSplit(f0, &diag, partials[i0].Add); err != nil {
				errCh <- err
			}
		}(i, fInfo)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "map task %d: %v", in.TaskId, err)
	}
	log.Trace("[Worker] Finish Mapping")

	// Combine split-local sums, then partition by category.
	combined := purchase.CountTable{}
	for _, p := range partials {
		for k, v := range p {
			combined.Add(k, v)
		}
	}
	log.Trace("[Worker] Start partition intermediate counts")
	imd := partitionCounts(combined.Sorted(), nReduce)
	log.Trace("[Worker] End partition intermediate counts")

	filenames, err := writeIMDToLocalFile(imd, wr.UUID, int(in.TaskId), wr.storeInRAM, wr.imdDir)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "map task %d: %v", in.TaskId, err)
	}
	wr.trackIMD(filenames)

	stats := diag.Snapshot()
	log.Trace("[Worker] Tell Master the intermediate info")
	if err := wr.Client.UpdateIMDInfo(&rpc.IMDInfo{
		Uuid:      wr.UUID,
		TaskId:    in.TaskId,
		Filenames: filenames,
		Stats:     stats,
	}); err != nil {
		return nil, status.Errorf(codes.Unavailable, "map task %d: %v", in.TaskId, err)
	}
	log.WithFields(log.Fields{
		"task":                 in.TaskId,
		"lines":                stats.Lines,
		"valid":                stats.Valid,
		"malformed_records":    stats.MalformedRecords,
		"malformed_timestamps": stats.MalformedTimestamps,
		"keys":                 len(combined),
	}).Infof("[Worker %d] Finish Map task", wr.ID)

	return &rpc.Result{Result: true}, nil
}

// mapSplit streams the byte range of one split through the mapper.
func mapSplit(fInfo *rpc.MapFileInfo, diag *purchase.Diagnostics, emit func(purchase.GroupKey, int64)) error {
	f, err := os.Open(fInfo.FileName)
	if err != nil {
		return err
	}
	defer f.Close()

	size := fInfo.To - fInfo.From
	if size <= 0 {
		return nil
	}
	if err := purchase.MapReader(io.NewSectionReader(f, fInfo.From, size), diag, emit); err != nil {
		return fmt.Errorf("%s [%d,%d): %w", fInfo.FileName, fInfo.From, fInfo.To, err)
	}
	return nil
}

// reducerForKey routes on the category alone, so every hour of a category
// lands in the same reduce partition.
func reducerForKey(category string, nReduce int) int {
	if nReduce <= 0 {
		panic("nReduce must be > 0")
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(category))
	return int(h.Sum32()&0x7fffffff) % nReduce
}

func partitionCounts(counts []purchase.AggregatedCount, nReduce int) [][]purchase.AggregatedCount {
	imd := make([][]purchase.AggregatedCount, nReduce)
	for _, c := range counts {
		r := reducerForKey(c.Key.Category, nReduce)
		imd[r] = append(imd[r], c)
	}
	return imd
}

func writeIMDToLocalFile(imd [][]purchase.AggregatedCount, uuid string, taskID int, inRAM bool, dir string) ([]string, error) {
	// Filenames must stay aligned with reducer index, otherwise master will
	// dispatch wrong partitions to reducers.
	filenames := make([]string, len(imd))
	errs := make([]error, len(imd))
	var wg sync.WaitGroup
	for r, counts := range imd {
		wg.Add(1)
		go func(r0 int, c0 []purchase.AggregatedCount) {
			defer wg.Done()
			filenames[r0], errs[r0] = writeIMDToLocalFileParallel(r0, c0, uuid, taskID, inRAM, dir)
		}(r, counts)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return filenames, nil
}

func imdBaseDir(inRAM bool, dir string) string {
	if inRAM {
		baseDir := "/dev/shm"
		if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
			baseDir = os.TempDir()
		}
		return baseDir
	}
	if dir == "" {
		return "output"
	}
	return dir
}

func writeIMDToLocalFileParallel(reducerID int, counts []purchase.AggregatedCount, uuid string, taskID int, inRAM bool, dir string) (string, error) {
	fname := filepath.Join(imdBaseDir(inRAM, dir), fmt.Sprintf("imd-%v-%v-%v.bin", uuid, taskID, reducerID))
	if err := os.MkdirAll(filepath.Dir(fname), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fname, encodeIMD(counts), 0o644); err != nil {
		return "", err
	}
	return fname, nil
}

func readIMDFile(fname string) ([]purchase.AggregatedCount, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return decodeIMD(b)
}

func (wr *Worker) Reduce(ctx context.Context, in *rpc.ReduceInfo) (*rpc.ReduceResult, error) {
	log.Infof("[Worker %d] Start Reduce task %d", wr.ID, in.TaskId)

	wr.setWorkerState(rpc.WorkerBusy)
	defer wr.setWorkerState(rpc.WorkerIdle)

	tie, err := purchase.ParseTieBreak(in.TieBreak)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.OutputFile == "" {
		return nil, status.Errorf(codes.InvalidArgument, "reduce task %d has no output file", in.TaskId)
	}

	log.Trace("[Worker] Get intermediate counts")
	table := purchase.CountTable{}
	for _, fInfo := range in.Files {
		counts, err := wr.Client.GetIMDData(fInfo.Ip, fInfo.Filename)
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "reduce task %d: fetch %s from %s: %v", in.TaskId, fInfo.Filename, fInfo.Ip, err)
		}
		table.Merge(counts)
	}

	log.Trace("[Worker] Sort intermediate counts")
	sorted := table.Sorted()

	log.Trace("[Worker] Start Reducing")
	categories, err := writeReduceOutput(in.OutputFile, sorted, tie)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reduce task %d: %v", in.TaskId, err)
	}
	log.WithFields(log.Fields{
		"task":       in.TaskId,
		"keys":       len(sorted),
		"categories": categories,
		"output":     in.OutputFile,
	}).Infof("[Worker %d] End Reduce task", wr.ID)

	return &rpc.ReduceResult{
		Result:     true,
		Categories: int64(categories),
		Keys:       int64(len(sorted)),
		Purchases:  table.Total(),
	}, nil
}

// writeReduceOutput runs one tracker per category group and commits the part
// file with a rename, so a retried task never leaves a half-written file.
func writeReduceOutput(outputFile string, sorted []purchase.AggregatedCount, tie purchase.TieBreak) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return 0, err
	}
	tmp := outputFile + ".tmp-" + uuid.New().String()
	ofile, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp)

	rw := purchase.NewResultWriter(ofile)
	if err := purchase.PeakCounts(sorted, tie, rw.Write); err != nil {
		ofile.Close()
		return 0, err
	}
	if err := rw.Flush(); err != nil {
		ofile.Close()
		return 0, err
	}
	if err := ofile.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, outputFile); err != nil {
		return 0, err
	}
	return rw.Count(), nil
}

func (wr *Worker) GetIMDData(ctx context.Context, in *rpc.IMDLoc) (*rpc.IMDData, error) {
	log.Trace("[Worker] RPC Get intermediate file")
	b, err := os.ReadFile(in.Filename)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "intermediate file %s: %v", in.Filename, err)
	}
	return &rpc.IMDData{Records: b}, nil
}

func (wr *Worker) End(ctx context.Context, in *rpc.Empty) (*rpc.Empty, error) {
	log.Infof("[Worker %d] End worker", wr.ID)
	select {
	case wr.EndChan <- true:
	default:
	}
	return &rpc.Empty{}, nil
}

func (wr *Worker) setID(id int) {
	wr.ID = id
}

func (wr *Worker) Health(ctx context.Context, in *rpc.Empty) (*rpc.WorkerState, error) {
	log.Trace("[Worker] Health Check")

	wr.mux.Lock()
	state := wr.State
	wr.mux.Unlock()

	return &rpc.WorkerState{State: state}, nil
}

func (wr *Worker) trackIMD(files []string) {
	wr.mux.Lock()
	wr.imdFiles = append(wr.imdFiles, files...)
	wr.mux.Unlock()
}

// removeIMD deletes every intermediate file this worker wrote.
func (wr *Worker) removeIMD() {
	wr.mux.Lock()
	files := wr.imdFiles
	wr.imdFiles = nil
	wr.mux.Unlock()
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func (wr *Worker) setWorkerState(state rpc.WorkerStatus) {
	wr.mux.Lock()
	wr.State = state
	wr.mux.Unlock()
}
