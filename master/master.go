package master

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
	"github.com/emptyOVO/peakhour/rpc"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	JobName = "Purchase Behavior Analysis by Peak Hour"

	// MaxTaskAttempts bounds how often one task is tried before the job fails.
	MaxTaskAttempts = 3

	SuccessMarker = "_SUCCESS"
)

// errIMDLost means a reduce task needs intermediate data from a dead worker.
// The job has to be rerun.
var errIMDLost = errors.New("intermediate data lost")

type Config struct {
	Inputs    []string
	OutputDir string
	NWorker   int
	NReduce   int
	Addr      string
	TieBreak  purchase.TieBreak

	RegisterTimeout time.Duration
	TaskTimeout     time.Duration
	HealthInterval  time.Duration
	MinSplitSize    int64
}

func (c *Config) withDefaults() {
	if c.NWorker <= 0 {
		c.NWorker = 4
	}
	if c.NReduce <= 0 {
		c.NReduce = 1
	}
	if c.Addr == "" {
		c.Addr = ":10000"
	}
	if c.RegisterTimeout <= 0 {
		c.RegisterTimeout = time.Minute
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 30 * time.Minute
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 2 * time.Second
	}
	if c.MinSplitSize <= 0 {
		c.MinSplitSize = minSplitSize
	}
}

// JobReport summarizes a finished job.
type JobReport struct {
	Stats       purchase.Stats
	MapTasks    int
	ReduceTasks int
	Categories  int64
	Keys        int64
	Purchases   int64
	Outputs     []string
	Duration    time.Duration
}

type workerEntry struct {
	id     int
	uuid   string
	ip     string
	conn   *grpc.ClientConn
	client rpc.WorkerClient
	alive  bool
}

type imdEntry struct {
	info *rpc.IMDInfo
	ip   string
	uuid string
}

type Master struct {
	rpc.UnimplementedMasterServer

	cfg        Config
	mu         sync.Mutex
	workers    []*workerEntry
	byUUID     map[string]*workerEntry
	registered chan struct{}
	imd        map[int32]imdEntry
	nMapTasks  int

	listener net.Listener
	server   *grpc.Server
}

func New(cfg Config) *Master {
	cfg.withDefaults()
	return &Master{
		cfg:        cfg,
		byUUID:     make(map[string]*workerEntry),
		registered: make(chan struct{}),
		imd:        make(map[int32]imdEntry),
	}
}

// Listen starts the master gRPC server and returns the bound address.
func (m *Master) Listen() (string, error) {
	listener, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return "", err
	}
	m.listener = listener
	m.server = grpc.NewServer()
	rpc.RegisterMasterServer(m.server, m)
	go func() {
		if err := m.server.Serve(listener); err != nil {
			log.Error(err)
		}
	}()
	log.Infof("[Master] gRPC server start on %s", listener.Addr())
	return listener.Addr().String(), nil
}

// StartMaster runs a whole job: serve, wait for workers, map, reduce, end.
func StartMaster(ctx context.Context, cfg Config) (JobReport, error) {
	m := New(cfg)
	if _, err := m.Listen(); err != nil {
		return JobReport{}, err
	}
	return m.Run(ctx)
}

// Run drives the job on an already listening master.
func (m *Master) Run(ctx context.Context) (JobReport, error) {
	defer m.shutdown()
	started := time.Now()
	var report JobReport

	log.Infof("[Master] Job %q: %d input(s), %d worker(s), %d reducer(s)", JobName, len(m.cfg.Inputs), m.cfg.NWorker, m.cfg.NReduce)

	inputs, err := absPaths(m.cfg.Inputs)
	if err != nil {
		return report, err
	}
	outDir, err := filepath.Abs(m.cfg.OutputDir)
	if err != nil {
		return report, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return report, err
	}

	tasks, err := planMapTasks(inputs, m.cfg.NWorker, m.cfg.MinSplitSize)
	if err != nil {
		return report, fmt.Errorf("plan map tasks: %w", err)
	}
	m.nMapTasks = len(tasks)
	report.MapTasks = len(tasks)
	report.ReduceTasks = m.cfg.NReduce

	if err := m.waitForWorkers(ctx); err != nil {
		return report, err
	}

	hctx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go m.healthLoop(hctx)

	log.Info("[Master] Start map phase")
	err = m.runPhase(ctx, "map", len(tasks), func(ctx context.Context, w *workerEntry, id int) error {
		in := *tasks[id]
		in.NReduce = int32(m.cfg.NReduce)
		tctx, cancel := context.WithTimeout(ctx, m.cfg.TaskTimeout)
		defer cancel()
		_, err := w.client.Map(tctx, &in)
		if err != nil {
			return err
		}
		if !m.hasIMD(in.TaskId) {
			return fmt.Errorf("map task %d finished without intermediate info", in.TaskId)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("map phase: %w", err)
	}
	log.Info("[Master] End map phase")

	log.Info("[Master] Start reduce phase")
	results := make([]*rpc.ReduceResult, m.cfg.NReduce)
	outputs := make([]string, m.cfg.NReduce)
	var resMu sync.Mutex
	err = m.runPhase(ctx, "reduce", m.cfg.NReduce, func(ctx context.Context, w *workerEntry, id int) error {
		in, err := m.reduceInfo(id, outDir)
		if err != nil {
			return err
		}
		tctx, cancel := context.WithTimeout(ctx, m.cfg.TaskTimeout)
		defer cancel()
		r, err := w.client.Reduce(tctx, in)
		if err != nil {
			return err
		}
		resMu.Lock()
		results[id] = r
		outputs[id] = in.OutputFile
		resMu.Unlock()
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("reduce phase: %w", err)
	}
	log.Info("[Master] End reduce phase")

	for _, r := range results {
		report.Categories += r.Categories
		report.Keys += r.Keys
		report.Purchases += r.Purchases
	}
	report.Outputs = outputs
	report.Stats = m.totalStats()
	if report.Purchases != report.Stats.Valid {
		log.Warnf("[Master] Reduced %d purchases but mappers accepted %d lines", report.Purchases, report.Stats.Valid)
	}

	if err := os.WriteFile(filepath.Join(outDir, SuccessMarker), nil, 0o644); err != nil {
		return report, err
	}
	report.Duration = time.Since(started)
	log.WithFields(log.Fields{
		"lines":                report.Stats.Lines,
		"valid":                report.Stats.Valid,
		"malformed_records":    report.Stats.MalformedRecords,
		"malformed_timestamps": report.Stats.MalformedTimestamps,
		"categories":           report.Categories,
		"duration":             report.Duration,
	}).Info("[Master] Job finished")
	return report, nil
}

func absPaths(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		f, err := filepath.Abs(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *Master) waitForWorkers(ctx context.Context) error {
	timer := time.NewTimer(m.cfg.RegisterTimeout)
	defer timer.Stop()
	select {
	case <-m.registered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		m.mu.Lock()
		n := len(m.workers)
		m.mu.Unlock()
		return fmt.Errorf("only %d of %d workers registered within %s", n, m.cfg.NWorker, m.cfg.RegisterTimeout)
	}
}

// gRPC functions

func (m *Master) WorkerRegister(ctx context.Context, in *rpc.WorkerInfo) (*rpc.RegisterResult, error) {
	if in.Uuid == "" || in.Ip == "" {
		return nil, status.Errorf(codes.InvalidArgument, "worker uuid and ip are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.byUUID[in.Uuid]; ok {
		return &rpc.RegisterResult{Result: true, Id: int32(w.id)}, nil
	}
	conn, err := grpc.Dial(in.Ip, rpc.DialOptions()...)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "dial worker %s: %v", in.Ip, err)
	}
	w := &workerEntry{
		id:     len(m.workers),
		uuid:   in.Uuid,
		ip:     in.Ip,
		conn:   conn,
		client: rpc.NewWorkerClient(conn),
		alive:  true,
	}
	m.workers = append(m.workers, w)
	m.byUUID[in.Uuid] = w
	log.Infof("[Master] Worker %d registered from %s", w.id, w.ip)
	if len(m.workers) == m.cfg.NWorker {
		close(m.registered)
	}
	return &rpc.RegisterResult{Result: true, Id: int32(w.id)}, nil
}

func (m *Master) UpdateIMDInfo(ctx context.Context, in *rpc.IMDInfo) (*rpc.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byUUID[in.Uuid]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown worker %s", in.Uuid)
	}
	if len(in.Filenames) != m.cfg.NReduce {
		return nil, status.Errorf(codes.InvalidArgument, "task %d reported %d files, want %d", in.TaskId, len(in.Filenames), m.cfg.NReduce)
	}
	// A retried task replaces the earlier report.
	m.imd[in.TaskId] = imdEntry{info: in, ip: w.ip, uuid: w.uuid}
	log.Tracef("[Master] Intermediate info of map task %d from worker %d", in.TaskId, w.id)
	return &rpc.Result{Result: true}, nil
}

func (m *Master) hasIMD(task int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.imd[task]
	return ok
}

func (m *Master) totalStats() purchase.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st purchase.Stats
	for _, e := range m.imd {
		st = st.Add(e.info.Stats)
	}
	return st
}

func (m *Master) reduceInfo(partition int, outDir string) (*rpc.ReduceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := &rpc.ReduceInfo{
		TaskId:     int32(partition),
		OutputFile: filepath.Join(outDir, fmt.Sprintf("part-r-%05d", partition)),
		TieBreak:   m.cfg.TieBreak.String(),
	}
	for task := 0; task < m.nMapTasks; task++ {
		e, ok := m.imd[int32(task)]
		if !ok {
			return nil, fmt.Errorf("map task %d has no intermediate info", task)
		}
		if owner := m.byUUID[e.uuid]; owner == nil || !owner.alive {
			return nil, fmt.Errorf("map task %d on %s: %w", task, e.ip, errIMDLost)
		}
		in.Files = append(in.Files, &rpc.ReduceFileInfo{Ip: e.ip, Filename: e.info.Filenames[partition]})
	}
	return in, nil
}

func (m *Master) liveWorkers() []*workerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*workerEntry
	for _, w := range m.workers {
		if w.alive {
			out = append(out, w)
		}
	}
	return out
}

func (m *Master) markDead(w *workerEntry, reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.alive {
		w.alive = false
		log.Warnf("[Master] Worker %d (%s) marked dead: %v", w.id, w.ip, reason)
	}
}

func (m *Master) isAlive(w *workerEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return w.alive
}

func unavailable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// runPhase hands task ids 0..n-1 to every live worker until each task has
// succeeded once. A failed task is requeued up to MaxTaskAttempts; a worker
// whose RPC is unavailable stops taking tasks.
func (m *Master) runPhase(ctx context.Context, name string, n int, exec func(context.Context, *workerEntry, int) error) error {
	if n == 0 {
		return nil
	}
	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(chan int, n)
	for i := 0; i < n; i++ {
		pending <- i
	}
	attempts := make([]int, n)
	remaining := n
	done := make(chan struct{})
	errCh := make(chan error, 1)
	var mu sync.Mutex

	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	var wg sync.WaitGroup
	for _, w := range m.liveWorkers() {
		wg.Add(1)
		go func(w *workerEntry) {
			defer wg.Done()
			for {
				if !m.isAlive(w) {
					return
				}
				var id int
				select {
				case <-phaseCtx.Done():
					return
				case <-done:
					return
				case id = <-pending:
				}

				err := exec(phaseCtx, w, id)
				mu.Lock()
				if err == nil {
					remaining--
					if remaining == 0 {
						close(done)
					}
					mu.Unlock()
					continue
				}
				attempts[id]++
				log.Warnf("[Master] %s task %d failed on worker %d (attempt %d): %v", name, id, w.id, attempts[id], err)
				if errors.Is(err, errIMDLost) || attempts[id] >= MaxTaskAttempts {
					mu.Unlock()
					fail(fmt.Errorf("%s task %d: %w", name, id, err))
					return
				}
				pending <- id
				mu.Unlock()
				if unavailable(err) {
					m.markDead(w, err)
					return
				}
			}
		}(w)
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	select {
	case <-done:
		<-workersDone
		return nil
	case err := <-errCh:
		<-workersDone
		return err
	case <-workersDone:
		select {
		case <-done:
			return nil
		case err := <-errCh:
			return err
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%s phase: no live workers left", name)
	}
}

func (m *Master) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, w := range m.liveWorkers() {
			hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			st, err := w.client.Health(hctx, &rpc.Empty{})
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.markDead(w, err)
				continue
			}
			log.Tracef("[Master] Worker %d is %s", w.id, st.State)
		}
	}
}

// shutdown ends every live worker and stops the server.
func (m *Master) shutdown() {
	for _, w := range m.liveWorkers() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if _, err := w.client.End(ctx, &rpc.Empty{}); err != nil {
			log.Warnf("[Master] End worker %d: %v", w.id, err)
		}
		cancel()
	}
	m.mu.Lock()
	for _, w := range m.workers {
		if w.conn != nil {
			w.conn.Close()
		}
	}
	m.mu.Unlock()
	if m.server != nil {
		m.server.Stop()
	}
	log.Info("[Master] Shut down")
}
