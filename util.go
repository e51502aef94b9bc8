package peakhour

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/emptyOVO/peakhour/master"
	"github.com/emptyOVO/peakhour/purchase"
	"github.com/emptyOVO/peakhour/worker"
	log "github.com/sirupsen/logrus"
)

var ErrOutputExists = errors.New("output already contains a finished job")

// Job describes one peak-hour job.
type Job struct {
	Inputs     []string
	OutputDir  string
	NReduce    int
	NWorker    int
	MasterAddr string
	InRAM      bool
	IMDDir     string
	TieBreak   purchase.TieBreak
	Overwrite  bool
	// Advertise is the worker address peers dial, for multi-host setups.
	Advertise string
}

// ExpandInputs resolves files, directories and globs into a sorted list of
// regular files. Hidden files and Hadoop-style "_" markers are skipped inside
// directories.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("input %q: no such file", pattern)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			entries, err := os.ReadDir(m)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
					continue
				}
				add(filepath.Join(m, name))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// PrepareOutput refuses to clobber a finished job unless overwrite is set.
// Part files, uncommitted temp files and the marker of any earlier run,
// finished or not, are removed so the directory only ever holds this job's
// results.
func PrepareOutput(dir string, overwrite bool) error {
	marker := filepath.Join(dir, master.SuccessMarker)
	if _, err := os.Stat(marker); err == nil {
		if !overwrite {
			return fmt.Errorf("%s: %w", dir, ErrOutputExists)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	// "part-r-*" also matches a reducer's "part-r-NNNNN.tmp-<uuid>".
	stale, err := filepath.Glob(filepath.Join(dir, "part-r-*"))
	if err != nil {
		return err
	}
	stale = append(stale, marker)
	removed := 0
	for _, f := range stale {
		if err := os.Remove(f); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	if removed > 0 {
		log.Infof("Removed %d file(s) of a previous run in %s", removed, dir)
	}
	return os.MkdirAll(dir, 0o755)
}

func masterPort(masterAddr string) int {
	raw := strings.TrimSpace(masterAddr)
	if raw == "" {
		return 10000
	}
	parts := strings.Split(raw, ":")
	last := strings.TrimSpace(parts[len(parts)-1])
	if p, err := strconv.Atoi(last); err == nil && p >= 0 {
		return p
	}
	return 10000
}

// dialAddr swaps an unspecified listen host for loopback.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func workerHost(masterAddr string) string {
	i := strings.LastIndex(masterAddr, ":")
	if i <= 0 {
		return ""
	}
	return masterAddr[:i]
}

// startWorkerWithRetryE walks startPort, startPort+step, ... until a worker
// can listen. Port 0 lets the kernel choose and is tried once.
func startWorkerWithRetryE(run func(addr string) error, host string, startPort int, step int) error {
	const maxAttempts = 128
	if step <= 0 {
		step = 1
	}
	if startPort == 0 {
		return run(fmt.Sprintf("%s:0", host))
	}
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i*step
		addr := fmt.Sprintf("%s:%d", host, port)
		if err := run(addr); err != nil {
			msg := err.Error()
			if strings.Contains(msg, "address already in use") {
				log.Debugf("worker listen %s occupied, trying next port", addr)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("unable to find available worker port from %d after %d attempts", startPort, maxAttempts)
}

func workerOptions(job Job) worker.Options {
	return worker.Options{
		NReduce:    job.NReduce,
		StoreInRAM: job.InRAM,
		IMDDir:     job.IMDDir,
		Advertise:  job.Advertise,
	}
}
