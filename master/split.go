package master

import (
	"bytes"
	"io"
	"os"

	"github.com/emptyOVO/peakhour/rpc"
)

// minSplitSize keeps small inputs in one split.
const minSplitSize = 64 * 1024

// splitFile cuts a file into about n byte ranges that each end right after a
// newline, so every line belongs to exactly one range.
func splitFile(path string, n int, minSize int64) ([]*rpc.MapFileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}
	if n < 1 {
		n = 1
	}
	chunk := size / int64(n)
	if chunk < minSize {
		chunk = minSize
	}
	if chunk < 1 {
		chunk = 1
	}

	var out []*rpc.MapFileInfo
	var pos int64
	for pos < size {
		end := pos + chunk
		if end >= size {
			end = size
		} else {
			end, err = nextLineBoundary(f, end, size)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, &rpc.MapFileInfo{FileName: path, From: pos, To: end})
		pos = end
	}
	return out, nil
}

// nextLineBoundary returns the offset just past the first newline at or
// after off, or size when there is none.
func nextLineBoundary(f *os.File, off int64, size int64) (int64, error) {
	buf := make([]byte, 4096)
	for off < size {
		n, err := f.ReadAt(buf, off)
		if idx := bytes.IndexByte(buf[:n], '\n'); idx >= 0 {
			return off + int64(idx) + 1, nil
		}
		off += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return size, nil
}

// planMapTasks splits every input and deals the splits round-robin into at
// most nTask map tasks.
func planMapTasks(inputs []string, nTask int, minSize int64) ([]*rpc.MapInfo, error) {
	if nTask < 1 {
		nTask = 1
	}
	var splits []*rpc.MapFileInfo
	for _, in := range inputs {
		s, err := splitFile(in, nTask, minSize)
		if err != nil {
			return nil, err
		}
		splits = append(splits, s...)
	}
	if len(splits) < nTask {
		nTask = len(splits)
	}
	tasks := make([]*rpc.MapInfo, nTask)
	for i := range tasks {
		tasks[i] = &rpc.MapInfo{TaskId: int32(i)}
	}
	for i, s := range splits {
		t := tasks[i%nTask]
		t.Files = append(t.Files, s)
	}
	return tasks, nil
}
