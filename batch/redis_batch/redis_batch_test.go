package redis_batch

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/emptyOVO/peakhour/purchase"
)

// fakeRedis answers the handful of commands the adapters send.
type fakeRedis struct {
	mu     sync.Mutex
	lists  map[string][]string
	hashes map[string]map[string]string
}

func startFakeRedis(t *testing.T, f *fakeRedis) ConnConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return ConnConfig{Host: "127.0.0.1", Port: addr.Port}
}

func (f *fakeRedis) serve(conn net.Conn) {
	defer conn.Close()
	c := &client{conn: conn, rd: bufio.NewReader(conn)}
	for {
		v, err := c.readResp()
		if err != nil {
			return
		}
		raw, _ := v.([]interface{})
		args := make([]string, len(raw))
		for i, a := range raw {
			args[i] = toString(a)
		}
		if _, err := conn.Write([]byte(f.handle(args))); err != nil {
			return
		}
	}
}

func bulk(s string) string {
	return "$" + strconv.Itoa(len(s)) + "\r\n" + s + "\r\n"
}

func array(items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(items))
	for _, it := range items {
		b.WriteString(bulk(it))
	}
	return b.String()
}

func (f *fakeRedis) handle(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch args[0] {
	case "PING":
		return "+PONG\r\n"
	case "LRANGE":
		list := f.lists[args[1]]
		start, _ := strconv.Atoi(args[2])
		stop, _ := strconv.Atoi(args[3])
		if start >= len(list) {
			return "*0\r\n"
		}
		if stop >= len(list) {
			stop = len(list) - 1
		}
		return array(list[start : stop+1])
	case "HSET":
		h := f.hashes[args[1]]
		if h == nil {
			h = map[string]string{}
			f.hashes[args[1]] = h
		}
		for i := 2; i+1 < len(args); i += 2 {
			h[args[i]] = args[i+1]
		}
		return ":1\r\n"
	case "SCAN":
		prefix := strings.TrimSuffix(args[3], "*")
		var keys []string
		for k := range f.hashes {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		return "*2\r\n" + bulk("0") + array(keys)
	case "DEL":
		for _, k := range args[1:] {
			delete(f.hashes, k)
		}
		return ":" + strconv.Itoa(len(args)-1) + "\r\n"
	}
	return "-ERR unknown command '" + args[0] + "'\r\n"
}

func TestEncodeCommand(t *testing.T) {
	got := string(encodeCommand("hset", "k", "f", "v"))
	want := "*4\r\n$4\r\nHSET\r\n$1\r\nk\r\n$1\r\nf\r\n$1\r\nv\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadResp(t *testing.T) {
	c := &client{rd: bufio.NewReader(strings.NewReader("*3\r\n:5\r\n$-1\r\n+OK\r\n-ERR boom\r\n"))}
	v, err := c.readResp()
	if err != nil {
		t.Fatal(err)
	}
	arr := v.([]interface{})
	if arr[0] != int64(5) || arr[1] != nil || arr[2] != "OK" {
		t.Fatalf("unexpected array %#v", arr)
	}
	v, err = c.readResp()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(respErr); !ok {
		t.Fatalf("expected error reply, got %#v", v)
	}
}

func TestExportSourcePagesList(t *testing.T) {
	lines := []string{
		"t1,u1,Electronics,p1,1,10.0,2024-01-01 10:15:00",
		"t2,u2,Books,p2,1,10.0,2024-01-01 09:00:00\r\n",
		"",
		"t3,u3,Books,p3,1,10.0,2024-01-01 09:30:00",
	}
	conn := startFakeRedis(t, &fakeRedis{lists: map[string][]string{"purchases": lines}, hashes: map[string]map[string]string{}})
	dir := t.TempDir()
	files, err := ExportSource(context.Background(), conn, SourceConfig{PageSize: 2, OutputDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one chunk, got %v", files)
	}
	b, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	want := lines[0] + "\n" + "t2,u2,Books,p2,1,10.0,2024-01-01 09:00:00\n" + lines[3] + "\n"
	if string(b) != want {
		t.Fatalf("got %q", b)
	}
}

func TestExportSourceEmptyList(t *testing.T) {
	conn := startFakeRedis(t, &fakeRedis{lists: map[string][]string{}, hashes: map[string]map[string]string{}})
	files, err := ExportSource(context.Background(), conn, SourceConfig{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}

func TestImportPeaksReplace(t *testing.T) {
	fake := &fakeRedis{hashes: map[string]map[string]string{
		"peakhour:Stale": {"peak_hour": "01", "purchases": "1"},
		"other:Keep":     {"x": "y"},
	}}
	conn := startFakeRedis(t, fake)
	peaks := []purchase.PeakResult{
		{Category: "Books", PeakHour: "09", PeakCount: 4},
		{Category: "Toys", PeakHour: "17", PeakCount: 2},
	}
	if err := ImportPeaks(context.Background(), conn, SinkConfig{Replace: true}, peaks); err != nil {
		t.Fatal(err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if _, ok := fake.hashes["peakhour:Stale"]; ok {
		t.Fatal("stale key not replaced")
	}
	if _, ok := fake.hashes["other:Keep"]; !ok {
		t.Fatal("key outside prefix removed")
	}
	if h := fake.hashes["peakhour:Books"]; h["peak_hour"] != "09" || h["purchases"] != "4" {
		t.Fatalf("unexpected hash %v", h)
	}
}
