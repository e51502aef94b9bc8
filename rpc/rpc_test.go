package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"
)

type stubWorker struct {
	UnimplementedWorkerServer
	gotLoc string
}

func (s *stubWorker) GetIMDData(ctx context.Context, in *IMDLoc) (*IMDData, error) {
	s.gotLoc = in.Filename
	return &IMDData{Records: []byte{0x0a, 0x00, 0xff}}, nil
}

func (s *stubWorker) Health(ctx context.Context, in *Empty) (*WorkerState, error) {
	return &WorkerState{State: WorkerBusy}, nil
}

func dialBuf(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	opts := append(DialOptions(), grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}))
	conn, err := grpc.Dial("bufnet", opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWorkerServiceOverWireCodec(t *testing.T) {
	stub := &stubWorker{}
	conn := dialBuf(t, func(s *grpc.Server) { RegisterWorkerServer(s, stub) })
	client := NewWorkerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := client.GetIMDData(ctx, &IMDLoc{Filename: "/tmp/imd-1-0.bin"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data.Records) != string([]byte{0x0a, 0x00, 0xff}) {
		t.Fatalf("records did not round-trip: %v", data.Records)
	}
	if stub.gotLoc != "/tmp/imd-1-0.bin" {
		t.Fatalf("server got %q", stub.gotLoc)
	}

	st, err := client.Health(ctx, &Empty{})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != WorkerBusy {
		t.Fatalf("state = %v", st.State)
	}

	_, err = client.End(ctx, &Empty{})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", err)
	}
}

type stubMaster struct {
	UnimplementedMasterServer
}

func (stubMaster) WorkerRegister(ctx context.Context, in *WorkerInfo) (*RegisterResult, error) {
	return &RegisterResult{Result: in.Uuid != "", Id: 7}, nil
}

func TestMasterServiceOverWireCodec(t *testing.T) {
	conn := dialBuf(t, func(s *grpc.Server) { RegisterMasterServer(s, stubMaster{}) })
	client := NewMasterClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := client.WorkerRegister(ctx, &WorkerInfo{Uuid: "u", Ip: ":1"})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Result || r.Id != 7 {
		t.Fatalf("unexpected register result %+v", r)
	}
	if _, err := client.UpdateIMDInfo(ctx, &IMDInfo{}); status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", err)
	}
}

func TestCodecCarriesNestedMessages(t *testing.T) {
	c := wireCodec{}
	in := &IMDInfo{
		Uuid:      "w-1",
		TaskId:    3,
		Filenames: []string{"/dev/shm/a", "", "/dev/shm/c"},
		Stats:     purchase.Stats{Lines: 9, Valid: 6, EmptyLines: 1, MalformedRecords: 1, MalformedTimestamps: 1},
	}
	b, err := c.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out := new(IMDInfo)
	if err := c.Unmarshal(b, out); err != nil {
		t.Fatal(err)
	}
	if out.Uuid != in.Uuid || out.TaskId != 3 || out.Stats != in.Stats {
		t.Fatalf("unexpected decode %+v", out)
	}
	if len(out.Filenames) != 3 || out.Filenames[1] != "" || out.Filenames[2] != "/dev/shm/c" {
		t.Fatalf("partition order lost: %q", out.Filenames)
	}

	red := &ReduceInfo{TaskId: 1, OutputFile: "/out/part-r-00001", TieBreak: "first",
		Files: []*ReduceFileInfo{{Ip: "h1:1", Filename: "a"}, {Ip: "h2:1", Filename: "b"}}}
	b, err = c.Marshal(red)
	if err != nil {
		t.Fatal(err)
	}
	gotRed := new(ReduceInfo)
	if err := c.Unmarshal(b, gotRed); err != nil {
		t.Fatal(err)
	}
	if gotRed.OutputFile != red.OutputFile || len(gotRed.Files) != 2 || gotRed.Files[1].Ip != "h2:1" {
		t.Fatalf("unexpected decode %+v", gotRed)
	}
}

// Bytes laid out the way any protobuf encoder writes MapInfo, plus a field
// this version does not know.
func TestCodecReadsProtobufLayout(t *testing.T) {
	var file []byte
	file = protowire.AppendTag(file, 1, protowire.BytesType)
	file = protowire.AppendString(file, "in.csv")
	file = protowire.AppendTag(file, 3, protowire.VarintType)
	file = protowire.AppendVarint(file, 4096)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 2)
	b = protowire.AppendTag(b, 9, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, file)

	in := new(MapInfo)
	if err := (wireCodec{}).Unmarshal(b, in); err != nil {
		t.Fatal(err)
	}
	if in.TaskId != 2 || len(in.Files) != 1 || in.Files[0].FileName != "in.csv" || in.Files[0].From != 0 || in.Files[0].To != 4096 {
		t.Fatalf("unexpected decode %+v", in)
	}
}

func TestCodecRejectsBadInput(t *testing.T) {
	c := wireCodec{}
	if _, err := c.Marshal("not a message"); err == nil {
		t.Fatal("expected marshal error")
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	if err := c.Unmarshal(b, new(WorkerInfo)); err == nil {
		t.Fatal("expected wire type mismatch")
	}
	if err := c.Unmarshal([]byte{0x0a, 0x05, 'a'}, new(IMDLoc)); err == nil {
		t.Fatal("expected truncated field error")
	}
}
