package worker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/emptyOVO/peakhour/rpc"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var MasterIP string

func Init(masterIP string) {
	MasterIP = masterIP
}

// Options configures one worker process.
type Options struct {
	NReduce    int
	StoreInRAM bool
	// IMDDir holds intermediate files when StoreInRAM is false.
	IMDDir string
	// Advertise is the address peers and the master dial. Defaults to the
	// listener address with an unspecified host replaced by 127.0.0.1.
	Advertise string
}

// StartWorker serves the worker gRPC API on addr, registers with the master
// and blocks until the master ends it or ctx is done.
func StartWorker(ctx context.Context, addr string, opts Options) error {
	// start gRPC server
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	client, err := newMasterClient(MasterIP)
	if err != nil {
		listener.Close()
		return err
	}
	defer client.Close()

	wr := newWorker(client, opts)
	baseServer := grpc.NewServer(grpc.UnaryInterceptor(recoverInterceptor))
	rpc.RegisterWorkerServer(baseServer, wr)
	go func() {
		if err := baseServer.Serve(listener); err != nil {
			log.Error(err)
		}
	}()
	defer baseServer.Stop()
	defer wr.removeIMD()

	advertise := opts.Advertise
	if advertise == "" {
		advertise = advertiseAddr(listener.Addr())
	}
	log.Infof("Worker gRPC server start on %s", advertise)

	// Register itself
	id, err := wr.Client.WorkerRegister(&rpc.WorkerInfo{
		Uuid: wr.UUID,
		Ip:   advertise,
	})
	if err != nil {
		return err
	}
	wr.setID(id)
	log.Infof("[Worker %d] Worker register itself finish", id)

	select {
	case <-wr.EndChan:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Sleep for a while for waiting the End Grpc response sent to master
	time.Sleep(500 * time.Millisecond)
	return nil
}

func advertiseAddr(a net.Addr) string {
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		return a.String()
	}
	host := "127.0.0.1"
	if tcp.IP != nil && !tcp.IP.IsUnspecified() {
		host = tcp.IP.String()
	}
	return net.JoinHostPort(host, fmt.Sprint(tcp.Port))
}

// recoverInterceptor turns a handler panic into a failed task instead of a
// dead worker.
func recoverInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Worker] panic in %s: %v", info.FullMethod, r)
			err = status.Errorf(codes.Internal, "worker panic: %v", r)
		}
	}()
	return handler(ctx, req)
}
