package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/emptyOVO/peakhour/purchase"
	"github.com/emptyOVO/peakhour/rpc"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type RpcClient interface {
	WorkerRegister(w *rpc.WorkerInfo) (int, error)
	UpdateIMDInfo(u *rpc.IMDInfo) error
	GetIMDData(ip string, filename string) ([]purchase.AggregatedCount, error)
}

type masterClient struct {
	master rpc.MasterClient
	conn   *grpc.ClientConn
}

func Connect(ip string) (*grpc.ClientConn, error) {
	return grpc.Dial(ip, rpc.DialOptions()...)
}

func newMasterClient(ip string) (*masterClient, error) {
	conn, err := Connect(ip)
	if err != nil {
		return nil, err
	}
	return &masterClient{master: rpc.NewMasterClient(conn), conn: conn}, nil
}

func (client *masterClient) Close() error {
	return client.conn.Close()
}

func (client *masterClient) WorkerRegister(w *rpc.WorkerInfo) (int, error) {
	const (
		maxAttempts = 40
		backoff     = 200 * time.Millisecond
	)
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		log.Trace("Start RPC call")
		r, err := client.master.WorkerRegister(ctx, w)
		cancel()
		log.Trace("End RPC call")
		if err != nil {
			if respErr, ok := status.FromError(err); ok {
				lastErr = fmt.Errorf("register worker rpc failed: %s", respErr.Message())
				if respErr.Code() != codes.Unavailable && respErr.Code() != codes.DeadlineExceeded {
					return 0, lastErr
				}
			} else {
				lastErr = err
			}
			time.Sleep(backoff)
			continue
		}
		if !r.Result {
			lastErr = fmt.Errorf("register worker rpc returned false")
			time.Sleep(backoff)
			continue
		}
		return int(r.Id), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("register worker rpc failed after retries")
	}
	return 0, lastErr
}

func (client *masterClient) UpdateIMDInfo(u *rpc.IMDInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := client.master.UpdateIMDInfo(ctx, u)
	if err != nil {
		if respErr, ok := status.FromError(err); ok {
			return fmt.Errorf("update imd info rpc failed (%s): %s", respErr.Code(), respErr.Message())
		}
		return err
	}
	if !r.Result {
		return fmt.Errorf("master rejected imd info of task %d", u.TaskId)
	}
	return nil
}

func (client *masterClient) GetIMDData(ip string, filename string) ([]purchase.AggregatedCount, error) {
	conn, err := Connect(ip)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	c := rpc.NewWorkerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := c.GetIMDData(ctx, &rpc.IMDLoc{
		Filename: filename,
	})
	if err != nil {
		if respErr, ok := status.FromError(err); ok {
			return nil, fmt.Errorf("get imd data rpc failed (%s): %s", respErr.Code(), respErr.Message())
		}
		return nil, err
	}

	return decodeIMD(r.Records)
}
