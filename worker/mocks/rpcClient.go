package mocks

import (
	"fmt"
	"sync"

	"github.com/emptyOVO/peakhour/purchase"
	"github.com/emptyOVO/peakhour/rpc"
)

// MasterClient records calls a worker makes towards the master and serves
// intermediate data from memory.
type MasterClient struct {
	mu sync.Mutex

	ID        int
	Err       error
	Registers []*rpc.WorkerInfo
	Updates   []*rpc.IMDInfo
	// Data maps "ip|filename" to the counts GetIMDData returns.
	Data map[string][]purchase.AggregatedCount
}

func DataKey(ip, filename string) string {
	return ip + "|" + filename
}

func (client *MasterClient) WorkerRegister(w *rpc.WorkerInfo) (int, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.Registers = append(client.Registers, w)
	return client.ID, client.Err
}

func (client *MasterClient) UpdateIMDInfo(u *rpc.IMDInfo) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.Updates = append(client.Updates, u)
	return client.Err
}

func (client *MasterClient) GetIMDData(ip string, filename string) ([]purchase.AggregatedCount, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.Err != nil {
		return nil, client.Err
	}
	counts, ok := client.Data[DataKey(ip, filename)]
	if !ok {
		return nil, fmt.Errorf("no data for %s on %s", filename, ip)
	}
	return counts, nil
}
