// Package rpc defines the master and worker gRPC services. Messages are plain
// Go structs that encode themselves in the protobuf wire format (see
// peakhour.proto) with protowire, carried by a codec registered under its own
// content-subtype so the process-wide "proto" codec is left alone.
package rpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of every call in this package.
const CodecName = "peakhour-proto"

// message is implemented by every request and response type.
type message interface {
	appendWire(b []byte) []byte
	readWire(b []byte) error
}

type wireCodec struct{}

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("rpc: cannot marshal %T", v)
	}
	return m.appendWire(nil), nil
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("rpc: cannot unmarshal into %T", v)
	}
	return m.readWire(data)
}

func (wireCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// DialOptions are the options every client connection needs.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
}
