package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const workerService = "peakhour.Worker"

func workerRoute(method string) string {
	return "/" + workerService + "/" + method
}

type WorkerClient interface {
	Map(ctx context.Context, in *MapInfo, opts ...grpc.CallOption) (*Result, error)
	Reduce(ctx context.Context, in *ReduceInfo, opts ...grpc.CallOption) (*ReduceResult, error)
	GetIMDData(ctx context.Context, in *IMDLoc, opts ...grpc.CallOption) (*IMDData, error)
	Health(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*WorkerState, error)
	End(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
}

type workerClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerClient(cc grpc.ClientConnInterface) WorkerClient {
	return &workerClient{cc: cc}
}

func (c *workerClient) Map(ctx context.Context, in *MapInfo, opts ...grpc.CallOption) (*Result, error) {
	out := new(Result)
	if err := c.cc.Invoke(ctx, workerRoute("Map"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) Reduce(ctx context.Context, in *ReduceInfo, opts ...grpc.CallOption) (*ReduceResult, error) {
	out := new(ReduceResult)
	if err := c.cc.Invoke(ctx, workerRoute("Reduce"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) GetIMDData(ctx context.Context, in *IMDLoc, opts ...grpc.CallOption) (*IMDData, error) {
	out := new(IMDData)
	if err := c.cc.Invoke(ctx, workerRoute("GetIMDData"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) Health(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*WorkerState, error) {
	out := new(WorkerState)
	if err := c.cc.Invoke(ctx, workerRoute("Health"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) End(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, workerRoute("End"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type WorkerServer interface {
	Map(context.Context, *MapInfo) (*Result, error)
	Reduce(context.Context, *ReduceInfo) (*ReduceResult, error)
	GetIMDData(context.Context, *IMDLoc) (*IMDData, error)
	Health(context.Context, *Empty) (*WorkerState, error)
	End(context.Context, *Empty) (*Empty, error)
}

type UnimplementedWorkerServer struct{}

func (UnimplementedWorkerServer) Map(context.Context, *MapInfo) (*Result, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Map not implemented")
}

func (UnimplementedWorkerServer) Reduce(context.Context, *ReduceInfo) (*ReduceResult, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Reduce not implemented")
}

func (UnimplementedWorkerServer) GetIMDData(context.Context, *IMDLoc) (*IMDData, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetIMDData not implemented")
}

func (UnimplementedWorkerServer) Health(context.Context, *Empty) (*WorkerState, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Health not implemented")
}

func (UnimplementedWorkerServer) End(context.Context, *Empty) (*Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method End not implemented")
}

func RegisterWorkerServer(s grpc.ServiceRegistrar, srv WorkerServer) {
	s.RegisterService(&workerServiceDesc, srv)
}

// unaryHandler adapts one typed WorkerServer method to a grpc method handler.
func unaryHandler(method string, newIn func() interface{}, call func(WorkerServer, context.Context, interface{}) (interface{}, error)) grpc.MethodDesc {
	route := workerRoute(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newIn()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WorkerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: route}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(WorkerServer), ctx, req)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var workerServiceDesc = grpc.ServiceDesc{
	ServiceName: workerService,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Map", func() interface{} { return new(MapInfo) },
			func(s WorkerServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.Map(ctx, in.(*MapInfo))
			}),
		unaryHandler("Reduce", func() interface{} { return new(ReduceInfo) },
			func(s WorkerServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.Reduce(ctx, in.(*ReduceInfo))
			}),
		unaryHandler("GetIMDData", func() interface{} { return new(IMDLoc) },
			func(s WorkerServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.GetIMDData(ctx, in.(*IMDLoc))
			}),
		unaryHandler("Health", func() interface{} { return new(Empty) },
			func(s WorkerServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.Health(ctx, in.(*Empty))
			}),
		unaryHandler("End", func() interface{} { return new(Empty) },
			func(s WorkerServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.End(ctx, in.(*Empty))
			}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpc/worker",
}
