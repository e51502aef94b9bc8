package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	masterService             = "peakhour.Master"
	masterWorkerRegisterRoute = "/" + masterService + "/WorkerRegister"
	masterUpdateIMDInfoRoute  = "/" + masterService + "/UpdateIMDInfo"
)

type MasterClient interface {
	WorkerRegister(ctx context.Context, in *WorkerInfo, opts ...grpc.CallOption) (*RegisterResult, error)
	UpdateIMDInfo(ctx context.Context, in *IMDInfo, opts ...grpc.CallOption) (*Result, error)
}

type masterClient struct {
	cc grpc.ClientConnInterface
}

func NewMasterClient(cc grpc.ClientConnInterface) MasterClient {
	return &masterClient{cc: cc}
}

func (c *masterClient) WorkerRegister(ctx context.Context, in *WorkerInfo, opts ...grpc.CallOption) (*RegisterResult, error) {
	out := new(RegisterResult)
	if err := c.cc.Invoke(ctx, masterWorkerRegisterRoute, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) UpdateIMDInfo(ctx context.Context, in *IMDInfo, opts ...grpc.CallOption) (*Result, error) {
	out := new(Result)
	if err := c.cc.Invoke(ctx, masterUpdateIMDInfoRoute, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type MasterServer interface {
	WorkerRegister(context.Context, *WorkerInfo) (*RegisterResult, error)
	UpdateIMDInfo(context.Context, *IMDInfo) (*Result, error)
}

type UnimplementedMasterServer struct{}

func (UnimplementedMasterServer) WorkerRegister(context.Context, *WorkerInfo) (*RegisterResult, error) {
	return nil, status.Errorf(codes.Unimplemented, "method WorkerRegister not implemented")
}

func (UnimplementedMasterServer) UpdateIMDInfo(context.Context, *IMDInfo) (*Result, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateIMDInfo not implemented")
}

func RegisterMasterServer(s grpc.ServiceRegistrar, srv MasterServer) {
	s.RegisterService(&masterServiceDesc, srv)
}

func masterWorkerRegisterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(WorkerInfo)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MasterServer).WorkerRegister(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: masterWorkerRegisterRoute}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MasterServer).WorkerRegister(ctx, req.(*WorkerInfo))
	}
	return interceptor(ctx, in, info, handler)
}

func masterUpdateIMDInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(IMDInfo)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MasterServer).UpdateIMDInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: masterUpdateIMDInfoRoute}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MasterServer).UpdateIMDInfo(ctx, req.(*IMDInfo))
	}
	return interceptor(ctx, in, info, handler)
}

var masterServiceDesc = grpc.ServiceDesc{
	ServiceName: masterService,
	HandlerType: (*MasterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WorkerRegister", Handler: masterWorkerRegisterHandler},
		{MethodName: "UpdateIMDInfo", Handler: masterUpdateIMDInfoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpc/master",
}
