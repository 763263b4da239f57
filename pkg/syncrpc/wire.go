// Package syncrpc is the hand-written equivalent of what protoc-gen-go +
// protoc-gen-go-grpc would generate for the three-operation sync service
// described in the design: Pull, Push, Watch. There is no .proto file to
// compile here — every message on the wire is already a well-known
// wrapper type (wrapperspb.StringValue carrying a JSON-encoded Commit or
// a bare commit id, emptypb.Empty for Watch's argument-less request), so
// the service can be built entirely on real proto.Message values without
// a protoc run. The ServiceDesc, client stub, and stream wrapper types
// below follow the exact shape protoc-gen-go-grpc emits for a service
// with one server-streaming, one bidirectional-streaming, and one more
// server-streaming method.
package syncrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName   = "demobit.Sync"
	pullFullName  = "/" + serviceName + "/Pull"
	pushFullName  = "/" + serviceName + "/Push"
	watchFullName = "/" + serviceName + "/Watch"
)

// SyncServer is the service interface a demobit server implements.
type SyncServer interface {
	// Pull streams remote commits strictly after the commit id carried
	// in req (or the full remote log if req is empty).
	Pull(req *wrapperspb.StringValue, stream Sync_PullServer) error
	// Push receives a stream of client-local commits and, for each,
	// replies with the signed remote commit or aborts the stream with
	// an error.
	Push(stream Sync_PushServer) error
	// Watch streams every commit as it is merged, for as long as the
	// client keeps the stream open.
	Watch(req *emptypb.Empty, stream Sync_WatchServer) error
}

// RegisterSyncServer installs srv's handlers on s under the Sync service
// name, the way a generated RegisterXxxServer function would.
func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&Sync_ServiceDesc, srv)
}

// Sync_ServiceDesc describes the Sync service to grpc.Server, hand-built
// in place of the output of protoc-gen-go-grpc.
var Sync_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SyncServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Pull",
			Handler:       _Sync_Pull_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "Push",
			Handler:       _Sync_Push_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "Watch",
			Handler:       _Sync_Watch_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "pkg/syncrpc/sync.proto",
}

func _Sync_Pull_Handler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SyncServer).Pull(req, &syncPullServer{stream})
}

func _Sync_Push_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(SyncServer).Push(&syncPushServer{stream})
}

func _Sync_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SyncServer).Watch(req, &syncWatchServer{stream})
}

// Sync_PullServer is the server-side handle for a Pull stream.
type Sync_PullServer interface {
	Send(*wrapperspb.StringValue) error
	grpc.ServerStream
}

type syncPullServer struct{ grpc.ServerStream }

func (x *syncPullServer) Send(m *wrapperspb.StringValue) error { return x.ServerStream.SendMsg(m) }

// Sync_PushServer is the server-side handle for a Push stream.
type Sync_PushServer interface {
	Send(*wrapperspb.StringValue) error
	Recv() (*wrapperspb.StringValue, error)
	grpc.ServerStream
}

type syncPushServer struct{ grpc.ServerStream }

func (x *syncPushServer) Send(m *wrapperspb.StringValue) error { return x.ServerStream.SendMsg(m) }

func (x *syncPushServer) Recv() (*wrapperspb.StringValue, error) {
	m := new(wrapperspb.StringValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Sync_WatchServer is the server-side handle for a Watch stream.
type Sync_WatchServer interface {
	Send(*wrapperspb.StringValue) error
	grpc.ServerStream
}

type syncWatchServer struct{ grpc.ServerStream }

func (x *syncWatchServer) Send(m *wrapperspb.StringValue) error { return x.ServerStream.SendMsg(m) }

// SyncClient is the client-side stub for the Sync service.
type SyncClient interface {
	Pull(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (Sync_PullClient, error)
	Push(ctx context.Context, opts ...grpc.CallOption) (Sync_PushClient, error)
	Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Sync_WatchClient, error)
}

type syncClient struct {
	cc grpc.ClientConnInterface
}

// NewSyncClient builds a SyncClient bound to cc.
func NewSyncClient(cc grpc.ClientConnInterface) SyncClient {
	return &syncClient{cc: cc}
}

func (c *syncClient) Pull(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (Sync_PullClient, error) {
	stream, err := c.cc.NewStream(ctx, &Sync_ServiceDesc.Streams[0], pullFullName, opts...)
	if err != nil {
		return nil, err
	}
	x := &syncPullClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Sync_PullClient is the client-side handle for a Pull stream.
type Sync_PullClient interface {
	Recv() (*wrapperspb.StringValue, error)
	grpc.ClientStream
}

type syncPullClient struct{ grpc.ClientStream }

func (x *syncPullClient) Recv() (*wrapperspb.StringValue, error) {
	m := new(wrapperspb.StringValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *syncClient) Push(ctx context.Context, opts ...grpc.CallOption) (Sync_PushClient, error) {
	stream, err := c.cc.NewStream(ctx, &Sync_ServiceDesc.Streams[1], pushFullName, opts...)
	if err != nil {
		return nil, err
	}
	return &syncPushClient{stream}, nil
}

// Sync_PushClient is the client-side handle for a Push stream.
type Sync_PushClient interface {
	Send(*wrapperspb.StringValue) error
	Recv() (*wrapperspb.StringValue, error)
	grpc.ClientStream
}

type syncPushClient struct{ grpc.ClientStream }

func (x *syncPushClient) Send(m *wrapperspb.StringValue) error { return x.ClientStream.SendMsg(m) }

func (x *syncPushClient) Recv() (*wrapperspb.StringValue, error) {
	m := new(wrapperspb.StringValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *syncClient) Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Sync_WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &Sync_ServiceDesc.Streams[2], watchFullName, opts...)
	if err != nil {
		return nil, err
	}
	x := &syncWatchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Sync_WatchClient is the client-side handle for a Watch stream.
type Sync_WatchClient interface {
	Recv() (*wrapperspb.StringValue, error)
	grpc.ClientStream
}

type syncWatchClient struct{ grpc.ClientStream }

func (x *syncWatchClient) Recv() (*wrapperspb.StringValue, error) {
	m := new(wrapperspb.StringValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
