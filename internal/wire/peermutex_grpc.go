package wire

import (
	"context"

	"google.golang.org/grpc"
)

// PeerMutexServer is the interface every peer implements to serve
// requests from other peers.
type PeerMutexServer interface {
	RequestAccess(context.Context, *AccessRequest) (*AccessResponse, error)
	ReleaseAccess(context.Context, *AccessRelease) (*Empty, error)
}

// PeerMutexClient is the outbound stub a peer holds for every other
// configured peer.
type PeerMutexClient interface {
	RequestAccess(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error)
	ReleaseAccess(ctx context.Context, in *AccessRelease, opts ...grpc.CallOption) (*Empty, error)
}

type peerMutexClient struct {
	cc grpc.ClientConnInterface
}

// NewPeerMutexClient builds a PeerMutexClient over an established
// connection to a single peer.
func NewPeerMutexClient(cc grpc.ClientConnInterface) PeerMutexClient {
	return &peerMutexClient{cc: cc}
}

func (c *peerMutexClient) RequestAccess(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	out := new(AccessResponse)
	if err := c.cc.Invoke(ctx, "/peermutex.PeerMutex/RequestAccess", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *peerMutexClient) ReleaseAccess(ctx context.Context, in *AccessRelease, opts ...grpc.CallOption) (*Empty, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/peermutex.PeerMutex/ReleaseAccess", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _PeerMutex_RequestAccess_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AccessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PeerMutexServer).RequestAccess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/peermutex.PeerMutex/RequestAccess",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PeerMutexServer).RequestAccess(ctx, req.(*AccessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PeerMutex_ReleaseAccess_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AccessRelease)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PeerMutexServer).ReleaseAccess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/peermutex.PeerMutex/ReleaseAccess",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PeerMutexServer).ReleaseAccess(ctx, req.(*AccessRelease))
	}
	return interceptor(ctx, in, info, handler)
}

// PeerMutexServiceDesc is the grpc.ServiceDesc a peer registers its
// PeerMutexServer implementation under.
var PeerMutexServiceDesc = grpc.ServiceDesc{
	ServiceName: "peermutex.PeerMutex",
	HandlerType: (*PeerMutexServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestAccess", Handler: _PeerMutex_RequestAccess_Handler},
		{MethodName: "ReleaseAccess", Handler: _PeerMutex_ReleaseAccess_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mutex.proto",
}

// RegisterPeerMutexServer registers srv as the handler for the
// PeerMutex service on s.
func RegisterPeerMutexServer(s grpc.ServiceRegistrar, srv PeerMutexServer) {
	s.RegisterService(&PeerMutexServiceDesc, srv)
}
