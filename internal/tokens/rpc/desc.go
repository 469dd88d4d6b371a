package rpc

import (
	"context"

	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tabtoken.v1.Tokens"

// Full method names, as seen by interceptors.
const (
	MethodIssue      = "/" + ServiceName + "/Issue"
	MethodRefresh    = "/" + ServiceName + "/Refresh"
	MethodIntrospect = "/" + ServiceName + "/Introspect"
)

// TokensServer is the gRPC face of the issuer. Messages are the authsdk
// request and response types, carried with grpcx.JSONCodec.
type TokensServer interface {
	Issue(context.Context, *authsdk.TokenRequest) (*authsdk.TokenResponse, error)
	Refresh(context.Context, *authsdk.RefreshRequest) (*authsdk.TokenResponse, error)
	Introspect(context.Context, *authsdk.IntrospectRequest) (*authsdk.IntrospectionResponse, error)
}

// RegisterTokensServer registers srv on s.
func RegisterTokensServer(s grpc.ServiceRegistrar, srv TokensServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokensServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Issue", Handler: issueHandler},
		{MethodName: "Refresh", Handler: refreshHandler},
		{MethodName: "Introspect", Handler: introspectHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func issueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(authsdk.TokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokensServer).Issue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodIssue}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokensServer).Issue(ctx, req.(*authsdk.TokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func refreshHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(authsdk.RefreshRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokensServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodRefresh}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokensServer).Refresh(ctx, req.(*authsdk.RefreshRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(authsdk.IntrospectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokensServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodIntrospect}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokensServer).Introspect(ctx, req.(*authsdk.IntrospectRequest))
	}
	return interceptor(ctx, in, info, handler)
}
