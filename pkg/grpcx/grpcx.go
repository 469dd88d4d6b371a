// Package grpcx puts the authn gate in front of a gRPC server.
package grpcx

import (
	"context"

	"github.com/aussiebroadwan/tabtoken/pkg/authn"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthorizationKey is the metadata entry holding the basic credential.
const AuthorizationKey = "authorization"

// Skipper reports whether fullMethod bypasses the gate. Health checks are the
// usual candidate.
type Skipper func(fullMethod string) bool

// SkipMethods returns a Skipper for an exact list of full method names.
func SkipMethods(methods ...string) Skipper {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return func(fullMethod string) bool {
		_, ok := set[fullMethod]
		return ok
	}
}

func noSkip(string) bool { return false }

// UnaryServerInterceptor rejects calls that fail a with codes.Unauthenticated
// before the handler runs. Admitted calls see the caller's authn.Identity in
// their context.
func UnaryServerInterceptor(a *authn.Authenticator, skip Skipper) grpc.UnaryServerInterceptor {
	if skip == nil {
		skip = noSkip
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if skip(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := admit(ctx, a, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming form of UnaryServerInterceptor.
func StreamServerInterceptor(a *authn.Authenticator, skip Skipper) grpc.StreamServerInterceptor {
	if skip == nil {
		skip = noSkip
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if skip(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := admit(ss.Context(), a, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

func admit(ctx context.Context, a *authn.Authenticator, method string) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(AuthorizationKey); len(v) > 0 {
			header = v[0]
		}
	}

	authed, err := a.Authenticate(ctx, header)
	if err != nil {
		slogx.FromContext(ctx).Info("call rejected", "method", method, "reason", err)
		return ctx, status.Error(codes.Unauthenticated, authn.Reason(err))
	}
	return authed, nil
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

// BasicCredentials attaches a basic credential to every outgoing call. It
// implements credentials.PerRPCCredentials.
type BasicCredentials struct {
	ClientID string
	Secret   string

	// AllowInsecure permits sending the credential over a plaintext
	// connection, for in-cluster and test use.
	AllowInsecure bool
}

func (c BasicCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{AuthorizationKey: authn.Encode(c.ClientID, c.Secret)}, nil
}

func (c BasicCredentials) RequireTransportSecurity() bool { return !c.AllowInsecure }
