package rpc

import (
	"context"

	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
	"github.com/aussiebroadwan/tabtoken/pkg/grpcx"
	"google.golang.org/grpc"
)

// Client calls a TokensServer over cc. The connection should carry
// grpcx.BasicCredentials.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Issue(ctx context.Context, in *authsdk.TokenRequest, opts ...grpc.CallOption) (*authsdk.TokenResponse, error) {
	out := new(authsdk.TokenResponse)
	if err := c.cc.Invoke(ctx, MethodIssue, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, in *authsdk.RefreshRequest, opts ...grpc.CallOption) (*authsdk.TokenResponse, error) {
	out := new(authsdk.TokenResponse)
	if err := c.cc.Invoke(ctx, MethodRefresh, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Introspect(ctx context.Context, in *authsdk.IntrospectRequest, opts ...grpc.CallOption) (*authsdk.IntrospectionResponse, error) {
	out := new(authsdk.IntrospectionResponse)
	if err := c.cc.Invoke(ctx, MethodIntrospect, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpcx.JSONCallOption()}, opts...)
}
