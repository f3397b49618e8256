package grpcx

import (
	"context"

	"google.golang.org/grpc"

	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

// Client is the orchestrator side of the extension service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) CreateOrUpdate(ctx context.Context, in *wire.ResourceSpecification, opts ...grpc.CallOption) (*wire.Response, error) {
	return invoke[wire.Response](ctx, c.cc, "CreateOrUpdate", in, opts)
}

func (c *Client) Preview(ctx context.Context, in *wire.ResourceSpecification, opts ...grpc.CallOption) (*wire.Response, error) {
	return invoke[wire.Response](ctx, c.cc, "Preview", in, opts)
}

func (c *Client) Get(ctx context.Context, in *wire.ResourceReference, opts ...grpc.CallOption) (*wire.Response, error) {
	return invoke[wire.Response](ctx, c.cc, "Get", in, opts)
}

func (c *Client) Delete(ctx context.Context, in *wire.ResourceReference, opts ...grpc.CallOption) (*wire.Response, error) {
	return invoke[wire.Response](ctx, c.cc, "Delete", in, opts)
}

func (c *Client) Ping(ctx context.Context, opts ...grpc.CallOption) (*wire.Empty, error) {
	return invoke[wire.Empty](ctx, c.cc, "Ping", &wire.Empty{}, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
