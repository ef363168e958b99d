package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region client-struct
// Client wraps a gRPC connection to a StateService.
type Client struct {
	conn   *grpc.ClientConn
	client StateServiceClient
}
// #endregion client-struct

// #region constructor
// NewClient connects to a StateService at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewStateServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc StateServiceClient) *Client {
	return &Client{client: svc}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion constructor

// #region calls
// Get returns the remote counter.
func (c *Client) Get(ctx context.Context) (uint32, error) {
	resp, err := c.client.Get(ctx, &emptypb.Empty{})
	if err != nil {
		return 0, fmt.Errorf("get rpc: %w", err)
	}
	return resp.GetValue(), nil
}

// Inc increments the remote counter.
func (c *Client) Inc(ctx context.Context) error {
	if _, err := c.client.Inc(ctx, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("inc rpc: %w", err)
	}
	return nil
}

// Set overwrites the remote counter.
func (c *Client) Set(ctx context.Context, v uint32) error {
	if _, err := c.client.Set(ctx, wrapperspb.UInt32(v)); err != nil {
		return fmt.Errorf("set rpc: %w", err)
	}
	return nil
}

// Greeting returns the service's static greeting.
func (c *Client) Greeting(ctx context.Context) (string, error) {
	resp, err := c.client.Greeting(ctx, &emptypb.Empty{})
	if err != nil {
		return "", fmt.Errorf("greeting rpc: %w", err)
	}
	return resp.GetValue(), nil
}
// #endregion calls
