package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/version"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient talks to a running viewer over gRPC.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialGRPC connects to addr and waits until the connection is ready or
// dialTimeout passes.
func DialGRPC(ctx context.Context, addr string, dialTimeout time.Duration) (*GRPCClient, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("grpc address is empty")
	}
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial viewer grpc %q: %w", addr, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for viewer grpc readiness: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Apply sends cmd and waits for the main loop's Outcome.
func (c *GRPCClient) Apply(ctx context.Context, cmd command.RemoteCommand) (command.Outcome, error) {
	raw, err := command.Encode(cmd)
	if err != nil {
		return command.Outcome{}, err
	}
	return c.ApplyJSON(ctx, raw)
}

// ApplyJSON sends a command already in its JSON form.
func (c *GRPCClient) ApplyJSON(ctx context.Context, raw []byte) (command.Outcome, error) {
	in := &structpb.Value{}
	if err := protojson.Unmarshal(raw, in); err != nil {
		return command.Outcome{}, fmt.Errorf("%w: %v", command.ErrDecode, err)
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, applyMethod, in, reply); err != nil {
		return command.Outcome{}, err
	}

	data, err := protojson.Marshal(reply)
	if err != nil {
		return command.Outcome{}, err
	}
	var out command.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return command.Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return out, nil
}

// Health returns the serving status of the viewer service.
func (c *GRPCClient) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ViewerServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Close releases the connection.
func (c *GRPCClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
