package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/task"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ViewerServiceName is the gRPC service carrying remote commands.
const ViewerServiceName = "molview.v1.Viewer"

const applyMethod = "/" + ViewerServiceName + "/Apply"

// viewerServer is the handler contract behind viewerServiceDesc. Apply takes
// the command in its JSON form as a Value and returns the Outcome as a Struct.
type viewerServer interface {
	Apply(context.Context, *structpb.Value) (*structpb.Struct, error)
}

var viewerServiceDesc = grpc.ServiceDesc{
	ServiceName: ViewerServiceName,
	HandlerType: (*viewerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: applyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "molview/v1/viewer.proto",
}

func applyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(viewerServer).Apply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(viewerServer).Apply(ctx, req.(*structpb.Value))
	}
	return interceptor(ctx, in, info, handler)
}

type viewerService struct {
	queue        Queue
	replyTimeout time.Duration
}

func (s *viewerService) Apply(ctx context.Context, in *structpb.Value) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s%v", ErrorPrefix, err)
	}
	cmd, err := command.Decode(raw)
	if err != nil {
		return nil, grpcError(err)
	}

	ctx, cancel := withReplyTimeout(ctx, s.replyTimeout)
	defer cancel()
	out, err := s.queue.Send(ctx, cmd)
	if err != nil {
		return nil, grpcError(fmt.Errorf("apply %s: %w", cmd.Kind(), err))
	}
	return outcomeStruct(out)
}

func outcomeStruct(out command.Outcome) (*structpb.Struct, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, grpcError(err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, grpcError(err)
	}
	return st, nil
}

func grpcError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, command.ErrDecode):
		code = codes.InvalidArgument
	case errors.Is(err, task.ErrChannelClosed):
		code = codes.Unavailable
	case errors.Is(err, task.ErrAcceptedNoReply):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, ErrorPrefix+err.Error())
}

func requestLogInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := uuid.NewString()
		resp, err := handler(ctx, req)
		attrs := []any{"request_id", id, "method", info.FullMethod, "code", status.Code(err).String()}
		if err != nil {
			logger.Warn("remote rpc failed", append(attrs, "error", err.Error())...)
			return resp, err
		}
		logger.Info("remote rpc", attrs...)
		return resp, nil
	}
}

func recoverInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("remote rpc panic", "method", info.FullMethod, "panic", fmt.Sprint(p))
				err = status.Errorf(codes.Internal, "%sinternal panic: %v", ErrorPrefix, p)
			}
		}()
		return handler(ctx, req)
	}
}
