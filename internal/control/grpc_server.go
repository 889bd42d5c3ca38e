package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "formopt.control.v1.OptimizerControl"

// ControlServer is the server API of the OptimizerControl service
type ControlServer interface {
	Start(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ApplyBest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterControlServer registers srv on s
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

func unaryHandler(name string, newIn func() any, call func(ControlServer, context.Context, any) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newIn()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ControlServer), ctx, req)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newStruct() any { return new(structpb.Struct) }
func newEmpty() any  { return new(emptypb.Empty) }

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Start", newStruct, func(s ControlServer, ctx context.Context, in any) (any, error) {
			return s.Start(ctx, in.(*structpb.Struct))
		}),
		unaryHandler("Stop", newEmpty, func(s ControlServer, ctx context.Context, in any) (any, error) {
			return s.Stop(ctx, in.(*emptypb.Empty))
		}),
		unaryHandler("Status", newEmpty, func(s ControlServer, ctx context.Context, in any) (any, error) {
			return s.Status(ctx, in.(*emptypb.Empty))
		}),
		unaryHandler("ApplyBest", newEmpty, func(s ControlServer, ctx context.Context, in any) (any, error) {
			return s.ApplyBest(ctx, in.(*emptypb.Empty))
		}),
		unaryHandler("Reset", newEmpty, func(s ControlServer, ctx context.Context, in any) (any, error) {
			return s.Reset(ctx, in.(*emptypb.Empty))
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Watch",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ControlServer).Watch(in, stream)
			},
			ServerStreams: true,
		},
	},
	Metadata: "formopt/control/v1/control.proto",
}

// GRPCServer implements ControlServer over a Runner
type GRPCServer struct {
	runner *Runner
}

// NewGRPCServer creates a new GRPCServer
func NewGRPCServer(runner *Runner) *GRPCServer {
	return &GRPCServer{runner: runner}
}

func (s *GRPCServer) Start(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	opts := StartOptions{}
	if req != nil {
		fields := req.GetFields()
		if v, ok := fields["settleDelayMs"]; ok {
			ms := v.GetNumberValue()
			if ms < 0 {
				return nil, status.Error(codes.InvalidArgument, "settleDelayMs cannot be negative")
			}
			opts.SettleDelay = time.Duration(ms) * time.Millisecond
		}
		if v, ok := fields["resume"]; ok {
			opts.Resume = v.GetBoolValue()
		}
	}
	id, err := s.runner.Start(opts)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("optimizer started (grpc)", "session_id", id)
	return toStruct(map[string]any{"sessionId": id})
}

func (s *GRPCServer) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.runner.Stop(ctx); err != nil {
		return nil, grpcError(err)
	}
	return toStruct(s.runner.Status())
}

func (s *GRPCServer) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.runner.Status())
}

func (s *GRPCServer) ApplyBest(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.runner.ApplyBest(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"applied": true, "metrics": snap})
}

func (s *GRPCServer) Reset(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.runner.Reset(ctx); err != nil {
		return nil, grpcError(err)
	}
	return toStruct(s.runner.Best())
}

// Watch streams progress events until the client goes away
func (s *GRPCServer) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	hub := s.runner.Hub()
	if hub == nil {
		return status.Error(codes.Unavailable, "event hub not configured")
	}
	events, cancel := hub.Subscribe(subscriberBuffer)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := toStruct(ev)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotRunning):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrNoBest):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts any JSON-encodable value into a Struct
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// Client is a client of the OptimizerControl service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in any) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Start starts a session and returns its id
func (c *Client) Start(ctx context.Context, opts StartOptions) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"settleDelayMs": float64(opts.SettleDelay.Milliseconds()),
		"resume":        opts.Resume,
	})
	if err != nil {
		return "", err
	}
	out, err := c.invoke(ctx, "Start", in)
	if err != nil {
		return "", err
	}
	id, _ := out["sessionId"].(string)
	return id, nil
}

// Stop stops the running session and returns the final status
func (c *Client) Stop(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Stop", &emptypb.Empty{})
}

// Status returns the runner status
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Status", &emptypb.Empty{})
}

// ApplyBest writes the stored best into the page
func (c *Client) ApplyBest(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "ApplyBest", &emptypb.Empty{})
}

// Reset forgets the stored best
func (c *Client) Reset(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Reset", &emptypb.Empty{})
}

// Watch calls fn for every streamed event until ctx is done, the stream
// ends or fn returns an error
func (c *Client) Watch(ctx context.Context, fn func(map[string]any) error) error {
	stream, err := c.cc.NewStream(ctx, &controlServiceDesc.Streams[0], "/"+ServiceName+"/Watch")
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		if err := fn(msg.AsMap()); err != nil {
			return err
		}
	}
}
