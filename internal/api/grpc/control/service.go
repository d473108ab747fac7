package control

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gentlealert.control.v1.ControlService"

// Method names of ControlService.
const (
	MethodListRules      = "ListRules"
	MethodGetRule        = "GetRule"
	MethodCreateRule     = "CreateRule"
	MethodUpdateRule     = "UpdateRule"
	MethodSetRuleEnabled = "SetRuleEnabled"
	MethodDeleteRule     = "DeleteRule"
	MethodListSessions   = "ListSessions"
	MethodStop           = "Stop"
	MethodDelay          = "Delay"
	MethodStopAll        = "StopAll"
	MethodDelayAll       = "DelayAll"
	MethodTestFire       = "TestFire"
	MethodStatus         = "Status"
	MethodShutdown       = "Shutdown"
	MethodWatch          = "Watch"
)

// ControlServer is the server API of ControlService.
type ControlServer interface {
	ListRules(ctx context.Context, req *Empty) (*RuleList, error)
	GetRule(ctx context.Context, req *RuleRef) (*alert.Rule, error)
	CreateRule(ctx context.Context, req *RuleRequest) (*alert.Rule, error)
	UpdateRule(ctx context.Context, req *RuleRequest) (*alert.Rule, error)
	SetRuleEnabled(ctx context.Context, req *SetEnabledRequest) (*alert.Rule, error)
	DeleteRule(ctx context.Context, req *RuleRef) (*Empty, error)
	ListSessions(ctx context.Context, req *Empty) (*SessionList, error)
	Stop(ctx context.Context, req *RuleRef) (*CommandResult, error)
	Delay(ctx context.Context, req *DelayRequest) (*CommandResult, error)
	StopAll(ctx context.Context, req *Empty) (*CommandResult, error)
	DelayAll(ctx context.Context, req *DelayRequest) (*CommandResult, error)
	TestFire(ctx context.Context, req *RuleRef) (*CommandResult, error)
	Status(ctx context.Context, req *Empty) (*Status, error)
	Shutdown(ctx context.Context, req *Empty) (*Empty, error)
	Watch(req *Empty, stream WatchStream) error
}

// WatchStream is the server side of the Watch stream.
type WatchStream interface {
	Send(ev *alert.Event) error
	Context() context.Context
}

// watchStream adapts grpc.ServerStream to WatchStream.
type watchStream struct {
	grpc.ServerStream
}

// Send writes one event to the client.
func (w *watchStream) Send(ev *alert.Event) error {
	return w.ServerStream.SendMsg(ev)
}

// serviceDesc describes ControlService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListRules, ControlServer.ListRules),
		unary(MethodGetRule, ControlServer.GetRule),
		unary(MethodCreateRule, ControlServer.CreateRule),
		unary(MethodUpdateRule, ControlServer.UpdateRule),
		unary(MethodSetRuleEnabled, ControlServer.SetRuleEnabled),
		unary(MethodDeleteRule, ControlServer.DeleteRule),
		unary(MethodListSessions, ControlServer.ListSessions),
		unary(MethodStop, ControlServer.Stop),
		unary(MethodDelay, ControlServer.Delay),
		unary(MethodStopAll, ControlServer.StopAll),
		unary(MethodDelayAll, ControlServer.DelayAll),
		unary(MethodTestFire, ControlServer.TestFire),
		unary(MethodStatus, ControlServer.Status),
		unary(MethodShutdown, ControlServer.Shutdown),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatch,
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "gentlealert/control/v1/control.json",
}

// RegisterControlServer registers srv on registrar.
func RegisterControlServer(registrar grpc.ServiceRegistrar, srv ControlServer) {
	registrar.RegisterService(&serviceDesc, srv)
}

// fullMethod returns the wire name of method.
func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the descriptor of a unary method from its interface method expression.
func unary[Req, Resp any](
	name string,
	call func(ControlServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(
			srv any,
			ctx context.Context,
			dec func(any) error,
			interceptor grpc.UnaryServerInterceptor,
		) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			server, _ := srv.(ControlServer)

			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				typed, _ := req.(*Req)

				return call(server, ctx, typed)
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	server, _ := srv.(ControlServer)

	return server.Watch(in, &watchStream{ServerStream: stream})
}
