// Package sentinelv1 defines the sentinel.v1.Feedback gRPC service. Requests and
// responses are protobuf well-known types, so the service needs no generated
// message code; this file follows the layout protoc-gen-go-grpc emits.
package sentinelv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully-qualified gRPC service name, also used for health status.
	ServiceName = "sentinel.v1.Feedback"

	Feedback_GetState_FullMethodName       = "/sentinel.v1.Feedback/GetState"
	Feedback_SubmitFeedback_FullMethodName = "/sentinel.v1.Feedback/SubmitFeedback"
)

// FeedbackClient is the client API for the Feedback service.
type FeedbackClient interface {
	// GetState returns the latest alert decision, sample and connection status.
	GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// SubmitFeedback records a confirm (true) or reject (false) press and reports
	// whether it was accepted.
	SubmitFeedback(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type feedbackClient struct {
	cc grpc.ClientConnInterface
}

// NewFeedbackClient wraps a connection in a FeedbackClient.
func NewFeedbackClient(cc grpc.ClientConnInterface) FeedbackClient {
	return &feedbackClient{cc}
}

func (c *feedbackClient) GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Feedback_GetState_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedbackClient) SubmitFeedback(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, Feedback_SubmitFeedback_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FeedbackServer is the server API for the Feedback service. Implementations must
// embed UnimplementedFeedbackServer.
type FeedbackServer interface {
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SubmitFeedback(context.Context, *wrapperspb.BoolValue) (*wrapperspb.BoolValue, error)
	mustEmbedUnimplementedFeedbackServer()
}

// UnimplementedFeedbackServer returns Unimplemented for every method.
type UnimplementedFeedbackServer struct{}

func (UnimplementedFeedbackServer) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetState not implemented")
}

func (UnimplementedFeedbackServer) SubmitFeedback(context.Context, *wrapperspb.BoolValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SubmitFeedback not implemented")
}

func (UnimplementedFeedbackServer) mustEmbedUnimplementedFeedbackServer() {}

// RegisterFeedbackServer registers srv on s.
func RegisterFeedbackServer(s grpc.ServiceRegistrar, srv FeedbackServer) {
	s.RegisterService(&Feedback_ServiceDesc, srv)
}

func _Feedback_GetState_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeedbackServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Feedback_GetState_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FeedbackServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Feedback_SubmitFeedback_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BoolValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeedbackServer).SubmitFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Feedback_SubmitFeedback_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FeedbackServer).SubmitFeedback(ctx, req.(*wrapperspb.BoolValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Feedback_ServiceDesc is the grpc.ServiceDesc for the Feedback service.
var Feedback_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedbackServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetState",
			Handler:    _Feedback_GetState_Handler,
		},
		{
			MethodName: "SubmitFeedback",
			Handler:    _Feedback_SubmitFeedback_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sentinel/v1/feedback.proto",
}
