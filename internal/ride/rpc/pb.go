package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Messages are plain structs carried over the JSON codec below; no
// generated proto code is involved.

// BookingRequest asks for one seat on a ride for the given caller.
type BookingRequest struct {
	CallerID   string `json:"caller_id"`
	CallerRole string `json:"caller_role"`
	RideID     string `json:"ride_id"`
}

// BookingDecision applies a provider verdict to a pending booking.
type BookingDecision struct {
	CallerID  string `json:"caller_id"`
	BookingID string `json:"booking_id"`
	Decision  string `json:"decision"`
}

// BookingReply mirrors the booking record.
type BookingReply struct {
	ID        string `json:"id"`
	RideID    string `json:"ride_id"`
	SeekerID  string `json:"seeker_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// ArbitratorServer defines the gRPC contract for internal callers.
type ArbitratorServer interface {
	RequestBooking(ctx context.Context, req *BookingRequest) (*BookingReply, error)
	RespondToBooking(ctx context.Context, req *BookingDecision) (*BookingReply, error)
}

const serviceName = "freewheel.Arbitrator"

// RegisterArbitratorServer registers the service implementation.
func RegisterArbitratorServer(s *grpc.Server, srv ArbitratorServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ArbitratorServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "RequestBooking", Handler: _Arbitrator_RequestBooking_Handler},
			{MethodName: "RespondToBooking", Handler: _Arbitrator_RespondToBooking_Handler},
		},
	}, srv)
}

func _Arbitrator_RequestBooking_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BookingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArbitratorServer).RequestBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RequestBooking"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArbitratorServer).RequestBooking(ctx, req.(*BookingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Arbitrator_RespondToBooking_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BookingDecision)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArbitratorServer).RespondToBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RespondToBooking"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArbitratorServer).RespondToBooking(ctx, req.(*BookingDecision))
	}
	return interceptor(ctx, in, info, handler)
}

// JSONCodec lets the plain message structs above travel over gRPC
// without generated marshalling code.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSONCodec) Name() string { return "json" }

var _ encoding.Codec = JSONCodec{}
