package rpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
	"github.com/niti14-code/FreeWheel/internal/ride/service"
)

// Server adapts the arbitrator to the gRPC contract. Identity arrives
// inside the message: this transport is for trusted internal callers
// that have already authenticated the end user.
type Server struct {
	arbitrator *service.Arbitrator
}

// NewServer constructs a server.
func NewServer(arbitrator *service.Arbitrator) *Server {
	return &Server{arbitrator: arbitrator}
}

// RequestBooking implements ArbitratorServer.
func (s *Server) RequestBooking(ctx context.Context, req *BookingRequest) (*BookingReply, error) {
	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid caller_id")
	}
	rideID, err := uuid.Parse(req.RideID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid ride_id")
	}
	identity := domain.Identity{ID: callerID, Role: domain.Role(req.CallerRole)}
	booking, err := s.arbitrator.RequestBooking(ctx, identity, rideID)
	if err != nil {
		return nil, toStatus(err)
	}
	return replyFrom(booking), nil
}

// RespondToBooking implements ArbitratorServer.
func (s *Server) RespondToBooking(ctx context.Context, req *BookingDecision) (*BookingReply, error) {
	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid caller_id")
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid booking_id")
	}
	identity := domain.Identity{ID: callerID, Role: domain.RoleProvider}
	booking, err := s.arbitrator.RespondToBooking(ctx, identity, bookingID, domain.BookingStatus(req.Decision))
	if err != nil {
		return nil, toStatus(err)
	}
	return replyFrom(booking), nil
}

func replyFrom(booking domain.Booking) *BookingReply {
	return &BookingReply{
		ID:        booking.ID.String(),
		RideID:    booking.RideID.String(),
		SeekerID:  booking.SeekerID.String(),
		Status:    string(booking.Status),
		CreatedAt: booking.CreatedAt.Unix(),
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
