package handler

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/benefit-transfer/internal/adapter/handler/pb"
	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedBenefitServiceServer
	benefits  *service.BenefitService
	transfers service.TransferExecutor
	logger    *zap.Logger
}

func NewGRPCHandler(benefits *service.BenefitService, transfers service.TransferExecutor, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{benefits: benefits, transfers: transfers, logger: logger}
}

func (h *GRPCHandler) Transfer(ctx context.Context, req *pb.TransferRequest) (*pb.TransferResponse, error) {
	amount, err := decimal.NewFromString(req.GetAmount())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid amount %q", req.GetAmount())
	}

	err = h.transfers.Transfer(ctx, domain.TransferRequest{
		FromID:         req.GetFromId(),
		ToID:           req.GetToId(),
		Amount:         amount,
		IdempotencyKey: req.GetIdempotencyKey(),
	})
	if err != nil {
		return nil, h.grpcError(err)
	}

	return &pb.TransferResponse{
		Success: true,
		Message: "transfer committed",
	}, nil
}

func (h *GRPCHandler) GetBenefit(ctx context.Context, req *pb.GetBenefitRequest) (*pb.Benefit, error) {
	b, err := h.benefits.Get(ctx, req.GetId())
	if err != nil {
		return nil, h.grpcError(err)
	}

	return &pb.Benefit{
		Id:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Value:       b.Value.String(),
		Active:      b.Active,
		Version:     b.Version,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (h *GRPCHandler) grpcError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrParticipantNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInactiveParticipant), errors.Is(err, service.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrConcurrentUpdateConflict):
		return status.Error(codes.Aborted, "concurrent update, try again")
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
