package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	BenefitService_Transfer_FullMethodName   = "/benefits.v1.BenefitService/Transfer"
	BenefitService_GetBenefit_FullMethodName = "/benefits.v1.BenefitService/GetBenefit"
)

type BenefitServiceServer interface {
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	GetBenefit(context.Context, *GetBenefitRequest) (*Benefit, error)
}

// UnimplementedBenefitServiceServer can be embedded to stay forward compatible.
type UnimplementedBenefitServiceServer struct{}

func (UnimplementedBenefitServiceServer) Transfer(context.Context, *TransferRequest) (*TransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transfer not implemented")
}

func (UnimplementedBenefitServiceServer) GetBenefit(context.Context, *GetBenefitRequest) (*Benefit, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBenefit not implemented")
}

func RegisterBenefitServiceServer(s grpc.ServiceRegistrar, srv BenefitServiceServer) {
	s.RegisterService(&BenefitService_ServiceDesc, srv)
}

func transferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BenefitServiceServer).Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: BenefitService_Transfer_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BenefitServiceServer).Transfer(ctx, req.(*TransferRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getBenefitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetBenefitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BenefitServiceServer).GetBenefit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: BenefitService_GetBenefit_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BenefitServiceServer).GetBenefit(ctx, req.(*GetBenefitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var BenefitService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "benefits.v1.BenefitService",
	HandlerType: (*BenefitServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transfer", Handler: transferHandler},
		{MethodName: "GetBenefit", Handler: getBenefitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "benefits/v1/benefit.proto",
}

type BenefitServiceClient interface {
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error)
	GetBenefit(ctx context.Context, in *GetBenefitRequest, opts ...grpc.CallOption) (*Benefit, error)
}

type benefitServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBenefitServiceClient returns a client that always calls with the JSON codec.
func NewBenefitServiceClient(cc grpc.ClientConnInterface) BenefitServiceClient {
	return &benefitServiceClient{cc: cc}
}

func (c *benefitServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	out := new(TransferResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, BenefitService_Transfer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *benefitServiceClient) GetBenefit(ctx context.Context, in *GetBenefitRequest, opts ...grpc.CallOption) (*Benefit, error) {
	out := new(Benefit)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, BenefitService_GetBenefit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
