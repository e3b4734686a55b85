package bridgegrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/blockberries/bridgeberry/types"
)

const serviceName = "bridgeberry.v1.BridgeService"

// BridgeServiceServer is the server-side interface for the bridge gRPC service.
type BridgeServiceServer interface {
	Post(context.Context, *PostRequest) (*PostResponse, error)
	UpgradeReward(context.Context, *TxQueryRequest) (*Empty, error)
	Claim(context.Context, *ClaimRequest) (*Empty, error)
	ReportInclusion(context.Context, *ReportInclusionRequest) (*Empty, error)
	ReportResult(context.Context, *ReportResultRequest) (*Empty, error)
	Delete(context.Context, *TxQueryRequest) (*types.Response, error)
	Status(context.Context, *QueryRequest) (*StatusResponse, error)
	ReadRequest(context.Context, *QueryRequest) (*types.Request, error)
	ReadPayload(context.Context, *QueryRequest) (*PayloadResponse, error)
	ReadResponse(context.Context, *QueryRequest) (*types.Response, error)
	RewardBalance(context.Context, *QueryRequest) (*AmountResponse, error)
	EstimateReward(context.Context, *EstimateRequest) (*AmountResponse, error)
	QueryCount(context.Context, *Empty) (*AmountResponse, error)
	Info(context.Context, *Empty) (*InfoResponse, error)
	RecordHeader(context.Context, *RecordHeaderRequest) (*Empty, error)
}

// RegisterBridgeServiceServer registers the BridgeServiceServer on a gRPC server.
func RegisterBridgeServiceServer(s *grpc.Server, srv BridgeServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerPost(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PostRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).Post(ctx, req)
}

func handlerUpgradeReward(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(TxQueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).UpgradeReward(ctx, req)
}

func handlerClaim(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ClaimRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).Claim(ctx, req)
}

func handlerReportInclusion(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ReportInclusionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).ReportInclusion(ctx, req)
}

func handlerReportResult(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ReportResultRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).ReportResult(ctx, req)
}

func handlerDelete(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(TxQueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).Delete(ctx, req)
}

func handlerStatus(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(QueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).Status(ctx, req)
}

func handlerReadRequest(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(QueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).ReadRequest(ctx, req)
}

func handlerReadPayload(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(QueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).ReadPayload(ctx, req)
}

func handlerReadResponse(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(QueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).ReadResponse(ctx, req)
}

func handlerRewardBalance(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(QueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).RewardBalance(ctx, req)
}

func handlerEstimateReward(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(EstimateRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).EstimateReward(ctx, req)
}

func handlerQueryCount(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).QueryCount(ctx, req)
}

func handlerInfo(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).Info(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func handlerRecordHeader(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(RecordHeaderRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(BridgeServiceServer).RecordHeader(ctx, req)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BridgeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Post", Handler: handlerPost},
		{MethodName: "UpgradeReward", Handler: handlerUpgradeReward},
		{MethodName: "Claim", Handler: handlerClaim},
		{MethodName: "ReportInclusion", Handler: handlerReportInclusion},
		{MethodName: "ReportResult", Handler: handlerReportResult},
		{MethodName: "Delete", Handler: handlerDelete},
		{MethodName: "Status", Handler: handlerStatus},
		{MethodName: "ReadRequest", Handler: handlerReadRequest},
		{MethodName: "ReadPayload", Handler: handlerReadPayload},
		{MethodName: "ReadResponse", Handler: handlerReadResponse},
		{MethodName: "RewardBalance", Handler: handlerRewardBalance},
		{MethodName: "EstimateReward", Handler: handlerEstimateReward},
		{MethodName: "QueryCount", Handler: handlerQueryCount},
		{MethodName: "Info", Handler: handlerInfo},
		{MethodName: "RecordHeader", Handler: handlerRecordHeader},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "github.com/blockberries/bridgeberry/v1/service.cram",
}
