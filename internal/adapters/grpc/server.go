// Package grpc exposes internal service-to-service endpoints. Sibling
// services call ValidateToken and CheckQuota instead of re-implementing
// token or quota logic.
package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/edgefleet/fleetcore/internal/application"
	"github.com/edgefleet/fleetcore/internal/domain"
)

type FleetInternalService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckQuota(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type FleetInternalServer struct {
	service *application.Service
}

func NewFleetInternalServer(service *application.Service) *FleetInternalServer {
	return &FleetInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc FleetInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "edgefleet.fleet.v1.FleetInternalService",
		HandlerType: (*FleetInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateToken",
				Handler:    validateTokenHandler(svc),
			},
			{
				MethodName: "CheckQuota",
				Handler:    checkQuotaHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "fleet/v1/fleet_internal.proto",
	}, svc)
}

func (s *FleetInternalServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tokenVal := req.GetFields()["token"]
	if tokenVal == nil || tokenVal.GetStringValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	identity, err := s.service.ValidateToken(ctx, tokenVal.GetStringValue())
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":    true,
		"user_id":  identity.UserID.String(),
		"username": identity.Username,
		"role":     string(identity.Role),
		"org_id":   identity.OrgID.String(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *FleetInternalServer) CheckQuota(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	orgVal := fields["org_id"]
	if orgVal == nil {
		return nil, status.Error(codes.InvalidArgument, "missing org_id")
	}
	orgID, err := uuid.Parse(orgVal.GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid org_id")
	}

	resource := "devices"
	if v := fields["resource"]; v != nil && v.GetStringValue() != "" {
		resource = v.GetStringValue()
	}

	var quota domain.QuotaStatus
	switch resource {
	case "devices":
		quota, err = s.service.CheckDeviceQuota(ctx, orgID)
	case "storage":
		quota, err = s.service.CheckStorageQuota(ctx, orgID)
	case "users":
		quota, err = s.service.CheckUserQuota(ctx, orgID)
	default:
		return nil, status.Error(codes.InvalidArgument, "unknown resource")
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "organization not found")
		}
		return nil, status.Errorf(codes.Internal, "check quota: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"resource": resource,
		"allowed":  quota.Allowed,
		"used":     quota.Used,
		"max":      quota.Max,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func validateTokenHandler(svc FleetInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ValidateToken(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/edgefleet.fleet.v1.FleetInternalService/ValidateToken",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ValidateToken(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func checkQuotaHandler(svc FleetInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.CheckQuota(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/edgefleet.fleet.v1.FleetInternalService/CheckQuota",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.CheckQuota(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
