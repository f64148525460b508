package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"

	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/catalog"
	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/models"
	"github.com/example/bistro/pkg/order"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// AdminServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct values, so no generated code is
// needed on either side.
const AdminServiceName = "bistro.admin.v1.Admin"

const (
	methodListOrders        = "ListOrders"
	methodUpdateOrderStatus = "UpdateOrderStatus"
	methodGetConfig         = "GetConfig"
	methodSetConfig         = "SetConfig"
	methodReplaceMenu       = "ReplaceMenu"
)

// AdminService is the handler type registered with grpc.ServiceDesc.
type AdminService interface {
	ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReplaceMenu(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(methodListOrders, AdminService.ListOrders),
		unaryMethod(methodUpdateOrderStatus, AdminService.UpdateOrderStatus),
		unaryMethod(methodGetConfig, AdminService.GetConfig),
		unaryMethod(methodSetConfig, AdminService.SetConfig),
		unaryMethod(methodReplaceMenu, AdminService.ReplaceMenu),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bistro/admin/v1/admin.proto",
}

func unaryMethod(name string, call func(AdminService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + AdminServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AdminService), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type AdminServer struct {
	orders  *order.Service
	catalog *catalog.Service
	logger  *zap.Logger
	config  *config.GRPCConfig
	srv     *grpc.Server
}

func NewAdminServer(cfg *config.GRPCConfig, orders *order.Service, catalog *catalog.Service, logger *zap.Logger) *AdminServer {
	s := &AdminServer{
		orders:  orders,
		catalog: catalog,
		logger:  logger,
		config:  cfg,
	}
	s.srv = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	s.srv.RegisterService(&adminServiceDesc, s)
	reflection.Register(s.srv)
	return s
}

func (s *AdminServer) Start() error {
	addr := s.config.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Admin service started", zap.String("address", addr))
	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop is called.
func (s *AdminServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *AdminServer) Stop() {
	s.srv.GracefulStop()
}

func (s *AdminServer) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		orders []models.Order
		err    error
	)
	if req.GetFields()["active"].GetBoolValue() {
		orders, err = s.orders.ListActive(ctx)
	} else {
		orders, err = s.orders.List(ctx)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"orders": orders})
}

func (s *AdminServer) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	orderID := fields["order_id"].GetStringValue()
	if orderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	o, err := s.orders.UpdateStatus(ctx, orderID, models.OrderStatus(fields["status"].GetStringValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(o)
}

func (s *AdminServer) GetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg, err := s.catalog.Config(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(cfg)
}

func (s *AdminServer) SetConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cutoff, err := intField(req, "cancellation_cutoff_minutes")
	if err != nil {
		return nil, err
	}
	visibility, err := intField(req, "paid_visibility_minutes")
	if err != nil {
		return nil, err
	}
	cfg, err := s.catalog.SetConfig(ctx, models.Config{
		CancellationCutoffMinutes: cutoff,
		PaidVisibilityMinutes:     visibility,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(cfg)
}

func (s *AdminServer) ReplaceMenu(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	menu := req.GetFields()["menu"].GetStructValue()
	if menu == nil {
		return nil, status.Error(codes.InvalidArgument, "menu must be an object")
	}
	if err := s.catalog.ReplaceMenu(ctx, models.Menu(menu.AsMap())); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"message": "Menu updated successfully"})
}

func (s *AdminServer) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("Admin call failed", zap.String("method", info.FullMethod), zap.Error(err))
	} else {
		s.logger.Info("Admin call", zap.String("method", info.FullMethod))
	}
	return resp, err
}

func intField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int(n.NumberValue), nil
}

// toStruct converts v through its JSON form so field names match the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	var code codes.Code
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		code = codes.NotFound
	case apperr.InvalidArgument:
		code = codes.InvalidArgument
	case apperr.InvalidState:
		code = codes.FailedPrecondition
	case apperr.PermissionDenied, apperr.CutoffExpired:
		code = codes.PermissionDenied
	default:
		code = codes.Internal
		return status.Error(code, err.Error())
	}
	return status.Error(code, apperr.Message(err))
}
