package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/discovery"
	"github.com/example/bistro/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClientManager manages the gRPC connection to the admin service
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	target      string
	dialOptions []grpc.DialOption
	conn        *grpc.ClientConn
}

// NewClientManager creates a new gRPC client manager. disc may be nil.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger,
	}
}

// WithTarget fixes the dial target and skips discovery.
func (m *ClientManager) WithTarget(target string, opts ...grpc.DialOption) *ClientManager {
	m.target = target
	m.dialOptions = opts
	return m
}

// Connect resolves the admin service address and creates the connection.
func (m *ClientManager) Connect() error {
	target := m.target
	if target == "" {
		target = m.resolve()
	}

	m.logger.Info("Connecting to admin service", zap.String("target", target))

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, m.dialOptions...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to admin service: %w", err)
	}

	m.conn = conn
	return nil
}

func (m *ClientManager) resolve() string {
	// Default admin service address
	target := m.config.GRPC.Addr()

	// Try to use service discovery if available
	if m.discovery != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		instances, err := m.discovery.Discover(ctx, m.config.GRPC.Name)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			m.logger.Info("Discovered admin service", zap.String("address", target))
		} else {
			m.logger.Info("Using default address for admin service", zap.String("address", target))
		}
	}
	return target
}

func (m *ClientManager) ListOrders(ctx context.Context, active bool) ([]models.Order, error) {
	var resp struct {
		Orders []models.Order `json:"orders"`
	}
	if err := m.call(ctx, methodListOrders, map[string]any{"active": active}, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (m *ClientManager) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error) {
	var o models.Order
	req := map[string]any{"order_id": orderID, "status": string(status)}
	if err := m.call(ctx, methodUpdateOrderStatus, req, &o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (m *ClientManager) GetConfig(ctx context.Context) (models.Config, error) {
	var cfg models.Config
	if err := m.call(ctx, methodGetConfig, map[string]any{}, &cfg); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

func (m *ClientManager) SetConfig(ctx context.Context, cfg models.Config) (models.Config, error) {
	req := map[string]any{
		"cancellation_cutoff_minutes": cfg.CancellationCutoffMinutes,
		"paid_visibility_minutes":     cfg.PaidVisibilityMinutes,
	}
	var out models.Config
	if err := m.call(ctx, methodSetConfig, req, &out); err != nil {
		return models.Config{}, err
	}
	return out, nil
}

func (m *ClientManager) ReplaceMenu(ctx context.Context, menu models.Menu) error {
	var resp map[string]any
	return m.call(ctx, methodReplaceMenu, map[string]any{"menu": map[string]any(menu)}, &resp)
}

func (m *ClientManager) call(ctx context.Context, method string, req map[string]any, dest any) error {
	if m.conn == nil {
		return errors.New("admin client is not connected")
	}
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := m.conn.Invoke(ctx, "/"+AdminServiceName+"/"+method, in, out); err != nil {
		return err
	}
	data, err := out.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return json.Unmarshal(data, dest)
}

// Close closes the admin connection
func (m *ClientManager) Close() error {
	if m.conn == nil {
		return nil
	}
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("admin connection close error: %w", err)
	}
	return nil
}
