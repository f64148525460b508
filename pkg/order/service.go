// Package order turns carts into persisted orders and enforces the
// cancellation and modification windows.
package order

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/ids"
	"github.com/example/bistro/pkg/models"
	"github.com/example/bistro/pkg/repository"
	"go.uber.org/zap"
)

// Carts is the part of the cart manager the order lifecycle needs.
type Carts interface {
	Pop(clientKey string) ([]models.CartItem, error)
	Replace(clientKey string, items []models.CartItem) error
}

type ConfigSource interface {
	Config(ctx context.Context) (models.Config, error)
}

type Service struct {
	orders repository.OrderRepository
	carts  Carts
	config ConfigSource
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(orders repository.OrderRepository, carts Carts, config ConfigSource, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		orders: orders,
		carts:  carts,
		config: config,
		logger: logger,
		now:    time.Now,
		newID:  ids.OrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Place moves the client's cart into a new Pending order. The cart is
// restored if the order cannot be stored.
func (s *Service) Place(ctx context.Context, clientKey string) (models.Order, error) {
	items, err := s.carts.Pop(clientKey)
	if err != nil {
		return models.Order{}, err
	}
	if len(items) == 0 {
		return models.Order{}, apperr.New(apperr.InvalidState, "Cart is empty")
	}

	now := s.stamp()
	order := models.Order{
		OrderID:         s.newID(),
		ClientKey:       clientKey,
		CreatedAt:       now,
		StatusUpdatedAt: now,
		Items:           items,
		Status:          models.StatusPending,
		TotalCost:       models.TotalCost(items),
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.String("client", clientKey), zap.Error(err))
		if rerr := s.carts.Replace(clientKey, items); rerr != nil {
			s.logger.Error("Failed to restore cart", zap.String("client", clientKey), zap.Error(rerr))
		}
		return models.Order{}, apperr.Wrap(apperr.StorageError, "Could not save the order", err)
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.OrderID),
		zap.String("client", clientKey),
		zap.Int("items", len(items)),
		zap.Float64("total_cost", order.TotalCost))
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, classify(err, "Could not load order")
	}
	return order, nil
}

// List returns every order in storage order.
func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "Could not list orders", err)
	}
	return orders, nil
}

// ListActive returns the orders the kitchen board shows: everything not yet
// settled, plus orders paid within the configured visibility window.
func (s *Service) ListActive(ctx context.Context) ([]models.Order, error) {
	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	visibility := time.Duration(cfg.PaidVisibilityMinutes) * time.Minute
	active := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		switch o.Status {
		case models.StatusPending, models.StatusAccepted, models.StatusCompleted:
			active = append(active, o)
		case models.StatusPaid:
			if !now.After(o.StatusUpdatedAt.Add(visibility)) {
				active = append(active, o)
			}
		}
	}
	return active, nil
}

// History returns the client's orders, newest first.
func (s *Service) History(ctx context.Context, clientKey string) ([]models.Order, error) {
	orders, err := s.orders.ListOrdersByClient(ctx, clientKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "Could not list orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *Service) Delete(ctx context.Context, orderID, clientKey string) error {
	if _, err := s.authorize(ctx, orderID, clientKey, "Cut-off time for deletion has passed."); err != nil {
		return err
	}
	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		return classify(err, "Could not delete order")
	}

	s.logger.Info("Order deleted", zap.String("order_id", orderID), zap.String("client", clientKey))
	return nil
}

// Recart puts the order's items back into the owner's cart, replacing its
// contents, and deletes the order.
func (s *Service) Recart(ctx context.Context, orderID, clientKey string) error {
	order, err := s.authorize(ctx, orderID, clientKey, "Cut-off time for modification has passed.")
	if err != nil {
		return err
	}
	if err := s.carts.Replace(clientKey, order.Items); err != nil {
		return err
	}
	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		return classify(err, "Could not delete order")
	}

	s.logger.Info("Order moved to cart", zap.String("order_id", orderID), zap.String("client", clientKey))
	return nil
}

// UpdateStatus sets an admin status and refreshes the status timestamp.
// Items and total cost are never touched.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error) {
	if !status.Settable() {
		return models.Order{}, apperr.New(apperr.InvalidArgument, "Invalid status")
	}

	order, err := s.orders.UpdateOrderStatus(ctx, orderID, status, s.stamp())
	if err != nil {
		return models.Order{}, classify(err, "Could not update order")
	}

	s.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(status)))
	return order, nil
}

// stamp is the time recorded on orders. Mongo and MySQL keep milliseconds,
// so stored and returned orders agree on every backend.
func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// authorize loads the order and checks ownership and the cutoff window, which
// always runs from the creation time. The instant of the cutoff itself is
// still inside the window.
func (s *Service) authorize(ctx context.Context, orderID, clientKey, expiredMsg string) (models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, classify(err, "Could not load order")
	}
	if order.ClientKey != clientKey {
		return models.Order{}, apperr.New(apperr.PermissionDenied, "Permission denied")
	}

	cfg, err := s.config.Config(ctx)
	if err != nil {
		return models.Order{}, err
	}
	deadline := order.CreatedAt.Add(time.Duration(cfg.CancellationCutoffMinutes) * time.Minute)
	if s.now().After(deadline) {
		return models.Order{}, apperr.New(apperr.CutoffExpired, expiredMsg)
	}
	return order, nil
}

func classify(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, "Order not found")
	}
	return apperr.Wrap(apperr.StorageError, msg, err)
}
