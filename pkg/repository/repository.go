package repository

import (
	"context"
	"errors"
	"time"

	"github.com/example/bistro/pkg/models"
)

// ErrNotFound is returned by every backend when the addressed order or
// singleton document does not exist.
var ErrNotFound = errors.New("repository: not found")

type OrderRepository interface {
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByClient(ctx context.Context, clientKey string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (models.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

type MenuRepository interface {
	GetMenu(ctx context.Context) (models.Menu, error)
	ReplaceMenu(ctx context.Context, menu models.Menu) error
}

type ConfigRepository interface {
	GetConfig(ctx context.Context) (models.Config, error)
	ReplaceConfig(ctx context.Context, cfg models.Config) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	OrderRepository
	MenuRepository
	ConfigRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func stripMenuID(menu models.Menu) models.Menu {
	out := make(models.Menu, len(menu))
	for k, v := range menu {
		if k == models.MenuIDKey {
			continue
		}
		out[k] = v
	}
	return out
}
