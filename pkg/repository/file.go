package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/example/bistro/pkg/models"
)

const (
	ordersFile = "orders.json"
	menuFile   = "menu.json"
	configFile = "config.json"
)

// FileRepository keeps each collection in a JSON file under dir. Every write
// goes to a temp file in the same directory and is renamed over the target.
type FileRepository struct {
	dir string
	mu  sync.RWMutex
}

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (f *FileRepository) Ping(ctx context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *FileRepository) Close(ctx context.Context) error { return nil }

func (f *FileRepository) CreateOrder(ctx context.Context, order models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders, err := f.loadOrders()
	if err != nil {
		return err
	}
	orders = append(orders, order)
	return f.writeJSON(ordersFile, orders)
}

func (f *FileRepository) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	orders, err := f.loadOrders()
	if err != nil {
		return models.Order{}, err
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return models.Order{}, ErrNotFound
}

func (f *FileRepository) ListOrders(ctx context.Context) ([]models.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.loadOrders()
}

func (f *FileRepository) ListOrdersByClient(ctx context.Context, clientKey string) ([]models.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	orders, err := f.loadOrders()
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range orders {
		if o.ClientKey == clientKey {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *FileRepository) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders, err := f.loadOrders()
	if err != nil {
		return models.Order{}, err
	}
	for i := range orders {
		if orders[i].OrderID != orderID {
			continue
		}
		orders[i].Status = status
		orders[i].StatusUpdatedAt = at
		if err := f.writeJSON(ordersFile, orders); err != nil {
			return models.Order{}, err
		}
		return orders[i], nil
	}
	return models.Order{}, ErrNotFound
}

func (f *FileRepository) DeleteOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders, err := f.loadOrders()
	if err != nil {
		return err
	}
	for i := range orders {
		if orders[i].OrderID == orderID {
			orders = append(orders[:i], orders[i+1:]...)
			return f.writeJSON(ordersFile, orders)
		}
	}
	return ErrNotFound
}

func (f *FileRepository) GetMenu(ctx context.Context) (models.Menu, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var menu models.Menu
	if err := f.readJSON(menuFile, &menu); err != nil {
		return nil, err
	}
	return menu, nil
}

func (f *FileRepository) ReplaceMenu(ctx context.Context, menu models.Menu) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.writeJSON(menuFile, stripMenuID(menu))
}

func (f *FileRepository) GetConfig(ctx context.Context) (models.Config, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var cfg models.Config
	if err := f.readJSON(configFile, &cfg); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

func (f *FileRepository) ReplaceConfig(ctx context.Context, cfg models.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.writeJSON(configFile, cfg)
}

func (f *FileRepository) loadOrders() ([]models.Order, error) {
	var orders []models.Order
	err := f.readJSON(ordersFile, &orders)
	if errors.Is(err, ErrNotFound) {
		return []models.Order{}, nil
	}
	return orders, err
}

func (f *FileRepository) readJSON(name string, dest any) error {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (f *FileRepository) writeJSON(name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(f.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
