package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRow struct {
	OrderID         string    `gorm:"primaryKey;type:varchar(16)"`
	ClientIP        string    `gorm:"type:varchar(64);not null;index:idx_client_placed,priority:1"`
	PlacedAt        time.Time `gorm:"not null;index:idx_client_placed,priority:2"`
	StatusUpdatedAt time.Time `gorm:"not null"`
	Items           string    `gorm:"type:text"` // JSON string
	Status          string    `gorm:"type:varchar(20);not null"`
	TotalCost       float64   `gorm:"type:double;not null"`
}

func (orderRow) TableName() string {
	return "orders"
}

// documentRow stores the menu and config singletons as JSON bodies.
type documentRow struct {
	Name      string `gorm:"primaryKey;type:varchar(32)"`
	Body      string `gorm:"type:mediumtext"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

const (
	menuDocument   = "menu"
	configDocument = "config"
)

type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(cfg *config.MySQLConfig) (*MySQLRepository, error) {
	// Connect to MySQL
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	// Auto migrate
	if err := db.AutoMigrate(&orderRow{}, &documentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &MySQLRepository{db: db}, nil
}

func (r *MySQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *MySQLRepository) Close(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *MySQLRepository) CreateOrder(ctx context.Context, order models.Order) error {
	row, err := toOrderRow(order)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *MySQLRepository) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	row, err := r.findRow(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	return row.toModel()
}

func (r *MySQLRepository) ListOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return toModels(rows)
}

func (r *MySQLRepository) ListOrdersByClient(ctx context.Context, clientKey string) ([]models.Order, error) {
	var rows []orderRow
	err := r.db.WithContext(ctx).
		Where("client_ip = ?", clientKey).
		Order("placed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return toModels(rows)
}

func (r *MySQLRepository) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (models.Order, error) {
	row, err := r.findRow(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	updates := map[string]interface{}{
		"status":            string(status),
		"status_updated_at": at,
	}
	if err := r.db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
		return models.Order{}, fmt.Errorf("failed to update order: %w", err)
	}

	row.Status = string(status)
	row.StatusUpdatedAt = at
	return row.toModel()
}

func (r *MySQLRepository) DeleteOrder(ctx context.Context, orderID string) error {
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&orderRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MySQLRepository) GetMenu(ctx context.Context) (models.Menu, error) {
	var menu models.Menu
	if err := r.getDocument(ctx, menuDocument, &menu); err != nil {
		return nil, err
	}
	return menu, nil
}

func (r *MySQLRepository) ReplaceMenu(ctx context.Context, menu models.Menu) error {
	return r.putDocument(ctx, menuDocument, stripMenuID(menu))
}

func (r *MySQLRepository) GetConfig(ctx context.Context) (models.Config, error) {
	var cfg models.Config
	if err := r.getDocument(ctx, configDocument, &cfg); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

func (r *MySQLRepository) ReplaceConfig(ctx context.Context, cfg models.Config) error {
	return r.putDocument(ctx, configDocument, cfg)
}

func (r *MySQLRepository) findRow(ctx context.Context, orderID string) (orderRow, error) {
	var row orderRow
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return orderRow{}, ErrNotFound
	}
	if err != nil {
		return orderRow{}, fmt.Errorf("failed to get order: %w", err)
	}
	return row, nil
}

func (r *MySQLRepository) getDocument(ctx context.Context, name string, dest any) error {
	var row documentRow
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(row.Body), dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (r *MySQLRepository) putDocument(ctx context.Context, name string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", name, err)
	}
	row := documentRow{Name: name, Body: string(body)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

func toOrderRow(order models.Order) (orderRow, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return orderRow{}, fmt.Errorf("failed to serialize items: %w", err)
	}
	return orderRow{
		OrderID:         order.OrderID,
		ClientIP:        order.ClientKey,
		PlacedAt:        order.CreatedAt,
		StatusUpdatedAt: order.StatusUpdatedAt,
		Items:           string(items),
		Status:          string(order.Status),
		TotalCost:       order.TotalCost,
	}, nil
}

func (row orderRow) toModel() (models.Order, error) {
	var items []models.CartItem
	if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
		return models.Order{}, fmt.Errorf("failed to parse items for order %s: %w", row.OrderID, err)
	}
	return models.Order{
		OrderID:         row.OrderID,
		ClientKey:       row.ClientIP,
		CreatedAt:       row.PlacedAt,
		StatusUpdatedAt: row.StatusUpdatedAt,
		Items:           items,
		Status:          models.OrderStatus(row.Status),
		TotalCost:       row.TotalCost,
	}, nil
}

func toModels(rows []orderRow) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
