package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection = "orders"
	menuCollection   = "menu"
	configCollection = "config"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	m := &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}

	// order_id is not unique; generated ids are never checked.
	_, err = m.orders().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "client_ip", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create order indexes: %w", err)
	}

	return m, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) orders() *mongo.Collection {
	return m.database.Collection(ordersCollection)
}

func (m *MongoRepository) CreateOrder(ctx context.Context, order models.Order) error {
	if _, err := m.orders().InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	var order models.Order
	err := m.orders().FindOne(ctx, bson.M{"order_id": orderID}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to find order: %w", err)
	}
	return order, nil
}

func (m *MongoRepository) ListOrders(ctx context.Context) ([]models.Order, error) {
	return m.findOrders(ctx, bson.M{})
}

func (m *MongoRepository) ListOrdersByClient(ctx context.Context, clientKey string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return m.findOrders(ctx, bson.M{"client_ip": clientKey}, opts)
}

func (m *MongoRepository) findOrders(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Order, error) {
	cursor, err := m.orders().Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (m *MongoRepository) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (models.Order, error) {
	update := bson.M{"$set": bson.M{
		"status":                  status,
		"status_update_timestamp": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := m.orders().FindOneAndUpdate(ctx, bson.M{"order_id": orderID}, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to update order: %w", err)
	}
	return order, nil
}

func (m *MongoRepository) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := m.orders().DeleteOne(ctx, bson.M{"order_id": orderID})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMenu returns the stored document as plain JSON values; nested BSON
// documents are converted through relaxed extended JSON.
func (m *MongoRepository) GetMenu(ctx context.Context) (models.Menu, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 0})
	raw, err := m.database.Collection(menuCollection).FindOne(ctx, bson.D{}, opts).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find menu: %w", err)
	}

	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert menu: %w", err)
	}
	var menu models.Menu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("failed to decode menu: %w", err)
	}
	return menu, nil
}

func (m *MongoRepository) ReplaceMenu(ctx context.Context, menu models.Menu) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.database.Collection(menuCollection).ReplaceOne(ctx, bson.D{}, bson.M(stripMenuID(menu)), opts); err != nil {
		return fmt.Errorf("failed to replace menu: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetConfig(ctx context.Context) (models.Config, error) {
	var cfg models.Config
	err := m.database.Collection(configCollection).FindOne(ctx, bson.D{}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Config{}, ErrNotFound
	}
	if err != nil {
		return models.Config{}, fmt.Errorf("failed to find config: %w", err)
	}
	return cfg, nil
}

func (m *MongoRepository) ReplaceConfig(ctx context.Context, cfg models.Config) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.database.Collection(configCollection).ReplaceOne(ctx, bson.D{}, cfg, opts); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
