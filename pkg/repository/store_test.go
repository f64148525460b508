package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/bistro/pkg/models"
)

// runStoreSuite exercises the behaviour every backend must share.
func runStoreSuite(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.GetMenu(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMenu on empty store: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetConfig on empty store: err = %v, want ErrNotFound", err)
	}

	older := models.Order{
		OrderID:         "BISTRO-AAAAAA",
		ClientKey:       "10.0.0.1",
		CreatedAt:       base,
		StatusUpdatedAt: base,
		Items: []models.CartItem{
			{CartItemID: "a1", ID: 1, Name: "Soup", Price: 10, Quantity: 2},
		},
		Status:    models.StatusPending,
		TotalCost: 20,
	}
	newer := older
	newer.OrderID = "BISTRO-BBBBBB"
	newer.CreatedAt = base.Add(time.Minute)
	newer.StatusUpdatedAt = newer.CreatedAt
	other := older
	other.OrderID = "BISTRO-CCCCCC"
	other.ClientKey = "10.0.0.2"

	for _, o := range []models.Order{older, newer, other} {
		if err := store.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder(%s): %v", o.OrderID, err)
		}
	}

	got, err := store.GetOrder(ctx, older.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.ClientKey != older.ClientKey || got.TotalCost != 20 || len(got.Items) != 1 || got.Items[0].Name != "Soup" {
		t.Errorf("GetOrder returned %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}

	if _, err := store.GetOrder(ctx, "BISTRO-000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOrder missing: err = %v, want ErrNotFound", err)
	}

	all, err := store.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListOrders returned %d orders, want 3", len(all))
	}

	mine, err := store.ListOrdersByClient(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("ListOrdersByClient: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("ListOrdersByClient returned %d orders, want 2", len(mine))
	}

	at := base.Add(2 * time.Minute)
	updated, err := store.UpdateOrderStatus(ctx, older.OrderID, models.StatusAccepted, at)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if updated.Status != models.StatusAccepted || !updated.StatusUpdatedAt.Equal(at) {
		t.Errorf("UpdateOrderStatus returned %+v", updated)
	}
	if updated.TotalCost != 20 || !updated.CreatedAt.Equal(base) {
		t.Errorf("UpdateOrderStatus changed frozen fields: %+v", updated)
	}
	if _, err := store.UpdateOrderStatus(ctx, "BISTRO-000000", models.StatusPaid, at); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOrderStatus missing: err = %v, want ErrNotFound", err)
	}

	if err := store.DeleteOrder(ctx, newer.OrderID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if err := store.DeleteOrder(ctx, newer.OrderID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteOrder: err = %v, want ErrNotFound", err)
	}

	// Sub-cent prices keep the frozen total exact after a reload.
	fine := []models.CartItem{{CartItemID: "f1", ID: 3, Name: "Tasting spoon", Price: 0.333, Quantity: 3}}
	precise := models.Order{
		OrderID:         "BISTRO-DDDDDD",
		ClientKey:       "10.0.0.3",
		CreatedAt:       base,
		StatusUpdatedAt: base,
		Items:           fine,
		Status:          models.StatusPending,
		TotalCost:       models.TotalCost(fine),
	}
	if err := store.CreateOrder(ctx, precise); err != nil {
		t.Fatalf("CreateOrder(%s): %v", precise.OrderID, err)
	}
	reloaded, err := store.GetOrder(ctx, precise.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if reloaded.TotalCost != models.TotalCost(reloaded.Items) || reloaded.TotalCost != precise.TotalCost {
		t.Errorf("total cost = %v, items sum to %v, stored %v",
			reloaded.TotalCost, models.TotalCost(reloaded.Items), precise.TotalCost)
	}

	menu := models.Menu{
		"_id":   "client-supplied",
		"items": []any{map[string]any{"id": float64(1), "name": "Soup", "price": 4.5}},
	}
	if err := store.ReplaceMenu(ctx, menu); err != nil {
		t.Fatalf("ReplaceMenu: %v", err)
	}
	gotMenu, err := store.GetMenu(ctx)
	if err != nil {
		t.Fatalf("GetMenu: %v", err)
	}
	if _, ok := gotMenu["_id"]; ok {
		t.Error("GetMenu returned the stripped _id key")
	}
	items, ok := gotMenu["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("GetMenu items = %#v", gotMenu["items"])
	}

	cfg := models.Config{CancellationCutoffMinutes: 7, PaidVisibilityMinutes: 3}
	if err := store.ReplaceConfig(ctx, cfg); err != nil {
		t.Fatalf("ReplaceConfig: %v", err)
	}
	gotCfg, err := store.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if gotCfg != cfg {
		t.Errorf("GetConfig = %+v, want %+v", gotCfg, cfg)
	}
}
