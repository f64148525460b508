package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/cart"
	"github.com/example/bistro/pkg/catalog"
	"github.com/example/bistro/pkg/models"
	"github.com/example/bistro/pkg/repository"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc     *Service
	carts   *cart.Manager
	catalog *catalog.Service
	store   *repository.FileRepository
	clock   *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := repository.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	carts, err := cart.NewManager(actor.NewActorSystem(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(carts.Stop)

	clock := &testClock{now: time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)}
	cat := catalog.NewService(store, zap.NewNop())
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		svc:     NewService(store, carts, cat, zap.NewNop(), opts...),
		carts:   carts,
		catalog: cat,
		store:   store,
		clock:   clock,
	}
}

func (f *fixture) fillCart(t *testing.T, client string) {
	t.Helper()
	// 10 x 2 + 5 x 1
	f.carts.Add(client, models.MenuItem{ID: 1, Name: "Steak", Price: 10})
	f.carts.Add(client, models.MenuItem{ID: 1, Name: "Steak", Price: 10})
	if _, err := f.carts.Add(client, models.MenuItem{ID: 2, Name: "Salad", Price: 5}); err != nil {
		t.Fatal(err)
	}
}

const client = "203.0.113.7"

func TestPlaceAndAcceptScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t, client)

	order, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if order.TotalCost != 25 || order.Status != models.StatusPending {
		t.Errorf("placed order = %+v, want total 25 Pending", order)
	}
	if order.ClientKey != client || len(order.Items) != 2 {
		t.Errorf("placed order = %+v", order)
	}
	if !order.CreatedAt.Equal(order.StatusUpdatedAt) {
		t.Error("timestamps should match at placement")
	}

	left, _ := f.carts.Get(client)
	if len(left) != 0 {
		t.Errorf("cart not emptied: %+v", left)
	}

	f.clock.Advance(time.Minute)
	updated, err := f.svc.UpdateStatus(ctx, order.OrderID, models.StatusAccepted)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != models.StatusAccepted {
		t.Errorf("status = %s, want Accepted", updated.Status)
	}
	if !updated.StatusUpdatedAt.After(order.StatusUpdatedAt) {
		t.Error("status_updated_at did not advance")
	}
	if updated.TotalCost != 25 || len(updated.Items) != 2 || !updated.CreatedAt.Equal(order.CreatedAt) {
		t.Errorf("UpdateStatus changed frozen fields: %+v", updated)
	}
}

func TestPlaceEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Place(ctx, client)
	if apperr.KindOf(err) != apperr.InvalidState {
		t.Fatalf("Place on empty cart: err = %v, want InvalidState", err)
	}
	all, _ := f.svc.List(ctx)
	if len(all) != 0 {
		t.Errorf("order created from empty cart: %+v", all)
	}
}

func TestPlaceUsesGeneratedID(t *testing.T) {
	f := newFixture(t, WithIDGenerator(func() string { return "BISTRO-ABC123" }))
	f.fillCart(t, client)

	order, err := f.svc.Place(context.Background(), client)
	if err != nil {
		t.Fatal(err)
	}
	if order.OrderID != "BISTRO-ABC123" {
		t.Errorf("OrderID = %q", order.OrderID)
	}
	stored, err := f.svc.Get(context.Background(), "BISTRO-ABC123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.TotalCost != 25 {
		t.Errorf("stored order = %+v", stored)
	}
}

type failingOrders struct {
	repository.OrderRepository
}

func (failingOrders) CreateOrder(context.Context, models.Order) error {
	return errors.New("disk full")
}

func TestPlaceRestoresCartOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingOrders{f.store}, f.carts, f.catalog, zap.NewNop(), WithClock(f.clock.Now))
	f.fillCart(t, client)

	_, err := svc.Place(context.Background(), client)
	if apperr.KindOf(err) != apperr.StorageError {
		t.Fatalf("err = %v, want StorageError", err)
	}
	items, _ := f.carts.Get(client)
	if len(items) != 2 {
		t.Errorf("cart not restored: %+v", items)
	}
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Get(context.Background(), "BISTRO-FFFFFF"); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var placed []string
	for i := 0; i < 3; i++ {
		f.fillCart(t, client)
		o, err := f.svc.Place(ctx, client)
		if err != nil {
			t.Fatal(err)
		}
		placed = append(placed, o.OrderID)
		f.clock.Advance(time.Second)
	}
	f.fillCart(t, "198.51.100.1")
	if _, err := f.svc.Place(ctx, "198.51.100.1"); err != nil {
		t.Fatal(err)
	}

	history, err := f.svc.History(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history has %d orders, want 3", len(history))
	}
	for i, o := range history {
		if want := placed[len(placed)-1-i]; o.OrderID != want {
			t.Errorf("history[%d] = %s, want %s", i, o.OrderID, want)
		}
	}

	empty, err := f.svc.History(ctx, "192.0.2.99")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("history for unknown client = %#v, want empty slice", empty)
	}
}

func TestDeleteAndRecartChecks(t *testing.T) {
	type op func(s *Service, ctx context.Context, id, client string) error
	ops := map[string]op{
		"delete": (*Service).Delete,
		"recart": (*Service).Recart,
	}

	for name, run := range ops {
		t.Run(name, func(t *testing.T) {
			tests := []struct {
				name     string
				caller   string
				orderID  string
				advance  time.Duration
				wantKind apperr.Kind
			}{
				{"missing order", client, "BISTRO-000000", 0, apperr.NotFound},
				{"wrong owner", "198.51.100.1", "", 0, apperr.PermissionDenied},
				{"just after cutoff", client, "", 5*time.Minute + time.Nanosecond, apperr.CutoffExpired},
				{"exactly at cutoff", client, "", 5 * time.Minute, apperr.Unknown},
				{"within window", client, "", time.Minute, apperr.Unknown},
			}
			for _, tt := range tests {
				f := newFixture(t)
				ctx := context.Background()
				f.fillCart(t, client)
				order, err := f.svc.Place(ctx, client)
				if err != nil {
					t.Fatal(err)
				}
				id := tt.orderID
				if id == "" {
					id = order.OrderID
				}
				f.clock.Advance(tt.advance)

				err = run(f.svc, ctx, id, tt.caller)
				if tt.wantKind == apperr.Unknown {
					if err != nil {
						t.Errorf("%s: unexpected error %v", tt.name, err)
					}
					if _, gerr := f.svc.Get(ctx, order.OrderID); apperr.KindOf(gerr) != apperr.NotFound {
						t.Errorf("%s: order still present after %s", tt.name, name)
					}
					continue
				}
				if got := apperr.KindOf(err); got != tt.wantKind {
					t.Errorf("%s: kind = %v, want %v (err %v)", tt.name, got, tt.wantKind, err)
				}
				if _, gerr := f.svc.Get(ctx, order.OrderID); gerr != nil {
					t.Errorf("%s: order should survive a failed %s: %v", tt.name, name, gerr)
				}
			}
		})
	}
}

func TestCutoffMeasuredFromCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t, client)
	order, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatal(err)
	}

	// A late status change does not reopen the window.
	f.clock.Advance(4 * time.Minute)
	if _, err := f.svc.UpdateStatus(ctx, order.OrderID, models.StatusAccepted); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(2 * time.Minute)
	if err := f.svc.Recart(ctx, order.OrderID, client); apperr.KindOf(err) != apperr.CutoffExpired {
		t.Errorf("Recart after creation cutoff: err = %v, want CutoffExpired", err)
	}
}

func TestCutoffFollowsConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.catalog.SetConfig(ctx, models.Config{CancellationCutoffMinutes: 30, PaidVisibilityMinutes: 10}); err != nil {
		t.Fatal(err)
	}
	f.fillCart(t, client)
	order, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(20 * time.Minute)
	if err := f.svc.Delete(ctx, order.OrderID, client); err != nil {
		t.Errorf("Delete inside 30 minute window: %v", err)
	}
}

func TestRecartThenPlaceReproducesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t, client)
	first, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatal(err)
	}

	// Recart overwrites whatever the cart held.
	f.carts.Add(client, models.MenuItem{ID: 42, Name: "Dessert", Price: 7})
	if err := f.svc.Recart(ctx, first.OrderID, client); err != nil {
		t.Fatalf("Recart: %v", err)
	}
	cartItems, _ := f.carts.Get(client)
	if len(cartItems) != len(first.Items) {
		t.Fatalf("cart after recart = %+v", cartItems)
	}

	f.clock.Advance(time.Second)
	second, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalCost != first.TotalCost {
		t.Errorf("total = %v, want %v", second.TotalCost, first.TotalCost)
	}
	for i := range first.Items {
		if second.Items[i] != first.Items[i] {
			t.Errorf("item %d = %+v, want %+v", i, second.Items[i], first.Items[i])
		}
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t, client)
	order, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		status   models.OrderStatus
		orderID  string
		wantKind apperr.Kind
	}{
		{"Pending", order.OrderID, apperr.InvalidArgument},
		{"Shipped", order.OrderID, apperr.InvalidArgument},
		{"", order.OrderID, apperr.InvalidArgument},
		{models.StatusPaid, "BISTRO-000000", apperr.NotFound},
		{models.StatusRejected, order.OrderID, apperr.Unknown},
	}
	for _, tt := range tests {
		_, err := f.svc.UpdateStatus(ctx, tt.orderID, tt.status)
		if got := apperr.KindOf(err); got != tt.wantKind {
			t.Errorf("UpdateStatus(%q): kind = %v, want %v", tt.status, got, tt.wantKind)
		}
	}

	stored, _ := f.svc.Get(ctx, order.OrderID)
	if stored.Status != models.StatusRejected || stored.TotalCost != 25 || len(stored.Items) != 2 {
		t.Errorf("stored order = %+v", stored)
	}
}

func TestListActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	place := func(status models.OrderStatus) string {
		f.fillCart(t, client)
		o, err := f.svc.Place(ctx, client)
		if err != nil {
			t.Fatal(err)
		}
		if status != models.StatusPending {
			if _, err := f.svc.UpdateStatus(ctx, o.OrderID, status); err != nil {
				t.Fatal(err)
			}
		}
		return o.OrderID
	}

	oldPaid := place(models.StatusPaid)
	f.clock.Advance(10*time.Minute + time.Second)
	pending := place(models.StatusPending)
	accepted := place(models.StatusAccepted)
	completed := place(models.StatusCompleted)
	place(models.StatusRejected)
	freshPaid := place(models.StatusPaid)
	f.clock.Advance(10 * time.Minute)

	active, err := f.svc.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, o := range active {
		got[o.OrderID] = true
	}
	for _, id := range []string{pending, accepted, completed, freshPaid} {
		if !got[id] {
			t.Errorf("expected %s in active list", id)
		}
	}
	if got[oldPaid] {
		t.Error("paid order outside visibility window listed as active")
	}
	if len(active) != 4 {
		t.Errorf("active list has %d orders, want 4", len(active))
	}
}

func TestTimestampsKeepMilliseconds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.now = time.Date(2026, 5, 4, 18, 30, 0, 123456789, time.UTC)
	f.fillCart(t, client)

	placed, err := f.svc.Place(ctx, client)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	want := time.Date(2026, 5, 4, 18, 30, 0, 123000000, time.UTC)
	if !placed.CreatedAt.Equal(want) || !placed.StatusUpdatedAt.Equal(want) {
		t.Errorf("timestamps = %v / %v, want %v", placed.CreatedAt, placed.StatusUpdatedAt, want)
	}

	f.clock.Advance(time.Second)
	updated, err := f.svc.UpdateStatus(ctx, placed.OrderID, models.StatusAccepted)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.StatusUpdatedAt.Nanosecond()%int(time.Millisecond) != 0 {
		t.Errorf("status timestamp not truncated: %v", updated.StatusUpdatedAt)
	}

	// The returned creation time plus the cutoff is still inside the window.
	f.clock.now = placed.CreatedAt.Add(time.Duration(models.DefaultConfig().CancellationCutoffMinutes) * time.Minute)
	if err := f.svc.Delete(ctx, placed.OrderID, client); err != nil {
		t.Errorf("Delete at the returned cutoff: %v", err)
	}
}
