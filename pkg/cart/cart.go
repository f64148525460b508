// Package cart keeps the per-client shopping carts in memory for the lifetime
// of the process.
package cart

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/ids"
	"github.com/example/bistro/pkg/models"
	"go.uber.org/zap"
)

const (
	MaxCustomizationLength = 100
	defaultRequestTimeout  = 5 * time.Second
)

// Manager is the client-facing handle to the cart actor.
type Manager struct {
	root    *actor.RootContext
	pid     *actor.PID
	timeout time.Duration
}

type Option func(*options)

type options struct {
	newID   func() string
	timeout time.Duration
}

// WithIDGenerator replaces the cart line token generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithRequestTimeout bounds each request to the actor. Non-positive values
// keep the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewManager spawns the cart actor in system.
func NewManager(system *actor.ActorSystem, logger *zap.Logger, opts ...Option) (*Manager, error) {
	o := options{newID: ids.Token, timeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return &cartActor{newID: o.newID, logger: logger}
	})
	pid, err := system.Root.SpawnNamed(props, "cart-manager")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn cart actor: %w", err)
	}

	return &Manager{
		root:    system.Root,
		pid:     pid,
		timeout: o.timeout,
	}, nil
}

// Get returns the client's cart, empty if it has none.
func (m *Manager) Get(clientKey string) ([]models.CartItem, error) {
	r, err := m.request(&getCart{ClientKey: clientKey})
	if err != nil {
		return nil, err
	}
	return r.Items, nil
}

// Add merges the menu item into an uncustomized line with the same id, or
// appends a new line with quantity 1. It returns the whole cart.
func (m *Manager) Add(clientKey string, item models.MenuItem) ([]models.CartItem, error) {
	r, err := m.request(&addItem{ClientKey: clientKey, Item: item})
	if err != nil {
		return nil, err
	}
	return r.Items, nil
}

// Update replaces the quantity and/or customization of one line. Nil fields
// are left untouched.
func (m *Manager) Update(clientKey, cartItemID string, quantity *int, customization *string) (models.CartItem, error) {
	if quantity != nil && *quantity < 1 {
		return models.CartItem{}, apperr.New(apperr.InvalidArgument, "quantity must be at least 1")
	}
	if customization != nil && utf8.RuneCountInString(*customization) > MaxCustomizationLength {
		return models.CartItem{}, apperr.Newf(apperr.InvalidArgument, "customization must be at most %d characters", MaxCustomizationLength)
	}

	r, err := m.request(&updateItem{
		ClientKey:     clientKey,
		CartItemID:    cartItemID,
		Quantity:      quantity,
		Customization: customization,
	})
	if err != nil {
		return models.CartItem{}, err
	}
	return r.Item, r.Err
}

func (m *Manager) Remove(clientKey, cartItemID string) error {
	r, err := m.request(&removeItem{ClientKey: clientKey, CartItemID: cartItemID})
	if err != nil {
		return err
	}
	return r.Err
}

// Pop returns the client's cart and clears it in one step.
func (m *Manager) Pop(clientKey string) ([]models.CartItem, error) {
	r, err := m.request(&popCart{ClientKey: clientKey})
	if err != nil {
		return nil, err
	}
	return r.Items, nil
}

// Replace overwrites the client's cart with items.
func (m *Manager) Replace(clientKey string, items []models.CartItem) error {
	_, err := m.request(&replaceCart{ClientKey: clientKey, Items: items})
	return err
}

// Stop terminates the cart actor and waits for it to finish.
func (m *Manager) Stop() {
	_ = m.root.StopFuture(m.pid).Wait()
}

func (m *Manager) request(msg interface{}) (*reply, error) {
	res, err := m.root.RequestFuture(m.pid, msg, m.timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("cart request failed: %w", err)
	}
	r, ok := res.(*reply)
	if !ok {
		return nil, fmt.Errorf("unexpected cart reply %T", res)
	}
	return r, nil
}
