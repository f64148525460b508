package cart

import (
	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/models"
	"go.uber.org/zap"
)

// Messages handled by cartActor. Every request is answered with a *reply.

type getCart struct {
	ClientKey string
}

type addItem struct {
	ClientKey string
	Item      models.MenuItem
}

type updateItem struct {
	ClientKey     string
	CartItemID    string
	Quantity      *int
	Customization *string
}

type removeItem struct {
	ClientKey  string
	CartItemID string
}

type popCart struct {
	ClientKey string
}

type replaceCart struct {
	ClientKey string
	Items     []models.CartItem
}

type reply struct {
	Items []models.CartItem
	Item  models.CartItem
	Err   error
}

// cartActor owns every cart. The actor processes one message at a time, so
// each operation is atomic with respect to all others.
type cartActor struct {
	carts  map[string][]models.CartItem
	newID  func() string
	logger *zap.Logger
}

func (a *cartActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.carts = make(map[string][]models.CartItem)
		a.logger.Debug("Cart actor started")

	case *getCart:
		ctx.Respond(&reply{Items: clone(a.carts[msg.ClientKey])})

	case *addItem:
		ctx.Respond(&reply{Items: a.add(msg)})

	case *updateItem:
		item, err := a.update(msg)
		ctx.Respond(&reply{Item: item, Err: err})

	case *removeItem:
		ctx.Respond(&reply{Err: a.remove(msg)})

	case *popCart:
		items := a.carts[msg.ClientKey]
		delete(a.carts, msg.ClientKey)
		ctx.Respond(&reply{Items: clone(items)})

	case *replaceCart:
		a.carts[msg.ClientKey] = clone(msg.Items)
		ctx.Respond(&reply{Items: clone(msg.Items)})

	case *actor.Stopping:
		a.logger.Debug("Cart actor stopping", zap.Int("carts", len(a.carts)))
	}
}

func (a *cartActor) add(msg *addItem) []models.CartItem {
	cart := a.carts[msg.ClientKey]
	for i := range cart {
		if cart[i].ID == msg.Item.ID && cart[i].Customization == "" {
			cart[i].Quantity++
			return clone(cart)
		}
	}

	cart = append(cart, models.CartItem{
		CartItemID: a.newID(),
		ID:         msg.Item.ID,
		Name:       msg.Item.Name,
		Price:      msg.Item.Price,
		Quantity:   1,
	})
	a.carts[msg.ClientKey] = cart
	return clone(cart)
}

func (a *cartActor) update(msg *updateItem) (models.CartItem, error) {
	cart := a.carts[msg.ClientKey]
	i := indexOf(cart, msg.CartItemID)
	if i < 0 {
		return models.CartItem{}, apperr.New(apperr.NotFound, "Cart item not found")
	}
	if msg.Quantity != nil {
		cart[i].Quantity = *msg.Quantity
	}
	if msg.Customization != nil {
		cart[i].Customization = *msg.Customization
	}
	return cart[i], nil
}

func (a *cartActor) remove(msg *removeItem) error {
	cart := a.carts[msg.ClientKey]
	i := indexOf(cart, msg.CartItemID)
	if i < 0 {
		return apperr.New(apperr.NotFound, "Cart item not found")
	}
	a.carts[msg.ClientKey] = append(cart[:i], cart[i+1:]...)
	return nil
}

func indexOf(cart []models.CartItem, cartItemID string) int {
	for i := range cart {
		if cart[i].CartItemID == cartItemID {
			return i
		}
	}
	return -1
}

func clone(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out
}
