package models

import (
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusAccepted  OrderStatus = "Accepted"
	StatusCompleted OrderStatus = "Completed"
	StatusRejected  OrderStatus = "Rejected"
	StatusPaid      OrderStatus = "Paid"
)

// Settable reports whether an admin may move an order into s. Pending is only
// ever assigned at placement.
func (s OrderStatus) Settable() bool {
	switch s {
	case StatusAccepted, StatusCompleted, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// CartItem is one line of a cart, and of an order once the cart is placed.
// Price is copied from the menu when the line is created.
type CartItem struct {
	CartItemID    string  `json:"cart_item_id" bson:"cart_item_id"`
	ID            int     `json:"id" bson:"id"`
	Name          string  `json:"name" bson:"name"`
	Price         float64 `json:"price" bson:"price"`
	Quantity      int     `json:"quantity" bson:"quantity"`
	Customization string  `json:"customization" bson:"customization"`
}

// Order field names on the wire follow the storefront client: the client key
// is published as client_ip and created_at as timestamp.
type Order struct {
	OrderID         string      `json:"order_id" bson:"order_id"`
	ClientKey       string      `json:"client_ip" bson:"client_ip"`
	CreatedAt       time.Time   `json:"timestamp" bson:"timestamp"`
	StatusUpdatedAt time.Time   `json:"status_update_timestamp" bson:"status_update_timestamp"`
	Items           []CartItem  `json:"items" bson:"items"`
	Status          OrderStatus `json:"status" bson:"status"`
	TotalCost       float64     `json:"total_cost" bson:"total_cost"`
}

func TotalCost(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
