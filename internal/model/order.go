package model

import "time"

// OrderStatus mirrors the backend order lifecycle. The client never moves an
// order between states itself.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// ShippingAddress is the delivery address captured at checkout.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"zipCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderRequest places an order from the current server cart.
type OrderRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes,omitempty"`
}

// OrderLine is a purchased product snapshot.
type OrderLine struct {
	Product  ProductRef `json:"product"`
	Name     string     `json:"name,omitempty"`
	Price    Money      `json:"price"`
	Quantity int        `json:"quantity"`
}

// Order is a placed order.
type Order struct {
	ID              string          `json:"_id"`
	OrderNumber     string          `json:"orderNumber,omitempty"`
	Status          OrderStatus     `json:"status"`
	Lines           []OrderLine     `json:"items"`
	Subtotal        Money           `json:"subtotal"`
	Tax             Money           `json:"tax"`
	Total           Money           `json:"total"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Cancellable reports whether the backend will accept a cancel request.
func (o Order) Cancellable() bool {
	return o.Status == OrderPending || o.Status == OrderProcessing
}
