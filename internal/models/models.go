// Package models defines the core data structures shared across WhatsCommerce components.
package models

import "errors"

// Domain sentinel errors. Callers match these with errors.Is to pick the
// recovery template; anything else is treated as a backend failure.
var (
	// ErrOutOfStock indicates a cart insertion would exceed available stock.
	ErrOutOfStock = errors.New("insufficient stock")
	// ErrEmptyCart indicates an order was requested from a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound indicates a product, user or order could not be located.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable indicates the commerce backend could not be reached
	// or timed out. The conversation state is left unchanged so the user can retry.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Product is a catalog entry as returned by the Catalog Gateway.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	URL   string  `json:"url,omitempty"`
}

// OrderLine is a single product/quantity line on a created order.
type OrderLine struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

// Order is the commerce backend's view of a confirmed order. The state
// machine only holds its identifier and summary after creation.
type Order struct {
	ID     int64       `json:"id"`
	Status string      `json:"status"`
	Total  float64     `json:"total"`
	Lines  []OrderLine `json:"lines,omitempty"`
}

// UserAccount links a WhatsApp phone number to a commerce backend customer.
type UserAccount struct {
	UserID     int64  `json:"user_id"`
	CustomerID int64  `json:"customer_id"`
	IsNew      bool   `json:"is_new"`
	Phone      string `json:"phone"`
}

// Response represents an inbound message from a participant.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Receipt represents a delivery status event for an outbound message.
type Receipt struct {
	To        string     `json:"to"`
	Status    StatusType `json:"status"`
	MessageID string     `json:"message_id,omitempty"`
	Time      int64      `json:"time"`
}

// StatusType enumerates outbound message statuses.
type StatusType string

const (
	MessageStatusSent      StatusType = "sent"
	MessageStatusDelivered StatusType = "delivered"
	MessageStatusRead      StatusType = "read"
	MessageStatusFailed    StatusType = "failed"
)
