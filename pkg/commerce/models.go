// Package commerce models the storefront orders and carts the delivery
// workflow reads, and the stores that persist them.
package commerce

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// Status is the storefront order status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusOnHold     Status = "on-hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// ErrOrderNotFound indicates the order id is unknown to the store.
var ErrOrderNotFound = errors.New("order not found")

// Address is a billing or shipping address.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// FullName joins first and last name.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Street joins the street lines, city and state into a single line.
func (a Address) Street() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Address1, a.Address2, a.City, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// LineItem is an ordered product. Weight is per unit, in kg; zero means the
// product has no recorded weight.
type LineItem struct {
	ID        int64   `json:"id,omitempty"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Weight    float64 `json:"weight"`
	Total     float64 `json:"total"`
}

// ShippingLine is a shipping charge on an order.
type ShippingLine struct {
	ID       int64   `json:"id,omitempty"`
	MethodID string  `json:"method_id"`
	Title    string  `json:"method_title"`
	Total    float64 `json:"total"`
}

// Note is an audit note appended to an order.
type Note struct {
	Text      string    `json:"note"`
	CreatedAt time.Time `json:"date_created"`
}

// Order is a storefront order.
type Order struct {
	ID            int64             `json:"id"`
	Status        Status            `json:"status"`
	Currency      string            `json:"currency"`
	Total         float64           `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	Billing       Address           `json:"billing"`
	Shipping      Address           `json:"shipping"`
	LineItems     []LineItem        `json:"line_items"`
	ShippingLines []ShippingLine    `json:"shipping_lines"`
	Meta          map[string]string `json:"meta"`
}

// MetaValue returns a metadata value.
func (o *Order) MetaValue(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

// SetMeta sets a metadata value. An empty value removes the key.
func (o *Order) SetMeta(key, value string) {
	if value == "" {
		delete(o.Meta, key)
		return
	}
	if o.Meta == nil {
		o.Meta = make(map[string]string)
	}
	o.Meta[key] = value
}

// SetShippingLine overwrites the title and cost of the shipping line for
// methodID, or appends one when the order has none.
func (o *Order) SetShippingLine(methodID, title string, cost float64) {
	for i := range o.ShippingLines {
		if o.ShippingLines[i].MethodID == methodID {
			o.ShippingLines[i].Title = title
			o.ShippingLines[i].Total = cost
			return
		}
	}
	o.ShippingLines = append(o.ShippingLines, ShippingLine{
		MethodID: methodID,
		Title:    title,
		Total:    cost,
	})
}

// RecalculateTotals recomputes the order total from items and shipping.
func (o *Order) RecalculateTotals() {
	var total float64
	for _, item := range o.LineItems {
		total += item.Total
	}
	for _, line := range o.ShippingLines {
		total += line.Total
	}
	o.Total = math.Round(total*100) / 100
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	c.ShippingLines = append([]ShippingLine(nil), o.ShippingLines...)
	if o.Meta != nil {
		c.Meta = make(map[string]string, len(o.Meta))
		for k, v := range o.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

// Cart is the storefront cart used for rate calculation at checkout.
type Cart struct {
	Items       []LineItem `json:"items"`
	Destination Address    `json:"destination"`
}

// OrderStore persists orders and their audit notes.
type OrderStore interface {
	// GetOrder loads an order. Returns ErrOrderNotFound for unknown ids.
	GetOrder(ctx context.Context, id int64) (*Order, error)

	// SaveOrder persists status, metadata, shipping lines and totals.
	SaveOrder(ctx context.Context, order *Order) error

	// AddNote appends an audit note to an order.
	AddNote(ctx context.Context, id int64, note string) error

	// Notes returns the audit notes of an order, oldest first.
	Notes(ctx context.Context, id int64) ([]Note, error)
}
