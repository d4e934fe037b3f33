// Package delivery implements the quote and order reconciliation workflow
// between a storefront and a parcel-delivery provider.
package delivery

import (
	"context"
)

// Provider defines the operations the workflow needs from a delivery provider.
type Provider interface {
	// Name returns the provider identifier (e.g., "fez").
	Name() string

	// GetCost prices a domestic parcel between two states.
	GetCost(ctx context.Context, req *CostRequest) (*CostResult, error)

	// CreateOrder creates a domestic delivery order.
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error)

	// CreateExportOrder creates an international delivery order.
	CreateExportOrder(ctx context.Context, req *CreateExportOrderRequest) (*CreateOrderResult, error)

	// GetOrderDetails reads the provider's current record of an order.
	GetOrderDetails(ctx context.Context, orderNos string) (*OrderDetails, error)

	// ExportLocations returns the export destination and weight table.
	ExportLocations(ctx context.Context) ([]ExportLocation, error)

	// ExportPrice prices an export parcel for a destination and weight bracket.
	ExportPrice(ctx context.Context, req *ExportPriceRequest) (*ExportPrice, error)

	// Lockers lists the pickup lockers available in a state.
	Lockers(ctx context.Context, state string) ([]Locker, error)
}
