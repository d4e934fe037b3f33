// Package mock provides a scripted delivery provider for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/fezdelivery/pkg/delivery"
)

// Provider is a mock delivery provider. Each operation returns canned data
// unless the matching On* hook is set. Every call is counted and the last
// request of each kind is kept for assertions.
type Provider struct {
	name string

	OnGetCost           func(ctx context.Context, req *delivery.CostRequest) (*delivery.CostResult, error)
	OnCreateOrder       func(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error)
	OnCreateExportOrder func(ctx context.Context, req *delivery.CreateExportOrderRequest) (*delivery.CreateOrderResult, error)
	OnGetOrderDetails   func(ctx context.Context, orderNos string) (*delivery.OrderDetails, error)
	OnExportLocations   func(ctx context.Context) ([]delivery.ExportLocation, error)
	OnExportPrice       func(ctx context.Context, req *delivery.ExportPriceRequest) (*delivery.ExportPrice, error)
	OnLockers           func(ctx context.Context, state string) ([]delivery.Locker, error)

	mu                     sync.Mutex
	calls                  map[string]int
	LastCostRequest        *delivery.CostRequest
	LastOrderRequest       *delivery.CreateOrderRequest
	LastExportRequest      *delivery.CreateExportOrderRequest
	LastExportPriceRequest *delivery.ExportPriceRequest
}

// New creates a new mock provider.
func New(name string) *Provider {
	return &Provider{name: name, calls: make(map[string]int)}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Calls returns how many times op was invoked (e.g. "CreateOrder").
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) record(op string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if fn != nil {
		fn()
	}
}

// GetCost returns a flat 1500 unless OnGetCost is set.
func (p *Provider) GetCost(ctx context.Context, req *delivery.CostRequest) (*delivery.CostResult, error) {
	p.record("GetCost", func() { p.LastCostRequest = req })
	if p.OnGetCost != nil {
		return p.OnGetCost(ctx, req)
	}
	return &delivery.CostResult{
		Cost:    delivery.CostDetail{Cost: 1500, State: req.DeliveryState},
		Message: "Cost fetched successfully",
	}, nil
}

// CreateOrder returns a generated order number unless OnCreateOrder is set.
func (p *Provider) CreateOrder(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error) {
	p.record("CreateOrder", func() { p.LastOrderRequest = req })
	if p.OnCreateOrder != nil {
		return p.OnCreateOrder(ctx, req)
	}
	return &delivery.CreateOrderResult{
		OrderNos: fmt.Sprintf("%s-%d", p.name, time.Now().UnixNano()%1000000),
		Message:  "Order Successfully Created",
	}, nil
}

// CreateExportOrder returns a generated order number unless OnCreateExportOrder is set.
func (p *Provider) CreateExportOrder(ctx context.Context, req *delivery.CreateExportOrderRequest) (*delivery.CreateOrderResult, error) {
	p.record("CreateExportOrder", func() { p.LastExportRequest = req })
	if p.OnCreateExportOrder != nil {
		return p.OnCreateExportOrder(ctx, req)
	}
	return &delivery.CreateOrderResult{
		OrderNos: fmt.Sprintf("%s-EXP-%d", p.name, time.Now().UnixNano()%1000000),
		Message:  "Export Order Successfully Created",
	}, nil
}

// GetOrderDetails returns a pending order unless OnGetOrderDetails is set.
func (p *Provider) GetOrderDetails(ctx context.Context, orderNos string) (*delivery.OrderDetails, error) {
	p.record("GetOrderDetails", nil)
	if p.OnGetOrderDetails != nil {
		return p.OnGetOrderDetails(ctx, orderNos)
	}
	return &delivery.OrderDetails{
		OrderNo: orderNos,
		Status:  "Pending Pick-Up",
		Cost:    1500,
		Manifest: delivery.Manifest{
			PickUpState:      "Lagos",
			DropOffState:     "FCT",
			RecipientName:    "Test Recipient",
			RecipientPhone:   "08000000000",
			RecipientAddress: "1 Test Street, Garki",
			Description:      "Test item x 1",
			SendersName:      "Test Store",
		},
	}, nil
}

// ExportLocations returns a single UK destination unless OnExportLocations is set.
func (p *Provider) ExportLocations(ctx context.Context) ([]delivery.ExportLocation, error) {
	p.record("ExportLocations", nil)
	if p.OnExportLocations != nil {
		return p.OnExportLocations(ctx)
	}
	return []delivery.ExportLocation{
		{
			ID:          1,
			Name:        "United Kingdom",
			CountryCode: "GB",
			Weights: []delivery.ExportWeight{
				{ID: 11, Weight: 1},
				{ID: 12, Weight: 5},
				{ID: 13, Weight: 10},
			},
		},
	}, nil
}

// ExportPrice returns 25000 unless OnExportPrice is set.
func (p *Provider) ExportPrice(ctx context.Context, req *delivery.ExportPriceRequest) (*delivery.ExportPrice, error) {
	p.record("ExportPrice", func() { p.LastExportPriceRequest = req })
	if p.OnExportPrice != nil {
		return p.OnExportPrice(ctx, req)
	}
	return &delivery.ExportPrice{Price: 25000}, nil
}

// Lockers returns one locker unless OnLockers is set.
func (p *Provider) Lockers(ctx context.Context, state string) ([]delivery.Locker, error) {
	p.record("Lockers", nil)
	if p.OnLockers != nil {
		return p.OnLockers(ctx, state)
	}
	return []delivery.Locker{
		{ID: "LCK-1", Name: state + " Central Locker", Address: "1 Locker Way", State: state},
	}, nil
}

var _ delivery.Provider = (*Provider)(nil)
