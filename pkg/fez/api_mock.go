package fez

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetCost            func(ctx context.Context, req *CostRequest) (*CostResponse, error)
	OnCreateOrders       func(ctx context.Context, orders []OrderRequest) (*CreateOrderResponse, error)
	OnCreateExportOrders func(ctx context.Context, orders []ExportOrderRequest) (*CreateOrderResponse, error)
	OnGetOrderDetails    func(ctx context.Context, orderNos string) (*OrderDetailsResponse, error)
	OnExportLocations    func(ctx context.Context) (*ExportLocationsResponse, error)
	OnExportPrice        func(ctx context.Context, req *ExportPriceRequest) (*ExportPriceResponse, error)
	OnLockers            func(ctx context.Context, state string) (*LockersResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{Status: "Error", Description: "Simulated API error"}
	}
	return nil
}

// GetCost returns a flat cost of 1500.
func (m *MockAPIClient) GetCost(ctx context.Context, req *CostRequest) (*CostResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetCost != nil {
		return m.OnGetCost(ctx, req)
	}

	detail := CostDetail{Cost: 1500, State: req.State}
	if req.Locker {
		return &CostResponse{Status: StatusSuccess, Description: "Locker cost fetched", Cost: LockerCost{Detail: detail}}, nil
	}
	return &CostResponse{Status: StatusSuccess, Description: "Cost fetched successfully", Cost: FlatCost{Detail: detail}}, nil
}

// CreateOrders returns one generated order number per order.
func (m *MockAPIClient) CreateOrders(ctx context.Context, orders []OrderRequest) (*CreateOrderResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateOrders != nil {
		return m.OnCreateOrders(ctx, orders)
	}

	nos := make(OrderNos, len(orders))
	for _, o := range orders {
		nos[o.UniqueID] = "MOCK" + uuid.New().String()[:8]
	}
	return &CreateOrderResponse{Status: StatusSuccess, Description: "Order Successfully Created", OrderNos: nos}, nil
}

// CreateExportOrders returns one generated order number per order.
func (m *MockAPIClient) CreateExportOrders(ctx context.Context, orders []ExportOrderRequest) (*CreateOrderResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateExportOrders != nil {
		return m.OnCreateExportOrders(ctx, orders)
	}

	nos := make(OrderNos, len(orders))
	for _, o := range orders {
		nos[o.UniqueID] = "MOCKEXP" + uuid.New().String()[:8]
	}
	return &CreateOrderResponse{Status: StatusSuccess, Description: "Export Order Successfully Created", OrderNos: nos}, nil
}

// GetOrderDetails returns a pending order.
func (m *MockAPIClient) GetOrderDetails(ctx context.Context, orderNos string) (*OrderDetailsResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetOrderDetails != nil {
		return m.OnGetOrderDetails(ctx, orderNos)
	}

	return &OrderDetailsResponse{
		Status: StatusSuccess,
		OrderDetails: []OrderDetail{
			{
				OrderNo:     orderNos,
				OrderStatus: "Pending Pick-Up",
				Cost:        1500,
				UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
				Manifest: Manifest{
					PickUpState:      "Lagos",
					DropOffState:     "Lagos",
					RecipientName:    "Mock Recipient",
					RecipientPhone:   "08000000000",
					RecipientAddress: "1 Mock Street, Ikeja",
					Description:      "Mock item x 1",
					SendersName:      "Mock Store",
				},
			},
		},
	}, nil
}

// ExportLocations returns two destinations.
func (m *MockAPIClient) ExportLocations(ctx context.Context) (*ExportLocationsResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnExportLocations != nil {
		return m.OnExportLocations(ctx)
	}

	return &ExportLocationsResponse{
		Status: StatusSuccess,
		Data: []ExportLocation{
			{ID: 1, Name: "United Kingdom", CountryCode: "GB", Weights: []ExportWeight{{ID: 11, Weight: 1}, {ID: 12, Weight: 5}}},
			{ID: 2, Name: "United States", CountryCode: "US", Weights: []ExportWeight{{ID: 21, Weight: 2}, {ID: 22, Weight: 10}}},
		},
	}, nil
}

// ExportPrice returns a price derived from the ids.
func (m *MockAPIClient) ExportPrice(ctx context.Context, req *ExportPriceRequest) (*ExportPriceResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnExportPrice != nil {
		return m.OnExportPrice(ctx, req)
	}
	return &ExportPriceResponse{
		Status: StatusSuccess,
		Price:  Amount(20000 + 1000*(req.WeightID%10)),
	}, nil
}

// Lockers returns two lockers for any state.
func (m *MockAPIClient) Lockers(ctx context.Context, state string) (*LockersResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnLockers != nil {
		return m.OnLockers(ctx, state)
	}
	return &LockersResponse{
		Status: StatusSuccess,
		Data: []Locker{
			{ID: fmt.Sprintf("%s-01", state), Name: state + " Mall Locker", Address: "Mall Road", State: state},
			{ID: fmt.Sprintf("%s-02", state), Name: state + " Station Locker", Address: "Station Road", State: state},
		},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
