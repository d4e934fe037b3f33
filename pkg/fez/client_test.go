package fez_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/fez"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *fez.MockAPIClient) *fez.Client {
	logger := otelzap.New(zap.NewNop())
	return fez.NewWithAPIClient(
		fez.Config{},
		mockClient,
		logger,
		nil,
	)
}

type recorder struct {
	mu       sync.Mutex
	requests map[string]int
	errors   map[string]string
}

func newRecorder() *recorder {
	return &recorder{requests: map[string]int{}, errors: map[string]string{}}
}

func (r *recorder) ObserveRequest(operation, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[operation+":"+status]++
}

func (r *recorder) ObserveProviderError(operation, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[operation] = kind
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, "fez", newTestClient(fez.NewMockAPIClient()).Name())
}

func TestClient_New_UsesMock(t *testing.T) {
	client := fez.New(fez.Config{UseMock: true}, otelzap.New(zap.NewNop()), nil)

	res, err := client.GetCost(context.Background(), &delivery.CostRequest{DeliveryState: "Lagos", PickupState: "Abuja", Weight: 2})

	require.NoError(t, err)
	assert.Equal(t, 1500.0, res.Cost.Cost)
}

func TestClient_GetCost_AllShapesAgree(t *testing.T) {
	detail := fez.CostDetail{Cost: 2500, State: "Lagos"}
	shapes := map[string]fez.CostShape{
		"flat":   fez.FlatCost{Detail: detail},
		"listed": fez.ListedCost{Details: []fez.CostDetail{detail, {Cost: 9999, State: "Oyo"}}},
		"locker": fez.LockerCost{Detail: detail},
	}

	for name, shape := range shapes {
		t.Run(name, func(t *testing.T) {
			mockAPI := fez.NewMockAPIClient()
			mockAPI.OnGetCost = func(ctx context.Context, req *fez.CostRequest) (*fez.CostResponse, error) {
				return &fez.CostResponse{Status: fez.StatusSuccess, Cost: shape}, nil
			}

			res, err := newTestClient(mockAPI).GetCost(context.Background(), &delivery.CostRequest{DeliveryState: "Lagos", PickupState: "Abuja", Weight: 1})

			require.NoError(t, err)
			assert.Equal(t, delivery.CostDetail{Cost: 2500, State: "Lagos"}, res.Cost)
		})
	}
}

func TestClient_GetCost_PassesLockerFlag(t *testing.T) {
	var got *fez.CostRequest
	mockAPI := fez.NewMockAPIClient()
	mockAPI.OnGetCost = func(ctx context.Context, req *fez.CostRequest) (*fez.CostResponse, error) {
		got = req
		return &fez.CostResponse{Status: fez.StatusSuccess, Cost: fez.LockerCost{Detail: fez.CostDetail{Cost: 900}}}, nil
	}

	res, err := newTestClient(mockAPI).GetCost(context.Background(), &delivery.CostRequest{
		DeliveryState: "Lagos", PickupState: "Abuja", Weight: 1, LockerID: "LCK-9",
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Locker)
	assert.Equal(t, "Abuja", got.PickUpState)
	assert.Equal(t, 900.0, res.Cost.Cost)
	assert.Equal(t, "Lagos", res.Cost.State)
}

func TestClient_GetCost_MissingCost(t *testing.T) {
	mockAPI := fez.NewMockAPIClient()
	mockAPI.OnGetCost = func(ctx context.Context, req *fez.CostRequest) (*fez.CostResponse, error) {
		return &fez.CostResponse{Status: fez.StatusSuccess}, nil
	}

	_, err := newTestClient(mockAPI).GetCost(context.Background(), &delivery.CostRequest{DeliveryState: "Lagos"})

	require.Error(t, err)
	assert.Equal(t, delivery.KindProvider, delivery.KindOf(err))
}

func TestClient_GetCost_APIError(t *testing.T) {
	mockAPI := fez.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	rec := newRecorder()
	client := newTestClient(mockAPI).WithRecorder(rec)

	_, err := client.GetCost(context.Background(), &delivery.CostRequest{DeliveryState: "Lagos"})

	require.Error(t, err)
	assert.Equal(t, "Simulated API error", delivery.MessageOf(err))
	assert.Equal(t, 1, rec.requests["get_cost:error"])
	assert.Equal(t, string(delivery.KindProvider), rec.errors["get_cost"])
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      delivery.ErrorKind
		retryable bool
	}{
		{"unauthorized", &fez.APIError{StatusCode: http.StatusUnauthorized, Description: "bad token"}, delivery.KindAuthFailed, false},
		{"not found", &fez.APIError{StatusCode: http.StatusNotFound, Description: "no such order"}, delivery.KindNotFound, false},
		{"server error", &fez.APIError{StatusCode: http.StatusBadGateway, Description: "upstream"}, delivery.KindProvider, true},
		{"bad request", &fez.APIError{StatusCode: http.StatusBadRequest, Description: "invalid state"}, delivery.KindProvider, false},
		{"transport", errors.New("connection reset"), delivery.KindProvider, true},
		{"delivery error", delivery.NewError("fez", delivery.KindAuthFailed, "Authentication failed"), delivery.KindAuthFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := fez.NewMockAPIClient()
			mockAPI.OnGetOrderDetails = func(ctx context.Context, orderNos string) (*fez.OrderDetailsResponse, error) {
				return nil, tt.err
			}

			_, err := newTestClient(mockAPI).GetOrderDetails(context.Background(), "FEZ1")

			require.Error(t, err)
			assert.Equal(t, tt.kind, delivery.KindOf(err))
			assert.Equal(t, tt.retryable, delivery.IsRetryable(err))
		})
	}
}

func TestClient_CreateOrder_Success(t *testing.T) {
	var got []fez.OrderRequest
	mockAPI := fez.NewMockAPIClient()
	mockAPI.OnCreateOrders = func(ctx context.Context, orders []fez.OrderRequest) (*fez.CreateOrderResponse, error) {
		got = orders
		return &fez.CreateOrderResponse{
			Status:      fez.StatusSuccess,
			Description: "Order Successfully Created",
			OrderNos:    fez.OrderNos{orders[0].UniqueID: "FEZ123"},
		}, nil
	}

	res, err := newTestClient(mockAPI).CreateOrder(context.Background(), &delivery.CreateOrderRequest{
		Recipient:            delivery.Recipient{Name: "Ada Obi", Phone: "0803", Address: "1 Marina, Lagos", State: "Lagos"},
		UniqueID:             "fez-wc-42",
		BatchID:              "fez-wc-batch-42",
		ValueOfItem:          10000,
		Weight:               3,
		PickupState:          "Abuja",
		ItemDescription:      "Shoe x 2",
		CashOnDelivery:       true,
		CashOnDeliveryAmount: 11200,
	})

	require.NoError(t, err)
	assert.Equal(t, "FEZ123", res.OrderNos)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "Order Successfully Created", res.Message)

	require.Len(t, got, 1)
	assert.Equal(t, "10000.00", got[0].ValueOfItem)
	assert.True(t, got[0].IsItemCod)
	assert.Equal(t, 11200.0, got[0].CashOnDeliveryAmount)
	assert.Equal(t, "Abuja", got[0].PickUpState)
}

func TestClient_CreateOrder_Duplicate(t *testing.T) {
	mockAPI := fez.NewMockAPIClient()
	mockAPI.OnCreateOrders = func(ctx context.Context, orders []fez.OrderRequest) (*fez.CreateOrderResponse, error) {
		return &fez.CreateOrderResponse{
			Status:             "Error",
			DuplicateUniqueIDs: fez.Duplicate{"fez-wc-42": ""},
		}, nil
	}

	res, err := newTestClient(mockAPI).CreateOrder(context.Background(), &delivery.CreateOrderRequest{UniqueID: "fez-wc-42"})

	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Empty(t, res.OrderNos)
	assert.Equal(t, "Your order has already been created", res.Message)
}

func TestClient_CreateExportOrder(t *testing.T) {
	var got []fez.ExportOrderRequest
	mockAPI := fez.NewMockAPIClient()
	mockAPI.OnCreateExportOrders = func(ctx context.Context, orders []fez.ExportOrderRequest) (*fez.CreateOrderResponse, error) {
		got = orders
		return &fez.CreateOrderResponse{Status: fez.StatusSuccess, OrderNos: fez.OrderNos{"": "EXP9"}}, nil
	}

	res, err := newTestClient(mockAPI).CreateExportOrder(context.Background(), &delivery.CreateExportOrderRequest{
		Recipient:        delivery.Recipient{Name: "Jo", Email: "jo@example.com", Country: "GB"},
		UniqueID:         "fez-wc-7",
		ValueOfItem:      50,
		ExportLocationID: 1,
		ExportWeightID:   12,
	})

	require.NoError(t, err)
	assert.Equal(t, "EXP9", res.OrderNos)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ExportLocationID)
	assert.Equal(t, 12, got[0].WeightID)
	assert.Equal(t, "jo@example.com", got[0].RecipientEmail)
	assert.Equal(t, "50.00", got[0].ValueOfItem)
}

func TestClient_GetOrderDetails(t *testing.T) {
	res, err := newTestClient(fez.NewMockAPIClient()).GetOrderDetails(context.Background(), "FEZ777")

	require.NoError(t, err)
	assert.Equal(t, "FEZ777", res.OrderNo)
	assert.Equal(t, delivery.OrderStatus("Pending Pick-Up"), res.Status)
	assert.Equal(t, 1500.0, res.Cost)
	assert.Equal(t, "Mock Recipient", res.Manifest.RecipientName)
	assert.NotNil(t, res.UpdatedAt)
}

func TestClient_GetOrderDetails_Empty(t *testing.T) {
	mockAPI := fez.NewMockAPIClient()
	mockAPI.OnGetOrderDetails = func(ctx context.Context, orderNos string) (*fez.OrderDetailsResponse, error) {
		return &fez.OrderDetailsResponse{Status: fez.StatusSuccess}, nil
	}

	_, err := newTestClient(mockAPI).GetOrderDetails(context.Background(), "FEZ777")

	require.Error(t, err)
	assert.True(t, errors.Is(err, delivery.ErrNotFound))
}

func TestClient_ExportLocations(t *testing.T) {
	locs, err := newTestClient(fez.NewMockAPIClient()).ExportLocations(context.Background())

	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "GB", locs[0].CountryCode)
	assert.Equal(t, []delivery.ExportWeight{{ID: 11, Weight: 1}, {ID: 12, Weight: 5}}, locs[0].Weights)
}

func TestClient_ExportPrice(t *testing.T) {
	res, err := newTestClient(fez.NewMockAPIClient()).ExportPrice(context.Background(), &delivery.ExportPriceRequest{
		ExportLocationID: 1,
		ExportWeightID:   12,
	})

	require.NoError(t, err)
	assert.Equal(t, 22000.0, res.Price)
}

func TestClient_Lockers(t *testing.T) {
	lockers, err := newTestClient(fez.NewMockAPIClient()).Lockers(context.Background(), "Lagos")

	require.NoError(t, err)
	require.Len(t, lockers, 2)
	assert.Equal(t, "Lagos-01", lockers[0].ID)
	assert.Equal(t, "Lagos", lockers[1].State)
}
