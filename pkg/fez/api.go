package fez

import (
	"context"
	"encoding/json"
	"fmt"
)

// APIClient defines the Fez API operations used by the Client.
// The HTTP implementation authenticates transparently; the mock does not.
type APIClient interface {
	// GetCost prices a domestic parcel. POST v1/order/cost
	GetCost(ctx context.Context, req *CostRequest) (*CostResponse, error)

	// CreateOrders creates domestic orders. POST v1/order
	CreateOrders(ctx context.Context, orders []OrderRequest) (*CreateOrderResponse, error)

	// CreateExportOrders creates export orders. POST v1/orders/export
	CreateExportOrders(ctx context.Context, orders []ExportOrderRequest) (*CreateOrderResponse, error)

	// GetOrderDetails reads an order. GET v1/orders/{orderNos}
	GetOrderDetails(ctx context.Context, orderNos string) (*OrderDetailsResponse, error)

	// ExportLocations lists export destinations. GET v1/orders/export-locations
	ExportLocations(ctx context.Context) (*ExportLocationsResponse, error)

	// ExportPrice prices an export parcel. POST v1/orders/export-price
	ExportPrice(ctx context.Context, req *ExportPriceRequest) (*ExportPriceResponse, error)

	// Lockers lists lockers in a state. GET v1/Lockers/{state}
	Lockers(ctx context.Context, state string) (*LockersResponse, error)
}

// StatusSuccess is the status value of a successful response body.
const StatusSuccess = "Success"

// ============================================================================
// API Request/Response Types (match Fez REST API v1 structure)
// ============================================================================

// AuthRequest is the credential payload. POST v1/user/authenticate
type AuthRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// AuthResponse is the authentication result.
type AuthResponse struct {
	Status      string      `json:"status"`
	Description string      `json:"description"`
	AuthDetails AuthDetails `json:"authDetails"`
	OrgDetails  OrgDetails  `json:"orgDetails"`
}

// AuthDetails carries the bearer token and its expiry.
type AuthDetails struct {
	AuthToken   string `json:"authToken"`
	ExpireToken string `json:"expireToken"`
}

// OrgDetails carries the organisation secret key sent with every call.
type OrgDetails struct {
	SecretKey string `json:"secret-key"`
}

// CostRequest is the domestic pricing request.
type CostRequest struct {
	State       string  `json:"state"`
	PickUpState string  `json:"pickUpState"`
	Weight      float64 `json:"weight"`
	Locker      bool    `json:"locker,omitempty"`
}

// OrderRequest is one domestic order in a creation batch.
type OrderRequest struct {
	RecipientAddress     string  `json:"recipientAddress"`
	RecipientState       string  `json:"recipientState"`
	RecipientName        string  `json:"recipientName"`
	RecipientPhone       string  `json:"recipientPhone"`
	UniqueID             string  `json:"uniqueID"`
	BatchID              string  `json:"BatchID"`
	ValueOfItem          string  `json:"valueOfItem"`
	Weight               float64 `json:"weight"`
	PickUpState          string  `json:"pickUpState"`
	ItemDescription      string  `json:"itemDescription"`
	IsItemCod            bool    `json:"isItemCod,omitempty"`
	CashOnDeliveryAmount float64 `json:"cashOnDeliveryAmount,omitempty"`
	LockerID             string  `json:"lockerID,omitempty"`
}

// ExportOrderRequest is one export order in a creation batch.
type ExportOrderRequest struct {
	RecipientAddress string  `json:"recipientAddress"`
	RecipientState   string  `json:"recipientState"`
	RecipientName    string  `json:"recipientName"`
	RecipientPhone   string  `json:"recipientPhone"`
	RecipientEmail   string  `json:"recipientEmail"`
	UniqueID         string  `json:"uniqueID"`
	BatchID          string  `json:"BatchID"`
	ValueOfItem      string  `json:"valueOfItem"`
	Weight           float64 `json:"weight"`
	ItemDescription  string  `json:"itemDescription"`
	ExportLocationID int     `json:"exportLocationId"`
	WeightID         int     `json:"weightId"`
}

// CreateOrderResponse is the order creation result. A duplicate submission
// comes back with DuplicateUniqueIDs set instead of OrderNos.
type CreateOrderResponse struct {
	Status             string    `json:"status"`
	Description        string    `json:"description"`
	OrderNos           OrderNos  `json:"orderNos"`
	DuplicateUniqueIDs Duplicate `json:"duplicateUniqueIds"`
}

// OrderNos maps unique ids to provider order numbers. The API returns either
// an object keyed by unique id or a bare order number string.
type OrderNos map[string]string

// UnmarshalJSON accepts an object or a string.
func (o *OrderNos) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*o = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*o = nil
		} else {
			*o = OrderNos{"": s}
		}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("orderNos: %w", err)
	}
	*o = m
	return nil
}

// For returns the order number for uniqueID, falling back to the only entry.
func (o OrderNos) For(uniqueID string) string {
	if v, ok := o[uniqueID]; ok {
		return v
	}
	if len(o) == 1 {
		for _, v := range o {
			return v
		}
	}
	return ""
}

// Duplicate lists unique ids the API already knew. It arrives as a list of ids
// or as an object mapping ids to existing order numbers.
type Duplicate map[string]string

// UnmarshalJSON accepts a list or an object.
func (d *Duplicate) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*d = nil
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		m := make(Duplicate, len(ids))
		for _, id := range ids {
			m[id] = ""
		}
		*d = m
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("duplicateUniqueIds: %w", err)
	}
	*d = m
	return nil
}

// OrderDetailsResponse is the order read result.
type OrderDetailsResponse struct {
	Status       string        `json:"status"`
	Description  string        `json:"description"`
	OrderDetails []OrderDetail `json:"orderDetails"`
	// Raw holds the undecoded body for display.
	Raw map[string]any `json:"-"`
}

// OrderDetail is one order record.
type OrderDetail struct {
	OrderNo     string   `json:"orderNo"`
	OrderStatus string   `json:"orderStatus"`
	Cost        Amount   `json:"cost"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	Manifest    Manifest `json:"manifest"`
}

// Manifest is the shipment manifest of an order.
type Manifest struct {
	PickUpState      string `json:"pickUpState"`
	DropOffState     string `json:"dropOffState"`
	RecipientName    string `json:"recipientName"`
	RecipientPhone   string `json:"recipientPhone"`
	RecipientAddress string `json:"recipientAddress"`
	Description      string `json:"description"`
	SendersName      string `json:"sendersName"`
}

// ExportLocationsResponse lists export destinations.
type ExportLocationsResponse struct {
	Status      string           `json:"status"`
	Description string           `json:"description"`
	Data        []ExportLocation `json:"data"`
}

// ExportLocation is an export destination.
type ExportLocation struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	CountryCode string         `json:"countryCode"`
	Weights     []ExportWeight `json:"weights"`
}

// ExportWeight is a weight bracket.
type ExportWeight struct {
	ID     int    `json:"id"`
	Weight Amount `json:"weight"`
}

// ExportPriceRequest is the export pricing request.
type ExportPriceRequest struct {
	ExportLocationID int `json:"exportLocationId"`
	WeightID         int `json:"weightId"`
}

// ExportPriceResponse is the export price.
type ExportPriceResponse struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Price       Amount `json:"price"`
}

// LockersResponse lists lockers of a state.
type LockersResponse struct {
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Data        []Locker `json:"data"`
}

// Locker is a pickup locker.
type Locker struct {
	ID      string `json:"lockerID"`
	Name    string `json:"lockerName"`
	Address string `json:"lockerAddress"`
	State   string `json:"state"`
}

// APIError represents an error from the Fez API.
type APIError struct {
	StatusCode  int    `json:"-"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP_%d: %s", e.StatusCode, e.Description)
	}
	return e.Description
}

func isNull(data []byte) bool {
	return len(data) == 0 || string(data) == "null"
}
