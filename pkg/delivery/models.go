package delivery

import (
	"time"
)

// QuoteMode identifies how a quote was priced.
type QuoteMode string

const (
	ModeLocal      QuoteMode = "local"
	ModeExport     QuoteMode = "export"
	ModeSafeLocker QuoteMode = "safe_locker"
)

// NoLocker is the sentinel locker id meaning doorstep delivery.
const NoLocker = "none"

// Quote is a priced shipping offer held for the current checkout session.
type Quote struct {
	DeliveryStateLabel string
	PickupStateLabel   string
	TotalWeight        float64
	LockerID           string // empty for doorstep delivery
	Cost               float64
	Mode               QuoteMode
	ExportLocationID   int // export mode only
	ExportWeightID     int // export mode only
}

// HasLocker reports whether the quote targets a locker.
func (q *Quote) HasLocker() bool {
	return q != nil && q.LockerID != ""
}

// CostDetail is the canonical cost record every provider response shape is
// normalized into.
type CostDetail struct {
	Cost  float64
	State string
}

// RemoteOrderLink associates a local order with the provider's order number.
type RemoteOrderLink struct {
	LocalOrderID      int64
	RemoteOrderNumber string
	LockerID          string
}

// OrderStatus is the provider's status string for an order (e.g. "Pending Pick-Up").
type OrderStatus string

// Manifest is the shipment manifest attached to a provider order.
type Manifest struct {
	PickUpState      string
	DropOffState     string
	RecipientName    string
	RecipientPhone   string
	RecipientAddress string
	Description      string
	SendersName      string
}

// OrderDetails is the provider's view of a remote order.
type OrderDetails struct {
	OrderNo   string
	Status    OrderStatus
	Cost      float64
	Manifest  Manifest
	UpdatedAt *time.Time
	Raw       map[string]any
}

// ExportWeight is one weight bracket of an export destination.
type ExportWeight struct {
	ID     int
	Weight float64
}

// ExportLocation is an export destination with its weight brackets.
type ExportLocation struct {
	ID          int
	Name        string
	CountryCode string
	Weights     []ExportWeight
}

// Locker is a provider pickup point.
type Locker struct {
	ID      string
	Name    string
	Address string
	State   string
}

// Recipient is the person a parcel is delivered to.
type Recipient struct {
	Name    string
	Phone   string
	Email   string
	Address string
	City    string
	State   string
	Country string
}

// ============================================================================
// Request/Response Types
// ============================================================================

// CostRequest is the request for a domestic price.
type CostRequest struct {
	DeliveryState string
	PickupState   string
	Weight        float64
	LockerID      string // empty for doorstep delivery
}

// CostResult is the normalized price response.
type CostResult struct {
	Cost    CostDetail
	Message string
}

// CreateOrderRequest is the payload for a domestic order.
type CreateOrderRequest struct {
	Recipient            Recipient
	UniqueID             string
	BatchID              string
	ValueOfItem          float64
	Weight               float64
	PickupState          string
	ItemDescription      string
	CashOnDelivery       bool
	CashOnDeliveryAmount float64
	LockerID             string
}

// CreateExportOrderRequest is the payload for an export order.
type CreateExportOrderRequest struct {
	Recipient        Recipient
	UniqueID         string
	BatchID          string
	ValueOfItem      float64
	Weight           float64
	ItemDescription  string
	ExportLocationID int
	ExportWeightID   int
}

// CreateOrderResult is the outcome of an order creation call.
type CreateOrderResult struct {
	OrderNos string
	Message  string
	// Duplicate is set when the provider reported the unique id as already
	// used; OrderNos then holds whatever reference the provider returned.
	Duplicate bool
}

// ExportPriceRequest is the request for an export price.
type ExportPriceRequest struct {
	ExportLocationID int
	ExportWeightID   int
}

// ExportPrice is the normalized export price.
type ExportPrice struct {
	Price   float64
	Message string
}
