package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"go.uber.org/zap"
)

// envelope is the response body of every JSON endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type quoteRequest struct {
	DeliveryState string              `json:"deliveryState"`
	PickupState   string              `json:"pickupState,omitempty"`
	LockerID      string              `json:"lockerId,omitempty"`
	CountryCode   string              `json:"countryCode,omitempty"`
	Items         []commerce.LineItem `json:"items,omitempty"`
	TotalWeight   float64             `json:"totalWeight,omitempty"`
}

type quoteView struct {
	DeliveryState    string  `json:"deliveryState"`
	PickupState      string  `json:"pickupState"`
	TotalWeight      float64 `json:"totalWeight"`
	LockerID         string  `json:"lockerId,omitempty"`
	Cost             float64 `json:"cost"`
	Mode             string  `json:"mode"`
	ExportLocationID int     `json:"exportLocationId,omitempty"`
	ExportWeightID   int     `json:"exportWeightId,omitempty"`
}

type rateView struct {
	Available bool    `json:"available"`
	ID        string  `json:"id,omitempty"`
	Label     string  `json:"label,omitempty"`
	Cost      float64 `json:"cost"`
}

type eventRequest struct {
	Kind string `json:"kind"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type submitView struct {
	Submitted     bool    `json:"submitted"`
	OrderID       int64   `json:"orderId"`
	OrderNos      string  `json:"orderNos,omitempty"`
	Message       string  `json:"message,omitempty"`
	Cost          float64 `json:"cost,omitempty"`
	Export        bool    `json:"export,omitempty"`
	AlreadyLinked bool    `json:"alreadyLinked,omitempty"`
	Duplicate     bool    `json:"duplicate,omitempty"`
}

type manifestView struct {
	PickUpState      string `json:"pickUpState"`
	DropOffState     string `json:"dropOffState"`
	RecipientName    string `json:"recipientName"`
	RecipientPhone   string `json:"recipientPhone"`
	RecipientAddress string `json:"recipientAddress"`
	Description      string `json:"description"`
	SendersName      string `json:"sendersName"`
}

type statusView struct {
	OrderNos    string       `json:"orderNos"`
	Status      string       `json:"status,omitempty"`
	Cost        float64      `json:"cost,omitempty"`
	UpdatedAt   *time.Time   `json:"updatedAt,omitempty"`
	TrackingURL string       `json:"trackingUrl,omitempty"`
	Manifest    manifestView `json:"manifest"`
	Error       string       `json:"error,omitempty"`
}

type bulkStatusRequest struct {
	OrderNos []string `json:"orderNos"`
}

type lockerView struct {
	ID      string `json:"lockerId"`
	Name    string `json:"lockerName"`
	Address string `json:"lockerAddress"`
	State   string `json:"state"`
}

// ============================================================================
// Quote handlers
// ============================================================================

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}

	pickup := req.PickupState
	if pickup == "" {
		pickup = s.config.PickupState
	}

	q, err := s.deps.Engine.GetQuote(r.Context(), pickup, req.DeliveryState, s.weightOf(req), req.LockerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.quoteCache(r).Set(r.Context(), q); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, toQuoteView(q))
}

func (s *Server) handleExportQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}

	cache := s.quoteCache(r)
	q, err := s.deps.Engine.GetExportQuote(r.Context(), cache, req.CountryCode, s.weightOf(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := cache.Set(r.Context(), q); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, toQuoteView(q))
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.quoteCache(r).Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if q == nil {
		s.writeJSON(w, http.StatusNotFound, envelope{Message: "No delivery cost has been calculated"})
		return
	}
	s.writeData(w, http.StatusOK, toQuoteView(q))
}

func (s *Server) handleResetQuote(w http.ResponseWriter, r *http.Request) {
	if err := s.quoteCache(r).Reset(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Delivery cost reset"})
}

func (s *Server) handleShippingRate(w http.ResponseWriter, r *http.Request) {
	var cart commerce.Cart
	if !s.decode(w, r, &cart) {
		return
	}

	rate, err := s.deps.Rates.Calculate(r.Context(), s.quoteCache(r), &cart)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rate == nil {
		s.writeData(w, http.StatusOK, rateView{})
		return
	}
	s.writeData(w, http.StatusOK, rateView{Available: true, ID: rate.ID, Label: rate.Label, Cost: rate.Cost})
}

func (s *Server) handleLockers(w http.ResponseWriter, r *http.Request) {
	lockers, err := s.deps.Engine.Lockers(r.Context(), chi.URLParam(r, "state"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]lockerView, len(lockers))
	for i, l := range lockers {
		views[i] = lockerView{ID: l.ID, Name: l.Name, Address: l.Address, State: l.State}
	}
	s.writeData(w, http.StatusOK, views)
}

// ============================================================================
// Order handlers
// ============================================================================

func (s *Server) handleOrderEvent(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderID(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !s.decode(w, r, &req) {
		return
	}

	kind := delivery.EventKind(strings.ToLower(req.Kind))
	if kind != delivery.EventCreated && kind != delivery.EventStatusChanged {
		s.writeJSON(w, http.StatusBadRequest, envelope{Message: "Unknown event kind: " + req.Kind})
		return
	}

	// Only checkout-created orders are priced from the caller's applied quote.
	var cache *delivery.QuoteCache
	if kind == delivery.EventCreated {
		cache = s.quoteCache(r)
	}

	res, err := s.deps.Dispatcher.Handle(r.Context(), delivery.OrderLifecycleEvent{
		Kind:    kind,
		OrderID: orderID,
		From:    commerce.Status(req.From),
		To:      commerce.Status(req.To),
	}, cache)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res == nil {
		s.writeData(w, http.StatusOK, submitView{OrderID: orderID, Message: "Event ignored"})
		return
	}
	s.writeData(w, http.StatusOK, toSubmitView(res))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderID(w, r)
	if !ok {
		return
	}

	// Manual syncs always reprice.
	res, err := s.deps.Submitter.Submit(r.Context(), orderID, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, toSubmitView(res))
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	nos, ok := s.linkedOrderNos(w, r)
	if !ok {
		return
	}

	details, err := s.deps.Status.GetOrderDetails(r.Context(), nos)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, s.toStatusView(nos, details, nil))
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	nos, ok := s.linkedOrderNos(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Status.RenderLabel(r.Context(), nos, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="shipping_label.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.OrderNos) == 0 {
		s.writeJSON(w, http.StatusBadRequest, envelope{Message: "orderNos is required"})
		return
	}

	results := s.deps.Status.SyncStatuses(r.Context(), req.OrderNos...)
	views := make([]statusView, len(results))
	for i, res := range results {
		views[i] = s.toStatusView(res.OrderNos, res.Details, res.Err)
	}
	s.writeData(w, http.StatusOK, views)
}

// linkedOrderNos loads the order named in the path and returns its remote
// order number.
func (s *Server) linkedOrderNos(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID, ok := s.orderID(w, r)
	if !ok {
		return "", false
	}
	order, err := s.deps.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, commerce.ErrOrderNotFound) {
			s.writeJSON(w, http.StatusNotFound, envelope{Message: "Order not found"})
			return "", false
		}
		s.writeError(w, r, err)
		return "", false
	}
	link := delivery.LinkOf(order)
	if link == nil {
		s.writeJSON(w, http.StatusNotFound, envelope{Message: "Order has not been sent to Fez Delivery"})
		return "", false
	}
	return link.RemoteOrderNumber, true
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Server) weightOf(req quoteRequest) float64 {
	if req.TotalWeight > 0 {
		return req.TotalWeight
	}
	if len(req.Items) == 0 {
		return 0
	}
	return delivery.TotalWeight(req.Items, s.config.DefaultItemWeight)
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeJSON(w, http.StatusBadRequest, envelope{Message: "Invalid order id"})
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, envelope{Message: "Invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, envelope{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	s.writeJSON(w, status, envelope{Message: delivery.MessageOf(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch delivery.KindOf(err) {
	case delivery.KindValidation:
		return http.StatusBadRequest
	case delivery.KindNotFound:
		return http.StatusNotFound
	case delivery.KindAuthFailed, delivery.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toQuoteView(q *delivery.Quote) quoteView {
	return quoteView{
		DeliveryState:    q.DeliveryStateLabel,
		PickupState:      q.PickupStateLabel,
		TotalWeight:      q.TotalWeight,
		LockerID:         q.LockerID,
		Cost:             q.Cost,
		Mode:             string(q.Mode),
		ExportLocationID: q.ExportLocationID,
		ExportWeightID:   q.ExportWeightID,
	}
}

func toSubmitView(res *delivery.SubmitResult) submitView {
	return submitView{
		Submitted:     true,
		OrderID:       res.OrderID,
		OrderNos:      res.RemoteOrderNumber,
		Message:       res.Message,
		Cost:          res.Cost,
		Export:        res.Export,
		AlreadyLinked: res.AlreadyLinked,
		Duplicate:     res.Duplicate,
	}
}

func (s *Server) toStatusView(nos string, d *delivery.OrderDetails, err error) statusView {
	v := statusView{OrderNos: nos, TrackingURL: s.deps.Status.TrackingURL(nos)}
	if err != nil {
		v.Error = delivery.MessageOf(err)
		return v
	}
	if d == nil {
		return v
	}
	v.Status = string(d.Status)
	v.Cost = d.Cost
	v.UpdatedAt = d.UpdatedAt
	v.Manifest = manifestView{
		PickUpState:      d.Manifest.PickUpState,
		DropOffState:     d.Manifest.DropOffState,
		RecipientName:    d.Manifest.RecipientName,
		RecipientPhone:   d.Manifest.RecipientPhone,
		RecipientAddress: d.Manifest.RecipientAddress,
		Description:      d.Manifest.Description,
		SendersName:      d.Manifest.SendersName,
	}
	return v
}
