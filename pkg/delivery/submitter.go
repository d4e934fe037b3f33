package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Shipping method identity and order metadata keys.
const (
	MethodID    = "fez_delivery"
	MethodTitle = "Fez Delivery"

	MetaOrderNos = "fez_delivery_order_nos"
	MetaLockerID = "fez_delivery_locker_id"
)

// Submission paths and outcomes reported to a SubmitObserver.
const (
	PathDomestic = "domestic"
	PathExport   = "export"

	OutcomeCreated       = "created"
	OutcomeDuplicate     = "duplicate"
	OutcomeAlreadyLinked = "already_linked"
	OutcomeFailed        = "failed"
)

// SubmitterConfig holds the merchant settings the submitter needs.
type SubmitterConfig struct {
	PickupState       string   // code or label, e.g. "LA"
	HomeCountry       string   // ISO country code, e.g. "NG"
	CODMethods        []string // payment method ids collected on delivery
	UniqueIDPrefix    string   // default "fez-wc"
	DefaultItemWeight float64  // kg per unit for products without a weight
}

// SubmitObserver is notified of every submission outcome.
type SubmitObserver interface {
	ObserveSubmission(path, outcome string)
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	OrderID           int64
	RemoteOrderNumber string
	Message           string
	Cost              float64
	Export            bool
	// AlreadyLinked is set when the order carried a link and no provider call was made.
	AlreadyLinked bool
	// Duplicate is set when the provider reported the order as already created.
	Duplicate bool
}

// Submitter creates the remote delivery order for a local order. It is safe
// to call any number of times for the same order.
type Submitter struct {
	provider Provider
	orders   commerce.OrderStore
	engine   *QuoteEngine
	config   SubmitterConfig
	logger   *otelzap.Logger
	observer SubmitObserver

	inflight singleflight.Group
}

// NewSubmitter creates a submitter.
func NewSubmitter(provider Provider, orders commerce.OrderStore, engine *QuoteEngine, cfg SubmitterConfig, logger *otelzap.Logger) *Submitter {
	if cfg.UniqueIDPrefix == "" {
		cfg.UniqueIDPrefix = "fez-wc"
	}
	if cfg.HomeCountry == "" {
		cfg.HomeCountry = "NG"
	}
	if cfg.DefaultItemWeight <= 0 {
		cfg.DefaultItemWeight = DefaultItemWeight
	}
	return &Submitter{
		provider: provider,
		orders:   orders,
		engine:   engine,
		config:   cfg,
		logger:   logger,
	}
}

// WithObserver sets the outcome observer.
func (s *Submitter) WithObserver(o SubmitObserver) *Submitter {
	s.observer = o
	return s
}

// UniqueID returns the stable external reference for a local order.
func (s *Submitter) UniqueID(orderID int64) string {
	return fmt.Sprintf("%s-%d", s.config.UniqueIDPrefix, orderID)
}

// BatchID returns the batch reference for a local order.
func (s *Submitter) BatchID(orderID int64) string {
	return fmt.Sprintf("%s-batch-%d", s.config.UniqueIDPrefix, orderID)
}

// LinkOf returns the remote order link stored on an order, or nil.
func LinkOf(order *commerce.Order) *RemoteOrderLink {
	nos := order.MetaValue(MetaOrderNos)
	if nos == "" {
		return nil
	}
	return &RemoteOrderLink{
		LocalOrderID:      order.ID,
		RemoteOrderNumber: nos,
		LockerID:          order.MetaValue(MetaLockerID),
	}
}

// Submit creates the remote order for orderID unless the order is already
// linked. cache is the checkout session's quote cache and may be nil.
// Concurrent calls for the same order share one attempt. Failures are
// noted on the order and returned; Submit never panics.
func (s *Submitter) Submit(ctx context.Context, orderID int64, cache *QuoteCache) (*SubmitResult, error) {
	v, err, _ := s.inflight.Do(strconv.FormatInt(orderID, 10), func() (interface{}, error) {
		return s.submit(ctx, orderID, cache)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SubmitResult), nil
}

type submission struct {
	result   *CreateOrderResult
	uniqueID string
	lockerID string
	cost     float64
}

func (s *Submitter) submit(ctx context.Context, orderID int64, cache *QuoteCache) (res *SubmitResult, err error) {
	path := PathDomestic
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Fez submission panicked",
				zap.Any("panic", r),
				zap.Int64("order_id", orderID),
			)
			res = nil
			err = NewError(s.provider.Name(), KindProvider, fmt.Sprintf("unexpected failure: %v", r)).WithOp("submit")
		}
		s.observe(path, res, err)
	}()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Loading order for Fez submission failed", zap.Error(err), zap.Int64("order_id", orderID))
		if errors.Is(err, commerce.ErrOrderNotFound) {
			return nil, NewError(s.provider.Name(), KindNotFound, err.Error()).WithOp("submit").WithCause(err)
		}
		return nil, asDeliveryError(s.provider.Name(), "submit", err)
	}

	if link := LinkOf(order); link != nil {
		s.logger.Info("Order already linked to Fez",
			zap.Int64("order_id", orderID),
			zap.String("order_nos", link.RemoteOrderNumber),
		)
		return &SubmitResult{
			OrderID:           orderID,
			RemoteOrderNumber: link.RemoteOrderNumber,
			Message:           "Order already submitted to Fez Delivery",
			AlreadyLinked:     true,
		}, nil
	}

	var sub *submission
	if s.isExport(order) {
		path = PathExport
		sub, err = s.submitExport(ctx, order, cache)
	} else {
		sub, err = s.submitDomestic(ctx, order, cache)
	}
	if err != nil {
		s.recordFailure(ctx, order, err)
		return nil, err
	}

	return s.recordSuccess(ctx, order, sub, path == PathExport)
}

func (s *Submitter) submitDomestic(ctx context.Context, order *commerce.Order, cache *QuoteCache) (*submission, error) {
	states := s.engine.States()
	pickup := states.Resolve(s.config.PickupState)
	dest := states.Resolve(order.Billing.State)
	weight := TotalWeight(order.LineItems, s.config.DefaultItemWeight)

	var quote *Quote
	if cache != nil {
		q, err := cache.Current(ctx, dest, weight)
		if err != nil {
			s.logger.Warn("Reading cached quote failed", zap.Error(err), zap.Int64("order_id", order.ID))
		} else if q != nil && q.Mode != ModeExport {
			quote = q
		}
	}
	if quote == nil {
		q, err := s.engine.GetQuote(ctx, pickup, dest, weight, order.MetaValue(MetaLockerID))
		if err != nil {
			return nil, err
		}
		quote = q
	}

	uniqueID := s.UniqueID(order.ID)
	req := &CreateOrderRequest{
		Recipient:       recipientOf(order, dest),
		UniqueID:        uniqueID,
		BatchID:         s.BatchID(order.ID),
		ValueOfItem:     order.Total,
		Weight:          weight,
		PickupState:     pickup,
		ItemDescription: ItemDescription(order.LineItems),
		LockerID:        quote.LockerID,
	}
	if s.isCOD(order.PaymentMethod) {
		req.CashOnDelivery = true
		req.CashOnDeliveryAmount = order.Total
	}

	s.logger.Info("Creating Fez order",
		zap.Int64("order_id", order.ID),
		zap.String("unique_id", uniqueID),
		zap.String("pickup_state", pickup),
		zap.String("delivery_state", dest),
		zap.Float64("weight", weight),
		zap.Bool("cod", req.CashOnDelivery),
	)

	result, err := s.provider.CreateOrder(ctx, req)
	if err != nil {
		return nil, asDeliveryError(s.provider.Name(), "create_order", err)
	}
	return &submission{result: result, uniqueID: uniqueID, lockerID: quote.LockerID, cost: quote.Cost}, nil
}

func (s *Submitter) submitExport(ctx context.Context, order *commerce.Order, cache *QuoteCache) (*submission, error) {
	weight := TotalWeight(order.LineItems, s.config.DefaultItemWeight)

	quote, err := s.engine.GetExportQuote(ctx, cache, order.Billing.Country, weight)
	if err != nil {
		return nil, err
	}

	uniqueID := s.UniqueID(order.ID)
	req := &CreateExportOrderRequest{
		Recipient:        recipientOf(order, order.Billing.State),
		UniqueID:         uniqueID,
		BatchID:          s.BatchID(order.ID),
		ValueOfItem:      order.Total,
		Weight:           weight,
		ItemDescription:  ItemDescription(order.LineItems),
		ExportLocationID: quote.ExportLocationID,
		ExportWeightID:   quote.ExportWeightID,
	}

	s.logger.Info("Creating Fez export order",
		zap.Int64("order_id", order.ID),
		zap.String("unique_id", uniqueID),
		zap.String("country", order.Billing.Country),
		zap.Int("export_location_id", quote.ExportLocationID),
		zap.Int("export_weight_id", quote.ExportWeightID),
	)

	result, err := s.provider.CreateExportOrder(ctx, req)
	if err != nil {
		return nil, asDeliveryError(s.provider.Name(), "create_export_order", err)
	}
	return &submission{result: result, uniqueID: uniqueID, cost: quote.Cost}, nil
}

func (s *Submitter) recordSuccess(ctx context.Context, order *commerce.Order, sub *submission, export bool) (*SubmitResult, error) {
	remote := sub.result.OrderNos
	if remote == "" && sub.result.Duplicate {
		remote = sub.uniqueID
	}
	if remote == "" {
		err := NewError(s.provider.Name(), KindProvider, "no order number returned").WithOp("create_order")
		s.recordFailure(ctx, order, err)
		return nil, err
	}
	message := sub.result.Message
	if message == "" && sub.result.Duplicate {
		message = "Your order has already been created"
	}

	order.SetMeta(MetaOrderNos, remote)
	order.SetMeta(MetaLockerID, sub.lockerID)
	order.SetShippingLine(MethodID, MethodTitle, sub.cost)
	order.RecalculateTotals()

	if err := s.orders.SaveOrder(ctx, order); err != nil {
		s.logger.Error("Saving Fez order link failed",
			zap.Error(err),
			zap.Int64("order_id", order.ID),
			zap.String("order_nos", remote),
		)
		wrapped := asDeliveryError(s.provider.Name(), "save_order", err)
		s.addNote(ctx, order.ID, "Fez Delivery Error: "+MessageOf(wrapped))
		return nil, wrapped
	}

	s.addNote(ctx, order.ID, "Fez Delivery Order Initiated: "+remote)
	s.addNote(ctx, order.ID, "Fez Delivery: "+message)
	if export {
		s.addNote(ctx, order.ID, "Fez Delivery Order Type: Export")
	}

	s.logger.Info("Fez order linked",
		zap.Int64("order_id", order.ID),
		zap.String("order_nos", remote),
		zap.Bool("duplicate", sub.result.Duplicate),
		zap.Bool("export", export),
	)

	return &SubmitResult{
		OrderID:           order.ID,
		RemoteOrderNumber: remote,
		Message:           message,
		Cost:              sub.cost,
		Export:            export,
		Duplicate:         sub.result.Duplicate,
	}, nil
}

func (s *Submitter) recordFailure(ctx context.Context, order *commerce.Order, err error) {
	s.logger.Error("Fez submission failed",
		zap.Error(err),
		zap.Int64("order_id", order.ID),
		zap.String("kind", string(KindOf(err))),
	)
	s.addNote(ctx, order.ID, "Fez Delivery Error: "+MessageOf(err))
}

func (s *Submitter) addNote(ctx context.Context, orderID int64, note string) {
	if err := s.orders.AddNote(ctx, orderID, note); err != nil {
		s.logger.Error("Adding order note failed", zap.Error(err), zap.Int64("order_id", orderID))
	}
}

func (s *Submitter) observe(path string, res *SubmitResult, err error) {
	if s.observer == nil {
		return
	}
	outcome := OutcomeCreated
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case res.AlreadyLinked:
		outcome = OutcomeAlreadyLinked
	case res.Duplicate:
		outcome = OutcomeDuplicate
	}
	s.observer.ObserveSubmission(path, outcome)
}

func (s *Submitter) isExport(order *commerce.Order) bool {
	country := strings.TrimSpace(order.Billing.Country)
	return country != "" && !strings.EqualFold(country, s.config.HomeCountry)
}

func (s *Submitter) isCOD(method string) bool {
	for _, m := range s.config.CODMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func recipientOf(order *commerce.Order, state string) Recipient {
	b := order.Billing
	return Recipient{
		Name:    b.FullName(),
		Phone:   b.Phone,
		Email:   b.Email,
		Address: b.Street(),
		City:    b.City,
		State:   state,
		Country: b.Country,
	}
}
