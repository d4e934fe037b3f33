// Package fez provides integration with the Fez Delivery API.
package fez

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const providerName = "fez"

// Config holds Fez configuration.
type Config struct {
	BaseURL           string
	UserID            string
	Password          string
	Timeout           time.Duration
	RequestsPerSecond float64
	UseMock           bool // When true, uses mock API client
}

// Recorder receives per-call measurements.
type Recorder interface {
	ObserveRequest(operation, status string, duration time.Duration)
	ObserveProviderError(operation, kind string)
}

// Client is the Fez delivery provider.
// It implements the delivery.Provider interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
	recorder  Recorder
}

// New creates a new Fez client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:           cfg.BaseURL,
			UserID:            cfg.UserID,
			Password:          cfg.Password,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Fez client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(providerName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// WithRecorder sets the metrics recorder.
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// GetCost prices a domestic parcel.
func (c *Client) GetCost(ctx context.Context, req *delivery.CostRequest) (result *delivery.CostResult, err error) {
	ctx, done := c.start(ctx, "get_cost",
		attribute.String("fez.delivery_state", req.DeliveryState),
		attribute.String("fez.pickup_state", req.PickupState),
		attribute.Float64("fez.weight", req.Weight),
	)
	defer func() { err = done(err) }()

	resp, err := c.apiClient.GetCost(ctx, &CostRequest{
		State:       req.DeliveryState,
		PickUpState: req.PickupState,
		Weight:      req.Weight,
		Locker:      req.LockerID != "",
	})
	if err != nil {
		return nil, err
	}

	detail, err := NormalizeCost(resp.Cost)
	if err != nil {
		return nil, delivery.NewError(providerName, delivery.KindProvider, describe(resp.Description, "Unable to read delivery cost")).
			WithCause(err)
	}

	state := detail.State
	if state == "" {
		state = req.DeliveryState
	}
	return &delivery.CostResult{
		Cost:    delivery.CostDetail{Cost: detail.Cost.Float64(), State: state},
		Message: resp.Description,
	}, nil
}

// CreateOrder creates a domestic order.
func (c *Client) CreateOrder(ctx context.Context, req *delivery.CreateOrderRequest) (result *delivery.CreateOrderResult, err error) {
	ctx, done := c.start(ctx, "create_order", attribute.String("fez.unique_id", req.UniqueID))
	defer func() { err = done(err) }()

	c.logger.Info("Creating Fez order",
		zap.String("unique_id", req.UniqueID),
		zap.String("recipient_state", req.Recipient.State),
		zap.Float64("weight", req.Weight),
	)

	order := OrderRequest{
		RecipientAddress: req.Recipient.Address,
		RecipientState:   req.Recipient.State,
		RecipientName:    req.Recipient.Name,
		RecipientPhone:   req.Recipient.Phone,
		UniqueID:         req.UniqueID,
		BatchID:          req.BatchID,
		ValueOfItem:      formatMoney(req.ValueOfItem),
		Weight:           req.Weight,
		PickUpState:      req.PickupState,
		ItemDescription:  req.ItemDescription,
		LockerID:         req.LockerID,
	}
	if req.CashOnDelivery {
		order.IsItemCod = true
		order.CashOnDeliveryAmount = req.CashOnDeliveryAmount
	}

	resp, err := c.apiClient.CreateOrders(ctx, []OrderRequest{order})
	if err != nil {
		return nil, err
	}
	return createResult(resp, req.UniqueID), nil
}

// CreateExportOrder creates an export order.
func (c *Client) CreateExportOrder(ctx context.Context, req *delivery.CreateExportOrderRequest) (result *delivery.CreateOrderResult, err error) {
	ctx, done := c.start(ctx, "create_export_order",
		attribute.String("fez.unique_id", req.UniqueID),
		attribute.Int("fez.export_location_id", req.ExportLocationID),
	)
	defer func() { err = done(err) }()

	c.logger.Info("Creating Fez export order",
		zap.String("unique_id", req.UniqueID),
		zap.String("country", req.Recipient.Country),
		zap.Int("export_location_id", req.ExportLocationID),
		zap.Int("export_weight_id", req.ExportWeightID),
	)

	resp, err := c.apiClient.CreateExportOrders(ctx, []ExportOrderRequest{{
		RecipientAddress: req.Recipient.Address,
		RecipientState:   req.Recipient.State,
		RecipientName:    req.Recipient.Name,
		RecipientPhone:   req.Recipient.Phone,
		RecipientEmail:   req.Recipient.Email,
		UniqueID:         req.UniqueID,
		BatchID:          req.BatchID,
		ValueOfItem:      formatMoney(req.ValueOfItem),
		Weight:           req.Weight,
		ItemDescription:  req.ItemDescription,
		ExportLocationID: req.ExportLocationID,
		WeightID:         req.ExportWeightID,
	}})
	if err != nil {
		return nil, err
	}
	return createResult(resp, req.UniqueID), nil
}

// GetOrderDetails reads an order.
func (c *Client) GetOrderDetails(ctx context.Context, orderNos string) (result *delivery.OrderDetails, err error) {
	ctx, done := c.start(ctx, "get_order_details", attribute.String("fez.order_nos", orderNos))
	defer func() { err = done(err) }()

	resp, err := c.apiClient.GetOrderDetails(ctx, orderNos)
	if err != nil {
		return nil, err
	}
	if len(resp.OrderDetails) == 0 {
		return nil, delivery.NewError(providerName, delivery.KindNotFound, "Order not found: "+orderNos)
	}

	d := resp.OrderDetails[0]
	for _, candidate := range resp.OrderDetails {
		if candidate.OrderNo == orderNos {
			d = candidate
			break
		}
	}
	return orderDetailsToDelivery(d, orderNos, resp.Raw), nil
}

// ExportLocations lists export destinations.
func (c *Client) ExportLocations(ctx context.Context) (result []delivery.ExportLocation, err error) {
	ctx, done := c.start(ctx, "export_locations")
	defer func() { err = done(err) }()

	resp, err := c.apiClient.ExportLocations(ctx)
	if err != nil {
		return nil, err
	}

	locs := make([]delivery.ExportLocation, len(resp.Data))
	for i, l := range resp.Data {
		weights := make([]delivery.ExportWeight, len(l.Weights))
		for j, w := range l.Weights {
			weights[j] = delivery.ExportWeight{ID: w.ID, Weight: w.Weight.Float64()}
		}
		locs[i] = delivery.ExportLocation{
			ID:          l.ID,
			Name:        l.Name,
			CountryCode: strings.ToUpper(l.CountryCode),
			Weights:     weights,
		}
	}
	return locs, nil
}

// ExportPrice prices an export parcel.
func (c *Client) ExportPrice(ctx context.Context, req *delivery.ExportPriceRequest) (result *delivery.ExportPrice, err error) {
	ctx, done := c.start(ctx, "export_price",
		attribute.Int("fez.export_location_id", req.ExportLocationID),
		attribute.Int("fez.export_weight_id", req.ExportWeightID),
	)
	defer func() { err = done(err) }()

	resp, err := c.apiClient.ExportPrice(ctx, &ExportPriceRequest{
		ExportLocationID: req.ExportLocationID,
		WeightID:         req.ExportWeightID,
	})
	if err != nil {
		return nil, err
	}
	return &delivery.ExportPrice{Price: resp.Price.Float64(), Message: resp.Description}, nil
}

// Lockers lists lockers in a state. An empty list is returned as-is.
func (c *Client) Lockers(ctx context.Context, state string) (result []delivery.Locker, err error) {
	ctx, done := c.start(ctx, "lockers", attribute.String("fez.state", state))
	defer func() { err = done(err) }()

	resp, err := c.apiClient.Lockers(ctx, state)
	if err != nil {
		return nil, err
	}
	lockers := make([]delivery.Locker, len(resp.Data))
	for i, l := range resp.Data {
		lockers[i] = delivery.Locker{ID: l.ID, Name: l.Name, Address: l.Address, State: l.State}
	}
	return lockers, nil
}

// start opens a span for op. The returned func converts the error, records
// it on the span and metrics, and ends the span.
func (c *Client) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error) error) {
	begin := time.Now()
	ctx, span := c.tracer.Start(ctx, "fez."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) error {
		defer span.End()
		err = toDeliveryError(op, err)

		status := "ok"
		if err != nil {
			status = "error"
			kind := delivery.KindOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, delivery.MessageOf(err))
			span.SetAttributes(attribute.String("fez.error_kind", string(kind)))
			c.logger.Error("Fez API error",
				zap.String("operation", op),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			if c.recorder != nil {
				c.recorder.ObserveProviderError(op, string(kind))
			}
		}
		if c.recorder != nil {
			c.recorder.ObserveRequest(op, status, time.Since(begin))
		}
		return err
	}
}

// toDeliveryError maps API and transport failures onto delivery error kinds.
func toDeliveryError(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *delivery.Error
	if errors.As(err, &de) {
		return err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		kind := delivery.KindProvider
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = delivery.KindAuthFailed
		case http.StatusNotFound:
			kind = delivery.KindNotFound
		}
		retryable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
		return delivery.NewError(providerName, kind, apiErr.Description).
			WithOp(op).
			WithStatusCode(apiErr.StatusCode).
			WithRetryable(retryable).
			WithCause(err)
	}

	return delivery.NewError(providerName, delivery.KindProvider, err.Error()).
		WithOp(op).
		WithRetryable(true).
		WithCause(err)
}

// ============================================================================
// Conversion helpers
// ============================================================================

func createResult(resp *CreateOrderResponse, uniqueID string) *delivery.CreateOrderResult {
	if len(resp.DuplicateUniqueIDs) > 0 {
		nos := resp.DuplicateUniqueIDs[uniqueID]
		if nos == "" {
			nos = resp.OrderNos.For(uniqueID)
		}
		return &delivery.CreateOrderResult{
			OrderNos:  nos,
			Message:   describe(resp.Description, "Your order has already been created"),
			Duplicate: true,
		}
	}
	return &delivery.CreateOrderResult{
		OrderNos: resp.OrderNos.For(uniqueID),
		Message:  resp.Description,
	}
}

func orderDetailsToDelivery(d OrderDetail, orderNos string, raw map[string]any) *delivery.OrderDetails {
	out := &delivery.OrderDetails{
		OrderNo: d.OrderNo,
		Status:  delivery.OrderStatus(d.OrderStatus),
		Cost:    d.Cost.Float64(),
		Manifest: delivery.Manifest{
			PickUpState:      d.Manifest.PickUpState,
			DropOffState:     d.Manifest.DropOffState,
			RecipientName:    d.Manifest.RecipientName,
			RecipientPhone:   d.Manifest.RecipientPhone,
			RecipientAddress: d.Manifest.RecipientAddress,
			Description:      d.Manifest.Description,
			SendersName:      d.Manifest.SendersName,
		},
		Raw: raw,
	}
	if out.OrderNo == "" {
		out.OrderNo = orderNos
	}
	if d.UpdatedAt != "" {
		if t, err := parseExpiry(d.UpdatedAt); err == nil {
			out.UpdatedAt = &t
		}
	}
	return out
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

var _ delivery.Provider = (*Client)(nil)
