package delivery

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LabelRenderer turns provider order details into a printable document.
type LabelRenderer interface {
	Render(details *OrderDetails, w io.Writer) error
}

// StatusReader reads remote order state and renders labels. Reads are not
// cached or retried.
type StatusReader struct {
	provider    Provider
	renderer    LabelRenderer
	trackingURL string
	logger      *otelzap.Logger
}

// NewStatusReader creates a status reader. trackingURL is the base tracking
// link the order number is appended to.
func NewStatusReader(provider Provider, renderer LabelRenderer, trackingURL string, logger *otelzap.Logger) *StatusReader {
	return &StatusReader{
		provider:    provider,
		renderer:    renderer,
		trackingURL: trackingURL,
		logger:      logger,
	}
}

// GetOrderDetails fetches the provider's record of an order.
func (r *StatusReader) GetOrderDetails(ctx context.Context, orderNos string) (*OrderDetails, error) {
	orderNos = strings.TrimSpace(orderNos)
	if orderNos == "" {
		return nil, NewError(r.provider.Name(), KindValidation, "order number is required").WithOp("order_details")
	}
	details, err := r.provider.GetOrderDetails(ctx, orderNos)
	if err != nil {
		r.logger.Error("Fez order details failed", zap.Error(err), zap.String("order_nos", orderNos))
		return nil, asDeliveryError(r.provider.Name(), "order_details", err)
	}
	return details, nil
}

// RenderLabel writes the shipping label of an order to w.
func (r *StatusReader) RenderLabel(ctx context.Context, orderNos string, w io.Writer) error {
	if r.renderer == nil {
		return NewError(r.provider.Name(), KindValidation, "label rendering is not configured").WithOp("label")
	}
	details, err := r.GetOrderDetails(ctx, orderNos)
	if err != nil {
		return err
	}
	if details.OrderNo == "" {
		details.OrderNo = strings.TrimSpace(orderNos)
	}
	if err := r.renderer.Render(details, w); err != nil {
		r.logger.Error("Rendering label failed", zap.Error(err), zap.String("order_nos", orderNos))
		return fmt.Errorf("rendering label for %s: %w", orderNos, err)
	}
	return nil
}

// TrackingURL returns the public tracking link for an order.
func (r *StatusReader) TrackingURL(orderNos string) string {
	if r.trackingURL == "" {
		return ""
	}
	return r.trackingURL + url.PathEscape(strings.TrimSpace(orderNos))
}

// StatusResult is one entry of a bulk status sync.
type StatusResult struct {
	OrderNos string
	Details  *OrderDetails
	Err      error
}

// SyncStatuses reads several orders in parallel. Individual failures are
// reported per entry and do not stop the others. Results keep input order.
func (r *StatusReader) SyncStatuses(ctx context.Context, orderNos ...string) []StatusResult {
	results := make([]StatusResult, len(orderNos))
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, nos := range orderNos {
		i, nos := i, nos
		g.Go(func() error {
			details, err := r.GetOrderDetails(ctx, nos)
			mu.Lock()
			defer mu.Unlock()
			results[i] = StatusResult{OrderNos: nos, Details: details, Err: err}
			return nil // one failed read must not cancel the rest
		})
	}

	g.Wait()
	return results
}
