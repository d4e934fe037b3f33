package delivery

import (
	"context"

	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Rate is the shipping rate offered at checkout.
type Rate struct {
	ID    string
	Label string
	Cost  float64
}

// RateCalculator computes the checkout shipping rate from the applied quote.
type RateCalculator struct {
	enabled           bool
	states            *StateTable
	defaultItemWeight float64
	logger            *otelzap.Logger
}

// NewRateCalculator creates a rate calculator.
func NewRateCalculator(enabled bool, states *StateTable, defaultItemWeight float64, logger *otelzap.Logger) *RateCalculator {
	if states == nil {
		states = DefaultStateTable()
	}
	return &RateCalculator{
		enabled:           enabled,
		states:            states,
		defaultItemWeight: defaultItemWeight,
		logger:            logger,
	}
}

// Calculate returns the rate for cart, or nil when the method is disabled.
// The cost is the applied quote when it still matches the cart's destination
// and weight, and zero otherwise.
func (c *RateCalculator) Calculate(ctx context.Context, cache *QuoteCache, cart *commerce.Cart) (*Rate, error) {
	if !c.enabled {
		return nil, nil
	}
	rate := &Rate{ID: MethodID, Label: MethodTitle}
	if cache == nil || cart == nil {
		return rate, nil
	}

	weight := TotalWeight(cart.Items, c.defaultItemWeight)

	q, err := cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return rate, nil
	}
	// Export quotes are keyed by destination name rather than state.
	dest := c.states.Resolve(cart.Destination.State)
	if q.Mode == ModeExport {
		dest = q.DeliveryStateLabel
	}

	q, err = cache.Current(ctx, dest, weight)
	if err != nil {
		return nil, err
	}
	if q == nil {
		c.logger.Debug("Applied quote no longer matches cart",
			zap.String("delivery_state", dest),
			zap.Float64("weight", weight),
		)
		return rate, nil
	}
	rate.Cost = q.Cost
	return rate, nil
}
