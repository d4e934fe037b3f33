package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// QuoteEngine prices parcels through the provider. It never touches the
// quote cache except to read or fill the per-session export table.
type QuoteEngine struct {
	provider Provider
	states   *StateTable
	logger   *otelzap.Logger
}

// NewQuoteEngine creates a quote engine. A nil state table selects the
// embedded default.
func NewQuoteEngine(provider Provider, states *StateTable, logger *otelzap.Logger) *QuoteEngine {
	if states == nil {
		states = DefaultStateTable()
	}
	return &QuoteEngine{
		provider: provider,
		states:   states,
		logger:   logger,
	}
}

// States returns the state table used for normalization.
func (e *QuoteEngine) States() *StateTable {
	return e.states
}

// GetQuote prices a domestic parcel. Both states may be codes or labels and
// are normalized before being sent. lockerID may be empty or NoLocker for
// doorstep delivery.
func (e *QuoteEngine) GetQuote(ctx context.Context, pickupState, deliveryState string, totalWeight float64, lockerID string) (*Quote, error) {
	pickup := e.states.Resolve(pickupState)
	dest := e.states.Resolve(deliveryState)
	if dest == "" {
		return nil, NewError(e.provider.Name(), KindValidation, "delivery state is required").WithOp("quote")
	}
	if pickup == "" {
		return nil, NewError(e.provider.Name(), KindValidation, "pickup state is required").WithOp("quote")
	}
	if totalWeight <= 0 {
		totalWeight = DefaultItemWeight
	}
	locker := normalizeLocker(lockerID)

	e.logger.Info("Requesting Fez delivery cost",
		zap.String("pickup_state", pickup),
		zap.String("delivery_state", dest),
		zap.Float64("weight", totalWeight),
		zap.String("locker_id", locker),
	)

	res, err := e.provider.GetCost(ctx, &CostRequest{
		DeliveryState: dest,
		PickupState:   pickup,
		Weight:        totalWeight,
		LockerID:      locker,
	})
	if err != nil {
		e.logger.Error("Fez delivery cost failed",
			zap.Error(err),
			zap.String("pickup_state", pickup),
			zap.String("delivery_state", dest),
			zap.Float64("weight", totalWeight),
		)
		return nil, asDeliveryError(e.provider.Name(), "quote", err)
	}

	mode := ModeLocal
	if locker != "" {
		mode = ModeSafeLocker
	}
	return &Quote{
		DeliveryStateLabel: dest,
		PickupStateLabel:   pickup,
		TotalWeight:        totalWeight,
		LockerID:           locker,
		Cost:               res.Cost.Cost,
		Mode:               mode,
	}, nil
}

// GetExportQuote prices an export parcel to countryCode. The export table is
// read from cache when present and stored there after a fetch; cache may be
// nil.
func (e *QuoteEngine) GetExportQuote(ctx context.Context, cache *QuoteCache, countryCode string, totalWeight float64) (*Quote, error) {
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if country == "" {
		return nil, NewError(e.provider.Name(), KindValidation, "destination country is required").WithOp("export_quote")
	}

	locs, err := e.exportLocations(ctx, cache)
	if err != nil {
		return nil, err
	}

	loc, ok := findExportLocation(locs, country)
	if !ok {
		return nil, NewError(e.provider.Name(), KindNotFound,
			fmt.Sprintf("export to %s is not available", country)).WithOp("export_quote")
	}
	bracket, ok := SelectBracket(loc.Weights, totalWeight)
	if !ok {
		return nil, NewError(e.provider.Name(), KindNotFound,
			fmt.Sprintf("no export weight brackets for %s", country)).WithOp("export_quote")
	}

	price, err := e.provider.ExportPrice(ctx, &ExportPriceRequest{
		ExportLocationID: loc.ID,
		ExportWeightID:   bracket.ID,
	})
	if err != nil {
		e.logger.Error("Fez export price failed",
			zap.Error(err),
			zap.String("country", country),
			zap.Int("export_location_id", loc.ID),
			zap.Int("export_weight_id", bracket.ID),
		)
		return nil, asDeliveryError(e.provider.Name(), "export_quote", err)
	}

	return &Quote{
		DeliveryStateLabel: loc.Name,
		TotalWeight:        totalWeight,
		Cost:               price.Price,
		Mode:               ModeExport,
		ExportLocationID:   loc.ID,
		ExportWeightID:     bracket.ID,
	}, nil
}

// Lockers lists the lockers of a state. An empty list is a not_found error.
func (e *QuoteEngine) Lockers(ctx context.Context, state string) ([]Locker, error) {
	label := e.states.Resolve(state)
	if label == "" {
		return nil, NewError(e.provider.Name(), KindValidation, "state is required").WithOp("lockers")
	}
	lockers, err := e.provider.Lockers(ctx, label)
	if err != nil {
		return nil, asDeliveryError(e.provider.Name(), "lockers", err)
	}
	if len(lockers) == 0 {
		return nil, NewError(e.provider.Name(), KindNotFound,
			fmt.Sprintf("no lockers found in %s", label)).WithOp("lockers")
	}
	return lockers, nil
}

func (e *QuoteEngine) exportLocations(ctx context.Context, cache *QuoteCache) ([]ExportLocation, error) {
	if cache != nil {
		locs, err := cache.ExportLocations(ctx)
		if err != nil {
			e.logger.Warn("Reading cached export locations failed", zap.Error(err))
		} else if len(locs) > 0 {
			return locs, nil
		}
	}

	locs, err := e.provider.ExportLocations(ctx)
	if err != nil {
		e.logger.Error("Fez export locations failed", zap.Error(err))
		return nil, asDeliveryError(e.provider.Name(), "export_locations", err)
	}
	if cache != nil && len(locs) > 0 {
		if err := cache.SetExportLocations(ctx, locs); err != nil {
			e.logger.Warn("Caching export locations failed", zap.Error(err))
		}
	}
	return locs, nil
}

func findExportLocation(locs []ExportLocation, country string) (ExportLocation, bool) {
	for _, l := range locs {
		if strings.EqualFold(l.CountryCode, country) {
			return l, true
		}
	}
	return ExportLocation{}, false
}

func normalizeLocker(id string) string {
	id = strings.TrimSpace(id)
	if strings.EqualFold(id, NoLocker) {
		return ""
	}
	return id
}

// asDeliveryError makes sure err is an *Error so callers can branch on Kind.
func asDeliveryError(provider, op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return NewError(provider, KindProvider, err.Error()).WithOp(op).WithCause(err)
}
