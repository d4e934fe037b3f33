package delivery

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tournevent/fezdelivery/pkg/session"
)

// Session keys holding the applied quote.
const (
	keyDeliveryStateLabel = "delivery_state_label"
	keyPickupStateLabel   = "pickup_state_label"
	keyTotalWeight        = "total_weight"
	keyLockerID           = "locker_id"
	keyCost               = "cost"
	keyMode               = "mode"
	keyExportLocationID   = "export_location_id"
	keyExportWeightID     = "export_weight_id"

	keyExportLocations = "export_locations"
)

// quoteKeys is the complete set of quote-derived keys. Set and Reset always
// operate on all of them together.
var quoteKeys = []string{
	keyDeliveryStateLabel,
	keyPickupStateLabel,
	keyTotalWeight,
	keyLockerID,
	keyCost,
	keyMode,
	keyExportLocationID,
	keyExportWeightID,
}

// QuoteCache is the checkout session's view of the applied quote. It is
// created per request for one visitor session.
type QuoteCache struct {
	store session.Store
	sid   string
}

// NewQuoteCache binds a cache to a session.
func NewQuoteCache(store session.Store, sid string) *QuoteCache {
	return &QuoteCache{store: store, sid: sid}
}

// SessionID returns the session the cache is bound to.
func (c *QuoteCache) SessionID() string {
	return c.sid
}

// Set replaces the applied quote. Keys the new quote leaves empty are
// removed so nothing from an earlier quote survives.
func (c *QuoteCache) Set(ctx context.Context, q *Quote) error {
	if q == nil {
		return c.Reset(ctx)
	}
	values := map[string]string{
		keyDeliveryStateLabel: q.DeliveryStateLabel,
		keyPickupStateLabel:   q.PickupStateLabel,
		keyTotalWeight:        formatFloat(q.TotalWeight),
		keyLockerID:           q.LockerID,
		keyCost:               formatFloat(q.Cost),
		keyMode:               string(q.Mode),
	}
	if q.Mode == ModeExport {
		values[keyExportLocationID] = strconv.Itoa(q.ExportLocationID)
		values[keyExportWeightID] = strconv.Itoa(q.ExportWeightID)
	}

	var empty []string
	for _, k := range quoteKeys {
		if values[k] == "" {
			delete(values, k)
			empty = append(empty, k)
		}
	}
	return c.store.Replace(ctx, c.sid, empty, values)
}

// Get returns the applied quote, or nil when no cost is cached.
func (c *QuoteCache) Get(ctx context.Context) (*Quote, error) {
	all, err := c.store.GetAll(ctx, c.sid)
	if err != nil {
		return nil, err
	}
	rawCost, ok := all[keyCost]
	if !ok || rawCost == "" {
		return nil, nil
	}
	q := &Quote{
		DeliveryStateLabel: all[keyDeliveryStateLabel],
		PickupStateLabel:   all[keyPickupStateLabel],
		TotalWeight:        parseFloat(all[keyTotalWeight]),
		LockerID:           all[keyLockerID],
		Cost:               parseFloat(rawCost),
		Mode:               QuoteMode(all[keyMode]),
	}
	if q.Mode == "" {
		q.Mode = ModeLocal
	}
	q.ExportLocationID, _ = strconv.Atoi(all[keyExportLocationID])
	q.ExportWeightID, _ = strconv.Atoi(all[keyExportWeightID])
	return q, nil
}

// Reset removes every quote-derived key in one store call.
func (c *QuoteCache) Reset(ctx context.Context) error {
	return c.store.Unset(ctx, c.sid, quoteKeys...)
}

// Current returns the applied quote only when it was computed for the given
// delivery label and weight. A quote for other inputs is discarded and nil
// is returned.
func (c *QuoteCache) Current(ctx context.Context, deliveryLabel string, weight float64) (*Quote, error) {
	q, err := c.Get(ctx)
	if err != nil || q == nil {
		return nil, err
	}
	if q.DeliveryStateLabel == deliveryLabel && sameWeight(q.TotalWeight, weight) {
		return q, nil
	}
	if err := c.Reset(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// ExportLocations returns the export table cached for the session, or nil.
// The table is not quote-derived and survives Reset.
func (c *QuoteCache) ExportLocations(ctx context.Context) ([]ExportLocation, error) {
	raw, ok, err := c.store.Get(ctx, c.sid, keyExportLocations)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var locs []ExportLocation
	if err := json.Unmarshal([]byte(raw), &locs); err != nil {
		// A corrupt entry is refetched.
		return nil, nil
	}
	return locs, nil
}

// SetExportLocations caches the export table for the session.
func (c *QuoteCache) SetExportLocations(ctx context.Context, locs []ExportLocation) error {
	data, err := json.Marshal(locs)
	if err != nil {
		return err
	}
	return c.store.SetMany(ctx, c.sid, map[string]string{keyExportLocations: string(data)})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
