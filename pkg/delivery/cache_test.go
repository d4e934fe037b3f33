package delivery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/session"
)

func newCache(t *testing.T) (*delivery.QuoteCache, session.Store, string) {
	t.Helper()
	store := session.NewMemoryStore("")
	sid := session.NewID()
	return delivery.NewQuoteCache(store, sid), store, sid
}

func TestQuoteCache_SetGet(t *testing.T) {
	cache, _, _ := newCache(t)
	ctx := context.Background()

	q, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, q, "empty cache reports no quote")

	want := &delivery.Quote{
		DeliveryStateLabel: "FCT",
		PickupStateLabel:   "Lagos",
		TotalWeight:        3,
		LockerID:           "LCK-1",
		Cost:               1500,
		Mode:               delivery.ModeSafeLocker,
	}
	require.NoError(t, cache.Set(ctx, want))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQuoteCache_ResetClearsEveryKey(t *testing.T) {
	cache, store, sid := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "United Kingdom",
		TotalWeight:        2,
		Cost:               25000,
		Mode:               delivery.ModeExport,
		ExportLocationID:   1,
		ExportWeightID:     12,
	}))
	require.NoError(t, cache.SetExportLocations(ctx, []delivery.ExportLocation{{ID: 1, CountryCode: "GB"}}))

	require.NoError(t, cache.Reset(ctx))

	q, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, q)

	all, err := store.GetAll(ctx, sid)
	require.NoError(t, err)
	for _, key := range []string{
		"delivery_state_label", "pickup_state_label", "total_weight", "locker_id",
		"cost", "mode", "export_location_id", "export_weight_id",
	} {
		assert.NotContains(t, all, key)
	}

	locs, err := cache.ExportLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 1, "export table is not quote-derived and survives reset")
}

func TestQuoteCache_SetReplacesWithoutMerge(t *testing.T) {
	cache, store, sid := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "Lagos",
		PickupStateLabel:   "Lagos",
		TotalWeight:        1,
		LockerID:           "LCK-1",
		Cost:               1200,
		Mode:               delivery.ModeSafeLocker,
	}))
	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "Kano",
		PickupStateLabel:   "Lagos",
		TotalWeight:        2,
		Cost:               3000,
		Mode:               delivery.ModeLocal,
	}))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.LockerID, "locker from the earlier quote must not survive")
	assert.Equal(t, delivery.ModeLocal, got.Mode)

	all, err := store.GetAll(ctx, sid)
	require.NoError(t, err)
	assert.NotContains(t, all, "locker_id")
}

// failingStore rejects every write once broken is set.
type failingStore struct {
	session.Store
	broken bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) SetMany(ctx context.Context, sid string, values map[string]string) error {
	if f.broken {
		return errStoreDown
	}
	return f.Store.SetMany(ctx, sid, values)
}

func (f *failingStore) Replace(ctx context.Context, sid string, unset []string, values map[string]string) error {
	if f.broken {
		return errStoreDown
	}
	return f.Store.Replace(ctx, sid, unset, values)
}

func (f *failingStore) Unset(ctx context.Context, sid string, keys ...string) error {
	if f.broken {
		return errStoreDown
	}
	return f.Store.Unset(ctx, sid, keys...)
}

func TestQuoteCache_FailedSetKeepsPreviousQuote(t *testing.T) {
	store := &failingStore{Store: session.NewMemoryStore("")}
	cache := delivery.NewQuoteCache(store, session.NewID())
	ctx := context.Background()

	export := &delivery.Quote{
		DeliveryStateLabel: "United Kingdom",
		TotalWeight:        4,
		Cost:               40000,
		Mode:               delivery.ModeExport,
		ExportLocationID:   3,
		ExportWeightID:     7,
	}
	require.NoError(t, cache.Set(ctx, export))

	store.broken = true
	err := cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "Lagos",
		PickupStateLabel:   "Lagos",
		TotalWeight:        1,
		Cost:               1500,
		Mode:               delivery.ModeLocal,
	})
	require.ErrorIs(t, err, errStoreDown)

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, export, got, "a failed write leaves the earlier quote whole")
}

func TestQuoteCache_Current(t *testing.T) {
	cache, _, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "FCT",
		PickupStateLabel:   "Lagos",
		TotalWeight:        3,
		Cost:               1500,
		Mode:               delivery.ModeLocal,
	}))

	q, err := cache.Current(ctx, "FCT", 3.0001)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 1500.0, q.Cost)

	q, err = cache.Current(ctx, "FCT", 4)
	require.NoError(t, err)
	assert.Nil(t, q, "a weight change invalidates the quote")

	q, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, q, "the stale quote is removed")
}

func TestQuoteCache_SessionsAreIsolated(t *testing.T) {
	store := session.NewMemoryStore("")
	ctx := context.Background()
	a := delivery.NewQuoteCache(store, "a")
	b := delivery.NewQuoteCache(store, "b")

	require.NoError(t, a.Set(ctx, &delivery.Quote{DeliveryStateLabel: "Kano", Cost: 10, Mode: delivery.ModeLocal}))

	q, err := b.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Equal(t, "a", a.SessionID())
}
