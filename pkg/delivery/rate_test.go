package delivery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/tournevent/fezdelivery/pkg/delivery"
)

func TestRateCalculator_Disabled(t *testing.T) {
	calc := delivery.NewRateCalculator(false, nil, 0, testLogger())

	rate, err := calc.Calculate(context.Background(), nil, &commerce.Cart{})
	require.NoError(t, err)
	assert.Nil(t, rate)
}

func TestRateCalculator_UsesMatchingQuote(t *testing.T) {
	calc := delivery.NewRateCalculator(true, nil, 0, testLogger())
	cache, _, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "FCT",
		PickupStateLabel:   "Lagos",
		TotalWeight:        3,
		Cost:               1500,
		Mode:               delivery.ModeLocal,
	}))
	cart := &commerce.Cart{
		Items:       []commerce.LineItem{{Name: "Shoes", Quantity: 2, Weight: 1.5}},
		Destination: commerce.Address{State: "FC", Country: "NG"},
	}

	rate, err := calc.Calculate(ctx, cache, cart)
	require.NoError(t, err)
	assert.Equal(t, delivery.MethodID, rate.ID)
	assert.Equal(t, delivery.MethodTitle, rate.Label)
	assert.Equal(t, 1500.0, rate.Cost)
}

func TestRateCalculator_StaleQuoteIsZero(t *testing.T) {
	calc := delivery.NewRateCalculator(true, nil, 0, testLogger())
	cache, _, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "Kano",
		TotalWeight:        3,
		Cost:               1500,
		Mode:               delivery.ModeLocal,
	}))
	cart := &commerce.Cart{
		Items:       []commerce.LineItem{{Name: "Shoes", Quantity: 2, Weight: 1.5}},
		Destination: commerce.Address{State: "LA"},
	}

	rate, err := calc.Calculate(ctx, cache, cart)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate.Cost)

	q, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, q, "a quote for another destination is discarded")
}

func TestRateCalculator_ExportQuote(t *testing.T) {
	calc := delivery.NewRateCalculator(true, nil, 0, testLogger())
	cache, _, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "United Kingdom",
		TotalWeight:        1,
		Cost:               25000,
		Mode:               delivery.ModeExport,
		ExportLocationID:   1,
		ExportWeightID:     11,
	}))
	cart := &commerce.Cart{
		Items:       []commerce.LineItem{{Name: "Fabric", Quantity: 2, Weight: 0.5}},
		Destination: commerce.Address{State: "London", Country: "GB"},
	}

	rate, err := calc.Calculate(ctx, cache, cart)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, rate.Cost)
}
