package delivery_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/delivery/mock"
)

type fixture struct {
	provider  *mock.Provider
	orders    *commerce.MemoryStore
	engine    *delivery.QuoteEngine
	submitter *delivery.Submitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := mock.New("fez")
	orders := commerce.NewMemoryStore()
	engine := newEngine(p)
	submitter := delivery.NewSubmitter(p, orders, engine, delivery.SubmitterConfig{
		PickupState: "LA",
		HomeCountry: "NG",
		CODMethods:  []string{"cod"},
	}, testLogger())
	return &fixture{provider: p, orders: orders, engine: engine, submitter: submitter}
}

func domesticOrder(id int64) *commerce.Order {
	return &commerce.Order{
		ID:            id,
		Status:        commerce.StatusProcessing,
		Currency:      "NGN",
		Total:         10000,
		PaymentMethod: "bacs",
		Billing: commerce.Address{
			FirstName: "Ada",
			LastName:  "Obi",
			Address1:  "12 Marina Rd",
			City:      "Garki",
			State:     "FC",
			Country:   "NG",
			Phone:     "08030000000",
			Email:     "ada@example.com",
		},
		LineItems: []commerce.LineItem{
			{ProductID: 1, Name: "Shoes", Quantity: 2, Weight: 1.5, Total: 10000},
		},
	}
}

func notesWithPrefix(t *testing.T, orders commerce.OrderStore, id int64, prefix string) []string {
	t.Helper()
	notes, err := orders.Notes(context.Background(), id)
	require.NoError(t, err)
	var out []string
	for _, n := range notes {
		if strings.HasPrefix(n.Text, prefix) {
			out = append(out, n.Text)
		}
	}
	return out
}

func TestSubmitter_HappyPathDomestic(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(100))
	f.provider.OnCreateOrder = func(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error) {
		return &delivery.CreateOrderResult{OrderNos: "FEZ100", Message: "Order Successfully Created"}, nil
	}
	ctx := context.Background()

	cache, _, _ := newCache(t)
	q, err := f.engine.GetQuote(ctx, "Lagos", "Abuja", 3.0, delivery.NoLocker)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, q))

	res, err := f.submitter.Submit(ctx, 100, cache)
	require.NoError(t, err)

	assert.Equal(t, "FEZ100", res.RemoteOrderNumber)
	assert.Equal(t, "Order Successfully Created", res.Message)
	assert.False(t, res.Export)
	assert.Equal(t, 1, f.provider.Calls("GetCost"), "the cached quote is reused")

	req := f.provider.LastOrderRequest
	require.NotNil(t, req)
	assert.Equal(t, "FCT", req.Recipient.State)
	assert.Equal(t, "Lagos", req.PickupState)
	assert.Equal(t, "fez-wc-100", req.UniqueID)
	assert.Equal(t, "fez-wc-batch-100", req.BatchID)
	assert.Equal(t, 3.0, req.Weight)
	assert.Equal(t, 10000.0, req.ValueOfItem)
	assert.Equal(t, "Shoes x 2", req.ItemDescription)
	assert.Equal(t, "Ada Obi", req.Recipient.Name)
	assert.False(t, req.CashOnDelivery)

	order, err := f.orders.GetOrder(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "FEZ100", order.MetaValue(delivery.MetaOrderNos))
	require.Len(t, order.ShippingLines, 1)
	assert.Equal(t, delivery.MethodID, order.ShippingLines[0].MethodID)
	assert.Equal(t, 1500.0, order.ShippingLines[0].Total)
	assert.Equal(t, 11500.0, order.Total)

	assert.Equal(t, []string{"Fez Delivery Order Initiated: FEZ100"},
		notesWithPrefix(t, f.orders, 100, "Fez Delivery Order Initiated"))
	assert.Equal(t, []string{"Fez Delivery: Order Successfully Created"},
		notesWithPrefix(t, f.orders, 100, "Fez Delivery: "))
}

func TestSubmitter_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(101))
	ctx := context.Background()

	first, err := f.submitter.Submit(ctx, 101, nil)
	require.NoError(t, err)

	second, err := f.submitter.Submit(ctx, 101, nil)
	require.NoError(t, err)

	assert.True(t, second.AlreadyLinked)
	assert.Equal(t, first.RemoteOrderNumber, second.RemoteOrderNumber)
	assert.Equal(t, 1, f.provider.Calls("CreateOrder"))
	assert.Len(t, notesWithPrefix(t, f.orders, 101, "Fez Delivery Order Initiated"), 1)
}

func TestSubmitter_NoCachedQuoteFetchesPrice(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(102))

	res, err := f.submitter.Submit(context.Background(), 102, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.Calls("GetCost"))
	assert.Equal(t, "FCT", f.provider.LastCostRequest.DeliveryState)
	assert.Equal(t, 1500.0, res.Cost)
}

func TestSubmitter_StaleCachedQuoteIsRefetched(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(103))
	ctx := context.Background()

	cache, _, _ := newCache(t)
	require.NoError(t, cache.Set(ctx, &delivery.Quote{
		DeliveryStateLabel: "FCT",
		PickupStateLabel:   "Lagos",
		TotalWeight:        1, // the order weighs 3kg
		Cost:               900,
		Mode:               delivery.ModeLocal,
	}))

	res, err := f.submitter.Submit(ctx, 103, cache)
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.Calls("GetCost"))
	assert.Equal(t, 1500.0, res.Cost)
}

func TestSubmitter_CashOnDelivery(t *testing.T) {
	f := newFixture(t)
	o := domesticOrder(104)
	o.PaymentMethod = "cod"
	f.orders.Put(o)

	_, err := f.submitter.Submit(context.Background(), 104, nil)
	require.NoError(t, err)

	req := f.provider.LastOrderRequest
	assert.True(t, req.CashOnDelivery)
	assert.Equal(t, 10000.0, req.CashOnDeliveryAmount)
}

func TestSubmitter_LockerFromQuote(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(105))
	ctx := context.Background()

	cache, _, _ := newCache(t)
	q, err := f.engine.GetQuote(ctx, "LA", "FC", 3, "LCK-7")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, q))

	_, err = f.submitter.Submit(ctx, 105, cache)
	require.NoError(t, err)
	assert.Equal(t, "LCK-7", f.provider.LastOrderRequest.LockerID)

	order, err := f.orders.GetOrder(ctx, 105)
	require.NoError(t, err)
	link := delivery.LinkOf(order)
	require.NotNil(t, link)
	assert.Equal(t, "LCK-7", link.LockerID)
}

func TestSubmitter_ExistingShippingLineOverwritten(t *testing.T) {
	f := newFixture(t)
	o := domesticOrder(106)
	o.ShippingLines = []commerce.ShippingLine{{ID: 3, MethodID: delivery.MethodID, Title: "Fez Delivery (estimate)", Total: 800}}
	o.RecalculateTotals()
	f.orders.Put(o)
	ctx := context.Background()

	_, err := f.submitter.Submit(ctx, 106, nil)
	require.NoError(t, err)

	order, err := f.orders.GetOrder(ctx, 106)
	require.NoError(t, err)
	require.Len(t, order.ShippingLines, 1)
	assert.Equal(t, int64(3), order.ShippingLines[0].ID)
	assert.Equal(t, delivery.MethodTitle, order.ShippingLines[0].Title)
	assert.Equal(t, 1500.0, order.ShippingLines[0].Total)
	assert.Equal(t, 11500.0, order.Total)
}

func TestSubmitter_DuplicateIsSuccess(t *testing.T) {
	tests := []struct {
		name   string
		result *delivery.CreateOrderResult
		want   string
	}{
		{
			name:   "duplicate with order number",
			result: &delivery.CreateOrderResult{OrderNos: "FEZ-OLD", Duplicate: true},
			want:   "FEZ-OLD",
		},
		{
			name:   "duplicate without order number",
			result: &delivery.CreateOrderResult{Duplicate: true},
			want:   "fez-wc-107",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.Put(domesticOrder(107))
			f.provider.OnCreateOrder = func(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error) {
				return tt.result, nil
			}
			ctx := context.Background()

			res, err := f.submitter.Submit(ctx, 107, nil)
			require.NoError(t, err)
			assert.True(t, res.Duplicate)
			assert.Equal(t, tt.want, res.RemoteOrderNumber)
			assert.Equal(t, "Your order has already been created", res.Message)

			order, err := f.orders.GetOrder(ctx, 107)
			require.NoError(t, err)
			assert.Equal(t, tt.want, order.MetaValue(delivery.MetaOrderNos))
		})
	}
}

func TestSubmitter_FailureThenRetry(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(108))
	ctx := context.Background()

	attempts := 0
	f.provider.OnCreateOrder = func(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error) {
		attempts++
		if attempts == 1 {
			return nil, delivery.NewError("fez", delivery.KindProvider, "Pickup state not supported")
		}
		return &delivery.CreateOrderResult{OrderNos: "FEZ108", Message: "Order Successfully Created"}, nil
	}

	res, err := f.submitter.Submit(ctx, 108, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, delivery.KindProvider, delivery.KindOf(err))

	order, err := f.orders.GetOrder(ctx, 108)
	require.NoError(t, err)
	assert.Nil(t, delivery.LinkOf(order), "no link after a failure")
	assert.Empty(t, order.ShippingLines)
	assert.Equal(t, []string{"Fez Delivery Error: Pickup state not supported"},
		notesWithPrefix(t, f.orders, 108, "Fez Delivery Error"))

	res, err = f.submitter.Submit(ctx, 108, nil)
	require.NoError(t, err)
	assert.False(t, res.AlreadyLinked, "the retry makes a fresh attempt")
	assert.Equal(t, "FEZ108", res.RemoteOrderNumber)
	assert.Equal(t, 2, f.provider.Calls("CreateOrder"))
}

func TestSubmitter_QuoteFailureIsNoted(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(109))
	f.provider.OnGetCost = func(ctx context.Context, req *delivery.CostRequest) (*delivery.CostResult, error) {
		return nil, delivery.NewError("fez", delivery.KindAuthFailed, "Invalid credentials")
	}

	_, err := f.submitter.Submit(context.Background(), 109, nil)
	assert.True(t, errors.Is(err, delivery.ErrAuthFailed))
	assert.Equal(t, 0, f.provider.Calls("CreateOrder"))
	assert.Len(t, notesWithPrefix(t, f.orders, 109, "Fez Delivery Error: Invalid credentials"), 1)
}

func TestSubmitter_ExportOrder(t *testing.T) {
	f := newFixture(t)
	o := domesticOrder(110)
	o.Billing.Country = "GB"
	o.Billing.State = "London"
	o.LineItems = []commerce.LineItem{{Name: "Ankara fabric", Quantity: 4, Weight: 0.5, Total: 10000}}
	f.orders.Put(o)
	ctx := context.Background()

	res, err := f.submitter.Submit(ctx, 110, nil)
	require.NoError(t, err)
	assert.True(t, res.Export)
	assert.Equal(t, 25000.0, res.Cost)

	assert.Equal(t, 0, f.provider.Calls("CreateOrder"))
	assert.Equal(t, 0, f.provider.Calls("GetCost"))
	req := f.provider.LastExportRequest
	require.NotNil(t, req)
	assert.Equal(t, 1, req.ExportLocationID)
	assert.Equal(t, 12, req.ExportWeightID, "2kg parcel uses the 5kg bracket")
	assert.Equal(t, "ada@example.com", req.Recipient.Email)
	assert.Equal(t, "fez-wc-110", req.UniqueID)

	assert.Len(t, notesWithPrefix(t, f.orders, 110, "Fez Delivery Order Type: Export"), 1)
}

func TestSubmitter_EmptyOrderShipsAtMinimumWeight(t *testing.T) {
	f := newFixture(t)
	o := domesticOrder(111)
	o.LineItems = nil
	f.orders.Put(o)

	_, err := f.submitter.Submit(context.Background(), 111, nil)
	require.NoError(t, err)

	require.NotNil(t, f.provider.LastCostRequest)
	require.NotNil(t, f.provider.LastOrderRequest)
	assert.Equal(t, delivery.DefaultItemWeight, f.provider.LastOrderRequest.Weight)
	assert.Equal(t, f.provider.LastCostRequest.Weight, f.provider.LastOrderRequest.Weight, "priced and shipped weight agree")

	x := domesticOrder(112)
	x.Billing.Country = "GB"
	x.Billing.State = "London"
	x.LineItems = nil
	f.orders.Put(x)

	_, err = f.submitter.Submit(context.Background(), 112, nil)
	require.NoError(t, err)
	require.NotNil(t, f.provider.LastExportRequest)
	assert.Equal(t, delivery.DefaultItemWeight, f.provider.LastExportRequest.Weight)
}

func TestSubmitter_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.submitter.Submit(context.Background(), 999, nil)
	assert.True(t, errors.Is(err, delivery.ErrNotFound))
	assert.Equal(t, 0, f.provider.Calls("CreateOrder"))
}

func TestSubmitter_RecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(111))
	f.provider.OnCreateOrder = func(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error) {
		panic("nil map write")
	}

	assert.NotPanics(t, func() {
		_, err := f.submitter.Submit(context.Background(), 111, nil)
		assert.Equal(t, delivery.KindProvider, delivery.KindOf(err))
	})
}

func TestSubmitter_ConcurrentSubmissionsCollapse(t *testing.T) {
	f := newFixture(t)
	f.orders.Put(domesticOrder(112))

	var created int32
	release := make(chan struct{})
	f.provider.OnCreateOrder = func(ctx context.Context, req *delivery.CreateOrderRequest) (*delivery.CreateOrderResult, error) {
		atomic.AddInt32(&created, 1)
		<-release
		return &delivery.CreateOrderResult{OrderNos: "FEZ112", Message: "ok"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*delivery.SubmitResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.submitter.Submit(context.Background(), 112, nil)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "FEZ112", res.RemoteOrderNumber)
	}
	assert.Len(t, notesWithPrefix(t, f.orders, 112, "Fez Delivery Order Initiated"), 1)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveSubmission(path, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, path+"/"+outcome)
}

func TestSubmitter_Observer(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	f.submitter.WithObserver(obs)
	f.orders.Put(domesticOrder(113))
	ctx := context.Background()

	_, err := f.submitter.Submit(ctx, 113, nil)
	require.NoError(t, err)
	_, err = f.submitter.Submit(ctx, 113, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"domestic/created", "domestic/already_linked"}, obs.outcomes)
}
