package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pasarhq/backend-pasar/internal/catalog"
	"github.com/pasarhq/backend-pasar/internal/events"
	"github.com/pasarhq/backend-pasar/internal/inspect"
	"github.com/pasarhq/backend-pasar/internal/store"
)

type fakeStore struct {
	rec      store.CartRecord
	recErr   error
	products []inspect.ProductLine
	coupons  []inspect.CouponLine

	appliedPlan     *inspect.Plan
	appliedSnapshot *inspect.Cart
	ordered         []uuid.UUID
}

func (f *fakeStore) EnsureCart(ctx context.Context, ownerID, locationID uuid.UUID, ownerType inspect.OwnerType) (store.CartRecord, error) {
	return f.rec, f.recErr
}

func (f *fakeStore) GetCart(ctx context.Context, id uuid.UUID) (store.CartRecord, error) {
	if f.recErr != nil {
		return store.CartRecord{}, f.recErr
	}
	return f.rec, nil
}

func (f *fakeStore) ListProductLines(ctx context.Context, cartID uuid.UUID) ([]inspect.ProductLine, error) {
	return f.products, nil
}

func (f *fakeStore) ListCouponLines(ctx context.Context, cartID uuid.UUID) ([]inspect.CouponLine, error) {
	return f.coupons, nil
}

func (f *fakeStore) ApplyPlan(ctx context.Context, cartID uuid.UUID, snapshot inspect.Cart, plan inspect.Plan) error {
	f.appliedSnapshot = &snapshot
	f.appliedPlan = &plan
	return nil
}

func (f *fakeStore) MarkOrdered(ctx context.Context, cartID uuid.UUID) error {
	f.ordered = append(f.ordered, cartID)
	return nil
}

type fakeLocker struct {
	held []uuid.UUID
}

func (f *fakeLocker) WithCart(ctx context.Context, cartID uuid.UUID, ttl time.Duration, fn func(context.Context) error) error {
	f.held = append(f.held, cartID)
	return fn(ctx)
}

type fakeBus struct {
	topics []string
}

func (f *fakeBus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error) {
	f.topics = append(f.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

type fakeCatalog struct {
	location catalog.Location
	products []catalog.Product
	coupons  []catalog.Coupon
}

func (f *fakeCatalog) LocationByID(ctx context.Context, id uuid.UUID) (catalog.Location, error) {
	return f.location, nil
}

func (f *fakeCatalog) ProductsByIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) CouponsByLocation(ctx context.Context, locationID uuid.UUID) ([]catalog.Coupon, error) {
	return f.coupons, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeLocker, *fakeBus, catalog.Product) {
	t.Helper()
	loc := catalog.Location{
		ID:    uuid.New(),
		Store: &catalog.Store{ID: uuid.New(), Currency: "USD"},
	}
	product := catalog.Product{
		ID: uuid.New(), LocationID: loc.ID, Name: "Coffee", HasPrice: true, RegularPrice: 2_500,
	}
	st := &fakeStore{
		rec: store.CartRecord{
			ID: uuid.New(),
			Cart: inspect.Cart{
				LocationID: loc.ID,
				OwnerID:    uuid.New(),
				OwnerType:  inspect.OwnerCart,
			},
		},
	}
	locks := &fakeLocker{}
	bus := &fakeBus{}
	svc := &Service{
		Store: st,
		Engine: inspect.Engine{
			Catalog: &fakeCatalog{location: loc, products: []catalog.Product{product}},
			Now:     func() time.Time { return time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC) },
		},
		Locks: locks,
		Bus:   bus,
	}
	return svc, st, locks, bus, product
}

func TestUpdateRunsUnderCartLock(t *testing.T) {
	svc, st, locks, bus, product := newTestService(t)

	rec, err := svc.Update(context.Background(), st.rec.ID, UpdateInput{
		Items: []inspect.Item{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	require.Equal(t, []uuid.UUID{st.rec.ID}, locks.held)
	require.NotNil(t, st.appliedPlan)
	require.Len(t, st.appliedPlan.CreatedProductLines, 1)
	require.EqualValues(t, 5_000, st.appliedSnapshot.GrandTotal)
	require.Contains(t, bus.topics, events.TopicCartUpdated)
	require.Equal(t, st.rec.ID, rec.ID)
}

func TestUpdateEmitsChangeEventOnlyWhenChangesExist(t *testing.T) {
	svc, st, _, bus, product := newTestService(t)

	_, err := svc.Update(context.Background(), st.rec.ID, UpdateInput{
		Items: []inspect.Item{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotContains(t, bus.topics, events.TopicCartChangesDetected)

	// A persisted line whose product vanished from the catalog narrates a
	// withdrawal, which must surface as a change event.
	vanished := uuid.New()
	st.products = []inspect.ProductLine{{ID: uuid.New(), ProductID: vanished, Name: "Ghost"}}
	_, err = svc.Update(context.Background(), st.rec.ID, UpdateInput{
		Items: []inspect.Item{{ProductID: vanished, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Contains(t, bus.topics, events.TopicCartChangesDetected)
}

func TestUpdateRejectsCouponsOnEmptyCart(t *testing.T) {
	svc, st, _, _, _ := newTestService(t)

	_, err := svc.Update(context.Background(), st.rec.ID, UpdateInput{
		CouponCodes: []string{"SAVE10"},
	})
	require.ErrorIs(t, err, ErrCouponsRequireProducts)
	require.Nil(t, st.appliedPlan)
}

func TestUpdateNotFound(t *testing.T) {
	svc, st, _, _, product := newTestService(t)
	st.recErr = store.ErrNotFound

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{
		Items: []inspect.Item{{ProductID: product.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQuoteDoesNotPersist(t *testing.T) {
	svc, st, locks, _, product := newTestService(t)

	snapshot, err := svc.Quote(context.Background(), st.rec.Cart.LocationID, UpdateInput{
		Items: []inspect.Item{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 7_500, snapshot.GrandTotal)
	require.Nil(t, st.appliedPlan)
	require.Empty(t, locks.held)
}

func TestCheckoutMarksOrderedAndEmits(t *testing.T) {
	svc, st, _, bus, _ := newTestService(t)

	require.NoError(t, svc.Checkout(context.Background(), st.rec.ID))
	require.Equal(t, []uuid.UUID{st.rec.ID}, st.ordered)
	require.Contains(t, bus.topics, events.TopicCartCheckedOut)
}

func TestDedupeItemsMergesQuantities(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := dedupeItems([]inspect.Item{
		{ProductID: a, Quantity: 1},
		{ProductID: b, Quantity: 2},
		{ProductID: a, Quantity: 3},
	})
	require.Len(t, got, 2)
	require.Equal(t, a, got[0].ProductID)
	require.EqualValues(t, 4, got[0].Quantity)
	require.EqualValues(t, 2, got[1].Quantity)
}

func TestUpdateClearedCartDropsAutoAppliedCoupons(t *testing.T) {
	svc, st, _, _, _ := newTestService(t)

	sitewide := catalog.Coupon{
		ID: uuid.New(), LocationID: st.rec.Cart.LocationID, Name: "Sitewide",
		Active: true, DiscountKind: "fixed_amount", DiscountAmount: 500,
	}
	svc.Engine.Catalog.(*fakeCatalog).coupons = []catalog.Coupon{sitewide}
	st.coupons = []inspect.CouponLine{{
		ID: uuid.New(), CartID: st.rec.ID, CouponID: sitewide.ID, Name: sitewide.Name,
	}}

	_, err := svc.Update(context.Background(), st.rec.ID, UpdateInput{})
	require.NoError(t, err)

	require.NotNil(t, st.appliedPlan)
	require.Empty(t, st.appliedPlan.CreatedCouponLines)
	require.Len(t, st.appliedPlan.CancelledCouponLines, 1)
	require.True(t, st.appliedPlan.CancelledCouponLines[0].Cancelled)
	require.Zero(t, st.appliedSnapshot.TotalCoupons)
	require.Zero(t, st.appliedSnapshot.CouponDiscountTotal)
}
