package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/coupon"
	"github.com/pasarhq/backend-pasar/internal/events"
	"github.com/pasarhq/backend-pasar/internal/inspect"
	"github.com/pasarhq/backend-pasar/internal/obs"
	"github.com/pasarhq/backend-pasar/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart: not found")

// ErrCouponsRequireProducts is returned when coupon codes arrive for a cart
// with no products to price.
var ErrCouponsRequireProducts = errors.New("cart: coupons require at least one product")

// Store is the persistence gateway the service writes through.
type Store interface {
	EnsureCart(ctx context.Context, ownerID, locationID uuid.UUID, ownerType inspect.OwnerType) (store.CartRecord, error)
	GetCart(ctx context.Context, id uuid.UUID) (store.CartRecord, error)
	ListProductLines(ctx context.Context, cartID uuid.UUID) ([]inspect.ProductLine, error)
	ListCouponLines(ctx context.Context, cartID uuid.UUID) ([]inspect.CouponLine, error)
	ApplyPlan(ctx context.Context, cartID uuid.UUID, snapshot inspect.Cart, plan inspect.Plan) error
	MarkOrdered(ctx context.Context, cartID uuid.UUID) error
}

// Locker serializes reconciliation per cart.
type Locker interface {
	WithCart(ctx context.Context, cartID uuid.UUID, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events after successful writes.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service encapsulates cart domain operations. Every write passes through
// one inspection and one reconciliation under the cart's lock.
type Service struct {
	Store   Store
	Engine  inspect.Engine
	Locks   Locker
	Bus     Emitter
	LockTTL time.Duration
	Now     func() time.Time
}

func (s *Service) lockTTL() time.Duration {
	if s == nil || s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

// UpdateInput is the full requested cart state. Updates are declarative:
// the items listed here are the cart, anything persisted but absent is
// treated as removed.
type UpdateInput struct {
	Items               []inspect.Item
	CouponCodes         []string
	DeliveryDestination string
	Customer            coupon.CustomerStatus
}

// EnsureCart loads or creates the owner's cart for a location.
func (s *Service) EnsureCart(ctx context.Context, ownerID, locationID uuid.UUID) (store.CartRecord, error) {
	if s == nil || s.Store == nil {
		return store.CartRecord{}, errors.New("cart: service not configured")
	}
	rec, err := s.Store.EnsureCart(ctx, ownerID, locationID, inspect.OwnerCart)
	if err != nil {
		return store.CartRecord{}, fmt.Errorf("cart: ensure: %w", err)
	}
	return rec, nil
}

// Get returns the persisted cart with its lines attached.
func (s *Service) Get(ctx context.Context, cartID uuid.UUID) (store.CartRecord, error) {
	rec, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CartRecord{}, ErrNotFound
		}
		return store.CartRecord{}, err
	}
	if rec.Cart.ProductLines, err = s.Store.ListProductLines(ctx, cartID); err != nil {
		return store.CartRecord{}, err
	}
	if rec.Cart.CouponLines, err = s.Store.ListCouponLines(ctx, cartID); err != nil {
		return store.CartRecord{}, err
	}
	return rec, nil
}

// Quote prices a selection without touching any persisted cart. The result
// carries no change narration because there is no prior state to compare
// against.
func (s *Service) Quote(ctx context.Context, locationID uuid.UUID, input UpdateInput) (inspect.Cart, error) {
	if err := validateInput(input); err != nil {
		return inspect.Cart{}, err
	}
	return s.Engine.Inspect(ctx, inspect.Request{
		LocationID:          locationID,
		OwnerType:           inspect.OwnerCart,
		Items:               dedupeItems(input.Items),
		CouponCodes:         input.CouponCodes,
		DeliveryDestination: input.DeliveryDestination,
		Customer:            input.Customer,
	})
}

// Update reconciles the cart to the requested state: inspect against live
// catalog data, diff against the persisted lines, and apply the resulting
// plan, all under the cart's reconciliation lock.
func (s *Service) Update(ctx context.Context, cartID uuid.UUID, input UpdateInput) (store.CartRecord, error) {
	if err := validateInput(input); err != nil {
		return store.CartRecord{}, err
	}
	var snapshot inspect.Cart
	err := s.Locks.WithCart(ctx, cartID, s.lockTTL(), func(ctx context.Context) error {
		rec, err := s.Store.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		existing := inspect.Existing{}
		if existing.Products, err = s.Store.ListProductLines(ctx, cartID); err != nil {
			return err
		}
		if existing.Coupons, err = s.Store.ListCouponLines(ctx, cartID); err != nil {
			return err
		}

		started := time.Now()
		snapshot, err = s.Engine.Inspect(ctx, inspect.Request{
			LocationID:          rec.Cart.LocationID,
			OwnerID:             rec.Cart.OwnerID,
			OwnerType:           rec.Cart.OwnerType,
			Items:               dedupeItems(input.Items),
			CouponCodes:         input.CouponCodes,
			Existing:            existing,
			DeliveryDestination: input.DeliveryDestination,
			Customer:            input.Customer,
		})
		observeInspection(rec.Cart.OwnerType, time.Since(started), err)
		if err != nil {
			return err
		}

		plan := inspect.Reconcile(cartID, snapshot, existing)
		observePlan(snapshot, plan)
		return s.Store.ApplyPlan(ctx, cartID, snapshot, plan)
	})
	if err != nil {
		return store.CartRecord{}, err
	}

	s.emit(ctx, events.TopicCartUpdated, cartID, snapshot)
	if len(snapshot.DetectedChanges) > 0 {
		s.emit(ctx, events.TopicCartChangesDetected, cartID, map[string]any{
			"detectedChanges": snapshot.DetectedChanges,
		})
	}
	return s.Get(ctx, cartID)
}

// Checkout converts the cart into an order. The cart keeps its rows; only
// the owner type flips, so a later inspection can still audit the frozen
// pricing.
func (s *Service) Checkout(ctx context.Context, cartID uuid.UUID) error {
	err := s.Locks.WithCart(ctx, cartID, s.lockTTL(), func(ctx context.Context) error {
		if err := s.Store.MarkOrdered(ctx, cartID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.TopicCartCheckedOut, cartID, nil)
	return nil
}

func (s *Service) emit(ctx context.Context, topic string, cartID uuid.UUID, payload any) {
	if s.Bus == nil {
		return
	}
	// Event delivery is best effort; the reconciled write already landed.
	_, _ = s.Bus.Emit(ctx, topic, cartID, payload)
}

func validateInput(input UpdateInput) error {
	if len(input.Items) == 0 && len(input.CouponCodes) > 0 {
		return ErrCouponsRequireProducts
	}
	return nil
}

func observeInspection(ownerType inspect.OwnerType, dur time.Duration, err error) {
	if obs.InspectionsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.InspectionsTotal.WithLabelValues(string(ownerType), result).Inc()
	obs.InspectionDuration.Observe(float64(dur.Milliseconds()))
}

func observePlan(snapshot inspect.Cart, plan inspect.Plan) {
	if obs.DetectedChangesTotal == nil {
		return
	}
	for _, c := range snapshot.DetectedChanges {
		obs.DetectedChangesTotal.WithLabelValues(string(c.Type)).Inc()
	}
	actions := []struct {
		category string
		action   string
		count    int
	}{
		{"product", "created", len(plan.CreatedProductLines)},
		{"product", "updated", len(plan.UpdatedProductLines)},
		{"product", "cancelled", len(plan.CancelledProductLines)},
		{"coupon", "created", len(plan.CreatedCouponLines)},
		{"coupon", "updated", len(plan.UpdatedCouponLines)},
		{"coupon", "cancelled", len(plan.CancelledCouponLines)},
	}
	for _, a := range actions {
		if a.count > 0 {
			obs.ReconcileActionsTotal.WithLabelValues(a.category, a.action).Add(float64(a.count))
		}
	}
}

// dedupeItems merges duplicate product ids, summing quantities, preserving
// first-seen order.
func dedupeItems(items []inspect.Item) []inspect.Item {
	if len(items) < 2 {
		return items
	}
	index := make(map[uuid.UUID]int, len(items))
	out := make([]inspect.Item, 0, len(items))
	for _, it := range items {
		if at, ok := index[it.ProductID]; ok {
			out[at].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
