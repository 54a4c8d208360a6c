package inspect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/catalog"
	"github.com/pasarhq/backend-pasar/internal/coupon"
)

// Configuration errors abort the inspection; they indicate a precondition
// violation by the caller, not user-correctable input.
var (
	ErrLocationNotFound   = errors.New("inspect: location not found")
	ErrStoreNotConfigured = errors.New("inspect: location has no store, cart cannot be priced")
)

// CatalogReader is the read-only catalog collaborator the engine consumes.
// All reads happen once per inspection; the engine never re-reads rows
// mid-computation.
type CatalogReader interface {
	LocationByID(ctx context.Context, id uuid.UUID) (catalog.Location, error)
	ProductsByIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]catalog.Product, error)
	CouponsByLocation(ctx context.Context, locationID uuid.UUID) ([]catalog.Coupon, error)
}

// Item is one requested (product, quantity) pairing. The caller is
// responsible for de-duplicating product ids before calling.
type Item struct {
	ProductID uuid.UUID
	Quantity  int32
}

// Existing carries the persisted line state the inspection diffs against.
type Existing struct {
	Products []ProductLine
	Coupons  []CouponLine
}

// Request is the full input of one inspection pass.
type Request struct {
	LocationID          uuid.UUID
	OwnerID             uuid.UUID
	OwnerType           OwnerType
	Items               []Item
	CouponCodes         []string
	Existing            Existing
	DeliveryDestination string
	Customer            coupon.CustomerStatus
}

// Engine is the stateless inspection entry point. All inputs arrive as
// parameters and the result is an immutable snapshot value, so concurrent
// calls are safe by construction.
type Engine struct {
	Catalog CatalogReader
	Now     func() time.Time
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Inspect prices the requested selection against live catalog state and
// narrates every difference from the persisted lines. It performs no writes.
//
// The computation is an explicit two-phase pipeline: product-line totals are
// frozen first, then coupons are evaluated against those aggregates. Coupon
// minimum rules and percentage discounts read the finished totals, so this
// ordering is structural, not incidental.
func (e Engine) Inspect(ctx context.Context, req Request) (Cart, error) {
	if e.Catalog == nil {
		return Cart{}, errors.New("inspect: catalog reader not configured")
	}
	loc, err := e.Catalog.LocationByID(ctx, req.LocationID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Cart{}, fmt.Errorf("%w: %s", ErrLocationNotFound, req.LocationID)
		}
		return Cart{}, fmt.Errorf("inspect: load location: %w", err)
	}
	if loc.Store == nil || loc.Store.Currency == "" {
		return Cart{}, fmt.Errorf("%w: %s", ErrStoreNotConfigured, req.LocationID)
	}
	currency := loc.Store.Currency

	cart := Cart{
		LocationID: loc.ID,
		OwnerID:    req.OwnerID,
		OwnerType:  req.OwnerType,
		Currency:   currency,
	}
	if cart.OwnerType == "" {
		cart.OwnerType = OwnerCart
	}

	productLines, err := e.buildProductLines(ctx, loc, currency, req)
	if err != nil {
		return Cart{}, err
	}
	cart.ProductLines = productLines
	for _, l := range productLines {
		cart.ProductsArrangement = append(cart.ProductsArrangement, l.ProductID)
	}

	// Phase one: product totals, frozen before any coupon is considered.
	totals := sumProductLines(productLines)
	cart.SubTotal = totals.SubTotal
	cart.SaleDiscountTotal = totals.SaleDiscountTotal
	cart.GrandTotal = totals.GrandTotal

	// Phase two: coupons evaluated against the frozen aggregates. A cart
	// with no uncancelled product lines carries no coupon lines at all;
	// the reconciler cancels any that were persisted.
	var couponLines []CouponLine
	if totals.Products > 0 {
		couponLines, err = e.buildCouponLines(ctx, loc, totals, req)
		if err != nil {
			return Cart{}, err
		}
	}
	cart.CouponLines = couponLines

	cart.CouponDiscountTotal = couponDiscountTotal(couponLines, totals.GrandTotal)
	cart.GrandTotal = totals.GrandTotal - cart.CouponDiscountTotal
	cart.CouponAndSaleDiscountTotal = cart.SaleDiscountTotal + cart.CouponDiscountTotal

	dest := loc.Destination(req.DeliveryDestination)
	cart.DeliveryDestination = dest
	cart.AllowFreeDelivery = freeDeliveryGranted(couponLines, loc, dest)
	if !cart.AllowFreeDelivery {
		cart.DeliveryFee = deliveryFee(loc, dest)
		cart.GrandTotal += cart.DeliveryFee
	}

	cart.countLines()
	for _, l := range cart.ProductLines {
		cart.DetectedChanges = append(cart.DetectedChanges, l.DetectedChanges...)
	}
	for _, l := range cart.CouponLines {
		cart.DetectedChanges = append(cart.DetectedChanges, l.DetectedChanges...)
	}
	return cart, nil
}

func (e Engine) buildProductLines(ctx context.Context, loc catalog.Location, currency string, req Request) ([]ProductLine, error) {
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := e.Catalog.ProductsByIDs(ctx, loc.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("inspect: load products: %w", err)
	}
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	prevByID := make(map[uuid.UUID]ProductLine, len(req.Existing.Products))
	for _, l := range req.Existing.Products {
		prevByID[l.ProductID] = l
	}

	lines := make([]ProductLine, 0, len(req.Items))
	for _, it := range req.Items {
		var prev *ProductLine
		if p, ok := prevByID[it.ProductID]; ok {
			cp := p
			prev = &cp
		}
		product, ok := byID[it.ProductID]
		if !ok {
			// Catalog drift is never fatal: a product that disappeared is
			// kept as a cancelled line when we still hold its frozen copy,
			// and silently skipped otherwise.
			if prev != nil {
				lines = append(lines, withdrawnProductLine(*prev))
			}
			continue
		}
		line := buildProductLine(product, it.Quantity, currency)
		line = detectProductChanges(line, prev)
		lines = append(lines, line)
	}
	return lines, nil
}

func (e Engine) buildCouponLines(ctx context.Context, loc catalog.Location, totals lineTotals, req Request) ([]CouponLine, error) {
	coupons, err := e.Catalog.CouponsByLocation(ctx, loc.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect: load coupons: %w", err)
	}
	prevByID := make(map[uuid.UUID]CouponLine, len(req.Existing.Coupons))
	for _, l := range req.Existing.Coupons {
		prevByID[l.CouponID] = l
	}
	catalogIDs := make(map[uuid.UUID]struct{}, len(coupons))

	evalCtx := coupon.Context{
		Now:           e.now(),
		Codes:         req.CouponCodes,
		GrandTotal:    totals.GrandTotal,
		ProductCount:  totals.Products,
		QuantityCount: totals.Quantities,
		Customer:      req.Customer,
	}

	var lines []CouponLine
	for _, c := range coupons {
		catalogIDs[c.ID] = struct{}{}
		// Ineligible coupons are excluded without error so the cart stays
		// free of invalid-coupon noise.
		if coupon.Evaluate(c.Rule(), evalCtx) != nil {
			continue
		}
		line := buildCouponLine(c)
		var prev *CouponLine
		if p, ok := prevByID[c.ID]; ok {
			cp := p
			prev = &cp
		}
		lines = append(lines, detectCouponChanges(line, prev))
	}

	// Persisted coupon lines whose definition vanished from the catalog are
	// carried forward cancelled, mirroring withdrawn products.
	for _, prev := range req.Existing.Coupons {
		if _, ok := catalogIDs[prev.CouponID]; !ok {
			lines = append(lines, withdrawnCouponLine(prev))
		}
	}
	return lines, nil
}
