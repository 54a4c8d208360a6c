package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested catalog row does not exist.
var ErrNotFound = errors.New("catalog row not found")

// Reader resolves catalog rows from Postgres with an optional Redis cache in
// front of the slow-moving rows. Product rows are always read live because
// the inspection engine depends on current stock and price.
type Reader struct {
	Pool  *pgxpool.Pool
	Cache *Cache
}

const locationQuery = `
SELECT l.id, l.name, l.allow_free_delivery, l.delivery_fee, l.destinations,
       s.id, s.currency
FROM locations l
LEFT JOIN stores s ON s.id = l.store_id
WHERE l.id = $1`

// LocationByID loads one location together with its store, if any.
func (r *Reader) LocationByID(ctx context.Context, id uuid.UUID) (Location, error) {
	if r == nil || r.Pool == nil {
		return Location{}, errors.New("catalog reader not configured")
	}
	key := LocationKey(id)
	var cached Location
	if ok, err := r.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	var (
		loc           Location
		destinations  []byte
		storeID       *uuid.UUID
		storeCurrency *string
	)
	row := r.Pool.QueryRow(ctx, locationQuery, id)
	err := row.Scan(&loc.ID, &loc.Name, &loc.AllowFreeDelivery, &loc.DeliveryFee, &destinations, &storeID, &storeCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, fmt.Errorf("load location: %w", err)
	}
	if len(destinations) > 0 {
		if err := json.Unmarshal(destinations, &loc.Destinations); err != nil {
			return Location{}, fmt.Errorf("decode destinations: %w", err)
		}
	}
	if storeID != nil && storeCurrency != nil {
		loc.Store = &Store{ID: *storeID, Currency: *storeCurrency}
	}
	_ = r.Cache.SetJSON(ctx, key, loc)
	return loc, nil
}

const productsQuery = `
SELECT id, location_id, name, sku, barcode, is_variation, has_price,
       regular_price, on_sale, sale_price, cost, track_stock, stock
FROM products
WHERE location_id = $1 AND id = ANY($2) AND is_variation = FALSE`

// ProductsByIDs loads the non-variation products with the given ids. Missing
// ids are simply absent from the result; the engine decides what that means.
func (r *Reader) ProductsByIDs(ctx context.Context, locationID uuid.UUID, ids []uuid.UUID) ([]Product, error) {
	if r == nil || r.Pool == nil {
		return nil, errors.New("catalog reader not configured")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.Pool.Query(ctx, productsQuery, locationID, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.LocationID, &p.Name, &p.SKU, &p.Barcode, &p.IsVariation, &p.HasPrice,
			&p.RegularPrice, &p.OnSale, &p.SalePrice, &p.Cost, &p.TrackStock, &p.Stock,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const couponsQuery = `
SELECT id, location_id, name, code, active,
       discount_kind, discount_bps, discount_amount, offer_free_delivery,
       by_code, by_minimum_total, minimum_total,
       by_minimum_products, minimum_products,
       by_minimum_quantities, minimum_quantities,
       by_start_time, starts_at, by_end_time, ends_at,
       by_hours, hours, by_weekdays, weekdays,
       by_month_days, month_days, by_months, months,
       new_customers_only, existing_customers_only,
       by_usage_limit, limited_quantity, used_quantity
FROM coupons
WHERE location_id = $1`

// CouponsByLocation loads every coupon a location defines, cached briefly
// because coupon definitions change far less often than stock.
func (r *Reader) CouponsByLocation(ctx context.Context, locationID uuid.UUID) ([]Coupon, error) {
	if r == nil || r.Pool == nil {
		return nil, errors.New("catalog reader not configured")
	}
	key := CouponsKey(locationID)
	var cached []Coupon
	if ok, err := r.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	rows, err := r.Pool.Query(ctx, couponsQuery, locationID)
	if err != nil {
		return nil, fmt.Errorf("load coupons: %w", err)
	}
	defer rows.Close()

	var coupons []Coupon
	for rows.Next() {
		var (
			c        Coupon
			hours    []byte
			weekdays []byte
			days     []byte
			months   []byte
		)
		if err := rows.Scan(
			&c.ID, &c.LocationID, &c.Name, &c.Code, &c.Active,
			&c.DiscountKind, &c.DiscountBps, &c.DiscountAmount, &c.OfferFreeDelivery,
			&c.ByCode, &c.ByMinimumTotal, &c.MinimumTotal,
			&c.ByMinimumProducts, &c.MinimumProducts,
			&c.ByMinimumQuantities, &c.MinimumQuantities,
			&c.ByStartTime, &c.StartsAt, &c.ByEndTime, &c.EndsAt,
			&c.ByHours, &hours, &c.ByWeekdays, &weekdays,
			&c.ByMonthDays, &days, &c.ByMonths, &months,
			&c.NewCustomersOnly, &c.ExistingCustomersOnly,
			&c.ByUsageLimit, &c.LimitedQuantity, &c.UsedQuantity,
		); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		if err := decodeSchedule(hours, &c.Hours); err != nil {
			return nil, err
		}
		if err := decodeSchedule(weekdays, &c.Weekdays); err != nil {
			return nil, err
		}
		if err := decodeSchedule(days, &c.MonthDays); err != nil {
			return nil, err
		}
		if err := decodeSchedule(months, &c.Months); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = r.Cache.SetJSON(ctx, key, coupons)
	return coupons, nil
}

func decodeSchedule[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode coupon schedule: %w", err)
	}
	return nil
}
