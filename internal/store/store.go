package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pasarhq/backend-pasar/internal/inspect"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("store: cart not found")

// Store is the persistence gateway for carts and their lines. All writes go
// through ApplyPlan so a reconciliation lands atomically.
type Store struct {
	Pool *pgxpool.Pool
	Now  func() time.Time
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CartRecord is a persisted cart row together with its snapshot fields.
type CartRecord struct {
	ID        uuid.UUID
	Cart      inspect.Cart
	CreatedAt time.Time
	UpdatedAt time.Time
}

const cartColumns = `id, location_id, owner_id, owner_type, currency,
	sub_total, grand_total, sale_discount_total, coupon_discount_total,
	coupon_and_sale_discount_total, delivery_fee, allow_free_delivery,
	delivery_destination, total_products, total_product_quantities,
	total_cancelled_products, total_cancelled_product_quantities,
	total_uncancelled_products, total_uncancelled_product_quantities,
	total_coupons, products_arrangement, detected_changes, abandoned,
	created_at, updated_at`

// EnsureCart loads the owner's cart for a location, creating an empty one
// when none exists yet.
func (s *Store) EnsureCart(ctx context.Context, ownerID, locationID uuid.UUID, ownerType inspect.OwnerType) (CartRecord, error) {
	rec, err := s.getCartBy(ctx, `owner_id = $1 AND owner_type = $2 AND location_id = $3`, ownerID, string(ownerType), locationID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return CartRecord{}, err
	}

	now := s.now()
	rec = CartRecord{
		ID: uuid.New(),
		Cart: inspect.Cart{
			LocationID: locationID,
			OwnerID:    ownerID,
			OwnerType:  ownerType,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO carts (id, location_id, owner_id, owner_type, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', $5, $5)`,
		rec.ID, locationID, ownerID, string(ownerType), now)
	if err != nil {
		return CartRecord{}, fmt.Errorf("store: create cart: %w", err)
	}
	return rec, nil
}

// GetCart loads one cart row by id.
func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (CartRecord, error) {
	return s.getCartBy(ctx, `id = $1`, id)
}

func (s *Store) getCartBy(ctx context.Context, where string, args ...any) (CartRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+where, args...)
	rec, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CartRecord{}, ErrNotFound
		}
		return CartRecord{}, fmt.Errorf("store: load cart: %w", err)
	}
	return rec, nil
}

func scanCart(row pgx.Row) (CartRecord, error) {
	var (
		rec         CartRecord
		ownerType   string
		destJSON    []byte
		arrJSON     []byte
		changesJSON []byte
	)
	c := &rec.Cart
	err := row.Scan(
		&rec.ID, &c.LocationID, &c.OwnerID, &ownerType, &c.Currency,
		&c.SubTotal, &c.GrandTotal, &c.SaleDiscountTotal, &c.CouponDiscountTotal,
		&c.CouponAndSaleDiscountTotal, &c.DeliveryFee, &c.AllowFreeDelivery,
		&destJSON, &c.TotalProducts, &c.TotalProductQuantities,
		&c.TotalCancelledProducts, &c.TotalCancelledProductQuantities,
		&c.TotalUncancelledProducts, &c.TotalUncancelledProductQuantities,
		&c.TotalCoupons, &arrJSON, &changesJSON, &c.Abandoned,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return CartRecord{}, err
	}
	c.OwnerType = inspect.OwnerType(ownerType)
	if err := unmarshalJSONB(destJSON, &c.DeliveryDestination); err != nil {
		return CartRecord{}, err
	}
	if err := unmarshalJSONB(arrJSON, &c.ProductsArrangement); err != nil {
		return CartRecord{}, err
	}
	if err := unmarshalJSONB(changesJSON, &c.DetectedChanges); err != nil {
		return CartRecord{}, err
	}
	return rec, nil
}

// ListProductLines returns every persisted product line of the cart,
// cancelled rows included, ordered by creation.
func (s *Store) ListProductLines(ctx context.Context, cartID uuid.UUID) ([]inspect.ProductLine, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, cart_id, product_id, location_id, name, sku, barcode, currency,
			unit_regular_price, on_sale, unit_sale_price, unit_sale_discount,
			unit_sale_discount_bps, has_price, unit_price, unit_cost,
			unit_profit, unit_profit_bps, sale_discount_total, sub_total,
			grand_total, original_quantity, quantity, no_stock, limited_stock,
			no_price, is_cancelled, cancellation_reasons, detected_changes
		FROM cart_product_lines
		WHERE cart_id = $1
		ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("store: list product lines: %w", err)
	}
	defer rows.Close()

	var lines []inspect.ProductLine
	for rows.Next() {
		var (
			l           inspect.ProductLine
			reasonsJSON []byte
			changesJSON []byte
		)
		err := rows.Scan(
			&l.ID, &l.CartID, &l.ProductID, &l.LocationID, &l.Name, &l.SKU,
			&l.Barcode, &l.Currency, &l.UnitRegularPrice, &l.OnSale,
			&l.UnitSalePrice, &l.UnitSaleDiscount, &l.UnitSaleDiscountBps,
			&l.HasPrice, &l.UnitPrice, &l.UnitCost, &l.UnitProfit,
			&l.UnitProfitBps, &l.SaleDiscountTotal, &l.SubTotal, &l.GrandTotal,
			&l.OriginalQuantity, &l.Quantity, &l.NoStock, &l.LimitedStock,
			&l.NoPrice, &l.Cancelled, &reasonsJSON, &changesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan product line: %w", err)
		}
		if err := unmarshalJSONB(reasonsJSON, &l.CancellationReasons); err != nil {
			return nil, err
		}
		if err := unmarshalJSONB(changesJSON, &l.DetectedChanges); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListCouponLines returns every persisted coupon line of the cart.
func (s *Store) ListCouponLines(ctx context.Context, cartID uuid.UUID) ([]inspect.CouponLine, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, cart_id, coupon_id, name, code, discount_kind, discount_bps,
			discount_amount, offer_free_delivery, rule, is_cancelled,
			cancellation_reasons, detected_changes
		FROM cart_coupon_lines
		WHERE cart_id = $1
		ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("store: list coupon lines: %w", err)
	}
	defer rows.Close()

	var lines []inspect.CouponLine
	for rows.Next() {
		var (
			l           inspect.CouponLine
			ruleJSON    []byte
			reasonsJSON []byte
			changesJSON []byte
		)
		err := rows.Scan(
			&l.ID, &l.CartID, &l.CouponID, &l.Name, &l.Code, &l.DiscountKind,
			&l.DiscountBps, &l.DiscountAmount, &l.OfferFreeDelivery, &ruleJSON,
			&l.Cancelled, &reasonsJSON, &changesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan coupon line: %w", err)
		}
		if err := unmarshalJSONB(ruleJSON, &l.Rule); err != nil {
			return nil, err
		}
		if err := unmarshalJSONB(reasonsJSON, &l.CancellationReasons); err != nil {
			return nil, err
		}
		if err := unmarshalJSONB(changesJSON, &l.DetectedChanges); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ApplyPlan writes a snapshot and its reconciliation plan in one transaction.
// The cart row is overwritten with the snapshot aggregates, created lines are
// inserted, updated and cancelled lines overwrite their rows. Nothing is ever
// deleted.
func (s *Store) ApplyPlan(ctx context.Context, cartID uuid.UUID, snapshot inspect.Cart, plan inspect.Plan) error {
	now := s.now()

	destJSON, err := marshalJSONB(snapshot.DeliveryDestination)
	if err != nil {
		return err
	}
	arrJSON, err := marshalJSONB(snapshot.ProductsArrangement)
	if err != nil {
		return err
	}
	cartChangesJSON, err := marshalJSONB(snapshot.DetectedChanges)
	if err != nil {
		return err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE carts SET
			currency = $2,
			sub_total = $3, grand_total = $4, sale_discount_total = $5,
			coupon_discount_total = $6, coupon_and_sale_discount_total = $7,
			delivery_fee = $8, allow_free_delivery = $9,
			delivery_destination = $10,
			total_products = $11, total_product_quantities = $12,
			total_cancelled_products = $13, total_cancelled_product_quantities = $14,
			total_uncancelled_products = $15, total_uncancelled_product_quantities = $16,
			total_coupons = $17, products_arrangement = $18, detected_changes = $19,
			abandoned = FALSE, updated_at = $20
		WHERE id = $1`,
		cartID, snapshot.Currency,
		snapshot.SubTotal, snapshot.GrandTotal, snapshot.SaleDiscountTotal,
		snapshot.CouponDiscountTotal, snapshot.CouponAndSaleDiscountTotal,
		snapshot.DeliveryFee, snapshot.AllowFreeDelivery,
		destJSON,
		snapshot.TotalProducts, snapshot.TotalProductQuantities,
		snapshot.TotalCancelledProducts, snapshot.TotalCancelledProductQuantities,
		snapshot.TotalUncancelledProducts, snapshot.TotalUncancelledProductQuantities,
		snapshot.TotalCoupons, arrJSON, cartChangesJSON, now)
	if err != nil {
		return fmt.Errorf("store: update cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	batch := &pgx.Batch{}
	for _, l := range plan.CreatedProductLines {
		if err := queueInsertProductLine(batch, l, now); err != nil {
			return err
		}
	}
	for _, l := range plan.UpdatedProductLines {
		if err := queueUpdateProductLine(batch, l, now); err != nil {
			return err
		}
	}
	for _, l := range plan.CancelledProductLines {
		if err := queueUpdateProductLine(batch, l, now); err != nil {
			return err
		}
	}
	for _, l := range plan.CreatedCouponLines {
		if err := queueInsertCouponLine(batch, l, now); err != nil {
			return err
		}
	}
	for _, l := range plan.UpdatedCouponLines {
		if err := queueUpdateCouponLine(batch, l, now); err != nil {
			return err
		}
	}
	for _, l := range plan.CancelledCouponLines {
		if err := queueUpdateCouponLine(batch, l, now); err != nil {
			return err
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("store: apply plan: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func queueInsertProductLine(batch *pgx.Batch, l inspect.ProductLine, now time.Time) error {
	reasonsJSON, changesJSON, err := lineJSON(l.CancellationReasons, l.DetectedChanges)
	if err != nil {
		return err
	}
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	batch.Queue(`
		INSERT INTO cart_product_lines (
			id, cart_id, product_id, location_id, name, sku, barcode, currency,
			unit_regular_price, on_sale, unit_sale_price, unit_sale_discount,
			unit_sale_discount_bps, has_price, unit_price, unit_cost,
			unit_profit, unit_profit_bps, sale_discount_total, sub_total,
			grand_total, original_quantity, quantity, no_stock, limited_stock,
			no_price, is_cancelled, cancellation_reasons, detected_changes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27,
			$28, $29, $30, $30)`,
		id, l.CartID, l.ProductID, l.LocationID, l.Name, l.SKU, l.Barcode,
		l.Currency, l.UnitRegularPrice, l.OnSale, l.UnitSalePrice,
		l.UnitSaleDiscount, l.UnitSaleDiscountBps, l.HasPrice, l.UnitPrice,
		l.UnitCost, l.UnitProfit, l.UnitProfitBps, l.SaleDiscountTotal,
		l.SubTotal, l.GrandTotal, l.OriginalQuantity, l.Quantity, l.NoStock,
		l.LimitedStock, l.NoPrice, l.Cancelled, reasonsJSON, changesJSON, now)
	return nil
}

func queueUpdateProductLine(batch *pgx.Batch, l inspect.ProductLine, now time.Time) error {
	reasonsJSON, changesJSON, err := lineJSON(l.CancellationReasons, l.DetectedChanges)
	if err != nil {
		return err
	}
	batch.Queue(`
		UPDATE cart_product_lines SET
			name = $2, sku = $3, barcode = $4, currency = $5,
			unit_regular_price = $6, on_sale = $7, unit_sale_price = $8,
			unit_sale_discount = $9, unit_sale_discount_bps = $10,
			has_price = $11, unit_price = $12, unit_cost = $13,
			unit_profit = $14, unit_profit_bps = $15, sale_discount_total = $16,
			sub_total = $17, grand_total = $18, original_quantity = $19,
			quantity = $20, no_stock = $21, limited_stock = $22, no_price = $23,
			is_cancelled = $24, cancellation_reasons = $25,
			detected_changes = $26, updated_at = $27
		WHERE id = $1`,
		l.ID, l.Name, l.SKU, l.Barcode, l.Currency, l.UnitRegularPrice,
		l.OnSale, l.UnitSalePrice, l.UnitSaleDiscount, l.UnitSaleDiscountBps,
		l.HasPrice, l.UnitPrice, l.UnitCost, l.UnitProfit, l.UnitProfitBps,
		l.SaleDiscountTotal, l.SubTotal, l.GrandTotal, l.OriginalQuantity,
		l.Quantity, l.NoStock, l.LimitedStock, l.NoPrice, l.Cancelled,
		reasonsJSON, changesJSON, now)
	return nil
}

func queueInsertCouponLine(batch *pgx.Batch, l inspect.CouponLine, now time.Time) error {
	reasonsJSON, changesJSON, err := lineJSON(l.CancellationReasons, l.DetectedChanges)
	if err != nil {
		return err
	}
	ruleJSON, err := marshalJSONB(l.Rule)
	if err != nil {
		return err
	}
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	batch.Queue(`
		INSERT INTO cart_coupon_lines (
			id, cart_id, coupon_id, name, code, discount_kind, discount_bps,
			discount_amount, offer_free_delivery, rule, is_cancelled,
			cancellation_reasons, detected_changes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		id, l.CartID, l.CouponID, l.Name, l.Code, l.DiscountKind,
		l.DiscountBps, l.DiscountAmount, l.OfferFreeDelivery, ruleJSON,
		l.Cancelled, reasonsJSON, changesJSON, now)
	return nil
}

func queueUpdateCouponLine(batch *pgx.Batch, l inspect.CouponLine, now time.Time) error {
	reasonsJSON, changesJSON, err := lineJSON(l.CancellationReasons, l.DetectedChanges)
	if err != nil {
		return err
	}
	ruleJSON, err := marshalJSONB(l.Rule)
	if err != nil {
		return err
	}
	batch.Queue(`
		UPDATE cart_coupon_lines SET
			name = $2, code = $3, discount_kind = $4, discount_bps = $5,
			discount_amount = $6, offer_free_delivery = $7, rule = $8,
			is_cancelled = $9, cancellation_reasons = $10,
			detected_changes = $11, updated_at = $12
		WHERE id = $1`,
		l.ID, l.Name, l.Code, l.DiscountKind, l.DiscountBps, l.DiscountAmount,
		l.OfferFreeDelivery, ruleJSON, l.Cancelled, reasonsJSON, changesJSON, now)
	return nil
}

// MarkAbandonedBefore flags carts not touched since the cutoff and returns
// their ids. Orders are never flagged, only live carts.
func (s *Store) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE carts SET abandoned = TRUE
		WHERE owner_type = 'cart' AND abandoned = FALSE AND updated_at < $1
		RETURNING id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: mark abandoned: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan abandoned id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkOrdered converts a cart into an order after checkout hands it over.
func (s *Store) MarkOrdered(ctx context.Context, cartID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE carts SET owner_type = 'order', updated_at = $2
		WHERE id = $1 AND owner_type = 'cart'`, cartID, s.now())
	if err != nil {
		return fmt.Errorf("store: mark ordered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func lineJSON(reasons []string, changes []inspect.DetectedChange) ([]byte, []byte, error) {
	reasonsJSON, err := marshalJSONB(reasons)
	if err != nil {
		return nil, nil, err
	}
	changesJSON, err := marshalJSONB(changes)
	if err != nil {
		return nil, nil, err
	}
	return reasonsJSON, changesJSON, nil
}

func marshalJSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode json: %w", err)
	}
	return b, nil
}

func unmarshalJSONB(b []byte, dst any) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("store: decode json: %w", err)
	}
	return nil
}
