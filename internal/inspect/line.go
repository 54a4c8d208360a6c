package inspect

import (
	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/coupon"
	"github.com/pasarhq/backend-pasar/internal/money"
)

// ChangeType classifies a detected change on a line.
type ChangeType string

// Change types re-evaluated on every inspection pass.
const (
	ChangeNoStock      ChangeType = "NO_STOCK"
	ChangeLimitedStock ChangeType = "LIMITED_STOCK"
	ChangeNoPrice      ChangeType = "NO_PRICE"
)

// Transition change types, detected only against a persisted counterpart.
const (
	ChangeStockReplenished          ChangeType = "STOCK_REPLENISHED"
	ChangeStockPartiallyReplenished ChangeType = "STOCK_PARTIALLY_REPLENISHED"
	ChangeStockRecovered            ChangeType = "STOCK_RECOVERED"
	ChangePriceAssigned             ChangeType = "PRICE_ASSIGNED"

	ChangePriceIncreased            ChangeType = "PRICE_INCREASED"
	ChangePriceIncreasedSaleStarted ChangeType = "PRICE_INCREASED_SALE_STARTED"
	ChangePriceIncreasedSaleEnded   ChangeType = "PRICE_INCREASED_SALE_ENDED"
	ChangePriceReduced              ChangeType = "PRICE_REDUCED"
	ChangePriceReducedSaleStarted   ChangeType = "PRICE_REDUCED_SALE_STARTED"
	ChangePriceReducedSaleEnded     ChangeType = "PRICE_REDUCED_SALE_ENDED"

	ChangeProductWithdrawn   ChangeType = "PRODUCT_WITHDRAWN"
	ChangeCouponWithdrawn    ChangeType = "COUPON_WITHDRAWN"
	ChangeCouponValueChanged ChangeType = "COUPON_VALUE_CHANGED"
)

// DetectedChange is a typed, user-facing note attached to a line.
// NotifiedUser is true only when the previously persisted line already
// carried a change of the same type, so the customer is not notified twice
// for an unchanged condition.
type DetectedChange struct {
	Type         ChangeType `json:"type"`
	Message      string     `json:"message"`
	NotifiedUser bool       `json:"notifiedUser"`
}

// Cancellation reasons shared by the builder and the reconciler.
const (
	ReasonSoldOut         = "Sold out"
	ReasonNoPrice         = "No price"
	ReasonWithdrawn       = "No longer available"
	ReasonRemovedFromCart = "Removed from the shopping cart"
)

// ProductLine freezes one product's pricing and identity at inspection time.
type ProductLine struct {
	ID         uuid.UUID `json:"id,omitempty"`
	CartID     uuid.UUID `json:"cartId,omitempty"`
	ProductID  uuid.UUID `json:"productId"`
	LocationID uuid.UUID `json:"locationId"`

	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Barcode  string `json:"barcode"`
	Currency string `json:"currency"`

	UnitRegularPrice    money.Amount `json:"unitRegularPrice"`
	OnSale              bool         `json:"onSale"`
	UnitSalePrice       money.Amount `json:"unitSalePrice"`
	UnitSaleDiscount    money.Amount `json:"unitSaleDiscount"`
	UnitSaleDiscountBps money.Bps    `json:"unitSaleDiscountBps"`
	HasPrice            bool         `json:"hasPrice"`
	UnitPrice           money.Amount `json:"unitPrice"`
	UnitCost            money.Amount `json:"unitCost"`
	UnitProfit          money.Amount `json:"unitProfit"`
	UnitProfitBps       money.Bps    `json:"unitProfitBps"`

	SaleDiscountTotal money.Amount `json:"saleDiscountTotal"`
	SubTotal          money.Amount `json:"subTotal"`
	GrandTotal        money.Amount `json:"grandTotal"`

	OriginalQuantity int32 `json:"originalQuantity"`
	Quantity         int32 `json:"quantity"`

	NoStock      bool `json:"noStock"`
	LimitedStock bool `json:"limitedStock"`
	NoPrice      bool `json:"noPrice"`

	Cancelled           bool             `json:"isCancelled"`
	CancellationReasons []string         `json:"cancellationReasons,omitempty"`
	DetectedChanges     []DetectedChange `json:"detectedChanges,omitempty"`
}

// Cancel returns a copy of the line cancelled with the given reason appended.
func (l ProductLine) Cancel(reason string) ProductLine {
	l.Cancelled = true
	l.CancellationReasons = appendCopy(l.CancellationReasons, reason)
	return l
}

// Record returns a copy of the line with the change appended.
func (l ProductLine) Record(c DetectedChange) ProductLine {
	l.DetectedChanges = appendCopy(l.DetectedChanges, c)
	return l
}

// ClearHistory returns a copy with cancellation and change history emptied.
// The reconciler uses it before cancelling a removed line so the stored row
// carries exactly one fresh reason.
func (l ProductLine) ClearHistory() ProductLine {
	l.Cancelled = false
	l.CancellationReasons = nil
	l.DetectedChanges = nil
	return l
}

// HasChange reports whether the line already carries a change of this type.
func (l ProductLine) HasChange(t ChangeType) bool {
	for _, c := range l.DetectedChanges {
		if c.Type == t {
			return true
		}
	}
	return false
}

// CouponLine freezes one coupon's definition at inspection time. The full
// activation rule set is kept alongside the discount so the stored line can
// explain why the coupon applied.
type CouponLine struct {
	ID       uuid.UUID `json:"id,omitempty"`
	CartID   uuid.UUID `json:"cartId,omitempty"`
	CouponID uuid.UUID `json:"couponId"`

	Name string `json:"name"`
	Code string `json:"code"`

	DiscountKind      string       `json:"discountKind"`
	DiscountBps       money.Bps    `json:"discountBps"`
	DiscountAmount    money.Amount `json:"discountAmount"`
	OfferFreeDelivery bool         `json:"offerFreeDelivery"`

	Rule coupon.Rule `json:"rule"`

	Cancelled           bool             `json:"isCancelled"`
	CancellationReasons []string         `json:"cancellationReasons,omitempty"`
	DetectedChanges     []DetectedChange `json:"detectedChanges,omitempty"`
}

// Cancel returns a copy of the line cancelled with the given reason appended.
func (l CouponLine) Cancel(reason string) CouponLine {
	l.Cancelled = true
	l.CancellationReasons = appendCopy(l.CancellationReasons, reason)
	return l
}

// Record returns a copy of the line with the change appended.
func (l CouponLine) Record(c DetectedChange) CouponLine {
	l.DetectedChanges = appendCopy(l.DetectedChanges, c)
	return l
}

// ClearHistory returns a copy with cancellation and change history emptied.
func (l CouponLine) ClearHistory() CouponLine {
	l.Cancelled = false
	l.CancellationReasons = nil
	l.DetectedChanges = nil
	return l
}

// HasChange reports whether the line already carries a change of this type.
func (l CouponLine) HasChange(t ChangeType) bool {
	for _, c := range l.DetectedChanges {
		if c.Type == t {
			return true
		}
	}
	return false
}

// appendCopy appends without sharing the backing array with the receiver, so
// the value-returning mutators never alias a previous snapshot's slice.
func appendCopy[T any](in []T, v T) []T {
	out := make([]T, 0, len(in)+1)
	out = append(out, in...)
	return append(out, v)
}
