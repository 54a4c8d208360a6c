package inspect

import (
	"github.com/pasarhq/backend-pasar/internal/catalog"
	"github.com/pasarhq/backend-pasar/internal/coupon"
	"github.com/pasarhq/backend-pasar/internal/money"
)

// lineTotals holds the frozen product-line aggregates the coupon phase reads.
// Cancelled lines contribute nothing.
type lineTotals struct {
	SubTotal          money.Amount
	GrandTotal        money.Amount
	SaleDiscountTotal money.Amount
	Products          int
	Quantities        int
}

func sumProductLines(lines []ProductLine) lineTotals {
	var t lineTotals
	for _, l := range lines {
		if l.Cancelled {
			continue
		}
		t.SubTotal += l.SubTotal
		t.GrandTotal += l.GrandTotal
		t.SaleDiscountTotal += l.SaleDiscountTotal
		t.Products++
		t.Quantities += int(l.Quantity)
	}
	return t
}

// couponDiscountTotal applies the uncancelled coupon lines sequentially
// against the running grand total. Percent coupons therefore see the value
// already reduced by earlier coupons. The summed discount is capped at the
// pre-discount grand total so a coupon stack can never push the cart
// negative.
func couponDiscountTotal(lines []CouponLine, grandTotal money.Amount) money.Amount {
	var total money.Amount
	running := grandTotal
	for _, l := range lines {
		if l.Cancelled {
			continue
		}
		d := coupon.Discount(l.Rule, running)
		total += d
		running -= d
	}
	if total > grandTotal {
		total = grandTotal
	}
	return total
}

// freeDeliveryGranted decides free delivery: an applied coupon can grant it,
// the matched destination can carry its own flag, or the location can waive
// fees entirely.
func freeDeliveryGranted(lines []CouponLine, loc catalog.Location, dest *catalog.DeliveryDestination) bool {
	for _, l := range lines {
		if !l.Cancelled && l.OfferFreeDelivery {
			return true
		}
	}
	if dest != nil && dest.FreeDelivery {
		return true
	}
	return loc.AllowFreeDelivery
}

// deliveryFee picks the destination fee when a destination matched, falling
// back to the location's flat fee. Delivery is never discounted; the caller
// adds the fee after coupon discounting.
func deliveryFee(loc catalog.Location, dest *catalog.DeliveryDestination) money.Amount {
	if dest != nil {
		return dest.Fee
	}
	return loc.DeliveryFee
}
