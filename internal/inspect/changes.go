package inspect

import (
	"fmt"

	"github.com/pasarhq/backend-pasar/internal/money"
)

// detectProductChanges re-evaluates the stock/price conditions of a freshly
// built line and, when a persisted counterpart exists, the transitions away
// from that counterpart's state. The line's change list is replaced with the
// findings of this pass; NotifiedUser carries over per change type so an
// already-narrated condition does not notify twice.
func detectProductChanges(line ProductLine, prev *ProductLine) ProductLine {
	var changes []DetectedChange
	record := func(t ChangeType, msg string) {
		changes = append(changes, DetectedChange{
			Type:         t,
			Message:      msg,
			NotifiedUser: prev != nil && prev.HasChange(t),
		})
	}

	// Conditions checked against the live product on every pass.
	switch {
	case line.NoStock:
		record(ChangeNoStock, fmt.Sprintf("%s is sold out, %d requested", line.Name, line.OriginalQuantity))
	case line.LimitedStock:
		record(ChangeLimitedStock, fmt.Sprintf(
			"Only %d of %s left in stock, quantity reduced from %d to %d",
			line.Quantity, line.Name, line.OriginalQuantity, line.Quantity))
	}
	if line.NoPrice {
		record(ChangeNoPrice, fmt.Sprintf("%s has no price and was removed from the total", line.Name))
	}

	// Transitions need a persisted line to compare against.
	if prev != nil {
		switch {
		case prev.NoStock && !line.NoStock && !line.LimitedStock:
			record(ChangeStockReplenished, fmt.Sprintf("%s is back in stock", line.Name))
		case prev.NoStock && line.LimitedStock:
			record(ChangeStockPartiallyReplenished, fmt.Sprintf("%s is back in stock with limited quantity", line.Name))
		case prev.LimitedStock && !line.NoStock && !line.LimitedStock:
			record(ChangeStockRecovered, fmt.Sprintf("%s now has enough stock", line.Name))
		}

		if prev.NoPrice && line.HasPrice {
			record(ChangePriceAssigned, fmt.Sprintf("%s has a new price: %s",
				line.Name, money.FormatWithCurrency(line.Currency, line.UnitPrice)))
		}

		if prev.HasPrice && line.HasPrice && prev.UnitPrice != line.UnitPrice {
			t, msg := priceChange(line, *prev)
			record(t, msg)
		}
	}

	line.DetectedChanges = changes
	return line
}

// priceChange selects one of the six price-change variants: direction
// (increase/decrease) crossed with the sale-state transition.
func priceChange(line, prev ProductLine) (ChangeType, string) {
	direction := "increased"
	t := ChangePriceIncreased
	if line.UnitPrice < prev.UnitPrice {
		direction = "reduced"
		t = ChangePriceReduced
	}

	suffix := ""
	switch {
	case !prev.OnSale && line.OnSale:
		suffix = " (On sale)"
		if t == ChangePriceIncreased {
			t = ChangePriceIncreasedSaleStarted
		} else {
			t = ChangePriceReducedSaleStarted
		}
	case prev.OnSale && !line.OnSale:
		suffix = " (Sale ended)"
		if t == ChangePriceIncreased {
			t = ChangePriceIncreasedSaleEnded
		} else {
			t = ChangePriceReducedSaleEnded
		}
	}

	msg := fmt.Sprintf("The price of %s %s from %s to %s%s",
		line.Name, direction,
		money.FormatWithCurrency(line.Currency, prev.UnitPrice),
		money.FormatWithCurrency(line.Currency, line.UnitPrice),
		suffix)
	return t, msg
}

// detectCouponChanges narrates drift on a coupon line that survived the
// eligibility pass. The persisted counterpart, when present, is compared on
// the frozen discount value.
func detectCouponChanges(line CouponLine, prev *CouponLine) CouponLine {
	if prev == nil {
		line.DetectedChanges = nil
		return line
	}
	var changes []DetectedChange
	if prev.DiscountKind != line.DiscountKind ||
		prev.DiscountBps != line.DiscountBps ||
		prev.DiscountAmount != line.DiscountAmount {
		changes = append(changes, DetectedChange{
			Type:         ChangeCouponValueChanged,
			Message:      fmt.Sprintf("The discount of coupon %s has changed", line.Name),
			NotifiedUser: prev.HasChange(ChangeCouponValueChanged),
		})
	}
	line.DetectedChanges = changes
	return line
}
