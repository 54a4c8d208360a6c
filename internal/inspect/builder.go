package inspect

import (
	"github.com/pasarhq/backend-pasar/internal/catalog"
	"github.com/pasarhq/backend-pasar/internal/money"
)

// buildProductLine freezes one product into a line, clamping the requested
// quantity against available stock.
//
// Stock resolution:
//   - tracked, stock 0:    quantity stays at the request so pricing history
//     remains comparable, but the line is cancelled as sold out.
//   - tracked, 0 < stock < requested: quantity clamps to stock.
//   - otherwise the request stands.
func buildProductLine(p catalog.Product, requested int32, currency string) ProductLine {
	line := ProductLine{
		ProductID:  p.ID,
		LocationID: p.LocationID,
		Name:       p.Name,
		SKU:        p.SKU,
		Barcode:    p.Barcode,
		Currency:   currency,

		UnitRegularPrice: p.RegularPrice,
		OnSale:           p.OnSale,
		UnitSalePrice:    p.SalePrice,
		HasPrice:         p.HasPrice,
		UnitPrice:        p.UnitPrice(),
		UnitCost:         p.Cost,

		OriginalQuantity: requested,
		Quantity:         requested,
	}

	switch {
	case p.TrackStock && p.Stock <= 0:
		line.NoStock = true
	case p.TrackStock && p.Stock < requested:
		line.LimitedStock = true
		line.Quantity = p.Stock
	}

	if p.OnSale && p.SalePrice < p.RegularPrice {
		line.UnitSaleDiscount = p.RegularPrice - p.SalePrice
		line.UnitSaleDiscountBps = money.RatioBps(line.UnitSaleDiscount, p.RegularPrice)
	}
	line.UnitProfit = line.UnitPrice - p.Cost
	line.UnitProfitBps = money.RatioBps(line.UnitProfit, p.Cost)

	qty := money.Amount(line.Quantity)
	line.SubTotal = line.UnitRegularPrice * qty
	line.GrandTotal = line.UnitPrice * qty
	line.SaleDiscountTotal = line.UnitSaleDiscount * qty

	if line.NoStock {
		line = line.Cancel(ReasonSoldOut)
	}
	if !p.HasPrice {
		line.NoPrice = true
		line = line.Cancel(ReasonNoPrice)
	}
	return line
}

// withdrawnProductLine rebuilds a line for a product that disappeared from
// the catalog, carrying the persisted line's frozen fields forward so the
// customer still sees what they had, cancelled with an explanation.
func withdrawnProductLine(prev ProductLine) ProductLine {
	line := prev.ClearHistory().Cancel(ReasonWithdrawn)
	line.ID = prev.ID
	return line.Record(DetectedChange{
		Type:         ChangeProductWithdrawn,
		Message:      prev.Name + " is no longer available",
		NotifiedUser: prev.HasChange(ChangeProductWithdrawn),
	})
}

// buildCouponLine freezes one eligible coupon into a line.
func buildCouponLine(c catalog.Coupon) CouponLine {
	return CouponLine{
		CouponID:          c.ID,
		Name:              c.Name,
		Code:              c.Code,
		DiscountKind:      c.DiscountKind,
		DiscountBps:       c.DiscountBps,
		DiscountAmount:    c.DiscountAmount,
		OfferFreeDelivery: c.OfferFreeDelivery,
		Rule:              c.Rule(),
	}
}

// withdrawnCouponLine mirrors withdrawnProductLine for coupons removed from
// the catalog while still persisted on the cart.
func withdrawnCouponLine(prev CouponLine) CouponLine {
	line := prev.ClearHistory().Cancel(ReasonWithdrawn)
	line.ID = prev.ID
	return line.Record(DetectedChange{
		Type:         ChangeCouponWithdrawn,
		Message:      "Coupon " + prev.Name + " is no longer available",
		NotifiedUser: prev.HasChange(ChangeCouponWithdrawn),
	})
}
