package inspect

import "github.com/google/uuid"

// Plan is the concrete write plan a reconciliation produces. The surrounding
// storage collaborator executes the inserts and updates; nothing in a plan is
// ever a hard delete.
type Plan struct {
	CreatedProductLines   []ProductLine
	UpdatedProductLines   []ProductLine
	CancelledProductLines []ProductLine
	CreatedCouponLines    []CouponLine
	UpdatedCouponLines    []CouponLine
	CancelledCouponLines  []CouponLine
}

// Empty reports whether applying the plan would write nothing.
func (p Plan) Empty() bool {
	return len(p.CreatedProductLines) == 0 && len(p.UpdatedProductLines) == 0 &&
		len(p.CancelledProductLines) == 0 && len(p.CreatedCouponLines) == 0 &&
		len(p.UpdatedCouponLines) == 0 && len(p.CancelledCouponLines) == 0
}

// Reconcile three-way merges the snapshot against the persisted lines.
// Matching is by product/coupon identity. Matched persisted lines are
// overwritten with the snapshot fields, unmatched snapshot lines become
// inserts, and persisted lines missing from the snapshot are cancelled with
// a removal reason, history cleared, row preserved. An empty snapshot
// category cancels every persisted line in that category.
func Reconcile(cartID uuid.UUID, snapshot Cart, existing Existing) Plan {
	var plan Plan

	prevProducts := make(map[uuid.UUID]ProductLine, len(existing.Products))
	for _, l := range existing.Products {
		prevProducts[l.ProductID] = l
	}
	for _, line := range snapshot.ProductLines {
		line.CartID = cartID
		if prev, ok := prevProducts[line.ProductID]; ok {
			line.ID = prev.ID
			plan.UpdatedProductLines = append(plan.UpdatedProductLines, line)
			delete(prevProducts, line.ProductID)
			continue
		}
		plan.CreatedProductLines = append(plan.CreatedProductLines, line)
	}
	for _, prev := range existing.Products {
		if _, ok := prevProducts[prev.ProductID]; !ok {
			continue
		}
		plan.CancelledProductLines = append(plan.CancelledProductLines,
			prev.ClearHistory().Cancel(ReasonRemovedFromCart))
	}

	prevCoupons := make(map[uuid.UUID]CouponLine, len(existing.Coupons))
	for _, l := range existing.Coupons {
		prevCoupons[l.CouponID] = l
	}
	for _, line := range snapshot.CouponLines {
		line.CartID = cartID
		if prev, ok := prevCoupons[line.CouponID]; ok {
			line.ID = prev.ID
			plan.UpdatedCouponLines = append(plan.UpdatedCouponLines, line)
			delete(prevCoupons, line.CouponID)
			continue
		}
		plan.CreatedCouponLines = append(plan.CreatedCouponLines, line)
	}
	for _, prev := range existing.Coupons {
		if _, ok := prevCoupons[prev.CouponID]; !ok {
			continue
		}
		plan.CancelledCouponLines = append(plan.CancelledCouponLines,
			prev.ClearHistory().Cancel(ReasonRemovedFromCart))
	}

	return plan
}
