package inspect

import (
	"testing"

	"github.com/google/uuid"
)

func TestReconcileRemovalCancelsWithoutDelete(t *testing.T) {
	cartID := uuid.New()
	keepID := uuid.New()
	dropID := uuid.New()

	existing := Existing{
		Products: []ProductLine{
			{ID: uuid.New(), ProductID: keepID, Name: "Kept", Quantity: 2},
			{ID: uuid.New(), ProductID: dropID, Name: "Dropped", Quantity: 1,
				DetectedChanges: []DetectedChange{{Type: ChangeLimitedStock}}},
		},
	}
	snapshot := Cart{
		ProductLines: []ProductLine{{ProductID: keepID, Name: "Kept", Quantity: 2}},
	}

	plan := Reconcile(cartID, snapshot, existing)

	if len(plan.CreatedProductLines) != 0 {
		t.Fatalf("expected no inserts, got %d", len(plan.CreatedProductLines))
	}
	if len(plan.UpdatedProductLines) != 1 {
		t.Fatalf("expected 1 update, got %d", len(plan.UpdatedProductLines))
	}
	if len(plan.CancelledProductLines) != 1 {
		t.Fatalf("expected 1 cancellation, got %d", len(plan.CancelledProductLines))
	}

	cancelled := plan.CancelledProductLines[0]
	if cancelled.ProductID != dropID {
		t.Fatalf("wrong line cancelled: %s", cancelled.ProductID)
	}
	if !cancelled.Cancelled {
		t.Fatal("removed line must be marked cancelled")
	}
	if len(cancelled.CancellationReasons) != 1 || cancelled.CancellationReasons[0] != ReasonRemovedFromCart {
		t.Fatalf("expected single removal reason, got %v", cancelled.CancellationReasons)
	}
	if len(cancelled.DetectedChanges) != 0 {
		t.Fatalf("history must be cleared before cancelling, got %v", cancelled.DetectedChanges)
	}
}

func TestReconcileMatchedLinesKeepPersistedID(t *testing.T) {
	cartID := uuid.New()
	productID := uuid.New()
	lineID := uuid.New()

	existing := Existing{
		Products: []ProductLine{{ID: lineID, ProductID: productID, Quantity: 1}},
	}
	snapshot := Cart{
		ProductLines: []ProductLine{{ProductID: productID, Quantity: 4}},
	}

	plan := Reconcile(cartID, snapshot, existing)
	if len(plan.UpdatedProductLines) != 1 {
		t.Fatalf("expected 1 update, got %+v", plan)
	}
	got := plan.UpdatedProductLines[0]
	if got.ID != lineID {
		t.Fatalf("update must reuse the persisted row id, got %s", got.ID)
	}
	if got.CartID != cartID {
		t.Fatalf("update must carry the cart id, got %s", got.CartID)
	}
	if got.Quantity != 4 {
		t.Fatalf("update must carry the snapshot fields, got qty %d", got.Quantity)
	}
}

func TestReconcileEmptySnapshotCancelsEverything(t *testing.T) {
	existing := Existing{
		Products: []ProductLine{
			{ID: uuid.New(), ProductID: uuid.New()},
			{ID: uuid.New(), ProductID: uuid.New()},
		},
		Coupons: []CouponLine{{ID: uuid.New(), CouponID: uuid.New()}},
	}

	plan := Reconcile(uuid.New(), Cart{}, existing)
	if len(plan.CancelledProductLines) != 2 {
		t.Fatalf("expected both product lines cancelled, got %d", len(plan.CancelledProductLines))
	}
	if len(plan.CancelledCouponLines) != 1 {
		t.Fatalf("expected coupon line cancelled, got %d", len(plan.CancelledCouponLines))
	}
	for _, l := range plan.CancelledProductLines {
		if l.CancellationReasons[0] != ReasonRemovedFromCart {
			t.Fatalf("unexpected reason %v", l.CancellationReasons)
		}
	}
}

func TestReconcileNewLinesBecomeInserts(t *testing.T) {
	cartID := uuid.New()
	snapshot := Cart{
		ProductLines: []ProductLine{{ProductID: uuid.New(), Quantity: 1}},
		CouponLines:  []CouponLine{{CouponID: uuid.New()}},
	}

	plan := Reconcile(cartID, snapshot, Existing{})
	if len(plan.CreatedProductLines) != 1 || len(plan.CreatedCouponLines) != 1 {
		t.Fatalf("expected inserts for every snapshot line, got %+v", plan)
	}
	if plan.CreatedProductLines[0].CartID != cartID {
		t.Fatal("insert must carry the cart id")
	}
	if plan.Empty() {
		t.Fatal("plan with inserts must not report empty")
	}
	if !(Plan{}).Empty() {
		t.Fatal("zero plan must report empty")
	}
}
