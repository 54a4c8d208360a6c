package coupon

import (
	"errors"
	"testing"
	"time"
)

func activeRule() Rule {
	return Rule{Active: true, Kind: KindFixed, Amount: 1_000}
}

func evalAt(t *testing.T, r Rule, now time.Time) error {
	t.Helper()
	return Evaluate(r, Context{Now: now, GrandTotal: 10_000, ProductCount: 2, QuantityCount: 4})
}

func TestEvaluateInactive(t *testing.T) {
	r := activeRule()
	r.Active = false
	if err := evalAt(t, r, time.Now()); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestEvaluateCodeRequired(t *testing.T) {
	r := activeRule()
	r.ByCode = true
	r.Code = "WELCOME10"
	err := Evaluate(r, Context{Now: time.Now()})
	if !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("expected ErrCodeRequired, got %v", err)
	}
	err = Evaluate(r, Context{Now: time.Now(), Codes: []string{" welcome10 "}})
	if err != nil {
		t.Fatalf("case-insensitive code match should activate, got %v", err)
	}
}

func TestEvaluateMinimums(t *testing.T) {
	r := activeRule()
	r.ByMinimumTotal = true
	r.MinimumTotal = 50_000
	if err := evalAt(t, r, time.Now()); !errors.Is(err, ErrMinimumTotalUnmet) {
		t.Fatalf("expected ErrMinimumTotalUnmet, got %v", err)
	}

	r = activeRule()
	r.ByMinimumProducts = true
	r.MinimumProducts = 3
	if err := evalAt(t, r, time.Now()); !errors.Is(err, ErrMinimumProductsUnmet) {
		t.Fatalf("expected ErrMinimumProductsUnmet, got %v", err)
	}

	r = activeRule()
	r.ByMinimumQuantities = true
	r.MinimumQuantities = 5
	if err := evalAt(t, r, time.Now()); !errors.Is(err, ErrMinimumQuantitiesUnmet) {
		t.Fatalf("expected ErrMinimumQuantitiesUnmet, got %v", err)
	}
}

func TestEvaluateTimeWindow(t *testing.T) {
	now := time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)

	r := activeRule()
	r.ByStartTime = true
	r.StartsAt = now.Add(time.Hour)
	if err := evalAt(t, r, now); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	r = activeRule()
	r.ByEndTime = true
	r.EndsAt = now.Add(-time.Hour)
	if err := evalAt(t, r, now); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestEvaluateCalendarAllowLists(t *testing.T) {
	// Saturday March 14th 2026, 15:00.
	now := time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)

	r := activeRule()
	r.ByHours = true
	r.Hours = []int{9, 10, 11}
	if err := evalAt(t, r, now); !errors.Is(err, ErrOutsideSchedule) {
		t.Fatalf("expected ErrOutsideSchedule for hour, got %v", err)
	}

	r = activeRule()
	r.ByWeekdays = true
	r.Weekdays = []time.Weekday{time.Saturday}
	if err := evalAt(t, r, now); err != nil {
		t.Fatalf("saturday should be allowed, got %v", err)
	}

	r = activeRule()
	r.ByMonthDays = true
	r.MonthDays = []int{1, 15}
	if err := evalAt(t, r, now); !errors.Is(err, ErrOutsideSchedule) {
		t.Fatalf("expected ErrOutsideSchedule for month day, got %v", err)
	}

	r = activeRule()
	r.ByMonths = true
	r.Months = []time.Month{time.March}
	if err := evalAt(t, r, now); err != nil {
		t.Fatalf("march should be allowed, got %v", err)
	}
}

func TestEvaluateCustomerStatus(t *testing.T) {
	r := activeRule()
	r.NewCustomersOnly = true
	err := Evaluate(r, Context{Now: time.Now(), Customer: CustomerExisting})
	if !errors.Is(err, ErrNewCustomersOnly) {
		t.Fatalf("expected ErrNewCustomersOnly, got %v", err)
	}
	if err := Evaluate(r, Context{Now: time.Now(), Customer: CustomerNew}); err != nil {
		t.Fatalf("new customer should activate, got %v", err)
	}

	r = activeRule()
	r.ExistingCustomersOnly = true
	err = Evaluate(r, Context{Now: time.Now(), Customer: CustomerUnknown})
	if !errors.Is(err, ErrExistingCustomersOnly) {
		t.Fatalf("expected ErrExistingCustomersOnly, got %v", err)
	}
}

func TestEvaluateUsageLimit(t *testing.T) {
	r := activeRule()
	r.ByUsageLimit = true
	r.LimitedQuantity = 5
	r.UsedQuantity = 5
	if err := evalAt(t, r, time.Now()); !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
	r.UsedQuantity = 4
	if err := evalAt(t, r, time.Now()); err != nil {
		t.Fatalf("used below limit should activate, got %v", err)
	}
}

func TestDiscountPercent(t *testing.T) {
	r := Rule{Kind: KindPercent, PercentBps: 2500}
	if got := Discount(r, 10_000); got != 2_500 {
		t.Fatalf("expected 2500, got %d", got)
	}
}

func TestDiscountFixedCappedAtRunningTotal(t *testing.T) {
	r := Rule{Kind: KindFixed, Amount: 20_000}
	if got := Discount(r, 10_000); got != 10_000 {
		t.Fatalf("fixed discount must be capped at running total, got %d", got)
	}
	if got := Discount(r, 0); got != 0 {
		t.Fatalf("zero running total must yield zero, got %d", got)
	}
}
