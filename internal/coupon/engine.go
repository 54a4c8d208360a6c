package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/money"
)

var (
	// ErrInactive is returned when the coupon is switched off entirely.
	ErrInactive = errors.New("coupon not active")
	// ErrCodeRequired indicates the coupon code was not supplied by the caller.
	ErrCodeRequired = errors.New("coupon code not supplied")
	// ErrMinimumTotalUnmet indicates the cart total did not reach the coupon threshold.
	ErrMinimumTotalUnmet = errors.New("coupon minimum total not met")
	// ErrMinimumProductsUnmet indicates the cart carries too few distinct products.
	ErrMinimumProductsUnmet = errors.New("coupon minimum product count not met")
	// ErrMinimumQuantitiesUnmet indicates the cart carries too few product quantities.
	ErrMinimumQuantitiesUnmet = errors.New("coupon minimum quantity count not met")
	// ErrNotStarted is returned before the coupon's start datetime.
	ErrNotStarted = errors.New("coupon not started")
	// ErrExpired is returned after the coupon's end datetime.
	ErrExpired = errors.New("coupon expired")
	// ErrOutsideSchedule is returned when the current calendar slot is not allowed.
	ErrOutsideSchedule = errors.New("coupon outside allowed schedule")
	// ErrNewCustomersOnly indicates the coupon is reserved for first-time customers.
	ErrNewCustomersOnly = errors.New("coupon reserved for new customers")
	// ErrExistingCustomersOnly indicates the coupon is reserved for returning customers.
	ErrExistingCustomersOnly = errors.New("coupon reserved for existing customers")
	// ErrUsageLimitReached indicates the coupon exhausted its usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// CustomerStatus carries the caller-supplied new/existing customer signal.
type CustomerStatus int

const (
	// CustomerUnknown means the caller could not classify the customer.
	CustomerUnknown CustomerStatus = iota
	// CustomerNew marks a first-time customer.
	CustomerNew
	// CustomerExisting marks a returning customer.
	CustomerExisting
)

// Discount kinds frozen onto coupon lines.
const (
	KindPercent = "percent"
	KindFixed   = "fixed_amount"
)

// Rule captures a coupon definition. Each activation condition is guarded by
// its own ByX flag and only evaluated when the flag is set.
type Rule struct {
	ID     uuid.UUID
	Code   string
	Active bool

	ByCode              bool
	ByMinimumTotal      bool
	MinimumTotal        money.Amount
	ByMinimumProducts   bool
	MinimumProducts     int
	ByMinimumQuantities bool
	MinimumQuantities   int
	ByStartTime         bool
	StartsAt            time.Time
	ByEndTime           bool
	EndsAt              time.Time
	ByHours             bool
	Hours               []int
	ByWeekdays          bool
	Weekdays            []time.Weekday
	ByMonthDays         bool
	MonthDays           []int
	ByMonths            bool
	Months              []time.Month

	NewCustomersOnly      bool
	ExistingCustomersOnly bool

	ByUsageLimit    bool
	LimitedQuantity int32
	UsedQuantity    int32

	Kind              string
	PercentBps        money.Bps
	Amount            money.Amount
	OfferFreeDelivery bool
}

// Context carries the cart aggregates a rule is evaluated against. Totals and
// counts must already be finalised before evaluation.
type Context struct {
	Now           time.Time
	Codes         []string
	GrandTotal    money.Amount
	ProductCount  int
	QuantityCount int
	Customer      CustomerStatus
}

// Evaluate runs the short-circuiting conjunction of activation rules and
// returns the first failing condition as a sentinel error. A nil result means
// the coupon activates. Callers treat any error as silent exclusion.
func Evaluate(r Rule, c Context) error {
	if !r.Active {
		return ErrInactive
	}
	if r.ByCode && !containsCode(c.Codes, r.Code) {
		return ErrCodeRequired
	}
	if r.ByMinimumTotal && c.GrandTotal < r.MinimumTotal {
		return ErrMinimumTotalUnmet
	}
	if r.ByMinimumProducts && c.ProductCount < r.MinimumProducts {
		return ErrMinimumProductsUnmet
	}
	if r.ByMinimumQuantities && c.QuantityCount < r.MinimumQuantities {
		return ErrMinimumQuantitiesUnmet
	}
	if r.ByStartTime && c.Now.Before(r.StartsAt) {
		return ErrNotStarted
	}
	if r.ByEndTime && c.Now.After(r.EndsAt) {
		return ErrExpired
	}
	if r.ByHours && !containsInt(r.Hours, c.Now.Hour()) {
		return ErrOutsideSchedule
	}
	if r.ByWeekdays && !containsWeekday(r.Weekdays, c.Now.Weekday()) {
		return ErrOutsideSchedule
	}
	if r.ByMonthDays && !containsInt(r.MonthDays, c.Now.Day()) {
		return ErrOutsideSchedule
	}
	if r.ByMonths && !containsMonth(r.Months, c.Now.Month()) {
		return ErrOutsideSchedule
	}
	if r.NewCustomersOnly && c.Customer != CustomerNew {
		return ErrNewCustomersOnly
	}
	if r.ExistingCustomersOnly && c.Customer != CustomerExisting {
		return ErrExistingCustomersOnly
	}
	if r.ByUsageLimit && r.UsedQuantity >= r.LimitedQuantity {
		return ErrUsageLimitReached
	}
	return nil
}

// Discount computes the amount the rule takes off the running grand total.
// Percent rules read the running total so stacked coupons see the already
// discounted value. The result is never negative and never exceeds the
// running total.
func Discount(r Rule, running money.Amount) money.Amount {
	if running <= 0 {
		return 0
	}
	discount := r.Amount
	if strings.EqualFold(r.Kind, KindPercent) {
		if r.PercentBps <= 0 {
			return 0
		}
		discount = money.PortionBps(running, r.PercentBps)
	}
	if discount > running {
		discount = running
	}
	if discount < 0 {
		return 0
	}
	return discount
}

func containsCode(codes []string, code string) bool {
	target := strings.TrimSpace(code)
	if target == "" {
		return false
	}
	for _, c := range codes {
		if strings.EqualFold(strings.TrimSpace(c), target) {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, el := range values {
		if el == v {
			return true
		}
	}
	return false
}

func containsWeekday(values []time.Weekday, v time.Weekday) bool {
	for _, el := range values {
		if el == v {
			return true
		}
	}
	return false
}

func containsMonth(values []time.Month, v time.Month) bool {
	for _, el := range values {
		if el == v {
			return true
		}
	}
	return false
}
