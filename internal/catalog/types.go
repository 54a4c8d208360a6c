package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/coupon"
	"github.com/pasarhq/backend-pasar/internal/money"
)

// Store carries the currency a location prices its catalog in.
type Store struct {
	ID       uuid.UUID `json:"id"`
	Currency string    `json:"currency"`
}

// DeliveryDestination is one named delivery target a location serves.
type DeliveryDestination struct {
	Name         string       `json:"name"`
	Fee          money.Amount `json:"fee"`
	FreeDelivery bool         `json:"freeDelivery"`
}

// Location is the catalog owner a cart is priced against.
type Location struct {
	ID                uuid.UUID             `json:"id"`
	Name              string                `json:"name"`
	Store             *Store                `json:"store,omitempty"`
	AllowFreeDelivery bool                  `json:"allowFreeDelivery"`
	DeliveryFee       money.Amount          `json:"deliveryFee"`
	Destinations      []DeliveryDestination `json:"destinations,omitempty"`
}

// Destination resolves a delivery destination by name. Matching is exact.
func (l Location) Destination(name string) *DeliveryDestination {
	if name == "" {
		return nil
	}
	for i := range l.Destinations {
		if l.Destinations[i].Name == name {
			return &l.Destinations[i]
		}
	}
	return nil
}

// Product is a read-only catalog row. The engine never mutates it.
type Product struct {
	ID           uuid.UUID    `json:"id"`
	LocationID   uuid.UUID    `json:"locationId"`
	Name         string       `json:"name"`
	SKU          string       `json:"sku"`
	Barcode      string       `json:"barcode"`
	IsVariation  bool         `json:"isVariation"`
	HasPrice     bool         `json:"hasPrice"`
	RegularPrice money.Amount `json:"regularPrice"`
	OnSale       bool         `json:"onSale"`
	SalePrice    money.Amount `json:"salePrice"`
	Cost         money.Amount `json:"cost"`
	TrackStock   bool         `json:"trackStock"`
	Stock        int32        `json:"stock"`
}

// UnitPrice returns the effective per-unit price of the product.
func (p Product) UnitPrice() money.Amount {
	if p.OnSale {
		return p.SalePrice
	}
	return p.RegularPrice
}

// Coupon is a read-only coupon definition. Activation conditions are guarded
// by their own ByX flags, mirroring the rule engine.
type Coupon struct {
	ID         uuid.UUID `json:"id"`
	LocationID uuid.UUID `json:"locationId"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	Active     bool      `json:"active"`

	DiscountKind      string       `json:"discountKind"`
	DiscountBps       money.Bps    `json:"discountBps"`
	DiscountAmount    money.Amount `json:"discountAmount"`
	OfferFreeDelivery bool         `json:"offerFreeDelivery"`

	ByCode              bool           `json:"byCode"`
	ByMinimumTotal      bool           `json:"byMinimumTotal"`
	MinimumTotal        money.Amount   `json:"minimumTotal"`
	ByMinimumProducts   bool           `json:"byMinimumProducts"`
	MinimumProducts     int            `json:"minimumProducts"`
	ByMinimumQuantities bool           `json:"byMinimumQuantities"`
	MinimumQuantities   int            `json:"minimumQuantities"`
	ByStartTime         bool           `json:"byStartTime"`
	StartsAt            time.Time      `json:"startsAt"`
	ByEndTime           bool           `json:"byEndTime"`
	EndsAt              time.Time      `json:"endsAt"`
	ByHours             bool           `json:"byHours"`
	Hours               []int          `json:"hours,omitempty"`
	ByWeekdays          bool           `json:"byWeekdays"`
	Weekdays            []time.Weekday `json:"weekdays,omitempty"`
	ByMonthDays         bool           `json:"byMonthDays"`
	MonthDays           []int          `json:"monthDays,omitempty"`
	ByMonths            bool           `json:"byMonths"`
	Months              []time.Month   `json:"months,omitempty"`

	NewCustomersOnly      bool `json:"newCustomersOnly"`
	ExistingCustomersOnly bool `json:"existingCustomersOnly"`

	ByUsageLimit    bool  `json:"byUsageLimit"`
	LimitedQuantity int32 `json:"limitedQuantity"`
	UsedQuantity    int32 `json:"usedQuantity"`
}

// Rule converts the coupon definition into an evaluator rule.
func (c Coupon) Rule() coupon.Rule {
	return coupon.Rule{
		ID:     c.ID,
		Code:   c.Code,
		Active: c.Active,

		ByCode:              c.ByCode,
		ByMinimumTotal:      c.ByMinimumTotal,
		MinimumTotal:        c.MinimumTotal,
		ByMinimumProducts:   c.ByMinimumProducts,
		MinimumProducts:     c.MinimumProducts,
		ByMinimumQuantities: c.ByMinimumQuantities,
		MinimumQuantities:   c.MinimumQuantities,
		ByStartTime:         c.ByStartTime,
		StartsAt:            c.StartsAt,
		ByEndTime:           c.ByEndTime,
		EndsAt:              c.EndsAt,
		ByHours:             c.ByHours,
		Hours:               c.Hours,
		ByWeekdays:          c.ByWeekdays,
		Weekdays:            c.Weekdays,
		ByMonthDays:         c.ByMonthDays,
		MonthDays:           c.MonthDays,
		ByMonths:            c.ByMonths,
		Months:              c.Months,

		NewCustomersOnly:      c.NewCustomersOnly,
		ExistingCustomersOnly: c.ExistingCustomersOnly,

		ByUsageLimit:    c.ByUsageLimit,
		LimitedQuantity: c.LimitedQuantity,
		UsedQuantity:    c.UsedQuantity,

		Kind:              c.DiscountKind,
		PercentBps:        c.DiscountBps,
		Amount:            c.DiscountAmount,
		OfferFreeDelivery: c.OfferFreeDelivery,
	}
}
