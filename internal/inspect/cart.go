package inspect

import (
	"github.com/google/uuid"

	"github.com/pasarhq/backend-pasar/internal/catalog"
	"github.com/pasarhq/backend-pasar/internal/money"
)

// OwnerType distinguishes a cart still being edited from one that has been
// converted into an order.
type OwnerType string

const (
	OwnerCart  OwnerType = "cart"
	OwnerOrder OwnerType = "order"
)

// Cart is the authoritative, side-effect-free snapshot one inspection pass
// produces. It is a plain value; persisting it is the reconciling
// collaborator's job.
type Cart struct {
	LocationID uuid.UUID `json:"locationId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	OwnerType  OwnerType `json:"ownerType"`
	Currency   string    `json:"currency"`

	SubTotal                   money.Amount `json:"subTotal"`
	GrandTotal                 money.Amount `json:"grandTotal"`
	SaleDiscountTotal          money.Amount `json:"saleDiscountTotal"`
	CouponDiscountTotal        money.Amount `json:"couponDiscountTotal"`
	CouponAndSaleDiscountTotal money.Amount `json:"couponAndSaleDiscountTotal"`
	DeliveryFee                money.Amount `json:"deliveryFee"`
	AllowFreeDelivery          bool         `json:"allowFreeDelivery"`

	DeliveryDestination *catalog.DeliveryDestination `json:"deliveryDestination,omitempty"`

	TotalProducts                     int `json:"totalProducts"`
	TotalProductQuantities            int `json:"totalProductQuantities"`
	TotalCancelledProducts            int `json:"totalCancelledProducts"`
	TotalCancelledProductQuantities   int `json:"totalCancelledProductQuantities"`
	TotalUncancelledProducts          int `json:"totalUncancelledProducts"`
	TotalUncancelledProductQuantities int `json:"totalUncancelledProductQuantities"`
	TotalCoupons                      int `json:"totalCoupons"`

	ProductsArrangement []uuid.UUID      `json:"productsArrangement,omitempty"`
	DetectedChanges     []DetectedChange `json:"detectedChanges,omitempty"`
	Abandoned           bool             `json:"abandoned"`

	ProductLines []ProductLine `json:"productLines"`
	CouponLines  []CouponLine  `json:"couponLines"`
}

// countLines fills the per-category counters from the product and coupon
// line sets.
func (c *Cart) countLines() {
	c.TotalProducts = len(c.ProductLines)
	c.TotalProductQuantities = 0
	c.TotalCancelledProducts = 0
	c.TotalCancelledProductQuantities = 0
	c.TotalUncancelledProducts = 0
	c.TotalUncancelledProductQuantities = 0
	for _, l := range c.ProductLines {
		qty := int(l.Quantity)
		c.TotalProductQuantities += qty
		if l.Cancelled {
			c.TotalCancelledProducts++
			c.TotalCancelledProductQuantities += qty
		} else {
			c.TotalUncancelledProducts++
			c.TotalUncancelledProductQuantities += qty
		}
	}
	c.TotalCoupons = 0
	for _, l := range c.CouponLines {
		if !l.Cancelled {
			c.TotalCoupons++
		}
	}
}
