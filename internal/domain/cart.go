package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is a copy of catalog fields taken when the product was added
// to the cart. It is not refreshed afterwards.
type ProductSnapshot struct {
	Name               string          `json:"name"`
	PricePerKg         decimal.Decimal `json:"pricePerKg"`
	Images             []string        `json:"images,omitempty"`
	Category           string          `json:"category,omitempty"`
	StockQty           int             `json:"stockQty"`
	AvailabilityStatus string          `json:"availabilityStatus,omitempty"`
	IsHeavy            bool            `json:"isHeavy,omitempty"`
}

// CartItem quantity is in kilograms.
type CartItem struct {
	ProductID     string          `json:"productId"`
	Quantity      int             `json:"quantity"`
	Product       ProductSnapshot `json:"product"`
	NeedsGrinding bool            `json:"needsGrinding,omitempty"`
}

type Cart struct {
	Items []CartItem
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Index returns the position of productID in the cart or -1.
func (c Cart) Index(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Product.PricePerKg.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c Cart) TotalWeight() int {
	weight := 0
	for _, item := range c.Items {
		weight += item.Quantity
	}
	return weight
}

func (c Cart) ItemCount() int {
	return len(c.Items)
}

// Clone returns a copy that shares no item slice with c. An empty cart clones
// to the zero Cart, the same value a reload of an empty cart yields.
func (c Cart) Clone() Cart {
	if len(c.Items) == 0 {
		return Cart{}
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
