package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PackagingType string

const (
	PackagingNone   PackagingType = ""
	PackagingNylon  PackagingType = "nylon"
	PackagingCarton PackagingType = "carton"
)

func (p PackagingType) Valid() bool {
	return p == PackagingNone || p == PackagingNylon || p == PackagingCarton
}

// DeliveryInfo is the delivery selection made on the checkout page.
type DeliveryInfo struct {
	LocationID    string        `json:"locationId"`
	LocationName  string        `json:"locationName,omitempty"`
	Address       string        `json:"address"`
	Phone         string        `json:"phone,omitempty"`
	DeliveryDate  string        `json:"deliveryDate,omitempty"`
	PackagingType PackagingType `json:"packagingType,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// FeeBreakdown amounts are whole naira except Subtotal.
type FeeBreakdown struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Logistics int64           `json:"logistics"`
	Packaging int64           `json:"packaging"`
	Grinding  int64           `json:"grinding"`
	Total     int64           `json:"total"`
}

// PendingOrder is the checkout-time copy of the cart consumed by the payment page.
type PendingOrder struct {
	OrderID      string       `json:"orderId"`
	Reference    string       `json:"reference"`
	Amount       int64        `json:"amount"`
	Items        []CartItem   `json:"items"`
	DeliveryInfo DeliveryInfo `json:"deliveryInfo"`
	Fees         FeeBreakdown `json:"fees"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type CompletedOrder struct {
	PendingOrder
	CompletedAt time.Time `json:"completedAt"`
}
