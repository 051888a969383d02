// Package logistics computes delivery-side fees in whole naira.
package logistics

import "github.com/fjod/quickmarket/internal/domain"

const (
	HeavyFee = 150
	OtherFee = 18

	NylonFee  = 100
	CartonFee = 300

	GrindingFeePerUnit = 200
)

type Item struct {
	Quantity      int
	IsHeavy       bool
	NeedsGrinding bool
	PackagingType domain.PackagingType
}

// ItemsFromCart maps cart lines to fee inputs using the delivery packaging type.
func ItemsFromCart(items []domain.CartItem, packaging domain.PackagingType) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, Item{
			Quantity:      it.Quantity,
			IsHeavy:       it.Product.IsHeavy,
			NeedsGrinding: it.NeedsGrinding,
			PackagingType: packaging,
		})
	}
	return out
}

func CalculateLogistics(items []Item) int64 {
	var total int64
	for _, it := range items {
		fee := int64(OtherFee)
		if it.IsHeavy {
			fee = HeavyFee
		}
		total += fee * int64(it.Quantity)
	}
	return total
}

// CalculatePackagingFee charges one flat fee per order. Mixed packaging types
// are charged at the dearest one, whatever the item order.
func CalculatePackagingFee(items []Item) int64 {
	var fee int64
	for _, it := range items {
		fee = max(fee, PackagingFee(it.PackagingType))
	}
	return fee
}

func PackagingFee(t domain.PackagingType) int64 {
	switch t {
	case domain.PackagingNylon:
		return NylonFee
	case domain.PackagingCarton:
		return CartonFee
	default:
		return 0
	}
}

func CalculateGrindingFee(items []Item) int64 {
	var total int64
	for _, it := range items {
		if it.NeedsGrinding {
			total += GrindingFeePerUnit * int64(it.Quantity)
		}
	}
	return total
}
