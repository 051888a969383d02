package logistics

import (
	"testing"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateLogistics(t *testing.T) {
	items := []Item{
		{Quantity: 2, IsHeavy: true},
		{Quantity: 3, IsHeavy: false},
	}
	assert.Equal(t, int64(150*2+18*3), CalculateLogistics(items))
	assert.Equal(t, int64(354), CalculateLogistics(items))
}

func TestCalculateLogistics_OrderIndependent(t *testing.T) {
	a := []Item{{Quantity: 1, IsHeavy: true}, {Quantity: 4}, {Quantity: 7, IsHeavy: true}}
	b := []Item{a[2], a[0], a[1]}
	assert.Equal(t, CalculateLogistics(a), CalculateLogistics(b))
}

func TestCalculateLogistics_Empty(t *testing.T) {
	assert.Equal(t, int64(0), CalculateLogistics(nil))
}

func TestCalculatePackagingFee(t *testing.T) {
	assert.Equal(t, int64(NylonFee), CalculatePackagingFee([]Item{{Quantity: 1, PackagingType: domain.PackagingNylon}}))
	assert.Equal(t, int64(CartonFee), CalculatePackagingFee([]Item{{Quantity: 1}, {Quantity: 2, PackagingType: domain.PackagingCarton}}))
	assert.Equal(t, int64(0), CalculatePackagingFee([]Item{{Quantity: 3}}))
	assert.Equal(t, int64(0), PackagingFee("sack"))
}

func TestCalculatePackagingFee_MixedTypesIgnoreOrder(t *testing.T) {
	nylon := Item{Quantity: 1, PackagingType: domain.PackagingNylon}
	carton := Item{Quantity: 2, PackagingType: domain.PackagingCarton}

	assert.Equal(t, int64(CartonFee), CalculatePackagingFee([]Item{nylon, carton}))
	assert.Equal(t, int64(CartonFee), CalculatePackagingFee([]Item{carton, nylon}))
}

func TestCalculateGrindingFee(t *testing.T) {
	items := []Item{
		{Quantity: 2, NeedsGrinding: true},
		{Quantity: 5},
		{Quantity: 1, NeedsGrinding: true},
	}
	assert.Equal(t, int64(GrindingFeePerUnit*3), CalculateGrindingFee(items))
	assert.Equal(t, int64(0), CalculateGrindingFee([]Item{{Quantity: 4}}))
}

func TestItemsFromCart(t *testing.T) {
	cart := []domain.CartItem{
		{ProductID: "yam", Quantity: 2, Product: domain.ProductSnapshot{PricePerKg: decimal.NewFromInt(800), IsHeavy: true}},
		{ProductID: "pepper", Quantity: 1, NeedsGrinding: true},
	}
	items := ItemsFromCart(cart, domain.PackagingCarton)

	assert.Equal(t, []Item{
		{Quantity: 2, IsHeavy: true, PackagingType: domain.PackagingCarton},
		{Quantity: 1, NeedsGrinding: true, PackagingType: domain.PackagingCarton},
	}, items)
}
