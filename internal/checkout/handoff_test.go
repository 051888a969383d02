package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/logger"
	"github.com/fjod/quickmarket/internal/logistics"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCart struct {
	cart domain.Cart
}

func (s staticCart) Cart() domain.Cart { return s.cart }

type brokenStorage struct {
	storage.Store
}

func (brokenStorage) Set(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}

func sampleCart() domain.Cart {
	return domain.Cart{Items: []domain.CartItem{
		{
			ProductID: "yam",
			Quantity:  2,
			Product:   domain.ProductSnapshot{Name: "Yam", PricePerKg: decimal.NewFromInt(1000), IsHeavy: true},
		},
		{
			ProductID:     "pepper",
			Quantity:      3,
			Product:       domain.ProductSnapshot{Name: "Pepper", PricePerKg: decimal.RequireFromString("450.5")},
			NeedsGrinding: true,
		},
	}}
}

func delivery() domain.DeliveryInfo {
	return domain.DeliveryInfo{
		LocationID:    "L1",
		Address:       "12 Herbert Macaulay Way",
		PackagingType: domain.PackagingCarton,
	}
}

func newHandoff(s storage.Store, c domain.Cart) *Handoff {
	h := NewHandoff(s, "s1", staticCart{cart: c}, logger.Discard())
	ids := []string{"id-1", "id-2", "id-3"}
	h.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	h.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return h
}

func TestQuote(t *testing.T) {
	fees, err := Quote(sampleCart(), domain.PackagingCarton)
	require.NoError(t, err)

	// 2*1000 + 3*450.5 = 3351.5
	assert.True(t, fees.Subtotal.Equal(decimal.RequireFromString("3351.5")))
	assert.Equal(t, int64(150*2+18*3), fees.Logistics)
	assert.Equal(t, int64(logistics.CartonFee), fees.Packaging)
	assert.Equal(t, int64(logistics.GrindingFeePerUnit*3), fees.Grinding)
	assert.Equal(t, int64(3352+354+300+600), fees.Total)
}

func TestQuote_InvalidPackaging(t *testing.T) {
	_, err := Quote(sampleCart(), "sack")
	assert.ErrorIs(t, err, ErrInvalidPackage)
}

func TestStart_WritesPendingOrder(t *testing.T) {
	mem := storage.NewMemoryStore()
	h := newHandoff(mem, sampleCart())

	res, err := h.Start(context.Background(), Request{Delivery: delivery()})
	require.NoError(t, err)

	assert.Equal(t, "QM-id-1", res.Order.Reference)
	assert.Equal(t, "id-2", res.Order.OrderID)
	assert.Equal(t, int64(4606), res.Order.Amount)

	u, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	assert.Equal(t, PaymentPath, u.Path)
	assert.Equal(t, "id-2", u.Query().Get("orderId"))
	assert.Equal(t, "4606", u.Query().Get("amount"))
	assert.Equal(t, "QM-id-1", u.Query().Get("reference"))

	data, err := mem.Get(context.Background(), "s1", storage.KeyPendingOrder)
	require.NoError(t, err)
	var stored domain.PendingOrder
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, res.Order.OrderID, stored.OrderID)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, delivery(), stored.DeliveryInfo)
}

func TestStart_CallerSuppliedReference(t *testing.T) {
	h := newHandoff(storage.NewMemoryStore(), sampleCart())

	res, err := h.Start(context.Background(), Request{Delivery: delivery(), Reference: "REF-42"})
	require.NoError(t, err)
	assert.Equal(t, "REF-42", res.Order.Reference)
	assert.Equal(t, "id-1", res.Order.OrderID)
}

func TestStart_EmptyCart(t *testing.T) {
	mem := storage.NewMemoryStore()
	h := newHandoff(mem, domain.Cart{})

	_, err := h.Start(context.Background(), Request{Delivery: delivery()})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = mem.Get(context.Background(), "s1", storage.KeyPendingOrder)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStart_InvalidDelivery(t *testing.T) {
	h := newHandoff(storage.NewMemoryStore(), sampleCart())

	_, err := h.Start(context.Background(), Request{Delivery: domain.DeliveryInfo{LocationID: "L1"}})
	assert.ErrorIs(t, err, ErrInvalidDelivery)
}

func TestStart_StorageFailure(t *testing.T) {
	h := newHandoff(brokenStorage{}, sampleCart())

	_, err := h.Start(context.Background(), Request{Delivery: delivery()})
	assert.ErrorContains(t, err, "save pending order failed")
}
