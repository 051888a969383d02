// Package checkout turns the cart and a delivery choice into a pending order
// and the payment page URL that carries it forward.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/logistics"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/google/uuid"
)

const PaymentPath = "/payment"

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidDelivery = errors.New("delivery location and address are required")
	ErrInvalidPackage  = errors.New("unknown packaging type")
)

type CartReader interface {
	Cart() domain.Cart
}

type Request struct {
	Delivery domain.DeliveryInfo
	// Reference is generated when empty.
	Reference string
}

type Result struct {
	Order      domain.PendingOrder
	PaymentURL string
}

type Handoff struct {
	storage   storage.Store
	sessionID string
	cart      CartReader
	log       *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewHandoff(s storage.Store, sessionID string, cart CartReader, log *slog.Logger) *Handoff {
	return &Handoff{
		storage:   s,
		sessionID: sessionID,
		cart:      cart,
		log:       log.With(slog.String("component", "checkout"), slog.String("session_id", sessionID)),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Quote prices the cart for a delivery choice without persisting anything.
func Quote(c domain.Cart, packaging domain.PackagingType) (domain.FeeBreakdown, error) {
	if !packaging.Valid() {
		return domain.FeeBreakdown{}, ErrInvalidPackage
	}
	items := logistics.ItemsFromCart(c.Items, packaging)
	subtotal := c.Subtotal()

	fees := domain.FeeBreakdown{
		Subtotal:  subtotal,
		Logistics: logistics.CalculateLogistics(items),
		Packaging: logistics.CalculatePackagingFee(items),
		Grinding:  logistics.CalculateGrindingFee(items),
	}
	fees.Total = subtotal.Ceil().IntPart() + fees.Logistics + fees.Packaging + fees.Grinding
	return fees, nil
}

// Start writes the pending order and returns the payment page URL. Callers
// must not reach it with an empty cart; ErrEmptyCart reports that they did.
func (h *Handoff) Start(ctx context.Context, req Request) (*Result, error) {
	c := h.cart.Cart()
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if req.Delivery.LocationID == "" || req.Delivery.Address == "" {
		return nil, ErrInvalidDelivery
	}

	fees, err := Quote(c, req.Delivery.PackagingType)
	if err != nil {
		return nil, err
	}

	reference := req.Reference
	if reference == "" {
		reference = "QM-" + h.newID()
	}

	order := domain.PendingOrder{
		OrderID:      h.newID(),
		Reference:    reference,
		Amount:       fees.Total,
		Items:        c.Items,
		DeliveryInfo: req.Delivery,
		Fees:         fees,
		CreatedAt:    h.now().UTC(),
	}

	data, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal pending order failed: %w", err)
	}
	if err := h.storage.Set(ctx, h.sessionID, storage.KeyPendingOrder, data); err != nil {
		return nil, fmt.Errorf("save pending order failed: %w", err)
	}

	h.log.InfoContext(ctx, "checkout started",
		slog.String("order_id", order.OrderID),
		slog.String("reference", order.Reference),
		slog.Int64("amount", order.Amount))

	return &Result{
		Order:      order,
		PaymentURL: PaymentURL(order.OrderID, order.Amount, order.Reference),
	}, nil
}

func PaymentURL(orderID string, amount int64, reference string) string {
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("reference", reference)
	return PaymentPath + "?" + q.Encode()
}
