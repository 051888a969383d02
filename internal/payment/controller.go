package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/quickmarket/internal/api"
	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/events"
	"github.com/fjod/quickmarket/internal/notify"
	"github.com/fjod/quickmarket/internal/storage"
)

const (
	CartPath    = "/cart"
	SuccessPath = "/payment/success"
	FailurePath = "/payment/failure"
)

var ErrInvalidSession = errors.New("payment session is not valid")

// API is the subset of the remote API the payment page calls.
type API interface {
	InitPayment(ctx context.Context, req api.InitPaymentRequest) (*api.InitPaymentResponse, error)
	VerifyPayment(ctx context.Context, req api.VerifyPaymentRequest) (*api.VerifyPaymentResponse, error)
}

// Customer identifies who is paying. PackageID is optional; an empty
// LocationID falls back to the pending order's delivery location.
type Customer struct {
	Email      string
	PackageID  string
	LocationID string
}

type Options struct {
	API          API
	Store        storage.Store
	SessionID    string
	Customer     Customer
	Notifier     notify.Notifier
	Publisher    events.Publisher
	Logger       *slog.Logger
	SettleDelay  time.Duration
	DisplayDelay time.Duration
}

// Outcome is what the page shows after an operation. Redirect is empty while
// the page stays put.
type Outcome struct {
	Status   domain.PaymentStatus `json:"status"`
	Redirect string               `json:"redirect,omitempty"`
	Reason   string               `json:"reason,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Controller backs one mounted payment page.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	machine *Machine
	session *domain.PaymentSession
	outcome Outcome
	settled bool

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewController(opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		opts:    opts,
		log:     log.With("component", "payment"),
		machine: NewMachine(),
		outcome: Outcome{Status: domain.PaymentStatusPending},
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Mount rebuilds the payment session from the query string and the pending
// order. An invalid query yields a redirect to the cart without any remote
// call.
func (c *Controller) Mount(ctx context.Context, query url.Values) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	orderID := query.Get("orderId")
	reference := query.Get("reference")
	amount, err := strconv.ParseInt(query.Get("amount"), 10, 64)
	if orderID == "" || reference == "" || err != nil || amount <= 0 {
		c.log.InfoContext(ctx, "invalid payment query, redirecting to cart", "query", query.Encode())
		c.session = nil
		return Outcome{Status: domain.PaymentStatusPending, Redirect: CartPath}
	}

	session := &domain.PaymentSession{OrderID: orderID, Amount: amount, Reference: reference}

	pending, err := c.readPending(ctx)
	switch {
	case err == nil:
		session.Items = pending.Items
		session.DeliveryInfo = pending.DeliveryInfo
	case errors.Is(err, storage.ErrNotFound):
		if c.completedMatches(ctx, reference) {
			c.session = session
			c.settled = true
			c.outcome = Outcome{Status: domain.PaymentStatusSuccess, Redirect: successURL(session)}
			return c.outcome
		}
	default:
		c.log.WarnContext(ctx, "failed to read pending order", "order_id", orderID, "error", err)
	}

	c.session = session
	return c.outcome
}

// Session returns a copy of the mounted session, or nil when the page
// redirected away.
func (c *Controller) Session() *domain.PaymentSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Controller) Status() domain.PaymentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Status()
}

func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Pay runs init, the settle delay, verify and the outcome navigation. A
// second call while processing, or after the order was completed, returns the
// current outcome unchanged. When ctx is cancelled before verification the
// flow stops and no further page state is recorded.
func (c *Controller) Pay(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Outcome{}, ErrInvalidSession
	}
	if c.settled || c.machine.Status() == domain.PaymentStatusProcessing {
		out := c.outcome
		c.mu.Unlock()
		return out, nil
	}
	if err := c.machine.Transition(domain.PaymentStatusProcessing); err != nil {
		c.mu.Unlock()
		return Outcome{}, err
	}
	c.outcome = Outcome{Status: domain.PaymentStatusProcessing}
	session := *c.session
	c.mu.Unlock()

	log := c.log.With("order_id", session.OrderID, "reference", session.Reference)

	locationID := c.opts.Customer.LocationID
	if locationID == "" {
		locationID = session.DeliveryInfo.LocationID
	}
	_, err := c.opts.API.InitPayment(ctx, api.InitPaymentRequest{
		Email:      c.opts.Customer.Email,
		Amount:     session.Amount * 100,
		PackageID:  c.opts.Customer.PackageID,
		LocationID: locationID,
		Reference:  session.Reference,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	if err != nil {
		log.WarnContext(ctx, "payment init failed", "error", err)
		return c.fail(ctx, &session, domain.ReasonInitializationFailed, "Payment initialization failed")
	}

	if err := c.sleep(ctx, c.opts.SettleDelay); err != nil {
		return Outcome{}, err
	}

	verified, err := c.opts.API.VerifyPayment(ctx, api.VerifyPaymentRequest{
		Reference: session.Reference,
		OrderID:   session.OrderID,
	})
	// A verified payment is settled locally even if the page has gone away.
	if err == nil && verified.Status == "success" {
		return c.succeed(ctx, &session)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	if err != nil {
		log.WarnContext(ctx, "payment verification failed", "error", err)
		return c.fail(ctx, &session, domain.ReasonVerificationError, "Payment verification failed")
	}
	log.InfoContext(ctx, "payment not successful", "status", verified.Status)
	return c.fail(ctx, &session, domain.ReasonNotSuccessful, fmt.Sprintf("Payment status: %s", verified.Status))
}

// Retry resets a failed payment back to pending.
func (c *Controller) Retry() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Outcome{}, ErrInvalidSession
	}
	if err := c.machine.Transition(domain.PaymentStatusPending); err != nil {
		return Outcome{}, err
	}
	c.outcome = Outcome{Status: domain.PaymentStatusPending}
	return c.outcome, nil
}

func (c *Controller) succeed(ctx context.Context, session *domain.PaymentSession) (Outcome, error) {
	c.mu.Lock()
	if err := c.machine.Transition(domain.PaymentStatusSuccess); err != nil {
		c.mu.Unlock()
		return Outcome{}, err
	}
	first := !c.settled
	c.settled = true
	c.outcome = Outcome{Status: domain.PaymentStatusSuccess}
	c.mu.Unlock()

	if first {
		c.settle(context.WithoutCancel(ctx), session)
		c.opts.Notifier.Success("Payment successful")
	}

	if err := c.sleep(ctx, c.opts.DisplayDelay); err != nil {
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcome.Redirect = successURL(session)
	return c.outcome, nil
}

func (c *Controller) fail(ctx context.Context, session *domain.PaymentSession, reason, message string) (Outcome, error) {
	c.mu.Lock()
	if err := c.machine.Transition(domain.PaymentStatusFailed); err != nil {
		c.mu.Unlock()
		return Outcome{}, err
	}
	c.outcome = Outcome{Status: domain.PaymentStatusFailed, Reason: reason, Message: message}
	c.mu.Unlock()

	c.opts.Notifier.Error(message)

	if err := c.sleep(ctx, c.opts.DisplayDelay); err != nil {
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcome.Redirect = failureURL(session, reason, message)
	return c.outcome, nil
}

// settle copies the pending order to the completed slot and clears the pending
// order and the cart. Failures are logged: the payment itself already went
// through.
func (c *Controller) settle(ctx context.Context, session *domain.PaymentSession) {
	log := c.log.With("order_id", session.OrderID, "reference", session.Reference)

	pending, err := c.readPending(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WarnContext(ctx, "failed to read pending order on success", "error", err)
		}
		pending = &domain.PendingOrder{
			OrderID:      session.OrderID,
			Items:        session.Items,
			DeliveryInfo: session.DeliveryInfo,
		}
	}
	pending.OrderID = session.OrderID
	pending.Reference = session.Reference
	pending.Amount = session.Amount
	completedAt := c.now().UTC()

	completed := domain.CompletedOrder{PendingOrder: *pending, CompletedAt: completedAt}
	if data, err := json.Marshal(completed); err != nil {
		log.ErrorContext(ctx, "failed to encode completed order", "error", err)
	} else if err := c.opts.Store.Set(ctx, c.opts.SessionID, storage.KeyCompletedOrder, data); err != nil {
		log.ErrorContext(ctx, "failed to write completed order", "error", err)
	}

	for _, key := range []string{storage.KeyPendingOrder, storage.KeyCart} {
		if err := c.opts.Store.Delete(ctx, c.opts.SessionID, key); err != nil {
			log.ErrorContext(ctx, "failed to delete session value", "key", key, "error", err)
		}
	}

	err = c.opts.Publisher.PublishPaymentCompleted(ctx, events.PaymentCompleted{
		OrderID:     session.OrderID,
		Reference:   session.Reference,
		Amount:      session.Amount,
		SessionID:   c.opts.SessionID,
		CompletedAt: completedAt,
	})
	if err != nil {
		log.WarnContext(ctx, "failed to publish payment completed event", "error", err)
	}
}

func (c *Controller) readPending(ctx context.Context) (*domain.PendingOrder, error) {
	data, err := c.opts.Store.Get(ctx, c.opts.SessionID, storage.KeyPendingOrder)
	if err != nil {
		return nil, err
	}
	var order domain.PendingOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode pending order: %w", err)
	}
	return &order, nil
}

func (c *Controller) completedMatches(ctx context.Context, reference string) bool {
	data, err := c.opts.Store.Get(ctx, c.opts.SessionID, storage.KeyCompletedOrder)
	if err != nil {
		return false
	}
	var order domain.CompletedOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return false
	}
	return order.Reference == reference
}

func successURL(s *domain.PaymentSession) string {
	q := url.Values{}
	q.Set("orderId", s.OrderID)
	q.Set("reference", s.Reference)
	q.Set("amount", strconv.FormatInt(s.Amount, 10))
	return SuccessPath + "?" + q.Encode()
}

func failureURL(s *domain.PaymentSession, reason, message string) string {
	q := url.Values{}
	q.Set("orderId", s.OrderID)
	q.Set("reference", s.Reference)
	q.Set("amount", strconv.FormatInt(s.Amount, 10))
	q.Set("reason", reason)
	q.Set("message", message)
	return FailurePath + "?" + q.Encode()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
