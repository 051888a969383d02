package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/fjod/quickmarket/internal/checkout"
	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/notify"
	"github.com/fjod/quickmarket/internal/payment"
	"github.com/fjod/quickmarket/internal/preferences"
	"github.com/fjod/quickmarket/internal/storage"
)

type PaymentPageDTO struct {
	Status        domain.PaymentStatus   `json:"status"`
	Session       *domain.PaymentSession `json:"session,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Notifications []notify.Notification  `json:"notifications"`
}

type PaymentSuccessDTO struct {
	OrderID   string                 `json:"orderId"`
	Reference string                 `json:"reference"`
	Amount    string                 `json:"amount"`
	Order     *domain.CompletedOrder `json:"order,omitempty"`
}

type PaymentFailureDTO struct {
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	RetryURL  string `json:"retryUrl,omitempty"`
}

// paymentOptions binds a payment page to the visitor.
func (s *Server) paymentOptions(r *http.Request, notes notify.Notifier) payment.Options {
	sess := currentSession(r)
	prefs := preferences.New(s.store, sess.ID, s.log)

	customer := payment.Customer{Email: sess.Email}
	if customer.Email == "" {
		customer.Email = s.opts.FallbackEmail
	}
	if plan := prefs.SelectedPlan(r.Context()); plan != nil {
		customer.PackageID = plan.PackageID
	}
	if area := prefs.SelectedArea(r.Context()); area != nil {
		customer.LocationID = area.LocationID
	}

	return payment.Options{
		API:          s.api,
		Store:        s.store,
		SessionID:    sess.ID,
		Customer:     customer,
		Notifier:     notes,
		Publisher:    s.publisher,
		Logger:       s.log,
		SettleDelay:  s.opts.PaymentSettleDelay,
		DisplayDelay: s.opts.PaymentDisplayDelay,
	}
}

// GET /payment
func (s *Server) mountPayment(w http.ResponseWriter, r *http.Request) {
	notes := notify.NewCollector()
	ctrl, out := s.payments.Mount(r.Context(), s.paymentOptions(r, notes), r.URL.Query())
	if out.Redirect != "" {
		respondRedirect(w, RedirectResponse{Redirect: out.Redirect, Notifications: notes.Drain()})
		return
	}
	respondJSON(w, http.StatusOK, PaymentPageDTO{
		Status:        out.Status,
		Session:       ctrl.Session(),
		Notifications: notes.Drain(),
	})
}

// POST /payment/pay
func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	notes := notify.NewCollector()
	out, err := s.payments.Pay(upstreamContext(r), s.paymentOptions(r, notes), r.URL.Query())
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.InfoContext(r.Context(), "payment page left before completion", "error", err)
		return
	case errors.Is(err, payment.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "payment failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "payment could not be processed")
		return
	}

	if out.Redirect != "" {
		respondRedirect(w, RedirectResponse{Redirect: out.Redirect, Notifications: notes.Drain(), Data: out})
		return
	}
	respondJSON(w, http.StatusAccepted, PaymentPageDTO{
		Status:        out.Status,
		Reason:        out.Reason,
		Message:       out.Message,
		Notifications: notes.Drain(),
	})
}

// POST /payment/retry
func (s *Server) retryPayment(w http.ResponseWriter, r *http.Request) {
	notes := notify.NewCollector()
	out, err := s.payments.Retry(r.Context(), s.paymentOptions(r, notes), r.URL.Query())
	if errors.Is(err, payment.ErrIllegalTransition) {
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "payment retry failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "payment could not be reset")
		return
	}
	if out.Redirect != "" {
		respondRedirect(w, RedirectResponse{Redirect: out.Redirect, Notifications: notes.Drain()})
		return
	}
	respondJSON(w, http.StatusOK, PaymentPageDTO{Status: out.Status, Notifications: notes.Drain()})
}

// GET /payment/success
func (s *Server) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := PaymentSuccessDTO{
		OrderID:   q.Get("orderId"),
		Reference: q.Get("reference"),
		Amount:    q.Get("amount"),
	}

	data, err := s.store.Get(r.Context(), currentSession(r).ID, storage.KeyCompletedOrder)
	switch {
	case err == nil:
		var order domain.CompletedOrder
		if err := json.Unmarshal(data, &order); err != nil {
			s.log.WarnContext(r.Context(), "completed order is corrupt", "error", err)
		} else if order.Reference == resp.Reference {
			resp.Order = &order
		}
	case !errors.Is(err, storage.ErrNotFound):
		s.log.WarnContext(r.Context(), "failed to read completed order", "error", err)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /payment/failure
func (s *Server) paymentFailure(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := PaymentFailureDTO{
		OrderID:   q.Get("orderId"),
		Reference: q.Get("reference"),
		Amount:    q.Get("amount"),
		Reason:    q.Get("reason"),
		Message:   q.Get("message"),
	}
	if resp.OrderID != "" && resp.Reference != "" && resp.Amount != "" {
		resp.RetryURL = checkout.PaymentPath + "?" + url.Values{
			"orderId":   {resp.OrderID},
			"amount":    {resp.Amount},
			"reference": {resp.Reference},
		}.Encode()
	}
	respondJSON(w, http.StatusOK, resp)
}
