package http

import (
	"errors"
	"net/http"

	"github.com/fjod/quickmarket/internal/checkout"
	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/payment"
)

type QuoteRequestDTO struct {
	PackagingType domain.PackagingType `json:"packagingType"`
}

type CheckoutRequestDTO struct {
	DeliveryInfo domain.DeliveryInfo `json:"deliveryInfo"`
	Reference    string              `json:"reference,omitempty"`
}

// POST /api/checkout/quote
func (s *Server) quoteCheckout(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, _ := s.loadCart(r)
	fees, err := checkout.Quote(store.Cart(), req.PackagingType)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_packaging", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, fees)
}

// POST /api/checkout
func (s *Server) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, notes := s.loadCart(r)
	handoff := checkout.NewHandoff(s.store, currentSession(r).ID, store, s.log)
	res, err := handoff.Start(r.Context(), checkout.Request{
		Delivery:  req.DeliveryInfo,
		Reference: req.Reference,
	})
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondRedirect(w, RedirectResponse{Redirect: payment.CartPath, Notifications: notes.Drain()})
	case errors.Is(err, checkout.ErrInvalidDelivery), errors.Is(err, checkout.ErrInvalidPackage):
		respondError(w, http.StatusBadRequest, "invalid_delivery", err.Error())
	case err != nil:
		s.log.ErrorContext(r.Context(), "checkout failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to start checkout")
	default:
		respondRedirect(w, RedirectResponse{
			Redirect:      res.PaymentURL,
			Notifications: notes.Drain(),
			Data:          res.Order,
		})
	}
}
