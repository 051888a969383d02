package http

import (
	"errors"
	"net/http"

	"github.com/fjod/quickmarket/internal/cart"
	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AddItemRequestDTO struct {
	ProductID     string                 `json:"productId"`
	Product       domain.ProductSnapshot `json:"product"`
	Quantity      int                    `json:"quantity"`
	NeedsGrinding bool                   `json:"needsGrinding"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items         []domain.CartItem     `json:"items"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	TotalWeight   int                   `json:"totalWeight"`
	ItemCount     int                   `json:"itemCount"`
	Notifications []notify.Notification `json:"notifications"`
}

// loadCart builds a request scoped cart store and hydrates it.
func (s *Server) loadCart(r *http.Request) (*cart.Store, *notify.Collector) {
	notes := notify.NewCollector()
	store := cart.NewStore(s.store, currentSession(r).ID, notes, s.log)
	store.Load(r.Context())
	return store, notes
}

func cartResponse(store *cart.Store, notes *notify.Collector) CartResponseDTO {
	items := store.Cart().Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponseDTO{
		Items:         items,
		Subtotal:      store.Subtotal(),
		TotalWeight:   store.TotalWeight(),
		ItemCount:     store.ItemCount(),
		Notifications: notes.Drain(),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	store, notes := s.loadCart(r)
	respondJSON(w, http.StatusOK, cartResponse(store, notes))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	store, notes := s.loadCart(r)
	if !store.Hydrated() {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart is temporarily unavailable")
		return
	}
	if err := store.Add(r.Context(), req.ProductID, req.Product, req.Quantity, req.NeedsGrinding); err != nil {
		s.handleCartError(w, r, err, store, notes)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(store, notes))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, notes := s.loadCart(r)
	if !store.Hydrated() {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart is temporarily unavailable")
		return
	}
	if err := store.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		s.handleCartError(w, r, err, store, notes)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(store, notes))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	store, notes := s.loadCart(r)
	if !store.Hydrated() {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart is temporarily unavailable")
		return
	}
	if err := store.Remove(r.Context(), productID); err != nil {
		s.handleCartError(w, r, err, store, notes)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(store, notes))
}

func (s *Server) handleCartError(w http.ResponseWriter, r *http.Request, err error, store *cart.Store, notes *notify.Collector) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrUnavailable):
		respondJSON(w, http.StatusConflict, cartConflict("unavailable", err, store, notes))
	case errors.Is(err, cart.ErrExceedsStock):
		respondJSON(w, http.StatusConflict, cartConflict("exceeds_stock", err, store, notes))
	default:
		s.log.ErrorContext(r.Context(), "cart update failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save cart")
	}
}

type cartConflictDTO struct {
	ErrorResponse
	Cart CartResponseDTO `json:"cart"`
}

func cartConflict(code string, err error, store *cart.Store, notes *notify.Collector) cartConflictDTO {
	return cartConflictDTO{
		ErrorResponse: ErrorResponse{Error: err.Error(), Code: code},
		Cart:          cartResponse(store, notes),
	}
}
