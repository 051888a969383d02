// Package cart is the only code that reads or writes the persisted cart.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/metrics"
	"github.com/fjod/quickmarket/internal/notify"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/shopspring/decimal"
)

const availabilityOutOfStock = "out_of_stock"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrUnavailable     = errors.New("product is not available")
	ErrExceedsStock    = errors.New("quantity exceeds available stock")
)

// Store is bound to one session. It is not safe for concurrent use; each
// request builds its own. Two stores on the same session do not coordinate,
// the later Save wins.
type Store struct {
	storage   storage.Store
	sessionID string
	notifier  notify.Notifier
	log       *slog.Logger

	items    []domain.CartItem
	hydrated bool
}

func NewStore(s storage.Store, sessionID string, n notify.Notifier, log *slog.Logger) *Store {
	return &Store{
		storage:   s,
		sessionID: sessionID,
		notifier:  n,
		log:       log.With(slog.String("component", "cart"), slog.String("session_id", sessionID)),
	}
}

// Load rehydrates the cart and never fails. Missing, corrupt or "null" data
// yields an empty cart. When the backend itself errors the store stays
// unhydrated so later saves cannot overwrite the persisted cart.
func (s *Store) Load(ctx context.Context) domain.Cart {
	data, err := s.storage.Get(ctx, s.sessionID, storage.KeyCart)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.items = nil
		s.hydrated = true
	case err != nil:
		s.log.WarnContext(ctx, "cart read failed", slog.Any("error", err))
		s.notifier.Error("We couldn't load your cart. Please refresh the page.")
		s.items = nil
	default:
		items, decodeErr := Decode(data)
		if decodeErr != nil {
			s.log.WarnContext(ctx, "cart data is corrupt, starting empty", slog.Any("error", decodeErr))
			s.notifier.Error("Your saved cart could not be read and has been reset.")
		}
		s.items = items
		s.hydrated = true
	}
	return s.Cart()
}

// Save writes the whole cart. It is a no-op until Load has hydrated the store.
func (s *Store) Save(ctx context.Context) error {
	if !s.hydrated {
		s.log.DebugContext(ctx, "skipping cart save before hydration")
		return nil
	}
	data, err := Encode(s.items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.storage.Set(ctx, s.sessionID, storage.KeyCart, data); err != nil {
		return fmt.Errorf("save cart failed: %w", err)
	}
	return nil
}

// Add inserts productID or increases its quantity.
func (s *Store) Add(ctx context.Context, productID string, product domain.ProductSnapshot, quantity int, needsGrinding bool) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if product.AvailabilityStatus == availabilityOutOfStock {
		s.notifier.Error(fmt.Sprintf("%s is out of stock", product.Name))
		return ErrUnavailable
	}

	c := domain.Cart{Items: s.items}
	idx := c.Index(productID)
	newQty := quantity
	if idx >= 0 {
		newQty += s.items[idx].Quantity
	}
	if product.StockQty > 0 && newQty > product.StockQty {
		s.notifier.Error(fmt.Sprintf("Only %dkg of %s is available", product.StockQty, product.Name))
		return ErrExceedsStock
	}

	if idx >= 0 {
		s.items[idx].Quantity = newQty
		s.items[idx].NeedsGrinding = needsGrinding
	} else {
		s.items = append(s.items, domain.CartItem{
			ProductID:     productID,
			Quantity:      quantity,
			Product:       product,
			NeedsGrinding: needsGrinding,
		})
	}

	metrics.CartMutations.WithLabelValues("add").Inc()
	s.notifier.Success(fmt.Sprintf("%s added to cart", product.Name))
	return s.Save(ctx)
}

// SetQuantity removes the item when quantity <= 0. Unknown ids are ignored.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}
	idx := domain.Cart{Items: s.items}.Index(productID)
	if idx < 0 {
		return nil
	}
	if stock := s.items[idx].Product.StockQty; stock > 0 && quantity > stock {
		s.notifier.Error(fmt.Sprintf("Only %dkg of %s is available", stock, s.items[idx].Product.Name))
		return ErrExceedsStock
	}

	s.items[idx].Quantity = quantity
	metrics.CartMutations.WithLabelValues("set_quantity").Inc()
	return s.Save(ctx)
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	idx := domain.Cart{Items: s.items}.Index(productID)
	if idx < 0 {
		return nil
	}
	name := s.items[idx].Product.Name
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	if len(s.items) == 0 {
		s.items = nil
	}

	metrics.CartMutations.WithLabelValues("remove").Inc()
	s.notifier.Success(fmt.Sprintf("%s removed from cart", name))
	return s.Save(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.items = nil
	metrics.CartMutations.WithLabelValues("clear").Inc()
	return s.Save(ctx)
}

func (s *Store) Cart() domain.Cart {
	return domain.Cart{Items: s.items}.Clone()
}

func (s *Store) Subtotal() decimal.Decimal {
	return domain.Cart{Items: s.items}.Subtotal()
}

func (s *Store) TotalWeight() int {
	return domain.Cart{Items: s.items}.TotalWeight()
}

func (s *Store) ItemCount() int {
	return len(s.items)
}

func (s *Store) Hydrated() bool {
	return s.hydrated
}

// Decode parses a persisted cart blob. Malformed data returns an empty cart
// together with the parse error. Entries with a blank id or non-positive
// quantity are dropped and duplicate ids keep their first occurrence.
func Decode(data []byte) ([]domain.CartItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var raw []domain.CartItem
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	items := make([]domain.CartItem, 0, len(raw))
	for _, it := range raw {
		if it.ProductID == "" || it.Quantity <= 0 || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func Encode(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	return json.Marshal(items)
}
