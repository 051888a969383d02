package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/quickmarket/internal/events"
	"github.com/fjod/quickmarket/internal/storage"
)

// Reconciler finishes local cleanup for payments that completed while the
// session store was failing. It only removes a pending order whose reference
// matches the completed payment, so replays are harmless.
type Reconciler struct {
	store storage.Store
}

func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

func (r *Reconciler) HandlePaymentCompleted(ctx context.Context, ev events.PaymentCompleted) error {
	data, err := r.store.Get(ctx, ev.SessionID, storage.KeyPendingOrder)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pending order failed: %w", err)
	}

	var pending struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(data, &pending); err != nil || pending.Reference != ev.Reference {
		return nil
	}
	if err := r.store.Delete(ctx, ev.SessionID, storage.KeyPendingOrder); err != nil {
		return fmt.Errorf("delete pending order failed: %w", err)
	}
	return nil
}
