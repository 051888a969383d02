// Package storage persists per-session JSON blobs under fixed keys. It plays
// the role browser local storage plays for a single-page storefront.
package storage

import (
	"context"
	"errors"
)

// Fixed keys. Every persisted value lives under one of these.
const (
	KeyCart           = "quickmarket-cart"
	KeyPendingOrder   = "quickmarket-pending-order"
	KeyCompletedOrder = "quickmarket-completed-order"
	KeySelectedArea   = "quickmarket-selected-area"
	KeySearchHistory  = "quickmarket-search-history"
	KeySelectedPlan   = "quickmarket-selected-plan"
)

var ErrNotFound = errors.New("value not found")

// Store has no locking across requests: concurrent writers to the same
// session and key resolve as last write wins.
type Store interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
	Ping(ctx context.Context) error
	Close() error
}
