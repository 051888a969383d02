// Package tracking keeps an order's delivery snapshot fresh while the tracking
// page is open.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/metrics"
)

const (
	DefaultInterval = 30 * time.Second
	DashboardPath   = "/dashboard"
)

var ErrMissingOrderID = errors.New("order id is required")

type Fetcher interface {
	GetTracking(ctx context.Context, orderID string) (*domain.TrackingSnapshot, error)
}

// Poller fetches once on Run and then every interval until ctx is done. The
// latest snapshot is replaced on success and kept on failure.
type Poller struct {
	fetcher  Fetcher
	orderID  string
	interval time.Duration
	log      *slog.Logger
	onUpdate func(domain.TrackingSnapshot)

	mu       sync.RWMutex
	snapshot *domain.TrackingSnapshot
	lastErr  error
}

func NewPoller(fetcher Fetcher, orderID string, interval time.Duration, log *slog.Logger) (*Poller, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		fetcher:  fetcher,
		orderID:  orderID,
		interval: interval,
		log:      log.With("component", "tracking", "order_id", orderID),
	}, nil
}

// OnUpdate registers fn to receive every successfully fetched snapshot. It
// must be called before Run.
func (p *Poller) OnUpdate(fn func(domain.TrackingSnapshot)) {
	p.onUpdate = fn
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ticker.C:
			p.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Poll performs a single fetch and reports whether the snapshot changed.
func (p *Poller) Poll(ctx context.Context) bool {
	snap, err := p.fetcher.GetTracking(ctx, p.orderID)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		metrics.TrackingPolls.WithLabelValues("error").Inc()
		p.log.WarnContext(ctx, "failed to fetch tracking", "error", err)
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return false
	}
	metrics.TrackingPolls.WithLabelValues("ok").Inc()

	p.mu.Lock()
	p.snapshot = snap
	p.lastErr = nil
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(*snap)
	}
	return true
}

// Snapshot returns the latest snapshot, or nil before the first successful
// fetch.
func (p *Poller) Snapshot() *domain.TrackingSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil {
		return nil
	}
	s := *p.snapshot
	return &s
}

// Err returns the error of the last fetch, nil if it succeeded.
func (p *Poller) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}
