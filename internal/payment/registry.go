package payment

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/fjod/quickmarket/internal/domain"
)

// Registry keeps mounted payment pages between requests so that pay and
// retry act on the page the visitor is looking at. Pages are keyed by
// session and payment reference.
type Registry struct {
	mu    sync.Mutex
	pages map[string]*page
	ttl   time.Duration
	now   func() time.Time
}

type page struct {
	ctrl    *Controller
	touched time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		pages: make(map[string]*page),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Mount returns the outcome for a page load. A page already processing the
// same reference is reported as is instead of being reset to pending, so a
// reload cannot start a second payment for the same attempt.
func (r *Registry) Mount(ctx context.Context, opts Options, query url.Values) (*Controller, Outcome) {
	key := pageKey(opts.SessionID, query.Get("reference"))

	r.mu.Lock()
	r.evictLocked()
	if p, ok := r.pages[key]; ok && p.ctrl.Status() == domain.PaymentStatusProcessing {
		p.touched = r.now()
		r.mu.Unlock()
		return p.ctrl, p.ctrl.Outcome()
	}
	r.mu.Unlock()

	ctrl := NewController(opts)
	out := ctrl.Mount(ctx, query)
	if out.Redirect == CartPath {
		return ctrl, out
	}

	r.mu.Lock()
	r.pages[key] = &page{ctrl: ctrl, touched: r.now()}
	r.mu.Unlock()
	return ctrl, out
}

// Lookup returns the mounted page for the query, mounting a fresh one when the
// visitor has none.
func (r *Registry) Lookup(ctx context.Context, opts Options, query url.Values) (*Controller, Outcome) {
	key := pageKey(opts.SessionID, query.Get("reference"))

	r.mu.Lock()
	r.evictLocked()
	if p, ok := r.pages[key]; ok {
		p.touched = r.now()
		r.mu.Unlock()
		return p.ctrl, p.ctrl.Outcome()
	}
	r.mu.Unlock()

	return r.Mount(ctx, opts, query)
}

// Pay runs the payment on the visitor's page. A cancelled request unmounts the
// page; a later load starts again from pending.
func (r *Registry) Pay(ctx context.Context, opts Options, query url.Values) (Outcome, error) {
	ctrl, out := r.Lookup(ctx, opts, query)
	if ctrl.Session() == nil {
		return out, nil
	}

	out, err := ctrl.Pay(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.unmount(opts.SessionID, query.Get("reference"), ctrl)
	}
	return out, err
}

// Retry resets a failed page to pending. Only a page that never mounted a
// session (the cart redirect) is answered with its mount outcome.
func (r *Registry) Retry(ctx context.Context, opts Options, query url.Values) (Outcome, error) {
	ctrl, out := r.Lookup(ctx, opts, query)
	if ctrl.Session() == nil {
		return out, nil
	}
	return ctrl.Retry()
}

// Len reports the number of mounted pages.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

func (r *Registry) unmount(sessionID, reference string, ctrl *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pageKey(sessionID, reference)
	if p, ok := r.pages[key]; ok && p.ctrl == ctrl {
		delete(r.pages, key)
	}
}

func (r *Registry) evictLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for key, p := range r.pages {
		if p.touched.Before(cutoff) {
			delete(r.pages, key)
		}
	}
}

func pageKey(sessionID, reference string) string {
	return sessionID + "|" + reference
}
