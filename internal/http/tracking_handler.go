package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/tracking"
	"github.com/go-chi/chi/v5"
)

type TrackingPageDTO struct {
	OrderID  string                   `json:"orderId"`
	Snapshot *domain.TrackingSnapshot `json:"snapshot"`
	// RefreshSeconds tells the page how often to reload.
	RefreshSeconds int `json:"refreshSeconds"`
}

func (s *Server) newPoller(r *http.Request) (*tracking.Poller, bool) {
	orderID := chi.URLParam(r, "order_id")
	p, err := tracking.NewPoller(s.api, orderID, s.opts.TrackingInterval, s.log)
	if err != nil {
		return nil, false
	}
	return p, true
}

func (s *Server) trackingMissingOrder(w http.ResponseWriter, _ *http.Request) {
	respondRedirect(w, RedirectResponse{Redirect: tracking.DashboardPath})
}

// GET /orders/{order_id}/tracking
func (s *Server) trackingPage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.newPoller(r)
	if !ok {
		s.trackingMissingOrder(w, r)
		return
	}

	ctx := upstreamContext(r)
	p.Poll(ctx)
	interval := s.opts.TrackingInterval
	if interval <= 0 {
		interval = tracking.DefaultInterval
	}
	respondJSON(w, http.StatusOK, TrackingPageDTO{
		OrderID:        chi.URLParam(r, "order_id"),
		Snapshot:       p.Snapshot(),
		RefreshSeconds: int(interval.Seconds()),
	})
}

// GET /orders/{order_id}/tracking/stream sends a server-sent event for every
// successful poll until the client disconnects.
func (s *Server) trackingStream(w http.ResponseWriter, r *http.Request) {
	p, ok := s.newPoller(r)
	if !ok {
		s.trackingMissingOrder(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := upstreamContext(r)
	p.OnUpdate(func(snap domain.TrackingSnapshot) {
		data, err := json.Marshal(snap)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to encode tracking snapshot", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: tracking\ndata: %s\n\n", data); err != nil {
			s.log.DebugContext(ctx, "tracking stream write failed", "error", err)
			return
		}
		flusher.Flush()
	})
	p.Run(ctx)
}
