package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/metrics"
)

const (
	locationsPath   = "/api/locations"
	suggestionsPath = "/api/products/search-suggestions"
)

type Location = domain.Location

// GetTracking fetches the current tracking snapshot for orderID.
func (c *Client) GetTracking(ctx context.Context, orderID string) (snap *domain.TrackingSnapshot, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("order_tracking", start, err) }(time.Now())

	path := fmt.Sprintf("/api/orders/%s/tracking", url.PathEscape(orderID))
	r, err := c.read(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := decodeEnvelope[domain.TrackingSnapshot](r, path)
	if err != nil {
		return nil, err
	}
	if data.OrderID == "" {
		data.OrderID = orderID
	}
	return &data, nil
}

// ListLocations is cached for locationsTTL and concurrent misses share one
// upstream call.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	c.mu.RLock()
	if c.locations != nil && c.now().Sub(c.locationsAt) < c.locationsTTL {
		out := c.locations
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sfg.Do("locations", func() (interface{}, error) {
		start := time.Now()
		r, err := c.read(ctx, locationsPath)
		if err == nil {
			var locs []Location
			locs, err = decodeEnvelope[[]Location](r, locationsPath)
			if err == nil {
				if locs == nil {
					locs = []Location{}
				}
				c.mu.Lock()
				c.locations = locs
				c.locationsAt = c.now()
				c.mu.Unlock()
				metrics.ObserveAPI("locations", start, nil)
				return locs, nil
			}
		}
		metrics.ObserveAPI("locations", start, err)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]Location), nil
}

type suggestionsResponse struct {
	Suggestions []domain.SearchSuggestion `json:"suggestions"`
}

func (c *Client) SearchSuggestions(ctx context.Context, query string) (out []domain.SearchSuggestion, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("search_suggestions", start, err) }(time.Now())

	path := suggestionsPath + "?q=" + url.QueryEscape(query)
	r, err := c.read(ctx, path)
	if err != nil {
		return nil, err
	}
	if r.status >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrUnsuccessful, r.status)
	}
	var resp suggestionsResponse
	if err := json.Unmarshal(r.body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response failed: %w", suggestionsPath, err)
	}
	if resp.Suggestions == nil {
		return []domain.SearchSuggestion{}, nil
	}
	return resp.Suggestions, nil
}
