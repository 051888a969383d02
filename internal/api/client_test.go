package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 0), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestInitPayment_Success(t *testing.T) {
	var got InitPaymentRequest
	var auth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, initPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]string{
				"authorization_url": "https://checkout.paystack.com/abc",
				"access_code":       "abc",
				"reference":         got.Reference,
			},
		})
	})

	ctx := WithBearer(context.Background(), "tok")
	resp, err := c.InitPayment(ctx, InitPaymentRequest{
		Email:      "ada@example.com",
		Amount:     500000,
		PackageID:  "P1",
		LocationID: "L1",
		Reference:  "R1",
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", resp.Reference)
	assert.Equal(t, "abc", resp.AccessCode)
	assert.Equal(t, int64(500000), got.Amount)
	assert.Equal(t, "Bearer tok", auth)
}

func TestInitPayment_Unsuccessful(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "No active package"})
	})

	_, err := c.InitPayment(context.Background(), InitPaymentRequest{Reference: "R1"})
	assert.ErrorIs(t, err, ErrUnsuccessful)
	assert.ErrorContains(t, err, "No active package")
}

func TestInitPayment_NetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.InitPayment(context.Background(), InitPaymentRequest{Reference: "R1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsuccessful)
}

func TestVerifyPayment_ReturnsStatus(t *testing.T) {
	var got VerifyPaymentRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, verifyPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"status": "abandoned"}})
	})

	resp, err := c.VerifyPayment(context.Background(), VerifyPaymentRequest{Reference: "R1", OrderID: "O1"})
	require.NoError(t, err)
	assert.Equal(t, "abandoned", resp.Status)
	assert.Equal(t, VerifyPaymentRequest{Reference: "R1", OrderID: "O1"}, got)
}

func TestVerifyPayment_GarbageBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.VerifyPayment(context.Background(), VerifyPaymentRequest{Reference: "R1", OrderID: "O1"})
	assert.ErrorContains(t, err, "status 502")
}

func TestGetTracking(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/O%2F1/tracking", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"status": "out_for_delivery",
				"trackingUpdates": []map[string]any{
					{"status": "confirmed", "timestamp": "2026-03-01T09:00:00Z"},
					{"status": "out_for_delivery", "timestamp": "2026-03-01T11:00:00Z"},
				},
				"deliveryPartner": map[string]string{"name": "Tunde", "phone": "0800"},
			},
		})
	})

	snap, err := c.GetTracking(context.Background(), "O/1")
	require.NoError(t, err)
	assert.Equal(t, "O/1", snap.OrderID)
	assert.Equal(t, "out_for_delivery", snap.Status)
	assert.Len(t, snap.TrackingUpdates, 2)
	require.NotNil(t, snap.DeliveryPartner)
	assert.Equal(t, "Tunde", snap.DeliveryPartner.Name)
}

func TestReads_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		_, err := c.GetTracking(context.Background(), "O1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := c.GetTracking(context.Background(), "O1")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestReads_BusinessFailureDoesNotTrip(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Order not found"})
	})

	for i := 0; i < 7; i++ {
		_, err := c.GetTracking(context.Background(), "O1")
		assert.ErrorIs(t, err, ErrUnsuccessful)
	}
	assert.Equal(t, int32(7), calls.Load())
}

func TestReads_CallerCancellationDoesNotTrip(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"orderId": "O1"}})
	})

	for i := 0; i < 7; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := c.GetTracking(ctx, "O1")
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	slow.Store(false)
	_, err := c.GetTracking(context.Background(), "O1")
	assert.NoError(t, err)
}

func TestListLocations_Cached(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]any{{"_id": "L1", "name": "Yaba", "isActive": true}},
		})
	})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locs, err := c.ListLocations(context.Background())
			assert.NoError(t, err)
			assert.Len(t, locs, 1)
		}()
	}
	wg.Wait()
	first := calls.Load()
	assert.LessOrEqual(t, first, int32(10))

	locs, err := c.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Yaba", locs[0].Name)
	assert.Equal(t, first, calls.Load())

	now = now.Add(6 * time.Minute)
	_, err = c.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first+1, calls.Load())
}

func TestSearchSuggestions(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, suggestionsPath, r.URL.Path)
		assert.Equal(t, "ofada rice", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, map[string]any{
			"suggestions": []map[string]string{{"name": "Ofada Rice", "category": "grains"}},
		})
	})

	out, err := c.SearchSuggestions(context.Background(), "ofada rice")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ofada Rice", out[0].Name)
}

func TestSearchSuggestions_Empty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	out, err := c.SearchSuggestions(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, len(out))
	assert.NotNil(t, out)
}
