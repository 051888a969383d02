package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "payment_transitions_total",
		Help:      "Payment state machine transitions.",
	}, []string{"from", "to"})

	TrackingPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "tracking_polls_total",
		Help:      "Order tracking fetches by result.",
	}, []string{"result"})

	CartMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "cart_mutations_total",
		Help:      "Cart mutations by operation.",
	}, []string{"op"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "api_request_duration_seconds",
		Help:      "Latency of upstream API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})
)

// ObserveAPI records the duration of an upstream call started at start.
func ObserveAPI(endpoint string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	APIRequestDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
}
