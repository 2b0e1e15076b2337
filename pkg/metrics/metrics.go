package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehost_requests_total",
		Help: "Total processed requests",
	}, []string{"code", "type"})

	rewriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rehost_rewrite_duration_seconds",
		Help:    "Time spent rewriting served content",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

// ObserveRequest records one handled request by status class and content kind.
func ObserveRequest(code int, kind string) {
	requestsTotal.WithLabelValues(fmt.Sprintf("%dxx", code/100), kind).Inc()
}

// ObserveRewrite records the duration of one rewrite pass.
func ObserveRewrite(kind string, elapsed time.Duration) {
	rewriteDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Serve exposes /metrics on its own listener so the site catch-all route is
// never shadowed. It blocks; run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
