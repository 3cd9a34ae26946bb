package access

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pingsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "patchy_access_maxcontroller_current",
			Help: "Number of ping payloads currently being served.",
		},
	)
	pingsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "patchy_access_maxcontroller_rejected_total",
			Help: "Number of ping requests rejected because Max payloads were in flight.",
		},
	)
)

// MaxController bounds the number of ping payloads served concurrently. A
// zero Max admits everything.
type MaxController struct {
	Max int64

	inFlight atomic.Int64
}

// InFlight returns the number of requests currently admitted.
func (c *MaxController) InFlight() int64 {
	return c.inFlight.Load()
}

// Limit serves next while fewer than Max requests are in flight, and answers
// 503 otherwise. A rejected ping is a failed attempt for the prober, so the
// response must not be cached either.
func (c *MaxController) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := c.inFlight.Add(1)
		defer c.inFlight.Add(-1)
		if c.Max > 0 && n > c.Max {
			pingsRejected.Inc()
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		pingsInFlight.Inc()
		defer pingsInFlight.Dec()
		next.ServeHTTP(w, r)
	})
}
