package handler

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vppro/patchy/metrics"
)

// Paths served by the API.
const (
	PingPath    = "/ping"
	ResultPath  = "/result"
	ResultsPath = "/results"
)

func instrument(name string, h http.HandlerFunc) http.Handler {
	return promhttp.InstrumentHandlerDuration(
		metrics.RequestDuration.MustCurryWith(prometheus.Labels{"handler": name}), h)
}

// NewMux returns the API routes of h. The ping route is wrapped by
// pingLimit, which may be nil. Every route allows cross-origin requests.
func (h *Handler) NewMux(pingLimit func(http.Handler) http.Handler) http.Handler {
	var ping http.Handler = instrument("ping", h.Ping)
	if pingLimit != nil {
		ping = pingLimit(ping)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", instrument("root", h.Root))
	mux.Handle("GET /marco", instrument("marco", h.Marco))
	mux.Handle("GET /json", instrument("json", h.JSON))
	mux.Handle("GET "+PingPath, ping)
	mux.Handle("GET "+ResultsPath, instrument("results", h.Results))
	mux.Handle("POST "+ResultPath, instrument("result", h.SaveResult))
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.ExposedHeaders([]string{TotalCountHeader}),
	)(mux)
}
