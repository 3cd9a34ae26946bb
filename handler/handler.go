// Package handler implements the patchy HTTP API: a ping endpoint used as a
// probe target and a small results collection.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/vppro/patchy/logging"
	"github.com/vppro/patchy/metrics"
)

// Greeting is the message served by the root and JSON handlers.
const Greeting = "Hello from Patchy API"

// Default values for the paging parameters of the results handler and for
// the ping payload size range.
const (
	DefaultLimit        = 1000
	DefaultPingMinBytes = 1000
	DefaultPingMaxBytes = 10000
)

// maxResultBytes bounds the size of a submitted result document.
const maxResultBytes = 1 << 20

// Store persists result documents. Documents are opaque JSON objects.
type Store interface {
	Append(ctx context.Context, doc json.RawMessage) error
	List(ctx context.Context, offset, limit int64) ([]json.RawMessage, error)
}

// Counter is implemented by stores that can report their size. Results
// publishes it in the TotalCountHeader.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// TotalCountHeader carries the number of stored results.
const TotalCountHeader = "X-Total-Count"

// Handler serves the patchy API.
type Handler struct {
	// Store is where submitted results are saved.
	Store Store

	// PingMinBytes and PingMaxBytes bound the size of the random ping
	// payload. Zero values select the defaults.
	PingMinBytes int
	PingMaxBytes int
}

func noStore(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
}

// Root greets the caller.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	noStore(w, "text/plain")
	io.WriteString(w, Greeting)
}

// Marco answers "polo".
func (h *Handler) Marco(w http.ResponseWriter, r *http.Request) {
	logging.Logger.Info("received marco ping")
	noStore(w, "text/plain")
	io.WriteString(w, "polo")
}

// JSON greets the caller in JSON.
func (h *Handler) JSON(w http.ResponseWriter, r *http.Request) {
	noStore(w, "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": Greeting})
}

func (h *Handler) pingRange() (int, int) {
	lo, hi := h.PingMinBytes, h.PingMaxBytes
	if lo <= 0 {
		lo = DefaultPingMinBytes
	}
	if hi <= 0 {
		hi = DefaultPingMaxBytes
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Ping serves a random binary payload whose size is drawn uniformly from
// [PingMinBytes, PingMaxBytes].
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	lo, hi := h.pingRange()
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		logging.Logger.WithError(err).Warn("ping: cannot pick payload size")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	buf := make([]byte, lo+int(n.Int64()))
	if _, err := rand.Read(buf); err != nil {
		logging.Logger.WithError(err).Warn("ping: cannot fill payload")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	noStore(w, "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	written, _ := w.Write(buf)
	metrics.PingBytes.Add(float64(written))
}

// parseParam parses the non-negative integer query parameter name, returning
// def when it is absent.
func parseParam(r *http.Request, name string, def int64) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

// Results lists stored results. The limit and offset query parameters page
// through the collection.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	limit, err := parseParam(r, "limit", DefaultLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := parseParam(r, "offset", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	docs, err := h.Store.List(r.Context(), offset, limit)
	if err != nil {
		logging.Logger.WithError(err).Warn("results: cannot list results")
		http.Error(w, "cannot list results", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	if c, ok := h.Store.(Counter); ok {
		if n, err := c.Count(r.Context()); err == nil {
			w.Header().Set(TotalCountHeader, strconv.FormatInt(n, 10))
		} else {
			logging.Logger.WithError(err).Warn("results: cannot count results")
		}
	}
	noStore(w, "application/json")
	json.NewEncoder(w).Encode(docs)
}

// SaveResult stores the JSON object in the request body.
func (h *Handler) SaveResult(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxResultBytes+1))
	if err != nil || len(body) > maxResultBytes {
		metrics.Results.WithLabelValues("rejected").Inc()
		http.Error(w, "cannot read result", http.StatusBadRequest)
		return
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		metrics.Results.WithLabelValues("rejected").Inc()
		http.Error(w, "result must be a JSON object", http.StatusBadRequest)
		return
	}
	if err := h.Store.Append(r.Context(), json.RawMessage(body)); err != nil {
		metrics.Results.WithLabelValues("error").Inc()
		logging.Logger.WithError(err).Warn("result: cannot store result")
		http.Error(w, "cannot store result", http.StatusInternalServerError)
		return
	}
	metrics.Results.WithLabelValues("stored").Inc()
	noStore(w, "text/plain")
	io.WriteString(w, "Result received")
}
