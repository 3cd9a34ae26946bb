package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

type fakeStore struct {
	docs []json.RawMessage
	err  error

	offset, limit int64
}

func (s *fakeStore) Append(ctx context.Context, doc json.RawMessage) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *fakeStore) List(ctx context.Context, offset, limit int64) ([]json.RawMessage, error) {
	s.offset, s.limit = offset, limit
	if s.err != nil {
		return nil, s.err
	}
	return s.docs, nil
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func TestHandler_Static(t *testing.T) {
	mux := (&Handler{Store: &fakeStore{}}).NewMux(nil)
	tests := []struct {
		path        string
		contentType string
		body        string
	}{
		{path: "/", contentType: "text/plain", body: Greeting},
		{path: "/marco", contentType: "text/plain", body: "polo"},
		{path: "/json", contentType: "application/json", body: `{"message":"Hello from Patchy API"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rw := serve(mux, http.MethodGet, tt.path, "")
			if rw.Code != http.StatusOK {
				t.Fatalf("GET %s = %d", tt.path, rw.Code)
			}
			if got := rw.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if got := rw.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", got)
			}
			if rw.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rw.Body.String(), tt.body)
			}
		})
	}
	if rw := serve(mux, http.MethodGet, "/nothing-here", ""); rw.Code != http.StatusNotFound {
		t.Errorf("GET /nothing-here = %d, want %d", rw.Code, http.StatusNotFound)
	}
}

func TestHandler_Ping(t *testing.T) {
	tests := []struct {
		name   string
		h      *Handler
		lo, hi int
	}{
		{name: "default", h: &Handler{}, lo: DefaultPingMinBytes, hi: DefaultPingMaxBytes},
		{name: "fixed", h: &Handler{PingMinBytes: 64, PingMaxBytes: 64}, lo: 64, hi: 64},
		{name: "inverted", h: &Handler{PingMinBytes: 300, PingMaxBytes: 100}, lo: 300, hi: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := tt.h.NewMux(nil)
			for i := 0; i < 20; i++ {
				rw := serve(mux, http.MethodGet, PingPath+"?_=1-"+strconv.Itoa(i), "")
				if rw.Code != http.StatusOK {
					t.Fatalf("GET /ping = %d", rw.Code)
				}
				n := rw.Body.Len()
				if n < tt.lo || n > tt.hi {
					t.Errorf("payload size %d outside [%d, %d]", n, tt.lo, tt.hi)
				}
				if got := rw.Header().Get("Content-Length"); got != strconv.Itoa(n) {
					t.Errorf("Content-Length = %q, want %d", got, n)
				}
				if got := rw.Header().Get("Content-Type"); got != "application/octet-stream" {
					t.Errorf("Content-Type = %q", got)
				}
			}
		})
	}
}

func TestHandler_PingLimit(t *testing.T) {
	reject := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	mux := (&Handler{}).NewMux(reject)
	if rw := serve(mux, http.MethodGet, PingPath, ""); rw.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ping = %d, want %d", rw.Code, http.StatusServiceUnavailable)
	}
	if rw := serve(mux, http.MethodGet, "/marco", ""); rw.Code != http.StatusOK {
		t.Errorf("GET /marco = %d, want %d", rw.Code, http.StatusOK)
	}
}

func TestHandler_SaveResult(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		storeErr error
		status   int
		stored   int
	}{
		{name: "stored", body: `{"passes":true,"ok":2,"avgMs":100,"kbps":19.5}`, status: http.StatusOK, stored: 1},
		{name: "not-json", body: `passes=true`, status: http.StatusBadRequest},
		{name: "not-object", body: `[1,2,3]`, status: http.StatusBadRequest},
		{name: "null", body: `null`, status: http.StatusBadRequest},
		{name: "too-large", body: `{"x":"` + strings.Repeat("a", maxResultBytes) + `"}`, status: http.StatusBadRequest},
		{name: "store-error", body: `{"ok":1}`, storeErr: errors.New("down"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{err: tt.storeErr}
			mux := (&Handler{Store: store}).NewMux(nil)
			rw := serve(mux, http.MethodPost, ResultPath, tt.body)
			if rw.Code != tt.status {
				t.Fatalf("POST /result = %d, want %d", rw.Code, tt.status)
			}
			if len(store.docs) != tt.stored {
				t.Errorf("stored %d docs, want %d", len(store.docs), tt.stored)
			}
			if tt.status == http.StatusOK && rw.Body.String() != "Result received" {
				t.Errorf("body = %q", rw.Body.String())
			}
		})
	}
}

func TestHandler_Results(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		storeErr   error
		status     int
		wantOffset int64
		wantLimit  int64
	}{
		{name: "defaults", status: http.StatusOK, wantLimit: DefaultLimit},
		{name: "paged", query: "?limit=10&offset=20", status: http.StatusOK, wantOffset: 20, wantLimit: 10},
		{name: "bad-limit", query: "?limit=ten", status: http.StatusBadRequest},
		{name: "negative-offset", query: "?offset=-1", status: http.StatusBadRequest},
		{name: "store-error", storeErr: errors.New("down"), status: http.StatusInternalServerError, wantLimit: DefaultLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				docs: []json.RawMessage{json.RawMessage(`{"ok":1}`), json.RawMessage(`{"ok":2}`)},
				err:  tt.storeErr,
			}
			mux := (&Handler{Store: store}).NewMux(nil)
			rw := serve(mux, http.MethodGet, ResultsPath+tt.query, "")
			if rw.Code != tt.status {
				t.Fatalf("GET /results%s = %d, want %d", tt.query, rw.Code, tt.status)
			}
			if store.offset != tt.wantOffset || store.limit != tt.wantLimit {
				t.Errorf("List(%d, %d), want List(%d, %d)", store.offset, store.limit, tt.wantOffset, tt.wantLimit)
			}
			if tt.status != http.StatusOK {
				return
			}
			var docs []map[string]int
			if err := json.Unmarshal(rw.Body.Bytes(), &docs); err != nil {
				t.Fatalf("cannot decode %q: %v", rw.Body.String(), err)
			}
			if len(docs) != 2 || docs[1]["ok"] != 2 {
				t.Errorf("docs = %v", docs)
			}
		})
	}
}

func TestHandler_ResultsEmpty(t *testing.T) {
	mux := (&Handler{Store: &fakeStore{}}).NewMux(nil)
	rw := serve(mux, http.MethodGet, ResultsPath, "")
	body, _ := io.ReadAll(rw.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("GET /results on empty store = %q, want []", body)
	}
}

// countingStore also reports its size.
type countingStore struct {
	fakeStore
	count    int64
	countErr error
}

func (s *countingStore) Count(ctx context.Context) (int64, error) {
	return s.count, s.countErr
}

func TestHandler_ResultsTotalCount(t *testing.T) {
	tests := []struct {
		name  string
		store Store
		want  string
	}{
		{name: "counting", store: &countingStore{count: 42}, want: "42"},
		{name: "count-error", store: &countingStore{countErr: errors.New("down")}, want: ""},
		{name: "not-counting", store: &fakeStore{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := (&Handler{Store: tt.store}).NewMux(nil)
			rw := serve(mux, http.MethodGet, ResultsPath+"?limit=1", "")
			if rw.Code != http.StatusOK {
				t.Fatalf("GET /results = %d", rw.Code)
			}
			if got := rw.Header().Get(TotalCountHeader); got != tt.want {
				t.Errorf("%s = %q, want %q", TotalCountHeader, got, tt.want)
			}
		})
	}
}

func TestHandler_CORS(t *testing.T) {
	mux := (&Handler{Store: &fakeStore{}}).NewMux(nil)
	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	req.Header.Set("Origin", "https://example.org")
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if got := rw.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}
