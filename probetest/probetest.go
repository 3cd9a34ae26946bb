// Package probetest runs the patchy API in-process for tests.
package probetest

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/vppro/patchy/handler"
)

// MemoryStore is a handler.Store keeping documents in memory.
type MemoryStore struct {
	mu   sync.Mutex
	docs []json.RawMessage
}

// Append saves a copy of doc.
func (s *MemoryStore) Append(ctx context.Context, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, append(json.RawMessage(nil), doc...))
	return nil
}

// List returns at most limit documents starting at offset.
func (s *MemoryStore) List(ctx context.Context, offset, limit int64) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.docs))
	if offset >= n || limit == 0 {
		return nil, nil
	}
	end := n
	if limit < n-offset {
		end = offset + limit
	}
	return append([]json.RawMessage(nil), s.docs[offset:end]...), nil
}

// Count implements handler.Counter.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	return int64(s.Len()), nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// NewServer starts an httptest server running the patchy API over a
// MemoryStore. The server is closed when the test ends.
func NewServer(t *testing.T) (*MemoryStore, *httptest.Server) {
	store := &MemoryStore{}
	h := &handler.Handler{Store: store}
	srv := httptest.NewServer(h.NewMux(nil))
	t.Cleanup(srv.Close)
	return store, srv
}
