// Package access provides admission controllers that shed load from the
// ping handler before it starts serving payloads.
package access

import (
	"net/http"
)

// Controller is the interface that all access control types should implement.
type Controller interface {
	Limit(next http.Handler) http.Handler
}

// Chain returns a function wrapping a handler with every non-nil controller,
// so that the first controller is the first to see a request.
func Chain(controllers ...Controller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(controllers) - 1; i >= 0; i-- {
			if controllers[i] != nil {
				next = controllers[i].Limit(next)
			}
		}
		return next
	}
}
